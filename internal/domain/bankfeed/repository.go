package bankfeed

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Scope filters bank feed lines for listing and reporting. Zero-valued
// fields are not applied.
type Scope struct {
	AccountID uuid.UUID
	CompanyID uuid.UUID
	Currency  string
	DateFrom  time.Time
	DateTo    time.Time
	Statuses  []Status
}

// Repository defines bank feed line persistence operations
type Repository interface {
	Create(ctx context.Context, line *Line) error
	GetByID(ctx context.Context, id uuid.UUID) (*Line, error)
	List(ctx context.Context, scope Scope) ([]*Line, error)

	// Update uses optimistic locking against the line version
	Update(ctx context.Context, line *Line) error

	// LockForUpdate acquires a pessimistic lock for match bookkeeping
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Line, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	LineID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for bank line: " + e.LineID.String()
}

// Is implements the errors.Is interface for ErrConcurrentModification
func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	if t.LineID == uuid.Nil {
		return true
	}
	return e.LineID == t.LineID
}

// ErrLineNotFound indicates missing bank feed line
type ErrLineNotFound struct {
	LineID uuid.UUID
}

func (e ErrLineNotFound) Error() string {
	return "bank line not found: " + e.LineID.String()
}

// Is implements the errors.Is interface for ErrLineNotFound
func (e ErrLineNotFound) Is(target error) bool {
	t, ok := target.(ErrLineNotFound)
	if !ok {
		return false
	}
	if t.LineID == uuid.Nil {
		return true
	}
	return e.LineID == t.LineID
}
