package match

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines match persistence operations
type Repository interface {
	Create(ctx context.Context, m *Match) error
	GetByID(ctx context.Context, id uuid.UUID) (*Match, error)
	ListByLineID(ctx context.Context, lineID uuid.UUID) ([]*Match, error)
	Delete(ctx context.Context, id uuid.UUID) error
	WithTx(tx pgx.Tx) Repository
}

// ErrMatchNotFound indicates missing match
type ErrMatchNotFound struct {
	MatchID uuid.UUID
}

func (e ErrMatchNotFound) Error() string {
	return "match not found: " + e.MatchID.String()
}

// Is implements the errors.Is interface for ErrMatchNotFound
func (e ErrMatchNotFound) Is(target error) bool {
	t, ok := target.(ErrMatchNotFound)
	if !ok {
		return false
	}
	if t.MatchID == uuid.Nil {
		return true
	}
	return e.MatchID == t.MatchID
}
