// Package runs records the history of auto-match batch runs for auditing
// and reporting. Run documents are write-once.
package runs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Failure is one isolated per-line error captured during a run
type Failure struct {
	LineID uuid.UUID `json:"line_id" bson:"line_id"`
	Reason string    `json:"reason" bson:"reason"`
}

// Run is the persisted report of one auto-match batch run
type Run struct {
	ID                 uuid.UUID  `json:"id" bson:"run_id"`
	CompanyID          uuid.UUID  `json:"company_id" bson:"company_id"`
	AccountID          *uuid.UUID `json:"account_id,omitempty" bson:"account_id,omitempty"`
	Currency           string     `json:"currency,omitempty" bson:"currency,omitempty"`
	Actor              string     `json:"actor,omitempty" bson:"actor,omitempty"`
	Partitions         int        `json:"partitions" bson:"partitions"`
	LinesProcessed     int        `json:"lines_processed" bson:"lines_processed"`
	MatchedCount       int        `json:"matched_count" bson:"matched_count"`
	SuggestedCount     int        `json:"suggested_count" bson:"suggested_count"`
	MissingRecordCount int        `json:"missing_record_count" bson:"missing_record_count"`
	FailedCount        int        `json:"failed_count" bson:"failed_count"`
	Failures           []Failure  `json:"failures,omitempty" bson:"failures,omitempty"`
	StartedAt          time.Time  `json:"started_at" bson:"started_at"`
	FinishedAt         time.Time  `json:"finished_at" bson:"finished_at"`
}

// Repository manages run history persistence with pagination support
type Repository interface {
	Create(ctx context.Context, run *Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*Run, error)
	List(ctx context.Context, limit, offset int) ([]*Run, error)
	Count(ctx context.Context) (int64, error)
}

// ErrRunNotFound indicates missing run document
type ErrRunNotFound struct {
	RunID uuid.UUID
}

func (e ErrRunNotFound) Error() string {
	return "auto-match run not found: " + e.RunID.String()
}

// Is implements the errors.Is interface for ErrRunNotFound
func (e ErrRunNotFound) Is(target error) bool {
	t, ok := target.(ErrRunNotFound)
	if !ok {
		return false
	}
	if t.RunID == uuid.Nil {
		return true
	}
	return e.RunID == t.RunID
}
