package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/domain/match"
	"github.com/finrecon/bank-reconciliation/internal/domain/runs"
	"github.com/finrecon/bank-reconciliation/internal/matching"
)

// ReconciliationService defines match bookkeeping and suggestion operations
// for single bank lines
type ReconciliationService interface {
	// GetLine retrieves a bank feed line by its ID
	// Returns ErrLineNotFound if the line doesn't exist
	GetLine(ctx context.Context, lineID uuid.UUID) (*bankfeed.Line, error)

	// GenerateSuggestions scores all unreconciled candidate records against
	// the line and returns them ranked. Suggestions are recomputed on every
	// call; nothing is persisted.
	GenerateSuggestions(ctx context.Context, lineID uuid.UUID) (*bankfeed.Line, []matching.SuggestedMatch, error)

	// CreateMatch links the line to a system record with the given amount.
	// Returns the created match and the updated line state.
	CreateMatch(ctx context.Context, lineID uuid.UUID, input match.CreateInput) (*match.Match, *bankfeed.Line, error)

	// RemoveMatch deletes a match and reverts its amount from the line
	RemoveMatch(ctx context.Context, lineID, matchID uuid.UUID, actor string) (*bankfeed.Line, error)

	// ListMatches retrieves all matches recorded against the line
	ListMatches(ctx context.Context, lineID uuid.UUID) ([]*match.Match, error)

	// IgnoreLine excludes the line from reconciliation
	IgnoreLine(ctx context.Context, lineID uuid.UUID, actor, reason string) (*bankfeed.Line, error)

	// UnignoreLine restores the status implied by the line's match state
	UnignoreLine(ctx context.Context, lineID uuid.UUID, actor string) (*bankfeed.Line, error)

	// GetStats aggregates reconciliation statistics over the scoped lines
	GetStats(ctx context.Context, scope bankfeed.Scope) (matching.Stats, error)
}

// RunScope bounds one auto-match batch run. CompanyID is mandatory; the
// remaining fields narrow the line selection when set.
type RunScope struct {
	CompanyID uuid.UUID
	AccountID uuid.UUID
	Currency  string
	DateFrom  time.Time
	DateTo    time.Time
	Actor     string
}

// AutoMatchService runs auto-match batches and exposes their history
type AutoMatchService interface {
	// Run executes one auto-match batch over the scope and records the run
	Run(ctx context.Context, scope RunScope) (*runs.Run, error)

	// GetRun retrieves a recorded run by its ID
	// Returns ErrRunNotFound if the run doesn't exist
	GetRun(ctx context.Context, id uuid.UUID) (*runs.Run, error)

	// ListRuns retrieves a paginated run history, newest first
	// Returns runs, total count, and any error
	ListRuns(ctx context.Context, page, perPage int) ([]*runs.Run, int64, error)
}
