package match

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/domain/record"
)

// Method records how a match came to exist
type Method string

const (
	MethodManual    Method = "MANUAL"
	MethodSuggested Method = "SUGGESTED"
	MethodAuto      Method = "AUTO"
)

// Match is a persisted link between a bank feed line and a system record,
// carrying the amount attributed to that record. A bank line may own several
// matches (partial/split reconciliation).
type Match struct {
	ID                 uuid.UUID       `json:"id"`
	LineID             uuid.UUID       `json:"line_id"`
	RecordType         record.Type     `json:"record_type"`
	RecordID           uuid.UUID       `json:"record_id"`
	ProjectID          *uuid.UUID      `json:"project_id,omitempty"`
	MatchedAmount      decimal.Decimal `json:"matched_amount"`
	AmountDifference   decimal.Decimal `json:"amount_difference"` // |line amount| - matched amount
	MatchedBy          string          `json:"matched_by"`
	MatchedAt          time.Time       `json:"matched_at"`
	Score              int             `json:"score"`
	Method             Method          `json:"method"`
	RuleID             *uuid.UUID      `json:"rule_id,omitempty"`
	AdjustmentRequired bool            `json:"adjustment_required"`
	AdjustmentReason   string          `json:"adjustment_reason,omitempty"`
}

// CreateInput carries the caller-provided fields for a new match. Actor
// identity is the caller's responsibility.
type CreateInput struct {
	RecordType       record.Type
	RecordID         uuid.UUID
	ProjectID        *uuid.UUID
	MatchedAmount    decimal.Decimal
	MatchedBy        string
	Score            int
	Method           Method
	RuleID           *uuid.UUID
	AdjustmentReason string
}

// New builds a match for the given line, computing the amount difference and
// the adjustment flag from the line amount
func New(line *bankfeed.Line, input CreateInput) *Match {
	difference := line.AbsAmount().Sub(input.MatchedAmount)

	return &Match{
		ID:                 uuid.New(),
		LineID:             line.ID,
		RecordType:         input.RecordType,
		RecordID:           input.RecordID,
		ProjectID:          input.ProjectID,
		MatchedAmount:      input.MatchedAmount,
		AmountDifference:   difference,
		MatchedBy:          input.MatchedBy,
		MatchedAt:          time.Now(),
		Score:              input.Score,
		Method:             input.Method,
		RuleID:             input.RuleID,
		AdjustmentRequired: difference.Abs().GreaterThan(bankfeed.AmountTolerance),
		AdjustmentReason:   input.AdjustmentReason,
	}
}
