package bankfeed

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrInvalidMatchedAmount = errors.New("matched amount must be positive")
	ErrLineFullyMatched     = errors.New("bank line is already fully matched")
	ErrAmountConservation   = errors.New("matched amount would exceed the bank line amount")
	ErrLineIgnored          = errors.New("bank line is ignored")
	ErrLineNotIgnored       = errors.New("bank line is not ignored")
)

// AmountTolerance is the rounding slack allowed when comparing monetary
// amounts, in currency units. Cumulative matched amounts may never exceed the
// absolute line amount by more than this value.
var AmountTolerance = decimal.New(1, -2) // 0.01

// Status represents the reconciliation state of a bank feed line
type Status string

const (
	StatusUnmatched     Status = "UNMATCHED"
	StatusMatched       Status = "MATCHED"
	StatusMissingRecord Status = "MISSING_RECORD"
	StatusNeedsReview   Status = "NEEDS_REVIEW"
	StatusIgnored       Status = "IGNORED"
)

// Line represents one imported bank-statement transaction row awaiting
// reconciliation. Lines are created on import and never deleted; their match
// state is mutated only through the match ledger and the ignore operations.
type Line struct {
	ID              uuid.UUID        `json:"id"`
	AccountID       uuid.UUID        `json:"account_id"`
	CompanyID       uuid.UUID        `json:"company_id"`
	ProjectID       *uuid.UUID       `json:"project_id,omitempty"`
	Currency        string           `json:"currency"`
	TransactionDate time.Time        `json:"transaction_date"`
	ValueDate       time.Time        `json:"value_date"`
	Description     string           `json:"description"`
	Reference       string           `json:"reference,omitempty"`
	Amount          decimal.Decimal  `json:"amount"` // Signed; negative for outflows
	RunningBalance  *decimal.Decimal `json:"running_balance,omitempty"`
	Status          Status           `json:"status"`
	MatchedAmount   decimal.Decimal  `json:"matched_amount"`
	Confidence      *int             `json:"confidence,omitempty"`
	ImportBatchID   string           `json:"import_batch_id,omitempty"`
	IgnoredBy       string           `json:"ignored_by,omitempty"`
	IgnoredAt       *time.Time       `json:"ignored_at,omitempty"`
	IgnoreReason    string           `json:"ignore_reason,omitempty"`
	Version         int              `json:"version"` // For optimistic locking
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// AbsAmount returns the unsigned line amount
func (l *Line) AbsAmount() decimal.Decimal {
	return l.Amount.Abs()
}

// RemainingAmount returns the unsigned amount still to be matched
func (l *Line) RemainingAmount() decimal.Decimal {
	return l.AbsAmount().Sub(l.MatchedAmount)
}

// IsFullyMatched reports whether the cumulative matched amount closes the
// line amount within tolerance
func (l *Line) IsFullyMatched() bool {
	return l.RemainingAmount().LessThanOrEqual(AmountTolerance)
}

// MatchStateStatus returns the status implied by the match state alone,
// disregarding any ignore flag. Unignoring a line restores this status.
func (l *Line) MatchStateStatus() Status {
	switch {
	case l.MatchedAmount.IsZero():
		return StatusUnmatched
	case l.IsFullyMatched():
		return StatusMatched
	default:
		return StatusNeedsReview
	}
}

// ApplyMatch increments the cumulative matched amount and recomputes the
// status. Callers must validate the amount against the conservation invariant
// first; ApplyMatch enforces it as a final guard.
func (l *Line) ApplyMatch(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidMatchedAmount
	}
	if l.Status == StatusIgnored {
		return ErrLineIgnored
	}
	if l.IsFullyMatched() {
		return ErrLineFullyMatched
	}

	newTotal := l.MatchedAmount.Add(amount)
	if newTotal.GreaterThan(l.AbsAmount().Add(AmountTolerance)) {
		return ErrAmountConservation
	}

	l.MatchedAmount = newTotal
	l.Status = l.MatchStateStatus()
	l.UpdatedAt = time.Now()
	l.Version++
	return nil
}

// RevertMatch decrements the cumulative matched amount after a match removal
// and recomputes the status. Reverting the only match restores the line to
// UNMATCHED exactly.
func (l *Line) RevertMatch(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidMatchedAmount
	}

	newTotal := l.MatchedAmount.Sub(amount)
	if newTotal.IsNegative() {
		newTotal = decimal.Zero
	}

	l.MatchedAmount = newTotal
	if l.Status != StatusIgnored {
		l.Status = l.MatchStateStatus()
	}
	l.UpdatedAt = time.Now()
	l.Version++
	return nil
}

// Ignore marks the line as ignored, recording who excluded it and why.
// The match state is left untouched so that Unignore can restore it.
func (l *Line) Ignore(actor, reason string) error {
	if l.Status == StatusIgnored {
		return ErrLineIgnored
	}

	now := time.Now()
	l.Status = StatusIgnored
	l.IgnoredBy = actor
	l.IgnoredAt = &now
	l.IgnoreReason = reason
	l.UpdatedAt = now
	l.Version++
	return nil
}

// Unignore clears the ignore flag and restores the status implied by the
// line's match state
func (l *Line) Unignore() error {
	if l.Status != StatusIgnored {
		return ErrLineNotIgnored
	}

	l.Status = l.MatchStateStatus()
	l.IgnoredBy = ""
	l.IgnoredAt = nil
	l.IgnoreReason = ""
	l.UpdatedAt = time.Now()
	l.Version++
	return nil
}

// MarkMissingRecord flags a line for which no candidate scored above the
// suggestion floor. Only lines with no match state may be flagged.
func (l *Line) MarkMissingRecord() error {
	if l.Status == StatusIgnored {
		return ErrLineIgnored
	}
	if !l.MatchedAmount.IsZero() {
		return ErrLineFullyMatched
	}

	l.Status = StatusMissingRecord
	l.UpdatedAt = time.Now()
	l.Version++
	return nil
}

// AutoMatchEligible reports whether the auto-matcher may process this line.
// Ignored, matched, and needs-review lines are excluded from automation.
func (l *Line) AutoMatchEligible() bool {
	return l.Status == StatusUnmatched || l.Status == StatusMissingRecord
}
