package matching

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/domain/match"
	"github.com/finrecon/bank-reconciliation/internal/domain/record"
	"github.com/finrecon/bank-reconciliation/internal/domain/rules"
)

// Ledger is the subset of match ledger operations the auto-matcher needs
type Ledger interface {
	CreateMatch(ctx context.Context, lineID uuid.UUID, input match.CreateInput) (*match.Match, *bankfeed.Line, error)
	MarkMissingRecord(ctx context.Context, lineID uuid.UUID) (*bankfeed.Line, error)
}

// LineFailure records a per-line error during a batch run. One line's
// failure never aborts the remainder of the batch.
type LineFailure struct {
	LineID uuid.UUID `json:"line_id"`
	Err    error     `json:"-"`
}

// BatchResult is the outcome of one auto-match batch: matches created above
// the threshold, cached suggestion lists for lines below it, lines left
// without any viable candidate, and isolated per-line failures.
type BatchResult struct {
	Matches        []*match.Match
	Suggestions    map[uuid.UUID][]SuggestedMatch
	MissingRecords []uuid.UUID
	Failures       []LineFailure
}

// AutoMatcher orchestrates suggestion generation and the match ledger across
// a batch of unmatched lines. Candidate consumption within a batch is greedy
// and first-line-wins in stable input order; the result is therefore fully
// deterministic for a given input ordering but not a globally optimal
// assignment.
type AutoMatcher struct {
	ledger Ledger
	logger *slog.Logger
}

// NewAutoMatcher creates a new auto-matcher
func NewAutoMatcher(ledger Ledger, logger *slog.Logger) *AutoMatcher {
	return &AutoMatcher{
		ledger: ledger,
		logger: logger,
	}
}

// RunBatch processes lines in input order. For each eligible line it scores
// the not-yet-consumed candidate pool; the top suggestion is promoted to an
// automatic match when it reaches the rule set's threshold, consuming the
// record for the remainder of the batch. Lines below the threshold keep
// their full suggestion list; lines with no candidate above the floor and no
// existing match state are marked MISSING_RECORD.
func (a *AutoMatcher) RunBatch(ctx context.Context, lines []*bankfeed.Line, candidates []record.SystemRecord, rs rules.RuleSet, actor string) *BatchResult {
	result := &BatchResult{
		Suggestions: make(map[uuid.UUID][]SuggestedMatch),
	}

	consumed := make(map[uuid.UUID]bool)

	for _, line := range lines {
		if !line.AutoMatchEligible() {
			continue
		}

		pool := make([]record.SystemRecord, 0, len(candidates))
		for _, cand := range candidates {
			if !consumed[cand.ID] {
				pool = append(pool, cand)
			}
		}

		suggestions := GenerateSuggestions(line, pool, rs)
		if len(suggestions) == 0 {
			a.markMissing(ctx, line, result)
			continue
		}

		top := suggestions[0]
		if top.Score < rs.AutoMatchThreshold {
			result.Suggestions[line.ID] = suggestions
			continue
		}

		input := match.CreateInput{
			RecordType:    top.Record.Type,
			RecordID:      top.Record.ID,
			ProjectID:     top.Record.ProjectID,
			MatchedAmount: autoMatchAmount(line, top.Record),
			MatchedBy:     actor,
			Score:         top.Score,
			Method:        match.MethodAuto,
			RuleID:        topRuleID(top, rs),
		}

		created, _, err := a.ledger.CreateMatch(ctx, line.ID, input)
		if err != nil {
			a.logger.Error("auto-match failed for bank line",
				"line_id", line.ID.String(),
				"record_id", top.Record.ID.String(),
				"score", top.Score,
				"error", err,
			)
			result.Failures = append(result.Failures, LineFailure{LineID: line.ID, Err: err})
			continue
		}

		result.Matches = append(result.Matches, created)
		consumed[top.Record.ID] = true
	}

	return result
}

// markMissing flags lines with no viable candidate and no existing match
// state. Lines already flagged are left alone.
func (a *AutoMatcher) markMissing(ctx context.Context, line *bankfeed.Line, result *BatchResult) {
	if !line.MatchedAmount.IsZero() {
		return
	}
	if line.Status == bankfeed.StatusMissingRecord {
		result.MissingRecords = append(result.MissingRecords, line.ID)
		return
	}

	if _, err := a.ledger.MarkMissingRecord(ctx, line.ID); err != nil {
		a.logger.Error("failed to mark bank line as missing record",
			"line_id", line.ID.String(),
			"error", err,
		)
		result.Failures = append(result.Failures, LineFailure{LineID: line.ID, Err: err})
		return
	}
	result.MissingRecords = append(result.MissingRecords, line.ID)
}

// autoMatchAmount attributes the record amount to the line, capped at the
// line's remaining amount so a close-amount auto match cannot break the
// conservation invariant
func autoMatchAmount(line *bankfeed.Line, rec record.SystemRecord) decimal.Decimal {
	remaining := line.RemainingAmount()
	if rec.Amount.GreaterThan(remaining) {
		return remaining
	}
	return rec.Amount
}

// topRuleID returns the stored rule id of the highest-weighted fired rule
func topRuleID(s SuggestedMatch, rs rules.RuleSet) *uuid.UUID {
	best := -1
	var id *uuid.UUID
	for _, rule := range s.Breakdown {
		if rule.Points > best {
			if stored := rs.RuleID(rule.Criterion); stored != nil {
				best = rule.Points
				id = stored
			}
		}
	}
	return id
}
