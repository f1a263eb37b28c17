package matching

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/domain/record"
	"github.com/finrecon/bank-reconciliation/internal/domain/rules"
)

// SuggestedMatch is an unpersisted, ranked candidate match proposed by
// scoring. It is regenerable at any time from line and record state; any
// cache of it must be dropped when either side changes.
type SuggestedMatch struct {
	LineID             uuid.UUID       `json:"line_id"`
	Record             record.SystemRecord `json:"record"`
	Score              int             `json:"score"`
	Breakdown          []RuleScore     `json:"breakdown"`
	AmountDifference   decimal.Decimal `json:"amount_difference"`    // |line| - record amount, absolute
	DateDifferenceDays int             `json:"date_difference_days"` // -1 when either date is unusable
}

// GenerateSuggestions scores all eligible candidates for one bank line and
// returns them ranked and bounded. Candidates in a different currency or
// already reconciled are filtered before scoring; candidates below the
// minimum score floor are dropped after it.
func GenerateSuggestions(line *bankfeed.Line, candidates []record.SystemRecord, rs rules.RuleSet) []SuggestedMatch {
	suggestions := make([]SuggestedMatch, 0, len(candidates))

	for _, cand := range candidates {
		if cand.Currency != line.Currency || cand.Reconciled {
			continue
		}

		score := ScorePair(line, cand, rs)
		if score.Total < rs.MinSuggestionScore {
			continue
		}

		suggestions = append(suggestions, SuggestedMatch{
			LineID:             line.ID,
			Record:             cand,
			Score:              score.Total,
			Breakdown:          score.Breakdown,
			AmountDifference:   line.AbsAmount().Sub(cand.Amount).Abs(),
			DateDifferenceDays: dateDifferenceDays(line.TransactionDate, cand.Date),
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		return rankBefore(suggestions[i], suggestions[j])
	})

	limit := rs.MaxSuggestions
	if limit <= 0 {
		limit = rules.DefaultMaxSuggestions
	}
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

// rankBefore is the deterministic suggestion ordering: score descending,
// then smaller absolute amount difference, then smaller absolute date
// difference, then candidate id ascending. The final id comparison makes
// the ordering total.
func rankBefore(a, b SuggestedMatch) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if cmp := a.AmountDifference.Cmp(b.AmountDifference); cmp != 0 {
		return cmp < 0
	}
	if a.DateDifferenceDays != b.DateDifferenceDays {
		// Unknown date differences sort after known ones
		if a.DateDifferenceDays < 0 {
			return false
		}
		if b.DateDifferenceDays < 0 {
			return true
		}
		return a.DateDifferenceDays < b.DateDifferenceDays
	}
	return bytes.Compare(a.Record.ID[:], b.Record.ID[:]) < 0
}
