// Package matching implements the bank reconciliation matching engine: a
// deterministic weighted scorer over (bank line, system record) pairs, a
// bounded suggestion generator, the match ledger that owns match lifecycle
// and amount conservation, and the greedy batch auto-matcher.
package matching

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/domain/record"
	"github.com/finrecon/bank-reconciliation/internal/domain/rules"
)

// closeAmountPct is the relative band for the close-amount rule (±1%)
var closeAmountPct = decimal.New(1, -2)

// closeDateWindowDays is the window for the close-date rule (±3 days)
const closeDateWindowDays = 3

// RuleScore is one fired rule with the points it contributed
type RuleScore struct {
	Criterion rules.Criterion `json:"criterion"`
	Points    int             `json:"points"`
}

// Score is the result of scoring one (bank line, system record) pair. Total
// is the unbounded sum of fired rule weights; it is not clamped to 100.
type Score struct {
	Total     int         `json:"total"`
	Breakdown []RuleScore `json:"breakdown"`
}

// ScorePair computes the match score for one pair under the given rule set.
// It is pure and deterministic: identical inputs always yield an identical
// result, and malformed fields (missing reference, zero date) simply leave
// the corresponding rule unfired rather than failing.
func ScorePair(line *bankfeed.Line, rec record.SystemRecord, rs rules.RuleSet) Score {
	var score Score

	award := func(c rules.Criterion) {
		if w := rs.Weight(c); w > 0 {
			score.Total += w
			score.Breakdown = append(score.Breakdown, RuleScore{Criterion: c, Points: w})
		}
	}

	// Amount rules are mutually exclusive: exact wins over close.
	switch {
	case amountsExact(line.AbsAmount(), rec.Amount):
		award(rules.CriterionExactAmount)
	case amountsClose(line.AbsAmount(), rec.Amount):
		award(rules.CriterionCloseAmount)
	}

	if referencesEqual(line.Reference, rec.Reference) {
		award(rules.CriterionReference)
	}

	// Date rules are mutually exclusive: same date wins over close.
	switch days := dateDifferenceDays(line.TransactionDate, rec.Date); {
	case days == 0 && !line.TransactionDate.IsZero() && !rec.Date.IsZero():
		award(rules.CriterionSameDate)
	case days > 0 && days <= closeDateWindowDays:
		award(rules.CriterionCloseDate)
	}

	if counterpartyMatches(line.Description, rec.Counterparty) {
		award(rules.CriterionCounterparty)
	}

	if keywordOverlap(line.Description, rec.Reference+" "+rec.Counterparty) >= keywordOverlapMin {
		award(rules.CriterionKeywords)
	}

	return score
}

// amountsExact reports equality within the rounding tolerance
func amountsExact(lineAbs, recordAmount decimal.Decimal) bool {
	return lineAbs.Sub(recordAmount).Abs().LessThanOrEqual(bankfeed.AmountTolerance)
}

// amountsClose reports whether the record amount falls within ±1% of the
// line amount. Exact pairs are handled before this is consulted.
func amountsClose(lineAbs, recordAmount decimal.Decimal) bool {
	if lineAbs.IsZero() {
		return false
	}
	band := lineAbs.Mul(closeAmountPct)
	return lineAbs.Sub(recordAmount).Abs().LessThanOrEqual(band)
}

func referencesEqual(a, b string) bool {
	na := normalizeReference(a)
	nb := normalizeReference(b)
	return na != "" && na == nb
}

// dateDifferenceDays returns the absolute difference in calendar days, or -1
// when either date is unusable
func dateDifferenceDays(a, b time.Time) int {
	if a.IsZero() || b.IsZero() {
		return -1
	}

	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
