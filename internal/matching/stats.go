package matching

import (
	"github.com/shopspring/decimal"

	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
)

// Stats is a read-only rollup of line statuses and amounts over an
// already-scoped slice of bank feed lines
type Stats struct {
	TotalLines        int                     `json:"total_lines"`
	CountsByStatus    map[bankfeed.Status]int `json:"counts_by_status"`
	UnmatchedAmount   decimal.Decimal         `json:"unmatched_amount"`
	DiscrepancyAmount decimal.Decimal         `json:"discrepancy_amount"`
	CoverageRatio     float64                 `json:"coverage_ratio"`
}

// ComputeStats aggregates reconciliation statistics over the given lines.
// UnmatchedAmount sums the remaining amounts of non-ignored lines;
// DiscrepancyAmount sums the gaps of partially matched lines whose matched
// amount differs from the line amount beyond tolerance. Recomputed on
// demand; O(n) over an already-filtered slice.
func ComputeStats(lines []*bankfeed.Line) Stats {
	stats := Stats{
		TotalLines:        len(lines),
		CountsByStatus:    make(map[bankfeed.Status]int),
		UnmatchedAmount:   decimal.Zero,
		DiscrepancyAmount: decimal.Zero,
	}

	matched := 0
	for _, line := range lines {
		stats.CountsByStatus[line.Status]++

		if line.Status == bankfeed.StatusMatched {
			matched++
		}
		if line.Status == bankfeed.StatusIgnored {
			continue
		}

		remaining := line.RemainingAmount()
		if remaining.IsPositive() {
			stats.UnmatchedAmount = stats.UnmatchedAmount.Add(remaining)
		}
		if !line.MatchedAmount.IsZero() && remaining.Abs().GreaterThan(bankfeed.AmountTolerance) {
			stats.DiscrepancyAmount = stats.DiscrepancyAmount.Add(remaining.Abs())
		}
	}

	if stats.TotalLines > 0 {
		stats.CoverageRatio = float64(matched) / float64(stats.TotalLines)
	}
	return stats
}
