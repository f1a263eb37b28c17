// Package rules defines the configurable weighted rule set the scoring
// engine evaluates. Weights and enabled flags are stored per company; the
// defaults below apply when nothing is stored.
package rules

import (
	"context"

	"github.com/google/uuid"
)

// Criterion names a scoring rule predicate
type Criterion string

const (
	CriterionExactAmount  Criterion = "EXACT_AMOUNT"
	CriterionCloseAmount  Criterion = "CLOSE_AMOUNT"
	CriterionReference    Criterion = "REFERENCE"
	CriterionSameDate     Criterion = "SAME_DATE"
	CriterionCloseDate    Criterion = "CLOSE_DATE"
	CriterionCounterparty Criterion = "COUNTERPARTY"
	CriterionKeywords     Criterion = "DESCRIPTION_KEYWORDS"
)

// Default rule weights. The amount pair and the date pair are each mutually
// exclusive; all other rules are independent and additive.
const (
	DefaultWeightExactAmount  = 40
	DefaultWeightCloseAmount  = 20
	DefaultWeightReference    = 30
	DefaultWeightSameDate     = 20
	DefaultWeightCloseDate    = 10
	DefaultWeightCounterparty = 15
	DefaultWeightKeywords     = 15
)

// DefaultAutoMatchThreshold is the minimum score at which a suggestion is
// promoted to a match without human confirmation
const DefaultAutoMatchThreshold = 85

// DefaultMinSuggestionScore is the floor below which candidates are dropped
// from suggestion lists
const DefaultMinSuggestionScore = 1

// DefaultMaxSuggestions bounds suggestion lists per bank line
const DefaultMaxSuggestions = 5

// Rule is one named, weighted criterion
type Rule struct {
	ID        uuid.UUID `json:"id"`
	Criterion Criterion `json:"criterion"`
	Weight    int       `json:"weight"`
	Enabled   bool      `json:"enabled"`
}

// RuleSet is the full set of rules plus the thresholds applied during one
// scoring pass. A rule set is read fresh at the start of each pass.
type RuleSet struct {
	Rules              []Rule `json:"rules"`
	AutoMatchThreshold int    `json:"auto_match_threshold"`
	MinSuggestionScore int    `json:"min_suggestion_score"`
	MaxSuggestions     int    `json:"max_suggestions"`
}

// Weight returns the effective weight for a criterion. Disabled or absent
// criteria weigh zero.
func (rs RuleSet) Weight(c Criterion) int {
	for _, r := range rs.Rules {
		if r.Criterion == c {
			if !r.Enabled {
				return 0
			}
			return r.Weight
		}
	}
	return 0
}

// RuleID returns the stored rule id for a criterion, if any
func (rs RuleSet) RuleID(c Criterion) *uuid.UUID {
	for _, r := range rs.Rules {
		if r.Criterion == c && r.ID != uuid.Nil {
			id := r.ID
			return &id
		}
	}
	return nil
}

// DefaultRuleSet returns the built-in weighted rule set
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Rules: []Rule{
			{Criterion: CriterionExactAmount, Weight: DefaultWeightExactAmount, Enabled: true},
			{Criterion: CriterionCloseAmount, Weight: DefaultWeightCloseAmount, Enabled: true},
			{Criterion: CriterionReference, Weight: DefaultWeightReference, Enabled: true},
			{Criterion: CriterionSameDate, Weight: DefaultWeightSameDate, Enabled: true},
			{Criterion: CriterionCloseDate, Weight: DefaultWeightCloseDate, Enabled: true},
			{Criterion: CriterionCounterparty, Weight: DefaultWeightCounterparty, Enabled: true},
			{Criterion: CriterionKeywords, Weight: DefaultWeightKeywords, Enabled: true},
		},
		AutoMatchThreshold: DefaultAutoMatchThreshold,
		MinSuggestionScore: DefaultMinSuggestionScore,
		MaxSuggestions:     DefaultMaxSuggestions,
	}
}

// Repository reads the current rule set. Implementations overlay stored
// rules onto the defaults.
type Repository interface {
	Get(ctx context.Context) (RuleSet, error)
}
