package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finrecon/bank-reconciliation/internal/config"
	"github.com/finrecon/bank-reconciliation/internal/domain/rules"
	"github.com/finrecon/bank-reconciliation/internal/platform/persistence"
)

// RuleRepository implements the rules.Repository interface for PostgreSQL.
// Stored rules overlay the built-in defaults; thresholds come from service
// configuration so operators can tune them without a schema change.
type RuleRepository struct {
	querier  persistence.Querier
	matching config.MatchingConfig
	logger   *slog.Logger
}

// NewRuleRepository creates a new PostgreSQL rule repository
func NewRuleRepository(logger *slog.Logger, db *persistence.PostgresDB, matching config.MatchingConfig) rules.Repository {
	return &RuleRepository{
		querier:  db.Pool(),
		matching: matching,
		logger:   logger,
	}
}

// Get reads the current rule set. It is called fresh at the start of each
// scoring pass so weight changes take effect without restarts.
func (r *RuleRepository) Get(ctx context.Context) (rules.RuleSet, error) {
	ruleSet := rules.DefaultRuleSet()
	ruleSet.AutoMatchThreshold = r.matching.AutoMatchThreshold
	ruleSet.MinSuggestionScore = r.matching.MinSuggestionScore
	ruleSet.MaxSuggestions = r.matching.MaxSuggestions

	query := `
		SELECT id, criterion, weight, enabled
		FROM matching_rules
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to load matching rules", "error", err)
		return rules.RuleSet{}, fmt.Errorf("failed to load matching rules: %w", err)
	}
	defer rows.Close()

	stored := make(map[rules.Criterion]rules.Rule)
	for rows.Next() {
		var rule rules.Rule
		if err := rows.Scan(&rule.ID, &rule.Criterion, &rule.Weight, &rule.Enabled); err != nil {
			r.logger.Error("Failed to scan matching rule", "error", err)
			return rules.RuleSet{}, fmt.Errorf("failed to scan matching rule: %w", err)
		}
		stored[rule.Criterion] = rule
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over matching rules", "error", err)
		return rules.RuleSet{}, fmt.Errorf("error iterating over matching rules: %w", err)
	}

	// Overlay stored rules onto the defaults, keeping default entries for
	// criteria with no stored row.
	for i, rule := range ruleSet.Rules {
		if override, ok := stored[rule.Criterion]; ok {
			ruleSet.Rules[i] = override
		}
	}

	return ruleSet, nil
}
