package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finrecon/bank-reconciliation/internal/domain/match"
	"github.com/finrecon/bank-reconciliation/internal/platform/persistence"
)

const matchColumns = `id, line_id, record_type, record_id, project_id, matched_amount, amount_difference,
		matched_by, matched_at, score, method, rule_id, adjustment_required, adjustment_reason`

// MatchRepository implements the match.Repository interface for PostgreSQL
type MatchRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewMatchRepository creates a new PostgreSQL match repository
func NewMatchRepository(logger *slog.Logger, db *persistence.PostgresDB) match.Repository {
	return &MatchRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so match rows are written
// atomically with the bank line update
func (r *MatchRepository) WithTx(tx pgx.Tx) match.Repository {
	return &MatchRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new match row
func (r *MatchRepository) Create(ctx context.Context, m *match.Match) error {
	query := `
		INSERT INTO bank_matches (` + matchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.querier.Exec(ctx, query,
		m.ID,
		m.LineID,
		m.RecordType,
		m.RecordID,
		m.ProjectID,
		m.MatchedAmount,
		m.AmountDifference,
		m.MatchedBy,
		m.MatchedAt,
		m.Score,
		m.Method,
		m.RuleID,
		m.AdjustmentRequired,
		m.AdjustmentReason,
	)
	if err != nil {
		r.logger.Error("Failed to create match", "line_id", m.LineID.String(), "error", err)
		return fmt.Errorf("failed to create match: %w", err)
	}

	return nil
}

// GetByID retrieves a match by its ID
func (r *MatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*match.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM bank_matches
		WHERE id = $1
	`

	m, err := r.scanMatch(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, match.ErrMatchNotFound{MatchID: id}
		}
		r.logger.Error("Failed to get match", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	return m, nil
}

// ListByLineID retrieves all matches owned by a bank line, oldest first
func (r *MatchRepository) ListByLineID(ctx context.Context, lineID uuid.UUID) ([]*match.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM bank_matches
		WHERE line_id = $1
		ORDER BY matched_at ASC, id ASC
	`

	rows, err := r.querier.Query(ctx, query, lineID)
	if err != nil {
		r.logger.Error("Failed to list matches", "line_id", lineID.String(), "error", err)
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []*match.Match
	for rows.Next() {
		m, err := r.scanMatch(rows)
		if err != nil {
			r.logger.Error("Failed to scan match", "error", err)
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over matches", "error", err)
		return nil, fmt.Errorf("error iterating over matches: %w", err)
	}

	return matches, nil
}

// Delete permanently removes a match row.
// Returns ErrMatchNotFound if the match doesn't exist.
func (r *MatchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM bank_matches
		WHERE id = $1
	`

	result, err := r.querier.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete match", "id", id.String(), "error", err)
		return fmt.Errorf("failed to delete match: %w", err)
	}

	if result.RowsAffected() == 0 {
		return match.ErrMatchNotFound{MatchID: id}
	}

	return nil
}

func (r *MatchRepository) scanMatch(row pgx.Row) (*match.Match, error) {
	var m match.Match
	err := row.Scan(
		&m.ID,
		&m.LineID,
		&m.RecordType,
		&m.RecordID,
		&m.ProjectID,
		&m.MatchedAmount,
		&m.AmountDifference,
		&m.MatchedBy,
		&m.MatchedAt,
		&m.Score,
		&m.Method,
		&m.RuleID,
		&m.AdjustmentRequired,
		&m.AdjustmentReason,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
