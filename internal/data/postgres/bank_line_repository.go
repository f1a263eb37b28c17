// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the reconciliation
// engine.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/platform/persistence"
)

const bankLineColumns = `id, account_id, company_id, project_id, currency, transaction_date, value_date,
		description, reference, amount, running_balance, status, matched_amount, confidence,
		import_batch_id, ignored_by, ignored_at, ignore_reason, version, created_at, updated_at`

// BankLineRepository implements the bankfeed.Repository interface for PostgreSQL
type BankLineRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewBankLineRepository creates a new PostgreSQL bank line repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewBankLineRepository(logger *slog.Logger, db *persistence.PostgresDB) bankfeed.Repository {
	return &BankLineRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls
func (r *BankLineRepository) WithTx(tx pgx.Tx) bankfeed.Repository {
	return &BankLineRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a newly imported bank feed line
func (r *BankLineRepository) Create(ctx context.Context, line *bankfeed.Line) error {
	query := `
		INSERT INTO bank_feed_lines (` + bankLineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	_, err := r.querier.Exec(ctx, query,
		line.ID,
		line.AccountID,
		line.CompanyID,
		line.ProjectID,
		line.Currency,
		line.TransactionDate,
		line.ValueDate,
		line.Description,
		line.Reference,
		line.Amount,
		line.RunningBalance,
		line.Status,
		line.MatchedAmount,
		line.Confidence,
		line.ImportBatchID,
		line.IgnoredBy,
		line.IgnoredAt,
		line.IgnoreReason,
		line.Version,
		line.CreatedAt,
		line.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create bank line", "error", err)
		return fmt.Errorf("failed to create bank line: %w", err)
	}

	return nil
}

// GetByID retrieves a bank feed line by its ID
func (r *BankLineRepository) GetByID(ctx context.Context, id uuid.UUID) (*bankfeed.Line, error) {
	query := `
		SELECT ` + bankLineColumns + `
		FROM bank_feed_lines
		WHERE id = $1
	`

	line, err := r.scanLine(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bankfeed.ErrLineNotFound{LineID: id}
		}
		r.logger.Error("Failed to get bank line", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get bank line: %w", err)
	}

	return line, nil
}

// List retrieves bank feed lines matching the scope, ordered by transaction
// date then id for stable batch processing
func (r *BankLineRepository) List(ctx context.Context, scope bankfeed.Scope) ([]*bankfeed.Line, error) {
	var (
		conditions []string
		args       []interface{}
	)

	appendCondition := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if scope.AccountID != uuid.Nil {
		appendCondition("account_id = $%d", scope.AccountID)
	}
	if scope.CompanyID != uuid.Nil {
		appendCondition("company_id = $%d", scope.CompanyID)
	}
	if scope.Currency != "" {
		appendCondition("currency = $%d", scope.Currency)
	}
	if !scope.DateFrom.IsZero() {
		appendCondition("transaction_date >= $%d", scope.DateFrom)
	}
	if !scope.DateTo.IsZero() {
		appendCondition("transaction_date <= $%d", scope.DateTo)
	}
	if len(scope.Statuses) > 0 {
		statuses := make([]string, 0, len(scope.Statuses))
		for _, s := range scope.Statuses {
			statuses = append(statuses, string(s))
		}
		appendCondition("status = ANY($%d)", statuses)
	}

	query := `
		SELECT ` + bankLineColumns + `
		FROM bank_feed_lines
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY transaction_date ASC, id ASC"

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list bank lines", "error", err)
		return nil, fmt.Errorf("failed to list bank lines: %w", err)
	}
	defer rows.Close()

	var lines []*bankfeed.Line
	for rows.Next() {
		line, err := r.scanLine(rows)
		if err != nil {
			r.logger.Error("Failed to scan bank line", "error", err)
			return nil, fmt.Errorf("failed to scan bank line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over bank lines", "error", err)
		return nil, fmt.Errorf("error iterating over bank lines: %w", err)
	}

	return lines, nil
}

// Update updates an existing bank feed line using optimistic locking.
// Returns ErrConcurrentModification if the line was modified between read
// and update.
func (r *BankLineRepository) Update(ctx context.Context, line *bankfeed.Line) error {
	query := `
		UPDATE bank_feed_lines
		SET status = $1, matched_amount = $2, confidence = $3, ignored_by = $4,
			ignored_at = $5, ignore_reason = $6, version = $7, updated_at = $8
		WHERE id = $9 AND version = $10
	`

	result, err := r.querier.Exec(ctx, query,
		line.Status,
		line.MatchedAmount,
		line.Confidence,
		line.IgnoredBy,
		line.IgnoredAt,
		line.IgnoreReason,
		line.Version,
		line.UpdatedAt,
		line.ID,
		line.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update bank line", "id", line.ID.String(), "error", err)
		return fmt.Errorf("failed to update bank line: %w", err)
	}

	if result.RowsAffected() == 0 {
		return bankfeed.ErrConcurrentModification{LineID: line.ID}
	}

	return nil
}

// LockForUpdate obtains a pessimistic lock on the bank line and returns its
// current state. This should be used within a transaction when match
// bookkeeping mutates the line.
func (r *BankLineRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*bankfeed.Line, error) {
	query := `
		SELECT ` + bankLineColumns + `
		FROM bank_feed_lines
		WHERE id = $1
		FOR UPDATE
	`

	line, err := r.scanLine(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bankfeed.ErrLineNotFound{LineID: id}
		}
		r.logger.Error("Failed to lock bank line for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock bank line for update: %w", err)
	}

	return line, nil
}

func (r *BankLineRepository) scanLine(row pgx.Row) (*bankfeed.Line, error) {
	var line bankfeed.Line
	err := row.Scan(
		&line.ID,
		&line.AccountID,
		&line.CompanyID,
		&line.ProjectID,
		&line.Currency,
		&line.TransactionDate,
		&line.ValueDate,
		&line.Description,
		&line.Reference,
		&line.Amount,
		&line.RunningBalance,
		&line.Status,
		&line.MatchedAmount,
		&line.Confidence,
		&line.ImportBatchID,
		&line.IgnoredBy,
		&line.IgnoredAt,
		&line.IgnoreReason,
		&line.Version,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &line, nil
}
