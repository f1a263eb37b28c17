package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finrecon/bank-reconciliation/internal/domain/record"
	"github.com/finrecon/bank-reconciliation/internal/platform/persistence"
)

const recordColumns = `id, record_type, amount, currency, record_date, reference, counterparty, project_id, reconciled`

// RecordProvider implements the record.Provider interface over the
// system_records projection. The projection is maintained by the document
// modules (receipts, invoices, expenses); it is read-only here.
type RecordProvider struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewRecordProvider creates a new PostgreSQL record provider
func NewRecordProvider(logger *slog.Logger, db *persistence.PostgresDB) record.Provider {
	return &RecordProvider{
		querier: db.Pool(),
		logger:  logger,
	}
}

// ListUnreconciled retrieves candidate records in scope that have not been
// reconciled yet, ordered by date then id for deterministic batch input
func (p *RecordProvider) ListUnreconciled(ctx context.Context, filter record.Filter) ([]record.SystemRecord, error) {
	conditions := []string{"reconciled = FALSE"}
	var args []interface{}

	appendCondition := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.CompanyID != uuid.Nil {
		appendCondition("company_id = $%d", filter.CompanyID)
	}
	if filter.Currency != "" {
		appendCondition("currency = $%d", filter.Currency)
	}
	if !filter.DateFrom.IsZero() {
		appendCondition("record_date >= $%d", filter.DateFrom)
	}
	if !filter.DateTo.IsZero() {
		appendCondition("record_date <= $%d", filter.DateTo)
	}

	query := `
		SELECT ` + recordColumns + `
		FROM system_records
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY record_date ASC, id ASC
	`

	rows, err := p.querier.Query(ctx, query, args...)
	if err != nil {
		p.logger.Error("Failed to list system records", "error", err)
		return nil, fmt.Errorf("failed to list system records: %w", err)
	}
	defer rows.Close()

	var records []record.SystemRecord
	for rows.Next() {
		rec, err := p.scanRecord(rows)
		if err != nil {
			p.logger.Error("Failed to scan system record", "error", err)
			return nil, fmt.Errorf("failed to scan system record: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		p.logger.Error("Error iterating over system records", "error", err)
		return nil, fmt.Errorf("error iterating over system records: %w", err)
	}

	return records, nil
}

// GetByID retrieves one system record by type and id
func (p *RecordProvider) GetByID(ctx context.Context, recordType record.Type, id uuid.UUID) (*record.SystemRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM system_records
		WHERE record_type = $1 AND id = $2
	`

	rec, err := p.scanRecord(p.querier.QueryRow(ctx, query, recordType, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, record.ErrRecordNotFound{RecordID: id}
		}
		p.logger.Error("Failed to get system record", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get system record: %w", err)
	}

	return rec, nil
}

func (p *RecordProvider) scanRecord(row pgx.Row) (*record.SystemRecord, error) {
	var rec record.SystemRecord
	err := row.Scan(
		&rec.ID,
		&rec.Type,
		&rec.Amount,
		&rec.Currency,
		&rec.Date,
		&rec.Reference,
		&rec.Counterparty,
		&rec.ProjectID,
		&rec.Reconciled,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
