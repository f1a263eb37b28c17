package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finrecon/bank-reconciliation/internal/domain/record"
)

func sampleRecord() record.SystemRecord {
	return record.SystemRecord{
		ID:           uuid.New(),
		Type:         record.TypeInvoice,
		Amount:       decimal.RequireFromString("1000.00"),
		Currency:     "EUR",
		Date:         time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		Reference:    "INV-500",
		Counterparty: "ACME GmbH",
		Reconciled:   false,
	}
}

func recordColumnNames() []string {
	return []string{
		"id", "record_type", "amount", "currency", "record_date",
		"reference", "counterparty", "project_id", "reconciled",
	}
}

func recordRow(rows *pgxmock.Rows, rec record.SystemRecord) *pgxmock.Rows {
	return rows.AddRow(
		rec.ID, rec.Type, rec.Amount, rec.Currency, rec.Date,
		rec.Reference, rec.Counterparty, rec.ProjectID, rec.Reconciled,
	)
}

func TestRecordProvider_ListUnreconciled(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := &RecordProvider{querier: mock, logger: logger}

	t.Run("scoped query", func(t *testing.T) {
		companyID := uuid.New()
		first := sampleRecord()
		second := sampleRecord()
		second.Type = record.TypeReceipt
		second.Reference = "RCP-42"

		query := regexp.QuoteMeta(`
		SELECT ` + recordColumns + `
		FROM system_records
		WHERE reconciled = FALSE AND company_id = $1 AND currency = $2
		ORDER BY record_date ASC, id ASC
	`)

		rows := recordRow(recordRow(pgxmock.NewRows(recordColumnNames()), first), second)
		mock.ExpectQuery(query).WithArgs(companyID, "EUR").WillReturnRows(rows)

		records, err := provider.ListUnreconciled(ctx, record.Filter{CompanyID: companyID, Currency: "EUR"})
		assert.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, first.ID, records[0].ID)
		assert.Equal(t, second.Reference, records[1].Reference)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no filters", func(t *testing.T) {
		query := regexp.QuoteMeta(`
		SELECT ` + recordColumns + `
		FROM system_records
		WHERE reconciled = FALSE
		ORDER BY record_date ASC, id ASC
	`)

		mock.ExpectQuery(query).WillReturnRows(pgxmock.NewRows(recordColumnNames()))

		records, err := provider.ListUnreconciled(ctx, record.Filter{})
		assert.NoError(t, err)
		assert.Empty(t, records)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("date range filters", func(t *testing.T) {
		companyID := uuid.New()
		from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)

		query := regexp.QuoteMeta(`
		SELECT ` + recordColumns + `
		FROM system_records
		WHERE reconciled = FALSE AND company_id = $1 AND record_date >= $2 AND record_date <= $3
		ORDER BY record_date ASC, id ASC
	`)

		mock.ExpectQuery(query).WithArgs(companyID, from, to).WillReturnRows(pgxmock.NewRows(recordColumnNames()))

		records, err := provider.ListUnreconciled(ctx, record.Filter{CompanyID: companyID, DateFrom: from, DateTo: to})
		assert.NoError(t, err)
		assert.Empty(t, records)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectQuery("SELECT").WillReturnError(expectedErr)

		records, err := provider.ListUnreconciled(ctx, record.Filter{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to list system records")
		assert.ErrorIs(t, err, expectedErr)
		assert.Nil(t, records)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRecordProvider_GetByID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := &RecordProvider{querier: mock, logger: logger}
	expected := sampleRecord()

	query := regexp.QuoteMeta(`
		SELECT ` + recordColumns + `
		FROM system_records
		WHERE record_type = $1 AND id = $2
	`)

	t.Run("success", func(t *testing.T) {
		rows := recordRow(pgxmock.NewRows(recordColumnNames()), expected)
		mock.ExpectQuery(query).WithArgs(record.TypeInvoice, expected.ID).WillReturnRows(rows)

		rec, err := provider.GetByID(ctx, record.TypeInvoice, expected.ID)
		assert.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, expected.ID, rec.ID)
		assert.True(t, rec.Amount.Equal(expected.Amount))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		recordID := uuid.New()
		mock.ExpectQuery(query).WithArgs(record.TypeExpense, recordID).WillReturnError(pgx.ErrNoRows)

		rec, err := provider.GetByID(ctx, record.TypeExpense, recordID)
		assert.Error(t, err)
		assert.Nil(t, rec)

		var notFoundErr record.ErrRecordNotFound
		require.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, recordID, notFoundErr.RecordID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		recordID := uuid.New()
		expectedErr := errors.New("db error")
		mock.ExpectQuery(query).WithArgs(record.TypeInvoice, recordID).WillReturnError(expectedErr)

		rec, err := provider.GetByID(ctx, record.TypeInvoice, recordID)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get system record")
		assert.Nil(t, rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
