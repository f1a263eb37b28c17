// Package record defines the normalized projection over internal accounting
// documents (receipts, invoices, expenses) that are eligible to reconcile
// against bank feed lines. The projection is produced at the system boundary;
// the matching engine never branches on the underlying document type.
package record

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type tags the kind of accounting document behind a system record
type Type string

const (
	TypeReceipt Type = "RECEIPT"
	TypeInvoice Type = "INVOICE"
	TypeExpense Type = "EXPENSE"
)

// SystemRecord is the common projection of an accounting document. It is
// read-only to the matching engine.
type SystemRecord struct {
	ID           uuid.UUID       `json:"id"`
	Type         Type            `json:"type"`
	Amount       decimal.Decimal `json:"amount"` // Unsigned document amount
	Currency     string          `json:"currency"`
	Date         time.Time       `json:"date"`
	Reference    string          `json:"reference,omitempty"`
	Counterparty string          `json:"counterparty,omitempty"`
	ProjectID    *uuid.UUID      `json:"project_id,omitempty"`
	Reconciled   bool            `json:"reconciled"`
}

// Filter restricts the candidate records visible to a scoring pass.
// Zero-valued fields are not applied.
type Filter struct {
	CompanyID uuid.UUID
	Currency  string
	DateFrom  time.Time
	DateTo    time.Time
}

// Provider is the read interface over the candidate pool. Implementations
// must only return records that are not yet reconciled.
type Provider interface {
	ListUnreconciled(ctx context.Context, filter Filter) ([]SystemRecord, error)
	GetByID(ctx context.Context, recordType Type, id uuid.UUID) (*SystemRecord, error)
}

// ErrRecordNotFound indicates missing system record
type ErrRecordNotFound struct {
	RecordID uuid.UUID
}

func (e ErrRecordNotFound) Error() string {
	return "system record not found: " + e.RecordID.String()
}

// Is implements the errors.Is interface for ErrRecordNotFound
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	if t.RecordID == uuid.Nil {
		return true
	}
	return e.RecordID == t.RecordID
}
