package handler

import (
	"time"

	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/domain/match"
	"github.com/finrecon/bank-reconciliation/internal/matching"
)

// CreateMatchRequest represents a request to match a bank line to a system record
type CreateMatchRequest struct {
	RecordType       string `json:"record_type" binding:"required,oneof=RECEIPT INVOICE EXPENSE"`
	RecordID         string `json:"record_id" binding:"required,uuid"`
	MatchedAmount    string `json:"matched_amount" binding:"required"`
	Method           string `json:"method,omitempty" binding:"omitempty,oneof=MANUAL SUGGESTED"`
	Score            int    `json:"score,omitempty" binding:"omitempty,min=0"`
	MatchedBy        string `json:"matched_by" binding:"required"`
	AdjustmentReason string `json:"adjustment_reason,omitempty"`
}

// IgnoreLineRequest represents a request to exclude a bank line from reconciliation
type IgnoreLineRequest struct {
	Actor  string `json:"actor" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

// UnignoreLineRequest represents a request to restore an ignored bank line
type UnignoreLineRequest struct {
	Actor string `json:"actor" binding:"required"`
}

// AutoMatchRequest represents a request to run an auto-match batch over a scope
type AutoMatchRequest struct {
	CompanyID string `json:"company_id" binding:"required,uuid"`
	AccountID string `json:"account_id,omitempty" binding:"omitempty,uuid"`
	Currency  string `json:"currency,omitempty" binding:"omitempty,len=3"`
	DateFrom  string `json:"date_from,omitempty" binding:"omitempty,datetime=2006-01-02"`
	DateTo    string `json:"date_to,omitempty" binding:"omitempty,datetime=2006-01-02"`
	Actor     string `json:"actor,omitempty"`
}

// StatsQuery represents scope parameters for the reconciliation stats endpoint
type StatsQuery struct {
	CompanyID string `form:"company_id" binding:"required,uuid"`
	AccountID string `form:"account_id" binding:"omitempty,uuid"`
	Currency  string `form:"currency" binding:"omitempty,len=3"`
	DateFrom  string `form:"date_from" binding:"omitempty,datetime=2006-01-02"`
	DateTo    string `form:"date_to" binding:"omitempty,datetime=2006-01-02"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// LineResponse represents a bank feed line in API responses
type LineResponse struct {
	ID              string `json:"id"`
	AccountID       string `json:"account_id"`
	CompanyID       string `json:"company_id"`
	Currency        string `json:"currency"`
	TransactionDate string `json:"transaction_date"`
	Description     string `json:"description"`
	Reference       string `json:"reference,omitempty"`
	Amount          string `json:"amount"`
	Status          string `json:"status"`
	MatchedAmount   string `json:"matched_amount"`
	RemainingAmount string `json:"remaining_amount"`
	IgnoredBy       string `json:"ignored_by,omitempty"`
	IgnoreReason    string `json:"ignore_reason,omitempty"`
	UpdatedAt       string `json:"updated_at"`
}

// MatchResponse represents a persisted match in API responses
type MatchResponse struct {
	ID                 string `json:"id"`
	LineID             string `json:"line_id"`
	RecordType         string `json:"record_type"`
	RecordID           string `json:"record_id"`
	MatchedAmount      string `json:"matched_amount"`
	AmountDifference   string `json:"amount_difference"`
	MatchedBy          string `json:"matched_by"`
	MatchedAt          string `json:"matched_at"`
	Score              int    `json:"score"`
	Method             string `json:"method"`
	AdjustmentRequired bool   `json:"adjustment_required"`
	AdjustmentReason   string `json:"adjustment_reason,omitempty"`
}

// SuggestionsResponse pairs a bank line with its ranked candidate matches
type SuggestionsResponse struct {
	Line        LineResponse              `json:"line"`
	Suggestions []matching.SuggestedMatch `json:"suggestions"`
}

// MatchCreatedResponse carries the new match and the updated line state
type MatchCreatedResponse struct {
	Match MatchResponse `json:"match"`
	Line  LineResponse  `json:"line"`
}

func toLineResponse(line *bankfeed.Line) LineResponse {
	return LineResponse{
		ID:              line.ID.String(),
		AccountID:       line.AccountID.String(),
		CompanyID:       line.CompanyID.String(),
		Currency:        line.Currency,
		TransactionDate: line.TransactionDate.Format("2006-01-02"),
		Description:     line.Description,
		Reference:       line.Reference,
		Amount:          line.Amount.String(),
		Status:          string(line.Status),
		MatchedAmount:   line.MatchedAmount.String(),
		RemainingAmount: line.RemainingAmount().String(),
		IgnoredBy:       line.IgnoredBy,
		IgnoreReason:    line.IgnoreReason,
		UpdatedAt:       line.UpdatedAt.Format(time.RFC3339),
	}
}

func toMatchResponse(m *match.Match) MatchResponse {
	return MatchResponse{
		ID:                 m.ID.String(),
		LineID:             m.LineID.String(),
		RecordType:         string(m.RecordType),
		RecordID:           m.RecordID.String(),
		MatchedAmount:      m.MatchedAmount.String(),
		AmountDifference:   m.AmountDifference.String(),
		MatchedBy:          m.MatchedBy,
		MatchedAt:          m.MatchedAt.Format(time.RFC3339),
		Score:              m.Score,
		Method:             string(m.Method),
		AdjustmentRequired: m.AdjustmentRequired,
		AdjustmentReason:   m.AdjustmentReason,
	}
}

func toMatchResponses(matches []*match.Match) []MatchResponse {
	responses := make([]MatchResponse, 0, len(matches))
	for _, m := range matches {
		responses = append(responses, toMatchResponse(m))
	}
	return responses
}
