package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finrecon/bank-reconciliation/internal/api/service"
	"github.com/finrecon/bank-reconciliation/internal/domain/match"
	"github.com/finrecon/bank-reconciliation/internal/domain/record"
)

// MatchHandler handles match lifecycle requests
type MatchHandler struct {
	logger  *slog.Logger
	service service.ReconciliationService
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(logger *slog.Logger, service service.ReconciliationService) *MatchHandler {
	return &MatchHandler{
		logger:  logger,
		service: service,
	}
}

// Create handles POST /api/v1/bank-lines/:id/matches
func (h *MatchHandler) Create(c *gin.Context) {
	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid bank line ID format")
		return
	}

	var req CreateMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	recordID, err := uuid.Parse(req.RecordID)
	if err != nil {
		RespondBadRequest(c, "Invalid record ID format")
		return
	}
	amount, err := decimal.NewFromString(req.MatchedAmount)
	if err != nil {
		RespondBadRequest(c, "Invalid matched amount format")
		return
	}

	input := match.CreateInput{
		RecordType:       record.Type(req.RecordType),
		RecordID:         recordID,
		MatchedAmount:    amount,
		MatchedBy:        req.MatchedBy,
		Score:            req.Score,
		Method:           match.Method(req.Method),
		AdjustmentReason: req.AdjustmentReason,
	}

	created, line, err := h.service.CreateMatch(c.Request.Context(), lineID, input)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondCreated(c, MatchCreatedResponse{
		Match: toMatchResponse(created),
		Line:  toLineResponse(line),
	})
}

// Delete handles DELETE /api/v1/bank-lines/:id/matches/:matchId
func (h *MatchHandler) Delete(c *gin.Context) {
	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid bank line ID format")
		return
	}
	matchID, err := uuid.Parse(c.Param("matchId"))
	if err != nil {
		RespondBadRequest(c, "Invalid match ID format")
		return
	}

	actor := c.Query("actor")

	line, err := h.service.RemoveMatch(c.Request.Context(), lineID, matchID, actor)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, toLineResponse(line))
}

// List handles GET /api/v1/bank-lines/:id/matches
func (h *MatchHandler) List(c *gin.Context) {
	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid bank line ID format")
		return
	}

	matches, err := h.service.ListMatches(c.Request.Context(), lineID)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, toMatchResponses(matches))
}
