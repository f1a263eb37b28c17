package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/finrecon/bank-reconciliation/internal/api/service"
	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
)

// ReconciliationHandler handles bank line suggestion, ignore, and stats requests
type ReconciliationHandler struct {
	logger  *slog.Logger
	service service.ReconciliationService
}

// NewReconciliationHandler creates a new reconciliation handler
func NewReconciliationHandler(logger *slog.Logger, service service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{
		logger:  logger,
		service: service,
	}
}

// GetLine handles GET /api/v1/bank-lines/:id
func (h *ReconciliationHandler) GetLine(c *gin.Context) {
	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid bank line ID format")
		return
	}

	line, err := h.service.GetLine(c.Request.Context(), lineID)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, toLineResponse(line))
}

// GenerateSuggestions handles POST /api/v1/bank-lines/:id/suggestions
func (h *ReconciliationHandler) GenerateSuggestions(c *gin.Context) {
	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid bank line ID format")
		return
	}

	line, suggestions, err := h.service.GenerateSuggestions(c.Request.Context(), lineID)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, SuggestionsResponse{
		Line:        toLineResponse(line),
		Suggestions: suggestions,
	})
}

// IgnoreLine handles POST /api/v1/bank-lines/:id/ignore
func (h *ReconciliationHandler) IgnoreLine(c *gin.Context) {
	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid bank line ID format")
		return
	}

	var req IgnoreLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	line, err := h.service.IgnoreLine(c.Request.Context(), lineID, req.Actor, req.Reason)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, toLineResponse(line))
}

// UnignoreLine handles POST /api/v1/bank-lines/:id/unignore
func (h *ReconciliationHandler) UnignoreLine(c *gin.Context) {
	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid bank line ID format")
		return
	}

	var req UnignoreLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	line, err := h.service.UnignoreLine(c.Request.Context(), lineID, req.Actor)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, toLineResponse(line))
}

// GetStats handles GET /api/v1/reconciliation/stats
func (h *ReconciliationHandler) GetStats(c *gin.Context) {
	var query StatsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	scope, err := statsScope(query)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	stats, err := h.service.GetStats(c.Request.Context(), scope)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, stats)
}

// statsScope converts validated query parameters into a line scope
func statsScope(query StatsQuery) (bankfeed.Scope, error) {
	scope := bankfeed.Scope{Currency: query.Currency}

	companyID, err := uuid.Parse(query.CompanyID)
	if err != nil {
		return bankfeed.Scope{}, err
	}
	scope.CompanyID = companyID

	if query.AccountID != "" {
		accountID, err := uuid.Parse(query.AccountID)
		if err != nil {
			return bankfeed.Scope{}, err
		}
		scope.AccountID = accountID
	}
	if query.DateFrom != "" {
		from, err := time.Parse("2006-01-02", query.DateFrom)
		if err != nil {
			return bankfeed.Scope{}, err
		}
		scope.DateFrom = from
	}
	if query.DateTo != "" {
		to, err := time.Parse("2006-01-02", query.DateTo)
		if err != nil {
			return bankfeed.Scope{}, err
		}
		scope.DateTo = to
	}
	return scope, nil
}
