package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/finrecon/bank-reconciliation/internal/api/service"
)

// AutoMatchHandler handles auto-match run requests and run history
type AutoMatchHandler struct {
	logger  *slog.Logger
	service service.AutoMatchService
}

// NewAutoMatchHandler creates a new auto-match handler
func NewAutoMatchHandler(logger *slog.Logger, service service.AutoMatchService) *AutoMatchHandler {
	return &AutoMatchHandler{
		logger:  logger,
		service: service,
	}
}

// Run handles POST /api/v1/reconciliation/auto-match
func (h *AutoMatchHandler) Run(c *gin.Context) {
	var req AutoMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	scope, err := runScope(req)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	run, err := h.service.Run(c.Request.Context(), scope)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, run)
}

// GetRun handles GET /api/v1/reconciliation/runs/:id
func (h *AutoMatchHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid run ID format")
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), runID)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, run)
}

// ListRuns handles GET /api/v1/reconciliation/runs
func (h *AutoMatchHandler) ListRuns(c *gin.Context) {
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	history, total, err := h.service.ListRuns(c.Request.Context(), params.Page, params.PerPage)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondWithPaginatedData(c, http.StatusOK, history, params.Page, params.PerPage, int(total))
}

// runScope converts validated request fields into a run scope
func runScope(req AutoMatchRequest) (service.RunScope, error) {
	scope := service.RunScope{
		Currency: req.Currency,
		Actor:    req.Actor,
	}

	companyID, err := uuid.Parse(req.CompanyID)
	if err != nil {
		return service.RunScope{}, err
	}
	scope.CompanyID = companyID

	if req.AccountID != "" {
		accountID, err := uuid.Parse(req.AccountID)
		if err != nil {
			return service.RunScope{}, err
		}
		scope.AccountID = accountID
	}
	if req.DateFrom != "" {
		from, err := time.Parse("2006-01-02", req.DateFrom)
		if err != nil {
			return service.RunScope{}, err
		}
		scope.DateFrom = from
	}
	if req.DateTo != "" {
		to, err := time.Parse("2006-01-02", req.DateTo)
		if err != nil {
			return service.RunScope{}, err
		}
		scope.DateTo = to
	}
	return scope, nil
}
