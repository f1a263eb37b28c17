package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/finrecon/bank-reconciliation/internal/api/service"
	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/domain/match"
	"github.com/finrecon/bank-reconciliation/internal/domain/record"
	"github.com/finrecon/bank-reconciliation/internal/domain/runs"
)

// respondDomainError maps domain errors to HTTP responses. Unknown errors are
// logged and surfaced as a 500.
func respondDomainError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, bankfeed.ErrLineNotFound{}),
		errors.Is(err, match.ErrMatchNotFound{}),
		errors.Is(err, record.ErrRecordNotFound{}),
		errors.Is(err, runs.ErrRunNotFound{}):
		RespondNotFound(c, err.Error())

	case errors.Is(err, bankfeed.ErrInvalidMatchedAmount):
		RespondBadRequest(c, err.Error())

	case errors.Is(err, service.ErrCurrencyMismatch),
		errors.Is(err, bankfeed.ErrAmountConservation):
		RespondUnprocessable(c, err.Error())

	case errors.Is(err, bankfeed.ErrLineFullyMatched),
		errors.Is(err, bankfeed.ErrLineIgnored),
		errors.Is(err, bankfeed.ErrLineNotIgnored),
		errors.Is(err, bankfeed.ErrConcurrentModification{}):
		RespondConflict(c, err.Error())

	default:
		logger.Error("Unhandled error in HTTP handler",
			"path", c.Request.URL.Path,
			"error", err,
		)
		RespondInternalError(c)
	}
}
