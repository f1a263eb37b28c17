package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finrecon/bank-reconciliation/internal/api/handler"
	"github.com/finrecon/bank-reconciliation/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	reconciliationHandler *handler.ReconciliationHandler,
	matchHandler *handler.MatchHandler,
	autoMatchHandler *handler.AutoMatchHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Bank line operations
		lines := v1.Group("/bank-lines")
		{
			lines.GET("/:id", reconciliationHandler.GetLine)
			lines.POST("/:id/suggestions", reconciliationHandler.GenerateSuggestions)
			lines.POST("/:id/ignore", reconciliationHandler.IgnoreLine)
			lines.POST("/:id/unignore", reconciliationHandler.UnignoreLine)

			// Match lifecycle
			lines.GET("/:id/matches", matchHandler.List)
			lines.POST("/:id/matches", matchHandler.Create)
			lines.DELETE("/:id/matches/:matchId", matchHandler.Delete)
		}

		// Reconciliation operations
		reconciliation := v1.Group("/reconciliation")
		{
			reconciliation.POST("/auto-match", autoMatchHandler.Run)
			reconciliation.GET("/runs", autoMatchHandler.ListRuns)
			reconciliation.GET("/runs/:id", autoMatchHandler.GetRun)
			reconciliation.GET("/stats", reconciliationHandler.GetStats)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
