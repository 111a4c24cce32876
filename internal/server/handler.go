// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bdougie/videoprobe/internal/config"
	"github.com/bdougie/videoprobe/internal/errdefs"
	"github.com/bdougie/videoprobe/internal/models"
	"github.com/bdougie/videoprobe/internal/orchestrator"
	"github.com/bdougie/videoprobe/internal/storage"
)

// Runner runs one analysis request
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (*models.Report, error)
}

// AnalyzeRequest is the body of POST /api/v1/analyze
type AnalyzeRequest struct {
	Input    string          `json:"input" binding:"required"`
	Options  json.RawMessage `json:"options"`
	Config   json.RawMessage `json:"config"`
	LogLevel string          `json:"logLevel"`
}

// AnalyzeResponse carries the stored report ID with the report
type AnalyzeResponse struct {
	ID     string         `json:"id"`
	Report *models.Report `json:"report"`
}

// AnalyzeHandler serves analysis requests
type AnalyzeHandler struct {
	runner   Runner
	store    storage.Storage
	workRoot string
	logger   *slog.Logger
}

// NewAnalyzeHandler creates a handler. store may be nil. Every request gets
// its own workspace directory below workRoot.
func NewAnalyzeHandler(runner Runner, store storage.Storage, workRoot string, logger *slog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		runner:   runner,
		store:    store,
		workRoot: workRoot,
		logger:   logger,
	}
}

// RegisterRoutes registers the API routes
func (h *AnalyzeHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/analyze", h.Analyze)
	}
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Analyze runs the requested analyses on the input and returns the report.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var body AnalyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts, err := models.ParseOptions(body.Options)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	overrides, err := config.ParseOverrides(body.Config)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored := storage.NewStoredReport(body.Input, nil)
	root := filepath.Join(h.workRoot, stored.ID.String())

	start := time.Now()
	report, err := h.runner.Run(c.Request.Context(), orchestrator.Request{
		Input:     body.Input,
		Options:   opts,
		Overrides: overrides,
		LogLevel:  body.LogLevel,
		WorkRoot:  root,
	})
	if err != nil {
		h.logger.Error("analysis request failed", "id", stored.ID, "input", body.Input, "error", err)
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	h.logger.Info("analysis request done", "id", stored.ID, "input", body.Input, "elapsed", time.Since(start))

	stored.Report = report
	if h.store != nil {
		if err := h.save(c.Request.Context(), stored); err != nil {
			h.logger.Error("failed to store report", "id", stored.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store report"})
			return
		}
	}

	c.JSON(http.StatusOK, AnalyzeResponse{ID: stored.ID.String(), Report: report})
}

func (h *AnalyzeHandler) save(ctx context.Context, r storage.StoredReport) error {
	if err := h.store.Save(ctx, r); err != nil {
		return err
	}
	return h.store.Flush()
}

// Health reports that the service is up.
func (h *AnalyzeHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func statusOf(err error) int {
	switch {
	case errdefs.IsValidation(err), errdefs.IsInput(err):
		return http.StatusBadRequest
	case errdefs.IsAnalysis(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewRouter builds the gin engine with request logging and panic recovery.
func NewRouter(h *AnalyzeHandler, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	h.RegisterRoutes(router)
	return router
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}
