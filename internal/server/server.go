// Package server exposes the question-answering router over HTTP. It
// is a thin adapter: request validation, request IDs, and JSON shaping
// live here, every decision lives in the router.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"drdoc/internal/ingest"
	"drdoc/internal/logging"
	"drdoc/internal/router"
)

// Answerer is the query interface the HTTP layer needs from the
// router.
type Answerer interface {
	Answer(ctx context.Context, req router.Request) (*router.ComposedResult, error)
}

// Ingester triggers a documentation re-ingest.
type Ingester interface {
	IngestDir(ctx context.Context) (*ingest.Report, error)
}

// ChunkCounter reports the vector store size.
type ChunkCounter interface {
	Count(ctx context.Context) (int, error)
}

// FactCounter reports the fact store size.
type FactCounter interface {
	FactCount() int
}

// Deps are the collaborators the server adapts. Ingester and
// FactCounter may be nil when the feature is disabled.
type Deps struct {
	Answerer Answerer
	Ingester Ingester
	Chunks   ChunkCounter
	Facts    FactCounter
	Version  string
}

// Handlers contains the HTTP handlers.
type Handlers struct {
	deps Deps
}

// NewHandlers creates handlers over the given collaborators.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// NewEngine builds a gin engine with all routes registered.
func NewEngine(deps Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestID())
	NewHandlers(deps).RegisterRoutes(engine)
	return engine
}

// RegisterRoutes registers the API routes.
//
//	POST /api/ask    - Answer a question
//	GET  /api/health - Liveness plus store sizes
//	POST /api/ingest - Re-ingest the docs directory
func (h *Handlers) RegisterRoutes(engine *gin.Engine) {
	api := engine.Group("/api")
	api.POST("/ask", h.HandleAsk)
	api.GET("/health", h.HandleHealth)
	api.POST("/ingest", h.HandleIngest)
}

// RequestID assigns each request an ID, honoring one supplied by the
// caller.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	if id, ok := c.Get("request_id"); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
	Strategy string `json:"strategy"`
	Context  string `json:"context"`
}

// ErrorResponse is the JSON shape of every error reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HandleAsk handles POST /api/ask.
func (h *Handlers) HandleAsk(c *gin.Context) {
	id := requestID(c)

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: question is required", RequestID: id})
		return
	}
	strategy, err := router.ParseStrategy(req.Strategy)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), RequestID: id})
		return
	}

	start := time.Now()
	result, err := h.deps.Answerer.Answer(c.Request.Context(), router.Request{
		Question:  req.Question,
		Strategy:  strategy,
		Context:   req.Context,
		SessionID: id,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), RequestID: id})
		return
	}

	logging.Get(logging.CategoryAPI).Info("ask request %s answered via %s in %s",
		id, result.QueryType, time.Since(start).Round(time.Millisecond))
	c.JSON(http.StatusOK, result)
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	Chunks          int    `json:"chunks"`
	Facts           int    `json:"facts"`
	SymbolicEnabled bool   `json:"symbolic_enabled"`
}

// HandleHealth handles GET /api/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Version: h.deps.Version}
	if h.deps.Chunks != nil {
		n, err := h.deps.Chunks.Count(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "chunk store unavailable", RequestID: requestID(c)})
			return
		}
		resp.Chunks = n
	}
	if h.deps.Facts != nil {
		resp.Facts = h.deps.Facts.FactCount()
		resp.SymbolicEnabled = true
	}
	c.JSON(http.StatusOK, resp)
}

// HandleIngest handles POST /api/ingest.
func (h *Handlers) HandleIngest(c *gin.Context) {
	id := requestID(c)
	if h.deps.Ingester == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "ingestion is not configured", RequestID: id})
		return
	}
	report, err := h.deps.Ingester.IngestDir(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), RequestID: id})
		return
	}
	logging.Get(logging.CategoryAPI).Info("ingest request %s: %d files, %d chunks, %d facts",
		id, report.Files, report.Chunks, report.Facts)
	c.JSON(http.StatusOK, report)
}
