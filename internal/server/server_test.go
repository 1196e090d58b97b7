package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drdoc/internal/ingest"
	"drdoc/internal/router"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAnswerer struct {
	result *router.ComposedResult
	err    error
	last   router.Request
}

func (f *fakeAnswerer) Answer(_ context.Context, req router.Request) (*router.ComposedResult, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeIngester struct {
	report *ingest.Report
	err    error
}

func (f *fakeIngester) IngestDir(context.Context) (*ingest.Report, error) {
	return f.report, f.err
}

type fakeChunks struct{ n int }

func (f fakeChunks) Count(context.Context) (int, error) { return f.n, nil }

type fakeFacts struct{ n int }

func (f fakeFacts) FactCount() int { return f.n }

func testEngine(deps Deps) *gin.Engine {
	if deps.Version == "" {
		deps.Version = "test"
	}
	return NewEngine(deps)
}

func postJSON(engine *gin.Engine, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	engine.ServeHTTP(w, req)
	return w
}

func TestHandleAsk(t *testing.T) {
	answerer := &fakeAnswerer{
		result: &router.ComposedResult{
			Answer:     "60 requests per minute",
			QueryType:  router.StrategyHybrid,
			Confidence: 0.9,
		},
	}
	engine := testEngine(Deps{Answerer: answerer})

	w := postJSON(engine, "/api/ask", `{"question": "What are the rate limits?", "strategy": "hybrid"}`, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result router.ComposedResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "60 requests per minute", result.Answer)
	assert.Equal(t, router.StrategyHybrid, answerer.last.Strategy)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandleAskMissingQuestion(t *testing.T) {
	engine := testEngine(Deps{Answerer: &fakeAnswerer{result: &router.ComposedResult{}}})

	w := postJSON(engine, "/api/ask", `{}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAskInvalidStrategy(t *testing.T) {
	engine := testEngine(Deps{Answerer: &fakeAnswerer{result: &router.ComposedResult{}}})

	w := postJSON(engine, "/api/ask", `{"question": "q", "strategy": "rag"}`, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "invalid strategy")
}

func TestHandleAskHonorsCallerRequestID(t *testing.T) {
	answerer := &fakeAnswerer{err: errors.New("boom")}
	engine := testEngine(Deps{Answerer: answerer})

	w := postJSON(engine, "/api/ask", `{"question": "q"}`, map[string]string{"X-Request-ID": "req-42"})

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "req-42", resp.RequestID)
}

func TestHandleHealth(t *testing.T) {
	engine := testEngine(Deps{
		Answerer: &fakeAnswerer{},
		Chunks:   fakeChunks{n: 12},
		Facts:    fakeFacts{n: 7},
		Version:  "1.0.0",
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.Chunks)
	assert.Equal(t, 7, resp.Facts)
	assert.True(t, resp.SymbolicEnabled)
	assert.Equal(t, "1.0.0", resp.Version)
}

func TestHandleHealthWithoutSymbolic(t *testing.T) {
	engine := testEngine(Deps{Answerer: &fakeAnswerer{}, Chunks: fakeChunks{}})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.SymbolicEnabled)
}

func TestHandleIngest(t *testing.T) {
	engine := testEngine(Deps{
		Answerer: &fakeAnswerer{},
		Ingester: &fakeIngester{report: &ingest.Report{Files: 3, Chunks: 9, Facts: 4}},
	})

	w := postJSON(engine, "/api/ingest", "", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report ingest.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Files)
	assert.Equal(t, 9, report.Chunks)
}

func TestHandleIngestNotConfigured(t *testing.T) {
	engine := testEngine(Deps{Answerer: &fakeAnswerer{}})

	w := postJSON(engine, "/api/ingest", "", nil)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestHandleIngestFailure(t *testing.T) {
	engine := testEngine(Deps{
		Answerer: &fakeAnswerer{},
		Ingester: &fakeIngester{err: errors.New("docs directory missing")},
	})

	w := postJSON(engine, "/api/ingest", "", nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "docs directory missing")
}
