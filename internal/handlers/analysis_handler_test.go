package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/engine"
	"github.com/ternarybob/consilium/internal/models"
	"github.com/ternarybob/consilium/internal/progress"
	"github.com/ternarybob/consilium/internal/services/cache"
	"github.com/ternarybob/consilium/internal/services/export"
	"github.com/ternarybob/consilium/internal/services/workflow"
	storage "github.com/ternarybob/consilium/internal/storage/badger"
)

type stubRunner struct {
	apply func(state *models.WorkflowState)
}

func (s *stubRunner) Run(_ context.Context, state *models.WorkflowState, _ engine.Callbacks) error {
	if s.apply != nil {
		s.apply(state)
	}
	return nil
}

func newTestHandler(t *testing.T, runner workflow.Runner) *AnalysisHandler {
	t.Helper()

	logger := common.GetLogger()
	db, err := storage.NewDB(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "cache")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cacheSvc := cache.NewService(db, time.Hour, logger)
	workflows := workflow.NewService(runner, progress.NewStore(), cacheSvc, []string{"claude"}, logger)
	return NewAnalysisHandler(workflows, export.NewService(logger), logger)
}

func startAndWait(t *testing.T, h *AnalysisHandler, body string) string {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.AnalyzeHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.WorkflowStartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.WorkflowID)

	require.Eventually(t, func() bool {
		snap, ok := h.workflows.Status(resp.WorkflowID)
		if !ok {
			return false
		}
		switch snap.Status {
		case models.WorkflowStatusCompleted, models.WorkflowStatusAborted, models.WorkflowStatusError:
			return true
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	return resp.WorkflowID
}

func TestAnalyzeHandlerValidation(t *testing.T) {
	h := newTestHandler(t, &stubRunner{})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing strategy focus", `{"name": "Tesla"}`},
		{"missing name", `{"strategy_focus": "Growth"}`},
		{"malformed json", `{"name": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/analyze", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.AnalyzeHandler(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAnalyzeHandlerRejectsGet(t *testing.T) {
	h := newTestHandler(t, &stubRunner{})

	req := httptest.NewRequest("GET", "/api/analyze", nil)
	rec := httptest.NewRecorder()
	h.AnalyzeHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusHandlerUnknownWorkflow(t *testing.T) {
	h := newTestHandler(t, &stubRunner{})

	req := httptest.NewRequest("GET", "/api/workflow/nope/status", nil)
	rec := httptest.NewRecorder()
	h.StatusHandler(rec, req, "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusHandlerReportsCompletedRun(t *testing.T) {
	h := newTestHandler(t, &stubRunner{apply: func(state *models.WorkflowState) {
		state.DraftReport = "## Strengths\n- Resilient margins\n"
		state.Score = 8.0
		state.ProviderUsed = "claude:claude-sonnet-4-5"
	}})

	id := startAndWait(t, h, `{"name": "Tesla", "strategy_focus": "Growth"}`)

	req := httptest.NewRequest("GET", "/api/workflow/"+id+"/status", nil)
	rec := httptest.NewRecorder()
	h.StatusHandler(rec, req, id)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap models.WorkflowSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, models.WorkflowStatusCompleted, snap.Status)
	assert.Equal(t, "TSLA", snap.Ticker)
	assert.Empty(t, snap.Error)
	assert.NotEmpty(t, snap.ActivityLog)
}

func TestStatusHandlerExposesErrorOnAbort(t *testing.T) {
	h := newTestHandler(t, &stubRunner{apply: func(state *models.WorkflowState) {
		state.Error = "all generation providers failed: claude: quota exhausted"
	}})

	id := startAndWait(t, h, `{"name": "Tesla", "strategy_focus": "Growth"}`)

	req := httptest.NewRequest("GET", "/api/workflow/"+id+"/status", nil)
	rec := httptest.NewRecorder()
	h.StatusHandler(rec, req, id)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap models.WorkflowSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, models.WorkflowStatusAborted, snap.Status)
	assert.Contains(t, snap.Error, "quota exhausted")
}

func TestResultHandler(t *testing.T) {
	h := newTestHandler(t, &stubRunner{apply: func(state *models.WorkflowState) {
		state.DraftReport = "## Strengths\n- Resilient margins\n\n## Threats\n- New entrants\n"
		state.Score = 7.5
		state.RevisionCount = 1
	}})

	id := startAndWait(t, h, `{"name": "Apple", "strategy_focus": "Differentiation"}`)

	req := httptest.NewRequest("GET", "/api/workflow/"+id+"/result", nil)
	rec := httptest.NewRecorder()
	h.ResultHandler(rec, req, id)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Apple", result.CompanyName)
	assert.Equal(t, "AAPL", result.Ticker)
	assert.InDelta(t, 7.5, result.Score, 0.001)
	assert.Equal(t, []string{"Resilient margins"}, result.Swot.Strengths)

	// Unknown workflow is a 404, incomplete workflow a 400.
	rec = httptest.NewRecorder()
	h.ResultHandler(rec, httptest.NewRequest("GET", "/api/workflow/nope/result", nil), "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResultHandlerRejectsFailedRun(t *testing.T) {
	h := newTestHandler(t, &stubRunner{apply: func(state *models.WorkflowState) {
		state.Error = "all generation providers failed"
	}})

	id := startAndWait(t, h, `{"name": "Tesla", "strategy_focus": "Growth"}`)

	rec := httptest.NewRecorder()
	h.ResultHandler(rec, httptest.NewRequest("GET", "/api/workflow/"+id+"/result", nil), id)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "aborted")
}

func TestExportHandlers(t *testing.T) {
	h := newTestHandler(t, &stubRunner{apply: func(state *models.WorkflowState) {
		state.DraftReport = "## Strengths\n- Resilient margins\n"
		state.Score = 8.0
	}})

	id := startAndWait(t, h, `{"name": "Tesla", "strategy_focus": "Growth"}`)

	rec := httptest.NewRecorder()
	h.ExportHTMLHandler(rec, httptest.NewRequest("GET", "/api/workflow/"+id+"/result/html", nil), id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Tesla")

	rec = httptest.NewRecorder()
	h.ExportPDFHandler(rec, httptest.NewRequest("GET", "/api/workflow/"+id+"/result/pdf", nil), id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))
}

func TestRetryMCPHandlerNotImplemented(t *testing.T) {
	h := newTestHandler(t, &stubRunner{apply: func(state *models.WorkflowState) {
		state.DraftReport = "## Strengths\n- Resilient margins\n"
	}})

	id := startAndWait(t, h, `{"name": "Tesla", "strategy_focus": "Growth"}`)

	rec := httptest.NewRecorder()
	h.RetryMCPHandler(rec, httptest.NewRequest("POST", "/api/workflow/"+id+"/retry-mcp", nil), id)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = httptest.NewRecorder()
	h.RetryMCPHandler(rec, httptest.NewRequest("POST", "/api/workflow/nope/retry-mcp", nil), "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
