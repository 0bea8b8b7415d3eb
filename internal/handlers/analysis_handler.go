package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/models"
	"github.com/ternarybob/consilium/internal/services/export"
	"github.com/ternarybob/consilium/internal/services/workflow"
)

// AnalysisHandler exposes workflow creation, polling, and export endpoints
type AnalysisHandler struct {
	workflows *workflow.Service
	export    *export.Service
	validate  *validator.Validate
	logger    arbor.ILogger
}

func NewAnalysisHandler(workflows *workflow.Service, exportSvc *export.Service, logger arbor.ILogger) *AnalysisHandler {
	return &AnalysisHandler{
		workflows: workflows,
		export:    exportSvc,
		validate:  validator.New(),
		logger:    logger,
	}
}

// AnalyzeHandler starts a new analysis workflow.
// POST /api/analyze
func (h *AnalysisHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	if err := h.validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	id := h.workflows.Start(req)

	h.logger.Info().
		Str("workflow_id", id).
		Str("company", req.Name).
		Str("strategy_focus", req.StrategyFocus).
		Msg("Analysis workflow started")

	WriteJSON(w, http.StatusOK, models.WorkflowStartResponse{WorkflowID: id})
}

// StatusHandler returns the live progress record for a workflow.
// GET /api/workflow/{id}/status
func (h *AnalysisHandler) StatusHandler(w http.ResponseWriter, r *http.Request, workflowID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	snap, ok := h.workflows.Status(workflowID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Workflow not found: "+workflowID)
		return
	}

	// The error field is only meaningful once the run has failed; hide
	// transient stage errors from pollers of in-flight workflows.
	if snap.Status != models.WorkflowStatusError && snap.Status != models.WorkflowStatusAborted {
		snap.Error = ""
	}

	WriteJSON(w, http.StatusOK, snap)
}

// ResultHandler returns the final analysis for a completed workflow.
// GET /api/workflow/{id}/result
func (h *AnalysisHandler) ResultHandler(w http.ResponseWriter, r *http.Request, workflowID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	result, ok := h.completedResult(w, workflowID)
	if !ok {
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// ExportHTMLHandler renders the final report as a standalone HTML page.
// GET /api/workflow/{id}/result/html
func (h *AnalysisHandler) ExportHTMLHandler(w http.ResponseWriter, r *http.Request, workflowID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	result, ok := h.completedResult(w, workflowID)
	if !ok {
		return
	}

	page, err := h.export.HTML(result)
	if err != nil {
		h.logger.Error().Str("workflow_id", workflowID).Err(err).Msg("HTML export failed")
		WriteError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

// ExportPDFHandler renders the final report as a PDF document.
// GET /api/workflow/{id}/result/pdf
func (h *AnalysisHandler) ExportPDFHandler(w http.ResponseWriter, r *http.Request, workflowID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	result, ok := h.completedResult(w, workflowID)
	if !ok {
		return
	}

	doc, err := h.export.PDF(result)
	if err != nil {
		h.logger.Error().Str("workflow_id", workflowID).Err(err).Msg("PDF export failed")
		WriteError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Ticker+"-analysis.pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// RetryMCPHandler is reserved for re-running failed evidence sources on an
// existing workflow. Source retry is not implemented; runs are cheap enough
// to restart from POST /api/analyze.
// POST /api/workflow/{id}/retry-mcp
func (h *AnalysisHandler) RetryMCPHandler(w http.ResponseWriter, r *http.Request, workflowID string) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if _, ok := h.workflows.Status(workflowID); !ok {
		WriteError(w, http.StatusNotFound, "Workflow not found: "+workflowID)
		return
	}

	WriteError(w, http.StatusNotImplemented, "Source retry is not supported; start a new analysis instead")
}

// completedResult fetches the workflow result, writing the appropriate error
// response when the workflow is unknown or not yet completed.
func (h *AnalysisHandler) completedResult(w http.ResponseWriter, workflowID string) (*models.AnalysisResult, bool) {
	snap, ok := h.workflows.Status(workflowID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Workflow not found: "+workflowID)
		return nil, false
	}

	if snap.Status != models.WorkflowStatusCompleted || snap.Result == nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Workflow is %s; result is only available once completed", snap.Status))
		return nil, false
	}

	return snap.Result, true
}

// validationMessage flattens validator errors into a single readable line.
func validationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return "Invalid request: " + err.Error()
	}
	msg := "Invalid request:"
	for _, fe := range errs {
		msg += fmt.Sprintf(" field %s failed on %q;", fe.Field(), fe.Tag())
	}
	return msg
}
