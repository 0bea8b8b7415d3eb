package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Analysis workflows
	mux.HandleFunc("/api/analyze", s.app.AnalysisHandler.AnalyzeHandler) // POST - start a workflow
	mux.HandleFunc("/api/workflow/", s.handleWorkflowRoutes)             // GET/POST /{id}/...

	// API routes - Company lookup
	mux.HandleFunc("/api/stocks/search", s.app.StocksHandler.SearchHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler) // Graceful shutdown endpoint (dev mode)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleWorkflowRoutes dispatches /api/workflow/{id}/{action} requests.
// Supported actions: status, result, result/html, result/pdf, retry-mcp.
func (s *Server) handleWorkflowRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/workflow/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}

	switch action {
	case "status":
		s.app.AnalysisHandler.StatusHandler(w, r, id)
	case "result":
		s.app.AnalysisHandler.ResultHandler(w, r, id)
	case "result/html":
		s.app.AnalysisHandler.ExportHTMLHandler(w, r, id)
	case "result/pdf":
		s.app.AnalysisHandler.ExportPDFHandler(w, r, id)
	case "retry-mcp":
		s.app.AnalysisHandler.RetryMCPHandler(w, r, id)
	default:
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}
