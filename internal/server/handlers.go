package server

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/jonathan/council-registers/internal/types"
)

// RegistersResponse is the body of GET /registers.
type RegistersResponse struct {
	Query   string                `json:"query"`
	Count   int                   `json:"count"`
	Results []types.RegisterMatch `json:"results"`
}

// AuditResponse is the body of GET /audit.
type AuditResponse struct {
	Count  int                   `json:"count"`
	Audits []types.ScrapingAudit `json:"audits"`
}

// RunsResponse is the body of GET /runs.
type RunsResponse struct {
	Count int               `json:"count"`
	Runs  []types.ScrapeRun `json:"runs"`
}

// handleRegisters searches stored registers. A blank query returns no results.
func (s *Server) handleRegisters(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, err := parseLimit(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	results := []types.RegisterMatch{}
	if query != "" {
		found, err := s.store.SearchRegisters(r.Context(), query, limit)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		if found != nil {
			results = found
		}
	}
	s.jsonResponse(w, http.StatusOK, RegistersResponse{Query: query, Count: len(results), Results: results})
}

// handleAudit lists audit rows, optionally filtered by issue type and run.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	filter := types.AuditFilter{RunID: runID, Limit: limit}
	if raw := strings.TrimSpace(r.URL.Query().Get("issue_type")); raw != "" {
		issue, ok := parseIssueType(raw)
		if !ok {
			s.handleError(w, r, &ErrValidation{Field: "issue_type", Message: "unknown issue type " + raw})
			return
		}
		filter.IssueType = issue
	}

	audits, err := s.store.ListAudits(r.Context(), filter)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if audits == nil {
		audits = []types.ScrapingAudit{}
	}
	s.jsonResponse(w, http.StatusOK, AuditResponse{Count: len(audits), Audits: audits})
}

// handleRuns lists recent scrape runs, newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if runs == nil {
		runs = []types.ScrapeRun{}
	}
	s.jsonResponse(w, http.StatusOK, RunsResponse{Count: len(runs), Runs: runs})
}

// handleIndex renders the HTML search page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	var results []types.RegisterMatch
	if query != "" {
		var err error
		results, err = s.store.SearchRegisters(r.Context(), query, 0)
		if err != nil {
			s.logger.Error("search failed", "query", query, "error", err)
			http.Error(w, "search failed", http.StatusInternalServerError)
			return
		}
	}

	var buf bytes.Buffer
	data := struct {
		Query   string
		Results []types.RegisterMatch
	}{query, results}
	if err := indexTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("failed to render index", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func parseIssueType(raw string) (types.IssueType, bool) {
	for _, t := range types.AllIssueTypes() {
		if strings.EqualFold(raw, string(t)) {
			return t, true
		}
	}
	return "", false
}
