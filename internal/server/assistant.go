package server

import (
	"errors"
	"net/http"

	"billing/internal/assistant"
	"billing/internal/metrics"
)

type viewRequest struct {
	Dashboard  string `json:"dashboard"`
	Competence string `json:"competence"`
	From       string `json:"from"`
	To         string `json:"to"`
}

type askRequest struct {
	viewRequest
	Question string              `json:"question"`
	History  []assistant.Message `json:"history"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

type compareResponse struct {
	Answer     string              `json:"answer"`
	Comparison *metrics.PeriodDiff `json:"comparison,omitempty"`
}

func (s *Server) assistantEnabled(w http.ResponseWriter) bool {
	if s.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant is not configured", nil)
		return false
	}
	return true
}

func writeAssistantError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, assistant.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "question is required", map[string]string{"field": "question"})
	case errors.Is(err, assistant.ErrUnknownRole):
		writeError(w, http.StatusBadRequest, err.Error(), map[string]string{"field": "history"})
	default:
		writeInternal(w, r, err, "Assistant request failed")
	}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if !s.assistantEnabled(w) {
		return
	}

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	v, err := s.parseView(req.Dashboard, req.Competence, req.From, req.To)
	if err != nil {
		writeViewError(w, r, err)
		return
	}
	dv, err := s.buildView(r.Context(), v)
	if err != nil {
		writeViewError(w, r, err)
		return
	}

	title := v.dashboard.Label()
	if dv.comparison != nil {
		title += " - " + dv.comparison.CurrentLabel
	}
	answer, err := s.assistant.Ask(r.Context(), req.Question, req.History, assistant.DescribeSummary(title, dv.summary))
	if err != nil {
		writeAssistantError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Answer: answer})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if !s.assistantEnabled(w) {
		return
	}

	var req viewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	v, err := s.parseView(req.Dashboard, req.Competence, req.From, req.To)
	if err != nil {
		writeViewError(w, r, err)
		return
	}
	if !v.selected {
		writeError(w, http.StatusBadRequest, "a competence or a date range is required", nil)
		return
	}
	dv, err := s.buildView(r.Context(), v)
	if err != nil {
		writeViewError(w, r, err)
		return
	}

	if !dv.comparison.HasPrevious {
		writeJSON(w, http.StatusOK, compareResponse{Answer: assistant.NoPreviousPeriod})
		return
	}

	diff := metrics.Diff(*dv.comparison)
	answer, err := s.assistant.SummarizeComparison(r.Context(), v.dashboard.Label(), diff)
	if err != nil {
		writeAssistantError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, compareResponse{Answer: answer, Comparison: &diff})
}
