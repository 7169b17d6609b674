package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hub/internal/audit"
	"github.com/nerrad567/gray-logic-hub/internal/coordinator"
	"github.com/nerrad567/gray-logic-hub/internal/history"
)

// handleListCoordinators returns every coordinator of every entry.
func (s *Server) handleListCoordinators(w http.ResponseWriter, _ *http.Request) {
	var out []coordinator.Status
	for _, e := range s.entries.List() {
		for _, h := range e.Coordinators() {
			out = append(out, h.Snapshot())
		}
	}
	if out == nil {
		out = []coordinator.Status{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"coordinators": out,
		"count":        len(out),
	})
}

func (s *Server) handleGetCoordinator(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupCoordinator(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Snapshot())
}

// handleRefreshCoordinator requests a refresh and waits for it. A refresh
// already in flight is joined rather than repeated.
func (s *Server) handleRefreshCoordinator(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupCoordinator(w, r)
	if !ok {
		return
	}

	s.logger.Info("coordinator refresh requested",
		"entry_id", chi.URLParam(r, "entry_id"),
		"coordinator", h.Name(),
		"by", subject(r),
	)
	s.recordAction(r, audit.ActionRefresh, chi.URLParam(r, "entry_id"), h.Name(), audit.OutcomeAccepted, nil)
	h.RequestRefresh(r.Context())
	writeJSON(w, http.StatusOK, h.Snapshot())
}

// handleCoordinatorHistory lists recent refresh attempts, newest first.
func (s *Server) handleCoordinatorHistory(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupCoordinator(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "refresh history is not enabled")
		return
	}

	filter := history.Filter{
		EntryID:     chi.URLParam(r, "entry_id"),
		Coordinator: h.Name(),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	records, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing refresh history", "error", err)
		writeInternalError(w, "failed to list refresh history")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

func (s *Server) lookupCoordinator(w http.ResponseWriter, r *http.Request) (coordinator.Handle, bool) {
	e, ok := s.lookupEntry(w, r)
	if !ok {
		return nil, false
	}
	name := chi.URLParam(r, "name")
	h, ok := e.Coordinator(name)
	if !ok {
		writeNotFound(w, "coordinator not found: "+name)
		return nil, false
	}
	return h, true
}
