package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hub/internal/audit"
	"github.com/nerrad567/gray-logic-hub/internal/entry"
)

// handleListEntries returns the status of every entry.
func (s *Server) handleListEntries(w http.ResponseWriter, _ *http.Request) {
	list := s.entries.List()
	out := make([]entry.Status, 0, len(list))
	for _, e := range list {
		out = append(out, e.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": out,
		"count":   len(out),
	})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupEntry(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.Snapshot())
}

// handleRefreshEntry refreshes every coordinator of a loaded entry and
// returns the resulting status.
func (s *Server) handleRefreshEntry(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupEntry(w, r)
	if !ok {
		return
	}
	if e.State() != entry.StateLoaded {
		s.recordAction(r, audit.ActionRefresh, e.ID, "", audit.OutcomeRejected, nil)
		writeConflict(w, "entry is "+string(e.State()))
		return
	}

	s.logger.Info("entry refresh requested", "entry_id", e.ID, "by", subject(r))
	s.recordAction(r, audit.ActionRefresh, e.ID, "", audit.OutcomeAccepted, nil)
	e.RefreshAll(r.Context())
	writeJSON(w, http.StatusOK, e.Snapshot())
}

// handleRebootEntry asks the device to reboot. Coordinators report
// unavailable until the reboot completes.
func (s *Server) handleRebootEntry(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupEntry(w, r)
	if !ok {
		return
	}

	err := e.Reboot(r.Context())
	s.recordAction(r, audit.ActionReboot, e.ID, "",
		audit.OutcomeOf(err, entry.ErrNotLoaded, entry.ErrRebootUnsupported), err)
	switch {
	case err == nil:
	case errors.Is(err, entry.ErrNotLoaded), errors.Is(err, entry.ErrRebootUnsupported):
		writeConflict(w, err.Error())
		return
	default:
		s.logger.Warn("reboot request failed", "entry_id", e.ID, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
		return
	}

	s.logger.Info("entry reboot requested", "entry_id", e.ID, "by", subject(r))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "rebooting",
		"entry_id": e.ID,
	})
}

func (s *Server) lookupEntry(w http.ResponseWriter, r *http.Request) (*entry.Entry, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = chi.URLParam(r, "entry_id")
	}
	e, err := s.entries.Get(id)
	if err != nil {
		writeNotFound(w, "entry not found: "+id)
		return nil, false
	}
	return e, true
}

// subject names the caller for logs.
func subject(r *http.Request) string {
	if claims := claimsFromContext(r.Context()); claims != nil {
		return claims.Subject
	}
	return "anonymous"
}
