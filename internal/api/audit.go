package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-hub/internal/audit"
)

// recordAction adds a control action to the audit trail. err, when set, is
// stored in the event details.
func (s *Server) recordAction(r *http.Request, action, entryID, coord, outcome string, err error) {
	ev := audit.Event{
		Action:      action,
		EntryID:     entryID,
		Coordinator: coord,
		Subject:     subject(r),
		Source:      audit.SourceAPI,
		Outcome:     outcome,
	}
	if err != nil {
		ev.Details = map[string]any{"error": err.Error()}
	}
	s.audit.Record(r.Context(), ev)
}

// handleListAudit returns recorded control actions, newest first.
// Query parameters: action, entry_id, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit trail is not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:  q.Get("action"),
		EntryID: q.Get("entry_id"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	page, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit events", "error", err)
		writeInternalError(w, "failed to list audit events")
		return
	}
	writeJSON(w, http.StatusOK, page)
}
