package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListStates returns every entity state keyed by entity id.
func (s *Server) handleListStates(w http.ResponseWriter, r *http.Request) {
	data, err := s.states.Encode()
	if err != nil {
		s.logger.Error("encoding states", "error", err, "request_id", r.Context().Value(ctxKeyRequestID))
		writeInternalError(w, "encoding states failed")
		return
	}
	writeRawJSON(w, http.StatusOK, data)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entity_id")
	st, ok := s.states.Get(id)
	if !ok {
		writeNotFound(w, "entity not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
