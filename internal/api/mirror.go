package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/statemirror"
)

// MirrorReader reads last-known values back out of the state mirror.
type MirrorReader interface {
	Get(ctx context.Context, id, portName string) (statemirror.Value, error)
	Snapshot(ctx context.Context, id string) (map[string]statemirror.Value, error)
}

// handleGetMirror returns every mirrored value of one accessor. The mirror
// outlives the process, so an accessor that is not running may still have
// values here.
func (s *Server) handleGetMirror(w http.ResponseWriter, r *http.Request) {
	if s.mirror == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "state mirror not configured")
		return
	}
	id := chi.URLParam(r, "id")
	values, err := s.mirror.Snapshot(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessor_id": id,
		"values":      values,
		"count":       len(values),
	})
}

// handleGetMirrorPort returns one mirrored value.
func (s *Server) handleGetMirrorPort(w http.ResponseWriter, r *http.Request) {
	if s.mirror == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "state mirror not configured")
		return
	}
	id, name := chi.URLParam(r, "id"), chi.URLParam(r, "port")
	v, err := s.mirror.Get(r.Context(), id, name)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessor_id": id,
		"port":        name,
		"value":       v.Value,
		"timestamp":   v.Timestamp,
	})
}
