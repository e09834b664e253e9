package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-accessors/internal/accessor"
	"github.com/nerrad567/gray-logic-accessors/internal/audit"
	"github.com/nerrad567/gray-logic-accessors/internal/host"
	"github.com/nerrad567/gray-logic-accessors/internal/instance"
)

// createInstanceRequest is the body of POST /instances.
type createInstanceRequest struct {
	ID      string            `json:"id"`
	Kind    string            `json:"kind"`
	Name    string            `json:"name"`
	Params  map[string]string `json:"params"`
	Enabled *bool             `json:"enabled"`
}

// instanceResponse pairs a stored record with its running accessor.
type instanceResponse struct {
	Instance instance.Record `json:"instance"`
	Accessor *host.Instance  `json:"accessor,omitempty"`
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.instances == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "instance store not configured")
		return false
	}
	return true
}

func (s *Server) withAccessor(rec instance.Record) instanceResponse {
	resp := instanceResponse{Instance: rec}
	if inst, err := s.host.Instance(rec.ID); err == nil {
		resp.Accessor = &inst
	}
	return resp
}

// handleListInstances returns every stored instance.
func (s *Server) handleListInstances(w http.ResponseWriter, _ *http.Request) {
	if !s.requireStore(w) {
		return
	}
	records := s.instances.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"instances": records,
		"count":     len(records),
	})
}

// handleGetInstance returns one stored instance.
func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	rec, err := s.instances.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.withAccessor(*rec))
}

// handleCreateInstance stores a new instance and, when enabled, starts it.
// A setup failure removes the stored record again; an init failure keeps
// it running as degraded.
func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	var req createInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	rec := &instance.Record{
		ID:      req.ID,
		Kind:    req.Kind,
		Name:    req.Name,
		Params:  req.Params,
		Enabled: req.Enabled == nil || *req.Enabled,
		Source:  instance.SourceAPI,
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if err := s.instances.Create(r.Context(), rec); err != nil {
		writeErr(w, err)
		return
	}

	if rec.Enabled {
		_, err := s.host.Start(r.Context(), host.Spec{
			ID:     rec.ID,
			Kind:   rec.Kind,
			Name:   rec.Name,
			Params: accessor.Params(rec.Params),
		})
		if err != nil {
			if derr := s.instances.Delete(r.Context(), rec.ID); derr != nil {
				s.logger.Error("rolling back instance", "id", rec.ID, "error", derr)
			}
			s.recordAudit(audit.ActionCreate, rec.ID, "", err, map[string]any{"kind": rec.Kind})
			writeErr(w, err)
			return
		}
	}

	s.recordAudit(audit.ActionCreate, rec.ID, "", nil, map[string]any{"kind": rec.Kind, "enabled": rec.Enabled})
	writeJSON(w, http.StatusCreated, s.withAccessor(*rec))
}

// handleDeleteInstance stops and forgets one instance.
func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := chi.URLParam(r, "id")

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if err := s.host.Remove(id); err != nil && !errors.Is(err, host.ErrInstanceNotFound) {
		s.logger.Warn("closing accessor", "accessor", id, "error", err)
	}
	if err := s.instances.Delete(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	if s.onRemove != nil {
		s.onRemove(r.Context(), id)
	}
	s.recordAudit(audit.ActionDelete, id, "", nil, nil)
	w.WriteHeader(http.StatusNoContent)
}
