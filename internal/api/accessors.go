package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-accessors/internal/audit"
)

// writePortRequest is the body of PUT /accessors/{id}/ports/{port}.
type writePortRequest struct {
	Value json.RawMessage `json:"value"`
}

// portValueResponse is returned by port reads and writes.
type portValueResponse struct {
	AccessorID string `json:"accessor_id"`
	Port       string `json:"port"`
	Value      any    `json:"value,omitempty"`
	Status     string `json:"status,omitempty"`
}

// handleListAccessors returns every running accessor in start order.
func (s *Server) handleListAccessors(w http.ResponseWriter, _ *http.Request) {
	accessors := s.host.Instances()
	writeJSON(w, http.StatusOK, map[string]any{
		"accessors": accessors,
		"count":     len(accessors),
	})
}

// handleGetAccessor returns one accessor with its session and cached values.
func (s *Server) handleGetAccessor(w http.ResponseWriter, r *http.Request) {
	d, err := s.host.Describe(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// resolvePort writes a 404 and returns false unless id has a port or
// bundle called name.
func (s *Server) resolvePort(w http.ResponseWriter, id, name string) bool {
	if _, err := s.host.Instance(id); err != nil {
		writeErr(w, err)
		return false
	}
	if !s.host.Has(id, name) {
		writeNotFound(w, fmt.Sprintf("accessor %q has no port %q", id, name))
		return false
	}
	return true
}

// handleReadPort reads a port or bundle through its output handler.
func (s *Server) handleReadPort(w http.ResponseWriter, r *http.Request) {
	id, name := chi.URLParam(r, "id"), chi.URLParam(r, "port")
	if !s.resolvePort(w, id, name) {
		return
	}

	v, err := s.host.Read(r.Context(), id, name)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, portValueResponse{AccessorID: id, Port: name, Value: v})
}

// handleWritePort writes {"value": ...} to a port or bundle.
func (s *Server) handleWritePort(w http.ResponseWriter, r *http.Request) {
	id, name := chi.URLParam(r, "id"), chi.URLParam(r, "port")
	if !s.resolvePort(w, id, name) {
		return
	}

	var req writePortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return
		}
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Value) == 0 {
		writeBadRequest(w, `"value" is required`)
		return
	}
	var value any
	if err := json.Unmarshal(req.Value, &value); err != nil {
		writeBadRequest(w, "invalid value")
		return
	}

	err := s.host.Write(r.Context(), id, name, value)
	s.recordAudit(audit.ActionWrite, id, name, err, map[string]any{"value": value})
	if err != nil {
		s.logger.Warn("port write failed", "accessor", id, "port", name, "error", err)
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, portValueResponse{AccessorID: id, Port: name, Value: value, Status: "ok"})
}
