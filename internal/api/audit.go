package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-accessors/internal/audit"
)

// recordAudit records an operator action. A failed action is recorded with its
// error so the trail shows attempts as well as changes.
func (s *Server) recordAudit(action, id, portName string, err error, details map[string]any) {
	if s.auditor == nil {
		return
	}
	e := audit.Entry{
		Action:     action,
		AccessorID: id,
		Port:       portName,
		Source:     audit.SourceAPI,
		Outcome:    audit.OutcomeOK,
		Details:    details,
	}
	if err != nil {
		e.Outcome = audit.OutcomeFailed
		if e.Details == nil {
			e.Details = map[string]any{}
		}
		e.Details["error"] = err.Error()
	}
	s.auditor.Record(e)
}

// handleListAudit returns audit entries, newest first.
//
// Query parameters: action, accessor_id, limit (default 50, max 200), offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditor == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit log not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		AccessorID: q.Get("accessor_id"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditor.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
