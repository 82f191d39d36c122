package web

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/activity-import/internal/audit"
	"github.com/JonMunkholm/activity-import/internal/core"
)

// handleAuditLog lists audit entries, newest first.
//
// Query parameters: action, severity, period_id, since (RFC 3339), limit,
// offset.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		respondErrorJSON(w, core.UserMessage{
			Message: "The audit log is not enabled",
			Action:  "Configure DATABASE_URL to record imports and deletions",
			Code:    "AUD001",
		}, http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	opts := audit.ListOptions{
		Action:   core.AuditAction(q.Get("action")),
		Severity: core.AuditSeverity(q.Get("severity")),
		PeriodID: q.Get("period_id"),
		Limit:    parseIntParam(r, "limit", audit.DefaultListLimit),
		Offset:   parseIntParam(r, "offset", 0),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			s.fail(w, r, badRequest("since must be an RFC 3339 timestamp"))
			return
		}
		opts.Since = t
	}

	entries, err := s.auditLog.List(r.Context(), opts)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}

	writeJSON(w, map[string]any{
		"entries": entries,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}
