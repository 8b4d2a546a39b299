package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"careportal/internal/audit"
	"careportal/internal/auth"
	"careportal/internal/models"
)

// HighRiskSessions lists active sessions flagged by the risk scorer, for
// security review. High risk is surfaced, not blocked.
func HighRiskSessions(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := d.Sessions.HighRiskSessions(r.Context())
		if err != nil {
			respondError(w, d.Log, err)
			return
		}
		respondJSON(w, sessions)
	}
}

// TerminateSession lets an administrator end a session by id.
func TerminateSession(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := auth.AccountFromContext(r.Context())
		meta := auth.MetaFromRequest(r)
		id := chi.URLParam(r, "id")
		if err := d.Sessions.Destroy(r.Context(), id); err != nil {
			respondError(w, d.Log, err)
			return
		}
		d.Audit.Record(r.Context(), audit.Event{
			Actor: actor.Username, Action: "session.terminated", Outcome: "success",
			IP: meta.IP, UserAgent: meta.UserAgent,
			Meta: map[string]any{"session_id": id},
		})
		respondJSON(w, map[string]any{"terminated": true})
	}
}

// ListAuditLogs returns recent security events, newest first.
func ListAuditLogs(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var logs []models.AuditLog
		q := d.DB.WithContext(r.Context()).Order("created_at desc").Limit(200)
		if actor := r.URL.Query().Get("actor"); actor != "" {
			q = q.Where("actor = ?", actor)
		}
		if err := q.Find(&logs).Error; err != nil {
			respondError(w, d.Log, err)
			return
		}
		respondJSON(w, logs)
	}
}
