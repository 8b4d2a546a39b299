package session

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"careportal/internal/audit"
	"careportal/internal/models"
	"careportal/internal/ratelimit"
)

// CookieName carries the encrypted session reference for browser clients.
const CookieName = "cp_session"

// cookiePayload is what actually gets encrypted into the cookie value.
type cookiePayload struct {
	SessionID string `json:"sid"`
}

type sessCtxKey string

const sessionKey sessCtxKey = "serverSession"

// FromContext returns the session attached by Middleware, or nil.
func FromContext(ctx context.Context) *models.Session {
	if v, ok := ctx.Value(sessionKey).(*models.Session); ok {
		return v
	}
	return nil
}

// Middleware validates the encrypted session cookie and enforces the strict
// idle window on sensitive route prefixes. All failures are closed: a cookie
// that will not decrypt, parse, or resolve is treated as absent, and the
// request continues anonymous for the route's own auth to decide.
type Middleware struct {
	manager *Manager
	codec   *Codec
	audit   *audit.Recorder
	limiter ratelimit.Limiter

	// sensitivePrefixes get the 30-minute idle rule on top of the general
	// session window.
	sensitivePrefixes []string
}

func NewMiddleware(manager *Manager, codec *Codec, rec *audit.Recorder, limiter ratelimit.Limiter, sensitivePrefixes []string) *Middleware {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Middleware{
		manager:           manager,
		codec:             codec,
		audit:             rec,
		limiter:           limiter,
		sensitivePrefixes: sensitivePrefixes,
	}
}

func (m *Middleware) sensitive(path string) bool {
	for _, p := range m.sensitivePrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Handler is the chi-style middleware.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		var payload cookiePayload
		if !m.codec.Decrypt(cookie.Value, &payload) {
			// Undecryptable cookies are probe material; count them
			// against the client before dropping the cookie.
			if !m.limiter.Allow(ip) {
				writeJSONError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			m.clearCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		sess, err := m.manager.Get(r.Context(), payload.SessionID)
		if err != nil {
			// ErrNoSession and store errors alike read as "absent";
			// the session layer never aborts the pipeline.
			m.clearCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		if m.sensitive(r.URL.Path) && m.manager.IdleExpired(sess, time.Now()) {
			_ = m.manager.Destroy(r.Context(), sess.ID)
			m.clearCookie(w)
			actor := ""
			if sess.AccountID != nil {
				actor = *sess.AccountID
			}
			m.audit.Record(r.Context(), audit.Event{
				Actor: actor, Action: "session.idle_timeout", Outcome: "expired",
				IP: ip, UserAgent: r.UserAgent(),
				Meta: map[string]any{"session_id": sess.ID, "path": r.URL.Path},
			})
			writeJSONError(w, http.StatusUnauthorized, "session expired, please sign in again")
			return
		}

		if err := m.manager.Touch(r.Context(), sess, ip, r.UserAgent()); err != nil {
			// Telemetry only; the request proceeds.
			m.audit.Record(r.Context(), audit.Event{
				Action: "session.touch_failed", Outcome: "error",
				IP: ip, UserAgent: r.UserAgent(),
				Meta: map[string]any{"session_id": sess.ID},
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

// IssueCookie encrypts a session reference into the browser cookie.
func (m *Middleware) IssueCookie(w http.ResponseWriter, sess *models.Session) error {
	val, err := m.codec.Encrypt(cookiePayload{SessionID: sess.ID})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    val,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func (m *Middleware) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return ip
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
