package auth

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"careportal/internal/audit"
)

// MetaFromRequest extracts the request metadata audit events carry. RealIP
// middleware runs ahead of this, so RemoteAddr already holds the client IP.
func MetaFromRequest(r *http.Request) RequestMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return RequestMeta{IP: ip, UserAgent: r.UserAgent()}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Middleware bundles the pieces request gating needs.
type Middleware struct {
	tokens *TokenService
	creds  *CredentialStore
	engine *Engine
	audit  *audit.Recorder
}

func NewMiddleware(tokens *TokenService, creds *CredentialStore, engine *Engine, rec *audit.Recorder) *Middleware {
	return &Middleware{tokens: tokens, creds: creds, engine: engine, audit: rec}
}

// RequireToken authenticates the bearer token and re-resolves the account so
// a deactivated or locked account cannot keep authenticating on an unexpired
// token. The client always gets a generic message; the audit sink gets the
// precise verification failure.
func (m *Middleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := MetaFromRequest(r)
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		subject, err := m.tokens.Verify(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			m.audit.Record(r.Context(), audit.Event{
				Action: "auth.token_rejected", Outcome: "rejected",
				IP: meta.IP, UserAgent: meta.UserAgent,
				Meta: map[string]any{"reason": err.Error()},
			})
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		acct, err := m.creds.FindByID(r.Context(), subject)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if err != nil {
			// A store failure is retryable, never an auth verdict.
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !acct.IsActive {
			m.audit.Record(r.Context(), audit.Event{
				Actor: acct.Username, Action: "auth.token_rejected", Outcome: "rejected",
				IP: meta.IP, UserAgent: meta.UserAgent,
				Meta: map[string]any{"reason": "deactivated"},
			})
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if acct.Locked(time.Now()) {
			writeError(w, http.StatusLocked, "account locked")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acct)))
	})
}

// RequireAnyRole gates a route subtree on role membership. Must run inside
// RequireToken.
func (m *Middleware) RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct := AccountFromContext(r.Context())
			if acct == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if err := m.engine.RequireAnyRole(r.Context(), acct, roles, r.URL.Path, MetaFromRequest(r)); err != nil {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission gates a route subtree on a (resource, action) grant.
func (m *Middleware) RequirePermission(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct := AccountFromContext(r.Context())
			if acct == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			err := m.engine.RequirePermission(r.Context(), acct, resource, action, r.URL.Path, MetaFromRequest(r))
			if errors.Is(err, ErrPermissionDenied) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
