package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"careportal/internal/audit"
	"careportal/internal/auth"
	"careportal/internal/ratelimit"
	"careportal/internal/session"
)

// Deps bundles what handlers need. Handlers stay plain closures over it.
type Deps struct {
	DB       *gorm.DB
	Log      *zap.SugaredLogger
	Creds    *auth.CredentialStore
	Tokens   *auth.TokenService
	Sessions *session.Manager
	Cookies  *session.Middleware
	Audit    *audit.Recorder
	LoginRL  ratelimit.Limiter
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func respondStatus(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// respondError maps the error taxonomy to HTTP codes with generic messages.
// The true reason never reaches the client; callers audit it separately.
func respondError(w http.ResponseWriter, lg *zap.SugaredLogger, err error) {
	switch {
	case errors.Is(err, auth.ErrValidation):
		respondStatus(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrNotFound),
		errors.Is(err, auth.ErrAccountInactive),
		errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenSignature):
		respondStatus(w, http.StatusUnauthorized, map[string]string{"error": "authentication failed"})
	case errors.Is(err, auth.ErrAccountLocked):
		respondStatus(w, http.StatusLocked, map[string]string{"error": "account locked"})
	case errors.Is(err, auth.ErrPermissionDenied):
		respondStatus(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, auth.ErrConflict):
		respondStatus(w, http.StatusConflict, map[string]string{"error": "already exists"})
	default:
		lg.Errorw("internal error", "error", err)
		respondStatus(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
