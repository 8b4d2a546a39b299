package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"careportal/internal/audit"
	"careportal/internal/auth"
	"careportal/internal/models"
	"careportal/internal/session"
)

type loginReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func viewOf(a *models.Account) userView {
	return userView{
		ID: a.ID, Username: a.Username, Email: a.Email,
		DisplayName: a.DisplayName, Role: a.Role, IsActive: a.IsActive,
		LastLoginAt: a.LastLoginAt,
	}
}

func Login(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meta := auth.MetaFromRequest(r)
		if !d.LoginRL.Allow(meta.IP) {
			respondStatus(w, http.StatusTooManyRequests, map[string]string{"error": "too many attempts"})
			return
		}
		var req loginReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		identifier := strings.TrimSpace(req.Username)
		if identifier == "" {
			identifier = strings.TrimSpace(req.Email)
		}
		if identifier == "" || req.Password == "" {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "username or email and password required"})
			return
		}

		acct, err := d.Creds.Authenticate(r.Context(), identifier, req.Password, meta)
		if errors.Is(err, auth.ErrAccountLocked) {
			respondStatus(w, http.StatusLocked, map[string]any{
				"error":             "account locked",
				"minutes_remaining": auth.LockRemainingMinutes(acct, time.Now()),
			})
			return
		}
		if err != nil {
			respondError(w, d.Log, err)
			return
		}

		token, err := d.Tokens.Issue(acct.ID)
		if err != nil {
			respondError(w, d.Log, err)
			return
		}

		sess, err := d.Sessions.Create(r.Context(), &acct.ID, meta.IP, meta.UserAgent, true)
		if err != nil {
			respondError(w, d.Log, err)
			return
		}
		if err := d.Cookies.IssueCookie(w, sess); err != nil {
			respondError(w, d.Log, err)
			return
		}

		respondJSON(w, map[string]any{"token": token, "user": viewOf(acct)})
	}
}

func Logout(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct := auth.AccountFromContext(r.Context())
		meta := auth.MetaFromRequest(r)
		if sess := session.FromContext(r.Context()); sess != nil {
			if err := d.Sessions.Destroy(r.Context(), sess.ID); err != nil {
				respondError(w, d.Log, err)
				return
			}
		} else if err := d.Sessions.DestroyForAccount(r.Context(), acct.ID); err != nil {
			respondError(w, d.Log, err)
			return
		}
		d.Audit.Record(r.Context(), audit.Event{
			Actor: acct.Username, Action: "auth.logout", Outcome: "success",
			IP: meta.IP, UserAgent: meta.UserAgent, Meta: map[string]any{},
		})
		respondJSON(w, map[string]any{"ok": true})
	}
}

func Profile(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct := auth.AccountFromContext(r.Context())
		respondJSON(w, map[string]any{"user": viewOf(acct)})
	}
}

func VerifyToken(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct := auth.AccountFromContext(r.Context())
		respondJSON(w, map[string]any{"valid": true, "user": viewOf(acct)})
	}
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func ChangePassword(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct := auth.AccountFromContext(r.Context())
		meta := auth.MetaFromRequest(r)
		var req changePasswordReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.NewPassword != req.ConfirmPassword {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "passwords do not match"})
			return
		}
		if err := d.Creds.ChangePassword(r.Context(), acct, req.CurrentPassword, req.NewPassword); err != nil {
			respondError(w, d.Log, err)
			return
		}
		d.Audit.Record(r.Context(), audit.Event{
			Actor: acct.Username, Action: "auth.password_changed", Outcome: "success",
			IP: meta.IP, UserAgent: meta.UserAgent, Meta: map[string]any{},
		})
		respondJSON(w, map[string]any{"ok": true})
	}
}

// RequestPasswordReset answers 200 whether or not the email exists, so the
// endpoint cannot be used to enumerate accounts. Token delivery is someone
// else's job; only generation happens here.
func RequestPasswordReset(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meta := auth.MetaFromRequest(r)
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "email required"})
			return
		}
		if _, err := d.Creds.IssueResetToken(r.Context(), req.Email, meta); err != nil {
			respondError(w, d.Log, err)
			return
		}
		respondJSON(w, map[string]any{"message": "if the account exists, a reset link has been sent"})
	}
}

func ResetPassword(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meta := auth.MetaFromRequest(r)
		var req struct {
			Token       string `json:"token"`
			NewPassword string `json:"newPassword"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "token and newPassword required"})
			return
		}
		if err := d.Creds.ResetPassword(r.Context(), req.Token, req.NewPassword, meta); err != nil {
			respondError(w, d.Log, err)
			return
		}
		respondJSON(w, map[string]any{"ok": true})
	}
}
