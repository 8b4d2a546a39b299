package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"careportal/internal/audit"
	"careportal/internal/auth"
	"careportal/internal/models"
)

func ListAccounts(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var accounts []models.Account
		if err := d.DB.WithContext(r.Context()).Order("created_at desc").Find(&accounts).Error; err != nil {
			respondError(w, d.Log, err)
			return
		}
		out := make([]userView, 0, len(accounts))
		for i := range accounts {
			out = append(out, viewOf(&accounts[i]))
		}
		respondJSON(w, out)
	}
}

func CreateAccount(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := auth.AccountFromContext(r.Context())
		meta := auth.MetaFromRequest(r)
		var req struct {
			Username    string `json:"username"`
			Email       string `json:"email"`
			Password    string `json:"password"`
			DisplayName string `json:"display_name"`
			Role        string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		acct, err := d.Creds.CreateAccount(r.Context(), auth.NewAccount{
			Username:    req.Username,
			Email:       req.Email,
			Password:    req.Password,
			DisplayName: req.DisplayName,
			Role:        req.Role,
			CreatedBy:   actor.Username,
		})
		if err != nil {
			respondError(w, d.Log, err)
			return
		}
		d.Audit.Record(r.Context(), audit.Event{
			Actor: actor.Username, Action: "account.created", Outcome: "success",
			IP: meta.IP, UserAgent: meta.UserAgent,
			Meta: map[string]any{"username": acct.Username, "role": acct.Role},
		})
		respondStatus(w, http.StatusCreated, viewOf(acct))
	}
}

func UpdateAccount(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := auth.AccountFromContext(r.Context())
		meta := auth.MetaFromRequest(r)
		id := chi.URLParam(r, "id")
		var req struct {
			Email       *string `json:"email"`
			DisplayName *string `json:"display_name"`
			Role        *string `json:"role"`
			IsActive    *bool   `json:"is_active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		var acct models.Account
		if err := d.DB.WithContext(r.Context()).First(&acct, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				respondStatus(w, http.StatusNotFound, map[string]string{"error": "not found"})
				return
			}
			respondError(w, d.Log, err)
			return
		}
		if req.Email != nil {
			acct.Email = *req.Email
		}
		if req.DisplayName != nil {
			acct.DisplayName = *req.DisplayName
		}
		if req.Role != nil {
			if !models.ValidRole(*req.Role) {
				respondStatus(w, http.StatusBadRequest, map[string]string{"error": "unknown role"})
				return
			}
			acct.Role = *req.Role
		}
		if req.IsActive != nil {
			acct.IsActive = *req.IsActive
		}
		acct.UpdatedBy = actor.Username
		if err := d.DB.WithContext(r.Context()).Save(&acct).Error; err != nil {
			respondError(w, d.Log, err)
			return
		}
		if req.IsActive != nil && !*req.IsActive {
			// Deactivation also ends any live sessions.
			_ = d.Sessions.DestroyForAccount(r.Context(), acct.ID)
		}
		d.Audit.Record(r.Context(), audit.Event{
			Actor: actor.Username, Action: "account.updated", Outcome: "success",
			IP: meta.IP, UserAgent: meta.UserAgent,
			Meta: map[string]any{"username": acct.Username},
		})
		respondJSON(w, viewOf(&acct))
	}
}

// DeactivateAccount soft-deletes: accounts referenced by audit history are
// never physically removed.
func DeactivateAccount(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := auth.AccountFromContext(r.Context())
		meta := auth.MetaFromRequest(r)
		id := chi.URLParam(r, "id")
		res := d.DB.WithContext(r.Context()).Model(&models.Account{}).
			Where("id = ?", id).
			Updates(map[string]any{"is_active": false, "updated_by": actor.Username})
		if res.Error != nil {
			respondError(w, d.Log, res.Error)
			return
		}
		if res.RowsAffected == 0 {
			respondStatus(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		_ = d.Sessions.DestroyForAccount(r.Context(), id)
		d.Audit.Record(r.Context(), audit.Event{
			Actor: actor.Username, Action: "account.deactivated", Outcome: "success",
			IP: meta.IP, UserAgent: meta.UserAgent,
			Meta: map[string]any{"account_id": id},
		})
		respondJSON(w, map[string]any{"deactivated": true})
	}
}
