package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"careportal/internal/auth"
	"careportal/internal/models"
)

func ListJobPostings(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var jobs []models.JobPosting
		if err := d.DB.WithContext(r.Context()).Order("created_at desc").Find(&jobs).Error; err != nil {
			respondError(w, d.Log, err)
			return
		}
		respondJSON(w, jobs)
	}
}

func CreateJobPosting(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := auth.AccountFromContext(r.Context())
		var req struct {
			Title       string `json:"title"`
			Department  string `json:"department"`
			Location    string `json:"location"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "title required"})
			return
		}
		job := models.JobPosting{
			Title: req.Title, Department: req.Department, Location: req.Location,
			Description: req.Description, IsOpen: true,
			CreatedBy: actor.Username, UpdatedBy: actor.Username,
		}
		if err := d.DB.WithContext(r.Context()).Create(&job).Error; err != nil {
			respondError(w, d.Log, err)
			return
		}
		respondStatus(w, http.StatusCreated, job)
	}
}

func UpdateJobPosting(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := auth.AccountFromContext(r.Context())
		id := chi.URLParam(r, "id")
		var req struct {
			Title       *string `json:"title"`
			Department  *string `json:"department"`
			Location    *string `json:"location"`
			Description *string `json:"description"`
			IsOpen      *bool   `json:"is_open"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		var job models.JobPosting
		if err := d.DB.WithContext(r.Context()).First(&job, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				respondStatus(w, http.StatusNotFound, map[string]string{"error": "not found"})
				return
			}
			respondError(w, d.Log, err)
			return
		}
		if req.Title != nil {
			job.Title = *req.Title
		}
		if req.Department != nil {
			job.Department = *req.Department
		}
		if req.Location != nil {
			job.Location = *req.Location
		}
		if req.Description != nil {
			job.Description = *req.Description
		}
		if req.IsOpen != nil {
			job.IsOpen = *req.IsOpen
		}
		job.UpdatedBy = actor.Username
		if err := d.DB.WithContext(r.Context()).Save(&job).Error; err != nil {
			respondError(w, d.Log, err)
			return
		}
		respondJSON(w, job)
	}
}

func DeleteJobPosting(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := d.DB.WithContext(r.Context()).Delete(&models.JobPosting{}, "id = ?", id).Error; err != nil {
			respondError(w, d.Log, err)
			return
		}
		respondJSON(w, map[string]any{"deleted": true})
	}
}

func ListHospitals(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var hospitals []models.Hospital
		if err := d.DB.WithContext(r.Context()).Order("name asc").Find(&hospitals).Error; err != nil {
			respondError(w, d.Log, err)
			return
		}
		respondJSON(w, hospitals)
	}
}

func UpsertHospital(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.Hospital
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "name required"})
			return
		}
		if err := d.DB.WithContext(r.Context()).Save(&req).Error; err != nil {
			respondError(w, d.Log, err)
			return
		}
		respondJSON(w, req)
	}
}

// SubmitInquiry is the one unauthenticated write endpoint; everything else
// about inquiries is gated.
func SubmitInquiry(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name    string `json:"name"`
			Email   string `json:"email"`
			Subject string `json:"subject"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Message) == "" {
			respondStatus(w, http.StatusBadRequest, map[string]string{"error": "name, email and message required"})
			return
		}
		inq := models.ContactInquiry{
			Name: req.Name, Email: strings.ToLower(strings.TrimSpace(req.Email)),
			Subject: req.Subject, Message: req.Message,
		}
		if err := d.DB.WithContext(r.Context()).Create(&inq).Error; err != nil {
			respondError(w, d.Log, err)
			return
		}
		respondStatus(w, http.StatusCreated, map[string]any{"id": inq.ID})
	}
}

func ListInquiries(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var inquiries []models.ContactInquiry
		q := d.DB.WithContext(r.Context()).Order("created_at desc")
		if r.URL.Query().Get("unhandled") == "1" {
			q = q.Where("handled = ?", false)
		}
		if err := q.Find(&inquiries).Error; err != nil {
			respondError(w, d.Log, err)
			return
		}
		respondJSON(w, inquiries)
	}
}

func MarkInquiryHandled(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		res := d.DB.WithContext(r.Context()).Model(&models.ContactInquiry{}).
			Where("id = ?", id).Update("handled", true)
		if res.Error != nil {
			respondError(w, d.Log, res.Error)
			return
		}
		if res.RowsAffected == 0 {
			respondStatus(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		respondJSON(w, map[string]any{"handled": true})
	}
}
