package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"careportal/internal/auth"
	"careportal/internal/httpserver/handlers"
	"careportal/internal/models"
	"careportal/internal/session"
)

// NewRouter wires the full HTTP surface. The session cookie middleware runs
// on everything (fail closed, anonymous pass-through); bearer auth and the
// role/permission gates apply per subtree.
func NewRouter(d handlers.Deps, authmw *auth.Middleware, cookies *session.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)
	r.Use(cookies.Handler)

	r.Post("/auth/login", handlers.Login(d))
	r.Post("/auth/request-password-reset", handlers.RequestPasswordReset(d))
	r.Post("/auth/reset-password", handlers.ResetPassword(d))

	r.Get("/careers", handlers.ListJobPostings(d))
	r.Get("/hospitals", handlers.ListHospitals(d))
	r.Post("/contact", handlers.SubmitInquiry(d))

	r.Group(func(protected chi.Router) {
		protected.Use(authmw.RequireToken)
		protected.Post("/auth/logout", handlers.Logout(d))
		protected.Get("/auth/profile", handlers.Profile(d))
		protected.Get("/auth/verify-token", handlers.VerifyToken(d))
		protected.Post("/auth/change-password", handlers.ChangePassword(d))

		protected.With(authmw.RequirePermission("careers", "create")).Post("/careers", handlers.CreateJobPosting(d))
		protected.With(authmw.RequirePermission("careers", "update")).Patch("/careers/{id}", handlers.UpdateJobPosting(d))
		protected.With(authmw.RequirePermission("careers", "delete")).Delete("/careers/{id}", handlers.DeleteJobPosting(d))
		protected.With(authmw.RequirePermission("hospitals", "update")).Post("/hospitals", handlers.UpsertHospital(d))
		protected.With(authmw.RequirePermission("inquiries", "read")).Get("/inquiries", handlers.ListInquiries(d))
		protected.With(authmw.RequirePermission("inquiries", "update")).Patch("/inquiries/{id}/handled", handlers.MarkInquiryHandled(d))

		protected.Group(func(admin chi.Router) {
			admin.Use(authmw.RequireAnyRole(models.RoleSuperAdmin))
			admin.Get("/admin/accounts", handlers.ListAccounts(d))
			admin.Post("/admin/accounts", handlers.CreateAccount(d))
			admin.Patch("/admin/accounts/{id}", handlers.UpdateAccount(d))
			admin.Delete("/admin/accounts/{id}", handlers.DeactivateAccount(d))
			admin.Get("/admin/audit-logs", handlers.ListAuditLogs(d))
			admin.Get("/admin/sessions/high-risk", handlers.HighRiskSessions(d))
			admin.Delete("/admin/sessions/{id}", handlers.TerminateSession(d))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
