package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"careportal/internal/audit"
	"careportal/internal/auth"
	"careportal/internal/config"
	"careportal/internal/httpserver"
	"careportal/internal/httpserver/handlers"
	"careportal/internal/logger"
	"careportal/internal/models"
	"careportal/internal/ratelimit"
	"careportal/internal/session"
)

// Routes under these prefixes get the strict 30-minute idle rule on top of
// the general session window.
var sensitivePrefixes = []string{"/admin", "/auth/change-password"}

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()

	cfg, err := config.Load()
	if err != nil {
		lg.Fatalw("config", "error", err)
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(
		&models.Account{}, &models.PermissionGrant{}, &models.Session{}, &models.AuditLog{},
		&models.JobPosting{}, &models.Hospital{}, &models.ContactInquiry{},
	); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}

	rec := audit.NewRecorder(db, lg)
	creds := auth.NewCredentialStore(db, rec, cfg.BcryptCost, cfg.LockoutThreshold, cfg.LockoutDuration)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	engine := auth.NewEngine(db, rec)
	authmw := auth.NewMiddleware(tokens, creds, engine, rec)

	codec, err := session.NewCodec(cfg.SessionEncKey)
	if err != nil {
		lg.Fatalw("session codec", "error", err)
	}
	sessions := session.NewManager(db, rec, lg, cfg.SessionTTL, cfg.IdleTimeout, cfg.SweepGrace)
	cookieRL := ratelimit.New(30, 10, 5*time.Minute)
	cookies := session.NewMiddleware(sessions, codec, rec, cookieRL, sensitivePrefixes)

	seedGrants(db, lg)
	seedSuperAdmin(db, creds, lg)

	stop := make(chan struct{})
	go sessions.RunSweeper(cfg.SweepInterval, stop)

	d := handlers.Deps{
		DB: db, Log: lg,
		Creds: creds, Tokens: tokens,
		Sessions: sessions, Cookies: cookies, Audit: rec,
		LoginRL: ratelimit.New(cfg.LoginRatePerMinute, cfg.LoginRateBurst, 10*time.Minute),
	}
	router := httpserver.NewRouter(d, authmw, cookies)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		close(stop)
		os.Exit(0)
	}()

	lg.Infow("listening", "port", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		lg.Fatalw("server stopped", "error", err)
	}
}

func seedGrants(db *gorm.DB, lg *zap.SugaredLogger) {
	grants := []models.PermissionGrant{
		{Role: models.RoleHRManager, Resource: "careers", Action: "create"},
		{Role: models.RoleHRManager, Resource: "careers", Action: "update"},
		{Role: models.RoleHRManager, Resource: "careers", Action: "delete"},
		{Role: models.RoleOfficeExecutive, Resource: "hospitals", Action: "update"},
		{Role: models.RoleOfficeExecutive, Resource: "inquiries", Action: "read"},
		{Role: models.RoleOfficeExecutive, Resource: "inquiries", Action: "update"},
		{Role: models.RoleHRManager, Resource: "inquiries", Action: "read"},
	}
	for _, g := range grants {
		if err := db.Where(models.PermissionGrant{Role: g.Role, Resource: g.Resource, Action: g.Action}).
			FirstOrCreate(&g).Error; err != nil {
			lg.Warnw("seed grant failed", "role", g.Role, "resource", g.Resource, "action", g.Action, "error", err)
		}
	}
}

func seedSuperAdmin(db *gorm.DB, creds *auth.CredentialStore, lg *zap.SugaredLogger) {
	var count int64
	db.Model(&models.Account{}).Where("role = ?", models.RoleSuperAdmin).Count(&count)
	if count > 0 {
		return
	}
	pw := os.Getenv("SEED_ADMIN_PASSWORD")
	if pw == "" {
		lg.Warnw("no super admin exists and SEED_ADMIN_PASSWORD is unset; skipping seed")
		return
	}
	_, err := creds.CreateAccount(context.Background(), auth.NewAccount{
		Username:    "admin",
		Email:       "admin@careportal.local",
		Password:    pw,
		DisplayName: "Administrator",
		Role:        models.RoleSuperAdmin,
		CreatedBy:   "seed",
	})
	if err != nil {
		lg.Warnw("seed super admin failed", "error", err)
		return
	}
	lg.Infow("seeded super admin", "username", "admin")
}
