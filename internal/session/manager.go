package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"careportal/internal/audit"
	"careportal/internal/models"
)

// ErrNoSession is returned whenever a session cannot be used, for any reason.
// Callers treat it as "not authenticated", never as an internal failure.
var ErrNoSession = errors.New("no valid session")

// Manager owns the server-side session records and their lifecycle: creation
// at login, activity tracking, idle enforcement, soft-delete on logout, and
// the expiry sweep.
type Manager struct {
	db    *gorm.DB
	audit *audit.Recorder
	lg    *zap.SugaredLogger

	ttl         time.Duration
	idleTimeout time.Duration
	sweepGrace  time.Duration
}

func NewManager(db *gorm.DB, rec *audit.Recorder, lg *zap.SugaredLogger, ttl, idleTimeout, sweepGrace time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	if sweepGrace < 0 {
		sweepGrace = 0
	}
	return &Manager{db: db, audit: rec, lg: lg, ttl: ttl, idleTimeout: idleTimeout, sweepGrace: sweepGrace}
}

func newSessionID() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// Create opens a session. accountID may be nil for a pre-login cookie. The
// initial risk score is computed from the request context; high-risk sessions
// are audited but not blocked.
func (m *Manager) Create(ctx context.Context, accountID *string, ip, userAgent string, sensitive bool) (*models.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sess := models.Session{
		ID:             id,
		AccountID:      accountID,
		Payload:        models.JSONB("{}"),
		ExpiresAt:      now.Add(m.ttl),
		IP:             ip,
		UserAgent:      userAgent,
		IsActive:       true,
		LastActivityAt: now,
		LoggedInAt:     &now,
		RiskScore:      RiskScore(ip, userAgent, 0),
		HIPAASensitive: sensitive,
	}
	if err := m.db.WithContext(ctx).Create(&sess).Error; err != nil {
		return nil, err
	}
	if HighRisk(sess.RiskScore) {
		actor := ""
		if accountID != nil {
			actor = *accountID
		}
		m.audit.Record(ctx, audit.Event{
			Actor: actor, Action: "session.high_risk", Outcome: "flagged",
			IP: ip, UserAgent: userAgent,
			Meta: map[string]any{"session_id": sess.ID, "risk_score": sess.RiskScore},
		})
	}
	return &sess, nil
}

// Get loads an active, unexpired session. Expiry is always checked against
// wall-clock time here, before any privileged use.
func (m *Manager) Get(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	var sess models.Session
	err := m.db.WithContext(ctx).First(&sess, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	if !sess.IsActive || time.Now().After(sess.ExpiresAt) {
		return nil, ErrNoSession
	}
	return &sess, nil
}

// IdleExpired reports whether the gap since last activity exceeds the strict
// idle window applied to sensitive routes.
func (m *Manager) IdleExpired(sess *models.Session, now time.Time) bool {
	return now.Sub(sess.LastActivityAt) > m.idleTimeout
}

// Touch records activity and refreshes the risk score. Last-writer-wins under
// concurrency is fine: this is telemetry, not an authorization decision.
func (m *Manager) Touch(ctx context.Context, sess *models.Session, ip, userAgent string) error {
	now := time.Now()
	age := time.Duration(0)
	if sess.LoggedInAt != nil {
		age = now.Sub(*sess.LoggedInAt)
	}
	score := RiskScore(ip, userAgent, age)
	err := m.db.WithContext(ctx).Model(sess).Updates(map[string]any{
		"last_activity_at": now,
		"risk_score":       score,
	}).Error
	if err != nil {
		return err
	}
	sess.LastActivityAt = now
	sess.RiskScore = score
	return nil
}

// Destroy soft-deletes the session: the row stays for audit, but it can
// never authenticate again.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	now := time.Now()
	return m.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "logged_out_at": now}).Error
}

// DestroyForAccount ends every active session owned by the account.
func (m *Manager) DestroyForAccount(ctx context.Context, accountID string) error {
	now := time.Now()
	return m.db.WithContext(ctx).Model(&models.Session{}).
		Where("account_id = ? AND is_active = ?", accountID, true).
		Updates(map[string]any{"is_active": false, "logged_out_at": now}).Error
}

// SweepExpired hard-deletes sessions past expiry plus the grace window.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-m.sweepGrace)
	res := m.db.WithContext(ctx).Where("expires_at < ?", cutoff).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

// HighRiskSessions enumerates currently active sessions flagged high risk.
func (m *Manager) HighRiskSessions(ctx context.Context) ([]models.Session, error) {
	var out []models.Session
	err := m.db.WithContext(ctx).
		Where("is_active = ? AND risk_score > ?", true, highRiskCutoff).
		Order("risk_score desc").Find(&out).Error
	return out, err
}

// RunSweeper runs SweepExpired on the given interval until stop is closed.
func (m *Manager) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := m.SweepExpired(context.Background())
			if err != nil {
				m.lg.Errorw("session sweep failed", "error", err)
			} else if n > 0 {
				m.lg.Infow("session sweep", "purged", n)
			}
		case <-stop:
			return
		}
	}
}
