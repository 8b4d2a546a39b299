package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"careportal/internal/audit"
	"careportal/internal/models"
	"careportal/internal/testdb"
)

func newTestManager(t *testing.T) (*Manager, *gorm.DB) {
	t.Helper()
	db := testdb.Open(t)
	rec := audit.NewRecorder(db, zap.NewNop().Sugar())
	m := NewManager(db, rec, zap.NewNop().Sugar(), 8*time.Hour, 30*time.Minute, 24*time.Hour)
	return m, db
}

func TestCreateAndGetSession(t *testing.T) {
	m, _ := newTestManager(t)
	accountID := "acct-1"
	sess, err := m.Create(context.Background(), &accountID, "203.0.113.7", normalUA, true)
	require.NoError(t, err)
	assert.Len(t, sess.ID, 64)
	assert.True(t, sess.IsActive)
	assert.True(t, sess.HIPAASensitive)
	assert.Equal(t, 0, sess.RiskScore)

	got, err := m.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}

func TestCreateAnonymousSession(t *testing.T) {
	m, _ := newTestManager(t)
	sess, err := m.Create(context.Background(), nil, "203.0.113.7", normalUA, false)
	require.NoError(t, err)
	assert.Nil(t, sess.AccountID)
}

func TestGetRejectsExpiredOrInactive(t *testing.T) {
	m, db := newTestManager(t)
	sess, err := m.Create(context.Background(), nil, "203.0.113.7", normalUA, false)
	require.NoError(t, err)

	_, err = m.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, db.Model(&models.Session{}).Where("id = ?", sess.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)
	_, err = m.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrNoSession)

	sess2, err := m.Create(context.Background(), nil, "203.0.113.7", normalUA, false)
	require.NoError(t, err)
	require.NoError(t, m.Destroy(context.Background(), sess2.ID))
	_, err = m.Get(context.Background(), sess2.ID)
	assert.ErrorIs(t, err, ErrNoSession)
}

// A 31-minute gap trips the strict idle rule while the session itself is
// still inside the general 8-hour window.
func TestIdleExpiredInsideGeneralWindow(t *testing.T) {
	m, db := newTestManager(t)
	sess, err := m.Create(context.Background(), nil, "203.0.113.7", normalUA, true)
	require.NoError(t, err)

	stale := time.Now().Add(-31 * time.Minute)
	require.NoError(t, db.Model(&models.Session{}).Where("id = ?", sess.ID).
		Update("last_activity_at", stale).Error)

	got, err := m.Get(context.Background(), sess.ID)
	require.NoError(t, err, "still valid for non-sensitive use")
	assert.True(t, m.IdleExpired(got, time.Now()))

	fresh := time.Now().Add(-29 * time.Minute)
	require.NoError(t, db.Model(&models.Session{}).Where("id = ?", sess.ID).
		Update("last_activity_at", fresh).Error)
	got, err = m.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.False(t, m.IdleExpired(got, time.Now()))
}

func TestTouchUpdatesActivityAndRisk(t *testing.T) {
	m, _ := newTestManager(t)
	sess, err := m.Create(context.Background(), nil, "203.0.113.7", normalUA, false)
	require.NoError(t, err)

	before := sess.LastActivityAt
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, m.Touch(context.Background(), sess, "10.0.0.5", "curl/8.0"))
	assert.True(t, sess.LastActivityAt.After(before))
	assert.Equal(t, riskPrivateIP+riskBotAgent+riskOddAgent, sess.RiskScore)
}

func TestDestroyIsSoftDelete(t *testing.T) {
	m, db := newTestManager(t)
	accountID := "acct-9"
	sess, err := m.Create(context.Background(), &accountID, "203.0.113.7", normalUA, true)
	require.NoError(t, err)

	require.NoError(t, m.Destroy(context.Background(), sess.ID))

	// The row is retained for audit.
	var row models.Session
	require.NoError(t, db.First(&row, "id = ?", sess.ID).Error)
	assert.False(t, row.IsActive)
	assert.NotNil(t, row.LoggedOutAt)
}

func TestDestroyForAccount(t *testing.T) {
	m, db := newTestManager(t)
	accountID := "acct-2"
	for i := 0; i < 3; i++ {
		_, err := m.Create(context.Background(), &accountID, "203.0.113.7", normalUA, true)
		require.NoError(t, err)
	}
	require.NoError(t, m.DestroyForAccount(context.Background(), accountID))

	var active int64
	require.NoError(t, db.Model(&models.Session{}).
		Where("account_id = ? AND is_active = ?", accountID, true).Count(&active).Error)
	assert.Zero(t, active)
}

func TestSweepExpiredHonorsGrace(t *testing.T) {
	m, db := newTestManager(t)
	fresh, err := m.Create(context.Background(), nil, "203.0.113.7", normalUA, false)
	require.NoError(t, err)
	recent, err := m.Create(context.Background(), nil, "203.0.113.7", normalUA, false)
	require.NoError(t, err)
	old, err := m.Create(context.Background(), nil, "203.0.113.7", normalUA, false)
	require.NoError(t, err)

	// recent expired an hour ago: inside the grace window, kept.
	require.NoError(t, db.Model(&models.Session{}).Where("id = ?", recent.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)
	// old expired two days ago: past expiry plus grace, purged.
	require.NoError(t, db.Model(&models.Session{}).Where("id = ?", old.ID).
		Update("expires_at", time.Now().Add(-48*time.Hour)).Error)

	n, err := m.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var remaining int64
	require.NoError(t, db.Model(&models.Session{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)
	_, err = m.Get(context.Background(), fresh.ID)
	assert.NoError(t, err)
}

func TestHighRiskSessions(t *testing.T) {
	m, db := newTestManager(t)
	accountID := "acct-3"
	// Private IP + bot UA + odd length + stale age lands above the cutoff.
	risky, err := m.Create(context.Background(), &accountID, "192.168.0.9", "curl/8.0", true)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Session{}).Where("id = ?", risky.ID).
		Update("risk_score", 70).Error)
	_, err = m.Create(context.Background(), &accountID, "203.0.113.7", normalUA, true)
	require.NoError(t, err)

	list, err := m.HighRiskSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, risky.ID, list[0].ID)

	// Destroyed sessions drop out of the listing.
	require.NoError(t, m.Destroy(context.Background(), risky.ID))
	list, err = m.HighRiskSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
