package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"careportal/internal/audit"
	"careportal/internal/models"
	"careportal/internal/ratelimit"
)

func newTestCookieStack(t *testing.T) (*Middleware, *Manager, *gorm.DB) {
	t.Helper()
	m, db := newTestManager(t)
	codec, err := NewCodec(testEncKey)
	require.NoError(t, err)
	rec := audit.NewRecorder(db, zap.NewNop().Sugar())
	mw := NewMiddleware(m, codec, rec, ratelimit.Unlimited{}, []string{"/admin"})
	return mw, m, db
}

func echoSession(seen **models.Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareAttachesValidSession(t *testing.T) {
	mw, m, _ := newTestCookieStack(t)
	sess, err := m.Create(context.Background(), nil, "203.0.113.7", normalUA, false)
	require.NoError(t, err)

	issue := httptest.NewRecorder()
	require.NoError(t, mw.IssueCookie(issue, sess))
	cookie := issue.Result().Cookies()[0]

	var seen *models.Session
	req := httptest.NewRequest(http.MethodGet, "/careers", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	mw.Handler(echoSession(&seen)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, seen)
	assert.Equal(t, sess.ID, seen.ID)
}

func TestMiddlewareNoCookiePassesAnonymous(t *testing.T) {
	mw, _, _ := newTestCookieStack(t)
	var seen *models.Session
	req := httptest.NewRequest(http.MethodGet, "/careers", nil)
	rr := httptest.NewRecorder()
	mw.Handler(echoSession(&seen)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, seen)
}

// A cookie that fails to decrypt reads as "no session"; the request is never
// aborted with a 500.
func TestMiddlewareTamperedCookieFailsClosed(t *testing.T) {
	mw, _, _ := newTestCookieStack(t)
	var seen *models.Session
	req := httptest.NewRequest(http.MethodGet, "/careers", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "AAAAtampered-ciphertextAAAA"})
	rr := httptest.NewRecorder()
	mw.Handler(echoSession(&seen)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, seen)
}

func TestMiddlewareSensitiveIdleTimeout(t *testing.T) {
	mw, m, db := newTestCookieStack(t)
	accountID := "acct-5"
	sess, err := m.Create(context.Background(), &accountID, "203.0.113.7", normalUA, true)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Session{}).Where("id = ?", sess.ID).
		Update("last_activity_at", time.Now().Add(-31*time.Minute)).Error)

	issue := httptest.NewRecorder()
	require.NoError(t, mw.IssueCookie(issue, sess))
	cookie := issue.Result().Cookies()[0]

	// The same stale session is fine on a non-sensitive route...
	var seen *models.Session
	req := httptest.NewRequest(http.MethodGet, "/careers", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	mw.Handler(echoSession(&seen)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, seen)

	// ...but rewind activity and hit a sensitive prefix: destroyed, 401.
	require.NoError(t, db.Model(&models.Session{}).Where("id = ?", sess.ID).
		Update("last_activity_at", time.Now().Add(-31*time.Minute)).Error)
	req = httptest.NewRequest(http.MethodGet, "/admin/accounts", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	mw.Handler(echoSession(&seen)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	_, err = m.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestMiddlewareRateLimitsUndecryptableCookies(t *testing.T) {
	m, db := newTestManager(t)
	codec, err := NewCodec(testEncKey)
	require.NoError(t, err)
	rec := audit.NewRecorder(db, zap.NewNop().Sugar())
	mw := NewMiddleware(m, codec, rec, ratelimit.New(1, 2, time.Minute), nil)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	var last int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/careers", nil)
		req.RemoteAddr = "198.51.100.4:1234"
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "junkjunkjunkjunkjunk"})
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		last = rr.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
