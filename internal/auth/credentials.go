package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"careportal/internal/audit"
	"careportal/internal/models"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9]{3,50}$`)
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// RequestMeta carries the request context every audit event is tagged with.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// CredentialStore owns account records: creation, password verification, and
// lockout bookkeeping. Every mutation is persisted immediately so lockout
// state is visible to the very next request.
type CredentialStore struct {
	db    *gorm.DB
	audit *audit.Recorder

	bcryptCost       int
	lockoutThreshold int
	lockoutDuration  time.Duration
	resetTokenTTL    time.Duration
}

func NewCredentialStore(db *gorm.DB, rec *audit.Recorder, bcryptCost, lockoutThreshold int, lockoutDuration time.Duration) *CredentialStore {
	if lockoutThreshold <= 0 {
		lockoutThreshold = 5
	}
	if lockoutDuration <= 0 {
		lockoutDuration = 30 * time.Minute
	}
	return &CredentialStore{
		db:               db,
		audit:            rec,
		bcryptCost:       bcryptCost,
		lockoutThreshold: lockoutThreshold,
		lockoutDuration:  lockoutDuration,
		resetTokenTTL:    time.Hour,
	}
}

// NewAccount is the input for administrative account creation.
type NewAccount struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	Role        string
	CreatedBy   string
}

func (s *CredentialStore) CreateAccount(ctx context.Context, in NewAccount) (*models.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if !usernameRe.MatchString(in.Username) {
		return nil, fmt.Errorf("%w: username must be 3-50 alphanumeric characters", ErrValidation)
	}
	if !emailRe.MatchString(in.Email) {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if !models.ValidRole(in.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}
	if err := CheckPasswordStrength(in.Password); err != nil {
		return nil, err
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("username = ? OR email = ?", in.Username, in.Email).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrConflict
	}

	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	acct := models.Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
		Role:         in.Role,
		IsActive:     true,
		CreatedBy:    in.CreatedBy,
		UpdatedBy:    in.CreatedBy,
	}
	if err := s.db.WithContext(ctx).Create(&acct).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}

// FindByIdentifier resolves an account by username or email.
func (s *CredentialStore) FindByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	identifier = strings.TrimSpace(identifier)
	var acct models.Account
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).
		First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *CredentialStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	var acct models.Account
	err := s.db.WithContext(ctx).First(&acct, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// VerifyPassword reports whether plaintext matches the account's stored hash.
func (s *CredentialStore) VerifyPassword(acct *models.Account, plaintext string) bool {
	return CheckPassword(acct.PasswordHash, plaintext)
}

// RecordFailedAttempt bumps the failed-login counter with an atomic SQL
// increment (concurrent attempts may not be serialized above the store) and,
// on reaching the threshold, sets the lockout window and audits it.
func (s *CredentialStore) RecordFailedAttempt(ctx context.Context, acct *models.Account, meta RequestMeta) error {
	err := s.db.WithContext(ctx).Model(acct).
		UpdateColumn("failed_logins", gorm.Expr("failed_logins + 1")).Error
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).First(acct, "id = ?", acct.ID).Error; err != nil {
		return err
	}
	if acct.FailedLogins >= s.lockoutThreshold && !acct.Locked(time.Now()) {
		until := time.Now().Add(s.lockoutDuration)
		if err := s.db.WithContext(ctx).Model(acct).Update("locked_until", until).Error; err != nil {
			return err
		}
		acct.LockedUntil = &until
		s.audit.Record(ctx, audit.Event{
			Actor: acct.Username, Action: "auth.lockout", Outcome: "locked",
			IP: meta.IP, UserAgent: meta.UserAgent,
			Meta: map[string]any{"failed_logins": acct.FailedLogins, "locked_until": until},
		})
	}
	return nil
}

// RecordSuccess resets the counter, clears any lock, and stamps last-login.
func (s *CredentialStore) RecordSuccess(ctx context.Context, acct *models.Account) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(acct).Updates(map[string]any{
		"failed_logins": 0,
		"locked_until":  nil,
		"last_login_at": now,
	}).Error
	if err != nil {
		return err
	}
	acct.FailedLogins = 0
	acct.LockedUntil = nil
	acct.LastLoginAt = &now
	return nil
}

// LockRemainingMinutes returns the whole minutes left in the lock window,
// rounded up, so the client can display a positive countdown.
func LockRemainingMinutes(acct *models.Account, now time.Time) int {
	if acct.LockedUntil == nil {
		return 0
	}
	rem := acct.LockedUntil.Sub(now)
	if rem <= 0 {
		return 0
	}
	return int(math.Ceil(rem.Seconds() / 60))
}

// Authenticate runs the login state machine for one attempt. The error tells
// the boundary which generic response to send; the audit sink always gets the
// true reason. Note the ordering: a locked account short-circuits before any
// password work, and the attempt that crosses the lockout threshold still
// reports a generic failure (the lock is only announced on the next attempt).
func (s *CredentialStore) Authenticate(ctx context.Context, identifier, password string, meta RequestMeta) (*models.Account, error) {
	acct, err := s.FindByIdentifier(ctx, identifier)
	if errors.Is(err, ErrNotFound) {
		s.auditLogin(ctx, identifier, "rejected", "not-found", meta)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if acct.Locked(time.Now()) {
		s.auditLogin(ctx, acct.Username, "locked", "lock-window", meta)
		return acct, ErrAccountLocked
	}

	if !acct.IsActive {
		s.auditLogin(ctx, acct.Username, "rejected", "deactivated", meta)
		return nil, ErrInvalidCredentials
	}

	if !s.VerifyPassword(acct, password) {
		if err := s.RecordFailedAttempt(ctx, acct, meta); err != nil {
			return nil, err
		}
		s.auditLogin(ctx, acct.Username, "rejected", "bad-password", meta)
		return nil, ErrInvalidCredentials
	}

	if err := s.RecordSuccess(ctx, acct); err != nil {
		return nil, err
	}
	s.auditLogin(ctx, acct.Username, "success", "", meta)
	return acct, nil
}

func (s *CredentialStore) auditLogin(ctx context.Context, actor, outcome, reason string, meta RequestMeta) {
	md := map[string]any{}
	if reason != "" {
		md["reason"] = reason
	}
	s.audit.Record(ctx, audit.Event{
		Actor: actor, Action: "auth.login", Outcome: outcome,
		IP: meta.IP, UserAgent: meta.UserAgent, Meta: md,
	})
}

// ChangePassword verifies the current password before applying the new one.
func (s *CredentialStore) ChangePassword(ctx context.Context, acct *models.Account, current, next string) error {
	if !s.VerifyPassword(acct, current) {
		return fmt.Errorf("%w: current password incorrect", ErrValidation)
	}
	if err := CheckPasswordStrength(next); err != nil {
		return err
	}
	hash, err := HashPassword(next, s.bcryptCost)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Model(acct).Updates(map[string]any{
		"password_hash": hash,
		"updated_by":    acct.Username,
	}).Error
	if err != nil {
		return err
	}
	acct.PasswordHash = hash
	return nil
}

// IssueResetToken generates a reset token for the account behind email and
// stores only its SHA-256 hash. An unknown email returns ("", nil) so the
// endpoint can answer 200 either way.
func (s *CredentialStore) IssueResetToken(ctx context.Context, email string, meta RequestMeta) (string, error) {
	var acct models.Account
	err := s.db.WithContext(ctx).First(&acct, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)
	hash := hashResetToken(token)
	expires := time.Now().Add(s.resetTokenTTL)
	err = s.db.WithContext(ctx).Model(&acct).Updates(map[string]any{
		"reset_token_hash":       hash,
		"reset_token_expires_at": expires,
	}).Error
	if err != nil {
		return "", err
	}
	s.audit.Record(ctx, audit.Event{
		Actor: acct.Username, Action: "auth.reset_token_issued", Outcome: "success",
		IP: meta.IP, UserAgent: meta.UserAgent,
		Meta: map[string]any{"expires_at": expires},
	})
	return token, nil
}

// ResetPassword consumes a reset token. The stored hash is cleared in the
// same update that writes the new password, so a token can never be replayed.
func (s *CredentialStore) ResetPassword(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	if err := CheckPasswordStrength(newPassword); err != nil {
		return err
	}
	hash := hashResetToken(token)
	var acct models.Account
	err := s.db.WithContext(ctx).
		Where("reset_token_hash = ? AND reset_token_expires_at > ?", hash, time.Now()).
		First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: invalid or expired reset token", ErrValidation)
	}
	if err != nil {
		return err
	}
	pwHash, err := HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Model(&acct).Updates(map[string]any{
		"password_hash":          pwHash,
		"reset_token_hash":       nil,
		"reset_token_expires_at": nil,
		"failed_logins":          0,
		"locked_until":           nil,
	}).Error
	if err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Event{
		Actor: acct.Username, Action: "auth.password_reset", Outcome: "success",
		IP: meta.IP, UserAgent: meta.UserAgent, Meta: map[string]any{},
	})
	return nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CheckPasswordStrength enforces the minimum password policy.
func CheckPasswordStrength(pw string) error {
	if len(pw) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	var hasLetter, hasDigit bool
	for _, r := range pw {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: password must contain letters and digits", ErrValidation)
	}
	return nil
}
