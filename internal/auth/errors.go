package auth

import "errors"

var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the identifier resolved to no account. Callers
	// must surface it as a generic authentication failure.
	ErrNotFound = errors.New("account not found")
	// ErrInvalidCredentials indicates a failed password comparison.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the account is inside a lockout window.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive indicates the account has been deactivated.
	ErrAccountInactive = errors.New("account deactivated")
	// ErrTokenMalformed indicates the token is not structurally a JWT.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired indicates the token's expiry claim has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenSignature indicates the token signature did not verify.
	ErrTokenSignature = errors.New("token signature invalid")
	// ErrPermissionDenied indicates the subject's role lacks the grant.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrConflict indicates a duplicate username or email.
	ErrConflict = errors.New("identity already exists")
)
