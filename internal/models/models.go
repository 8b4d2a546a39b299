package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role names are a closed set; accounts carry exactly one.
const (
	RoleSuperAdmin      = "super_admin"
	RoleOfficeExecutive = "office_executive"
	RoleHRManager       = "hr_manager"
)

func ValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleOfficeExecutive, RoleHRManager:
		return true
	}
	return false
}

type Account struct {
	ID           string `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	DisplayName  string `json:"display_name"`
	Role         string `gorm:"not null" json:"role"`
	IsActive     bool   `gorm:"not null;default:true" json:"is_active"`

	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	FailedLogins int        `gorm:"not null;default:0" json:"-"`
	LockedUntil  *time.Time `json:"-"`

	ResetTokenHash      *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Locked reports whether the account is inside an active lockout window.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// PermissionGrant allows a role to perform action on resource.
type PermissionGrant struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Role     string `gorm:"uniqueIndex:idx_role_resource_action;not null" json:"role"`
	Resource string `gorm:"uniqueIndex:idx_role_resource_action;not null" json:"resource"`
	Action   string `gorm:"uniqueIndex:idx_role_resource_action;not null" json:"action"`
}

// Session is the server-side record behind an encrypted browser cookie.
// Logout soft-deletes (IsActive=false, LoggedOutAt set); the sweep hard-deletes
// records past expiry plus a grace window.
type Session struct {
	ID             string     `gorm:"primaryKey;size:64" json:"id"`
	AccountID      *string    `gorm:"type:uuid;index" json:"account_id,omitempty"`
	Payload        JSONB      `gorm:"type:jsonb;default:'{}'" json:"-"`
	ExpiresAt      time.Time  `gorm:"not null;index" json:"expires_at"`
	IP             string     `json:"ip"`
	UserAgent      string     `json:"user_agent"`
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`
	LastActivityAt time.Time  `gorm:"not null" json:"last_activity_at"`
	LoggedInAt     *time.Time `json:"logged_in_at,omitempty"`
	LoggedOutAt    *time.Time `json:"logged_out_at,omitempty"`
	DeviceID       *string    `json:"device_id,omitempty"`
	RiskScore      int        `gorm:"not null;default:0" json:"risk_score"`
	HIPAASensitive bool       `gorm:"not null;default:false" json:"hipaa_sensitive"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type AuditLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Actor     string    `gorm:"index" json:"actor"`
	Action    string    `gorm:"not null" json:"action"`
	Outcome   string    `gorm:"not null" json:"outcome"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Metadata  JSONB     `gorm:"type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// JobPosting backs the careers pages.
type JobPosting struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Department  string    `json:"department"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	IsOpen      bool      `gorm:"not null;default:true" json:"is_open"`
	CreatedBy   string    `json:"created_by"`
	UpdatedBy   string    `json:"updated_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (j *JobPosting) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

type Hospital struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Phone     string    `json:"phone"`
	IsPartner bool      `gorm:"not null;default:false" json:"is_partner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *Hospital) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

type ContactInquiry struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"not null" json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `gorm:"not null" json:"message"`
	Handled   bool      `gorm:"not null;default:false" json:"handled"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *ContactInquiry) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
