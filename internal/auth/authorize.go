package auth

import (
	"context"

	"gorm.io/gorm"

	"careportal/internal/audit"
	"careportal/internal/models"
)

// RoleScope is the resolved authority of a role: either the wildcard (every
// resource:action pair) or an explicit grant set. Modeling the super-admin
// bypass as a variant here keeps string comparisons out of the authorization
// path.
type RoleScope struct {
	Wildcard bool
	Grants   map[string]struct{}
}

func grantKey(resource, action string) string {
	return resource + ":" + action
}

// Allows reports whether the scope covers (resource, action).
func (s RoleScope) Allows(resource, action string) bool {
	if s.Wildcard {
		return true
	}
	_, ok := s.Grants[grantKey(resource, action)]
	return ok
}

// Engine evaluates coarse role checks and fine-grained permission checks.
// The two are independent; the rest of the system mixes both styles.
type Engine struct {
	db    *gorm.DB
	audit *audit.Recorder
}

func NewEngine(db *gorm.DB, rec *audit.Recorder) *Engine {
	return &Engine{db: db, audit: rec}
}

// ScopeFor resolves the RoleScope for a role from the grant table.
func (e *Engine) ScopeFor(ctx context.Context, role string) (RoleScope, error) {
	if role == models.RoleSuperAdmin {
		return RoleScope{Wildcard: true}, nil
	}
	var grants []models.PermissionGrant
	if err := e.db.WithContext(ctx).Where("role = ?", role).Find(&grants).Error; err != nil {
		return RoleScope{}, err
	}
	set := make(map[string]struct{}, len(grants))
	for _, g := range grants {
		set[grantKey(g.Resource, g.Action)] = struct{}{}
	}
	return RoleScope{Grants: set}, nil
}

// RequireAnyRole passes when the account's role is in the allowed set.
func (e *Engine) RequireAnyRole(ctx context.Context, acct *models.Account, allowed []string, endpoint string, meta RequestMeta) error {
	for _, r := range allowed {
		if acct.Role == r {
			return nil
		}
	}
	e.audit.Record(ctx, audit.Event{
		Actor: acct.Username, Action: "authz.role_denied", Outcome: "denied",
		IP: meta.IP, UserAgent: meta.UserAgent,
		Meta: map[string]any{"required_roles": allowed, "actual_role": acct.Role, "endpoint": endpoint},
	})
	return ErrPermissionDenied
}

// RequirePermission passes when the account's role scope covers the pair.
func (e *Engine) RequirePermission(ctx context.Context, acct *models.Account, resource, action, endpoint string, meta RequestMeta) error {
	scope, err := e.ScopeFor(ctx, acct.Role)
	if err != nil {
		return err
	}
	if scope.Allows(resource, action) {
		return nil
	}
	e.audit.Record(ctx, audit.Event{
		Actor: acct.Username, Action: "authz.permission_denied", Outcome: "denied",
		IP: meta.IP, UserAgent: meta.UserAgent,
		Meta: map[string]any{"missing_grant": grantKey(resource, action), "role": acct.Role, "endpoint": endpoint},
	})
	return ErrPermissionDenied
}
