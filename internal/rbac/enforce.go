package rbac

import (
	"strings"

	"aegis-backend/internal/apperror"
)

// Config is the injected, immutable decision configuration. The platform
// admin allow-list is loaded once at startup and never mutated.
type Config struct {
	PlatformAdminEmails []string
}

// IsPlatformAdmin reports whether the email is on the allow-list,
// case-insensitively.
func (c Config) IsPlatformAdmin(email string) bool {
	for _, e := range c.PlatformAdminEmails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

// Input names the operation being attempted and what it targets.
type Input struct {
	Action PolicyAction
	Scope  ResourceScope
}

// Enforce is the pure RBAC decision function. It returns nil on allow, a
// FORBIDDEN AppError on deny, and an INTERNAL AppError when the call itself
// is malformed (wrong scope kind for the action) — that last case is a
// caller bug, not a policy denial, and is logged as such upstream.
//
// Every PolicyAction constant has its own branch; an unknown value falls
// through to Internal so a new action cannot silently allow or deny.
func Enforce(cfg Config, caller *Caller, in Input) error {
	if caller == nil {
		return apperror.Unauthorized("Authentication required")
	}

	switch in.Action {
	case ActionAuditRead,
		ActionSessionForceLogout,
		ActionSecurityAlertRead,
		ActionSecurityAlertResolve:
		return requirePlatformAdmin(cfg, caller)

	case ActionWebhookRead:
		return tenantAdminOrPermission(cfg, caller, in.Scope, "webhook:read")
	case ActionWebhookWrite:
		return tenantAdminOrPermission(cfg, caller, in.Scope, "webhook:write")
	case ActionTenantServiceRead:
		return tenantAdminOrPermission(cfg, caller, in.Scope, "service:read")
	case ActionTenantServiceWrite:
		return tenantAdminOrPermission(cfg, caller, in.Scope, "service:write")

	case ActionAbacRead:
		return tenantAdminOrPermission(cfg, caller, in.Scope, "abac:read")
	case ActionAbacWrite:
		return tenantAdminOrPermission(cfg, caller, in.Scope, "abac:write")
	case ActionAbacPublish:
		return tenantAdminOrPermission(cfg, caller, in.Scope, "abac:publish")
	case ActionAbacSimulate:
		return tenantAdminOrPermission(cfg, caller, in.Scope, "abac:simulate")

	case ActionSystemConfigRead:
		return systemConfig(cfg, caller, in.Scope, false)
	case ActionSystemConfigWrite:
		return systemConfig(cfg, caller, in.Scope, true)
	}

	return apperror.Internal("unhandled policy action")
}

// requirePlatformAdmin gates platform-admin-only actions. Only an identity
// token on the allow-list passes; tenant-access and service-client callers
// are denied outright regardless of roles.
func requirePlatformAdmin(cfg Config, caller *Caller) error {
	if caller.Kind != CallerIdentity {
		return apperror.Forbidden("Platform admin access required")
	}
	if !cfg.IsPlatformAdmin(caller.Email) {
		return apperror.Forbidden("Platform admin access required")
	}
	return nil
}

// tenantAdminOrPermission gates tenant-scoped actions: platform admins with
// an identity token bypass; tenant-access callers need matching tenant scope
// and either the owner/admin role or one of the required permission codes.
// Cross-tenant access is always denied.
func tenantAdminOrPermission(cfg Config, caller *Caller, scope ResourceScope, perms ...string) error {
	if scope.Kind != ScopeTenant {
		return apperror.Internal("tenant-scoped action invoked with non-tenant scope")
	}

	switch caller.Kind {
	case CallerIdentity:
		if cfg.IsPlatformAdmin(caller.Email) {
			return nil
		}
		return apperror.Forbidden("Platform admin access required")

	case CallerTenantAccess:
		if caller.TenantID != scope.TenantID {
			return apperror.Forbidden("Cross-tenant access denied")
		}
		if caller.IsTenantAdmin() || caller.HasAnyPermission(perms...) {
			return nil
		}
		return apperror.Forbidden("Insufficient role or permission")

	case CallerServiceClient:
		return apperror.Forbidden("Service clients cannot perform this action")
	}

	return apperror.Internal("unhandled caller kind")
}

// systemConfig gates system-config read/write. Identity callers must be
// platform admins; tenant-access and service-client callers must match the
// tenant scope, and writes additionally require the owner or admin role.
func systemConfig(cfg Config, caller *Caller, scope ResourceScope, write bool) error {
	switch caller.Kind {
	case CallerIdentity:
		if cfg.IsPlatformAdmin(caller.Email) {
			return nil
		}
		return apperror.Forbidden("Platform admin access required")

	case CallerTenantAccess, CallerServiceClient:
		if scope.Kind != ScopeTenant {
			return apperror.Internal("tenant-scoped action invoked with non-tenant scope")
		}
		if caller.TenantID != scope.TenantID {
			return apperror.Forbidden("Cross-tenant access denied")
		}
		if write && !caller.IsTenantAdmin() {
			return apperror.Forbidden("Owner or admin role required")
		}
		return nil
	}

	return apperror.Internal("unhandled caller kind")
}
