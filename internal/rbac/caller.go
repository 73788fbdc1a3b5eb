package rbac

import "strings"

// CallerKind is the kind of token the caller presented. Token kind matters
// independently of identity: the same email as an identity token and as a
// tenant-access token gets different answers from Enforce.
type CallerKind int

const (
	CallerIdentity CallerKind = iota
	CallerTenantAccess
	CallerServiceClient
)

func (k CallerKind) String() string {
	switch k {
	case CallerTenantAccess:
		return "tenant_access"
	case CallerServiceClient:
		return "service_client"
	}
	return "identity"
}

// Caller is the already-verified principal handed to Enforce. Handlers build
// it from verified token claims, never from a raw token.
type Caller struct {
	Kind        CallerKind
	Subject     string
	Email       string
	TenantID    string // tenant-access and service-client callers only
	Roles       []string
	Permissions []string
}

// HasRole reports whether the caller holds the role, case-insensitively.
func (c *Caller) HasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsTenantAdmin reports whether the caller holds the owner or admin role.
func (c *Caller) IsTenantAdmin() bool {
	return c.HasRole("owner") || c.HasRole("admin")
}

// HasPermission reports whether the caller carries the permission code.
// Codes are exact matches; there is no wildcard expansion at check time.
func (c *Caller) HasPermission(code string) bool {
	for _, p := range c.Permissions {
		if p == code {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether the caller carries at least one of the
// given permission codes.
func (c *Caller) HasAnyPermission(codes ...string) bool {
	for _, code := range codes {
		if c.HasPermission(code) {
			return true
		}
	}
	return false
}
