package rbac

// ScopeKind tags what a policy action is being attempted against.
type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeTenant
	ScopeUser
)

// ResourceScope is the tagged union Global | Tenant(id) | User(id). Enforce
// dispatches on Kind; only the field matching Kind is meaningful.
type ResourceScope struct {
	Kind     ScopeKind
	TenantID string
	UserID   string
}

func GlobalScope() ResourceScope {
	return ResourceScope{Kind: ScopeGlobal}
}

func TenantScope(tenantID string) ResourceScope {
	return ResourceScope{Kind: ScopeTenant, TenantID: tenantID}
}

func UserScope(userID string) ResourceScope {
	return ResourceScope{Kind: ScopeUser, UserID: userID}
}

func (s ResourceScope) String() string {
	switch s.Kind {
	case ScopeTenant:
		return "tenant:" + s.TenantID
	case ScopeUser:
		return "user:" + s.UserID
	}
	return "global"
}
