package rbac

// PolicyAction is the closed set of sensitive operations gated by Enforce.
// New protected operations are added here, and Enforce must grow a branch for
// them: TestEnforceCoversAllActions fails on any constant left unhandled.
type PolicyAction int

const (
	ActionAuditRead PolicyAction = iota
	ActionSessionForceLogout
	ActionWebhookRead
	ActionWebhookWrite
	ActionTenantServiceRead
	ActionTenantServiceWrite
	ActionSecurityAlertRead
	ActionSecurityAlertResolve
	ActionSystemConfigRead
	ActionSystemConfigWrite
	ActionAbacRead
	ActionAbacWrite
	ActionAbacPublish
	ActionAbacSimulate
)

// AllActions is the closed action list, used by coverage tests and by the
// decision-log labeller. Keep it in sync with the constants above.
var AllActions = []PolicyAction{
	ActionAuditRead,
	ActionSessionForceLogout,
	ActionWebhookRead,
	ActionWebhookWrite,
	ActionTenantServiceRead,
	ActionTenantServiceWrite,
	ActionSecurityAlertRead,
	ActionSecurityAlertResolve,
	ActionSystemConfigRead,
	ActionSystemConfigWrite,
	ActionAbacRead,
	ActionAbacWrite,
	ActionAbacPublish,
	ActionAbacSimulate,
}

// ParseAction maps an action label like "webhook:write" back to its
// PolicyAction. The second return is false for unknown labels.
func ParseAction(s string) (PolicyAction, bool) {
	for _, a := range AllActions {
		if a.String() == s {
			return a, true
		}
	}
	return 0, false
}

func (a PolicyAction) String() string {
	switch a {
	case ActionAuditRead:
		return "audit:read"
	case ActionSessionForceLogout:
		return "session:force_logout"
	case ActionWebhookRead:
		return "webhook:read"
	case ActionWebhookWrite:
		return "webhook:write"
	case ActionTenantServiceRead:
		return "service:read"
	case ActionTenantServiceWrite:
		return "service:write"
	case ActionSecurityAlertRead:
		return "security_alert:read"
	case ActionSecurityAlertResolve:
		return "security_alert:resolve"
	case ActionSystemConfigRead:
		return "system_config:read"
	case ActionSystemConfigWrite:
		return "system_config:write"
	case ActionAbacRead:
		return "abac:read"
	case ActionAbacWrite:
		return "abac:write"
	case ActionAbacPublish:
		return "abac:publish"
	case ActionAbacSimulate:
		return "abac:simulate"
	}
	return "unknown"
}
