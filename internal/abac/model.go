package abac

import (
	"errors"
	"fmt"
	"time"

	"aegis-backend/internal/apperror"
)

// ErrNotFound is returned by VersionStore implementations for missing sets
// and versions.
var ErrNotFound = errors.New("not found")

// Mode gates whether a tenant's published rule set is authoritative.
type Mode string

const (
	ModeDisabled Mode = "disabled" // never consulted
	ModeShadow   Mode = "shadow"   // evaluated and logged, RBAC authoritative
	ModeEnforce  Mode = "enforce"  // a Deny overrides an RBAC allow
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDisabled, ModeShadow, ModeEnforce:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid mode %q", s)
}

// VersionStatus is the lifecycle state of a policy version.
type VersionStatus string

const (
	StatusDraft     VersionStatus = "draft"
	StatusPublished VersionStatus = "published"
	StatusArchived  VersionStatus = "archived"
)

// Effect is a rule's outcome when it matches.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Rule matches a request when its action is in Actions (empty = wildcard),
// the resource type is in ResourceTypes (empty = wildcard) and the condition,
// if present, evaluates true. Priority orders matched rule ids in results; it
// never short-circuits evaluation.
type Rule struct {
	ID            string     `json:"id"`
	Effect        Effect     `json:"effect"`
	Actions       []string   `json:"actions,omitempty"`
	ResourceTypes []string   `json:"resource_types,omitempty"`
	Priority      int        `json:"priority"`
	Condition     *Condition `json:"condition,omitempty"`

	// compiled caches the expr program for the condition expression,
	// populated lazily on first evaluation.
	compiled any
}

// PolicySet is a tenant's one ABAC container: at most one published version
// at any time, and a mode gating how that version is applied.
type PolicySet struct {
	ID                 string `json:"policy_set_id"`
	TenantID           string `json:"tenant_id"`
	Mode               Mode   `json:"mode"`
	PublishedVersionID string `json:"published_version_id,omitempty"`
}

// Version is one revision of a tenant's rule document. Version numbers are
// strictly increasing per set and never reused.
type Version struct {
	ID          string        `json:"id"`
	PolicySetID string        `json:"policy_set_id"`
	VersionNo   int           `json:"version_no"`
	Status      VersionStatus `json:"status"`
	Rules       []Rule        `json:"rules"`
	ChangeNote  string        `json:"change_note,omitempty"`
	CreatedBy   string        `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
}

// Document is a submitted rule set for create/update/simulate.
type Document struct {
	Rules []Rule `json:"rules"`
}

// Validate rejects empty rule lists, duplicate rule ids, unknown effects and
// malformed conditions.
func (d *Document) Validate() *apperror.AppError {
	if len(d.Rules) == 0 {
		return apperror.ValidationMsg("policy document must contain at least one rule")
	}

	var details []apperror.Detail
	seen := make(map[string]bool)
	for i, r := range d.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if r.ID != "" {
			if seen[r.ID] {
				details = append(details, apperror.Detail{
					Field: field, Rule: "unique_id",
					Message: fmt.Sprintf("duplicate rule id %s", r.ID),
				})
			}
			seen[r.ID] = true
		}
		if r.Effect != EffectAllow && r.Effect != EffectDeny {
			details = append(details, apperror.Detail{
				Field: field, Rule: "effect",
				Message: fmt.Sprintf("effect must be allow or deny, got %q", r.Effect),
			})
		}
		if r.Condition != nil {
			if err := r.Condition.Validate(); err != nil {
				details = append(details, apperror.Detail{
					Field: field, Rule: "condition", Message: err.Error(),
				})
			}
		}
	}
	if len(details) > 0 {
		return apperror.Validation(details)
	}
	return nil
}
