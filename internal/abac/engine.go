package abac

import "sort"

// DecisionEffect is the combined outcome of an evaluation.
type DecisionEffect string

const (
	DecisionAllow DecisionEffect = "allow"
	DecisionDeny  DecisionEffect = "deny"
)

// Decision reasons, for audit and simulation output.
const (
	ReasonDenyRule    = "deny_rule_matched"
	ReasonAllowRule   = "allow_rule_matched"
	ReasonDefaultDeny = "default_deny"
)

// Result reports the combined decision and every rule that matched, for
// explainability. Matched ids are ordered by priority (descending), then id.
type Result struct {
	Decision            DecisionEffect `json:"decision"`
	Reason              string         `json:"reason"`
	MatchedAllowRuleIDs []string       `json:"matched_allow_rule_ids"`
	MatchedDenyRuleIDs  []string       `json:"matched_deny_rule_ids"`
}

// Evaluate runs every rule against the request context and combines with
// deny-overrides: any matching deny rule wins, else any matching allow rule
// allows, else default-deny. All rules are evaluated and reported; priority
// never short-circuits.
func Evaluate(rules []Rule, rctx *Context) Result {
	env := rctx.envMap()

	type match struct {
		id       string
		priority int
	}
	var allows, denies []match

	for i := range rules {
		r := &rules[i]
		if !matchList(r.Actions, rctx.Action) {
			continue
		}
		if !matchList(r.ResourceTypes, rctx.ResourceType) {
			continue
		}
		if !r.evaluateCondition(env) {
			continue
		}
		m := match{id: r.ID, priority: r.Priority}
		if r.Effect == EffectDeny {
			denies = append(denies, m)
		} else {
			allows = append(allows, m)
		}
	}

	orderIDs := func(ms []match) []string {
		sort.Slice(ms, func(i, j int) bool {
			if ms[i].priority != ms[j].priority {
				return ms[i].priority > ms[j].priority
			}
			return ms[i].id < ms[j].id
		})
		ids := make([]string, len(ms))
		for i, m := range ms {
			ids[i] = m.id
		}
		return ids
	}

	result := Result{
		MatchedAllowRuleIDs: orderIDs(allows),
		MatchedDenyRuleIDs:  orderIDs(denies),
	}
	switch {
	case len(result.MatchedDenyRuleIDs) > 0:
		result.Decision = DecisionDeny
		result.Reason = ReasonDenyRule
	case len(result.MatchedAllowRuleIDs) > 0:
		result.Decision = DecisionAllow
		result.Reason = ReasonAllowRule
	default:
		result.Decision = DecisionDeny
		result.Reason = ReasonDefaultDeny
	}
	return result
}

// matchList reports whether value is in list; an empty list is a wildcard.
func matchList(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
