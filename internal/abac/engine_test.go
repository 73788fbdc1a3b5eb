package abac

import (
	"reflect"
	"testing"
)

func docCtx(action, resourceType string) *Context {
	return &Context{Action: action, ResourceType: resourceType}
}

func TestEvaluate_DenyOverrides(t *testing.T) {
	rules := []Rule{
		{ID: "r-allow", Effect: EffectAllow, Actions: []string{"read"}},
		{ID: "r-deny", Effect: EffectDeny, Actions: []string{"read"}},
	}
	result := Evaluate(rules, docCtx("read", "document"))
	if result.Decision != DecisionDeny {
		t.Fatalf("expected deny, got %s", result.Decision)
	}
	if result.Reason != ReasonDenyRule {
		t.Fatalf("expected reason %s, got %s", ReasonDenyRule, result.Reason)
	}
	if len(result.MatchedAllowRuleIDs) != 1 || len(result.MatchedDenyRuleIDs) != 1 {
		t.Fatalf("expected both matches reported, got %v / %v",
			result.MatchedAllowRuleIDs, result.MatchedDenyRuleIDs)
	}
}

func TestEvaluate_DefaultDeny(t *testing.T) {
	rules := []Rule{
		{ID: "r1", Effect: EffectAllow, Actions: []string{"write"}},
	}
	result := Evaluate(rules, docCtx("read", "document"))
	if result.Decision != DecisionDeny {
		t.Fatalf("expected default deny, got %s", result.Decision)
	}
	if result.Reason != ReasonDefaultDeny {
		t.Fatalf("expected reason %s, got %s", ReasonDefaultDeny, result.Reason)
	}
	if len(result.MatchedAllowRuleIDs) != 0 || len(result.MatchedDenyRuleIDs) != 0 {
		t.Fatalf("expected no matches, got %v / %v",
			result.MatchedAllowRuleIDs, result.MatchedDenyRuleIDs)
	}
}

func TestEvaluate_EmptyRuleSetDenies(t *testing.T) {
	result := Evaluate(nil, docCtx("read", "document"))
	if result.Decision != DecisionDeny {
		t.Fatalf("expected deny for empty rule set, got %s", result.Decision)
	}
}

func TestEvaluate_WildcardActionsAndResourceTypes(t *testing.T) {
	rules := []Rule{
		{ID: "r1", Effect: EffectAllow}, // empty = wildcard on both axes
	}
	result := Evaluate(rules, docCtx("anything", "whatever"))
	if result.Decision != DecisionAllow {
		t.Fatalf("expected allow via wildcard rule, got %s", result.Decision)
	}
}

func TestEvaluate_ResourceTypeFilter(t *testing.T) {
	rules := []Rule{
		{ID: "r1", Effect: EffectAllow, ResourceTypes: []string{"invoice"}},
	}
	if r := Evaluate(rules, docCtx("read", "invoice")); r.Decision != DecisionAllow {
		t.Fatalf("expected allow for invoice, got %s", r.Decision)
	}
	if r := Evaluate(rules, docCtx("read", "webhook")); r.Decision != DecisionDeny {
		t.Fatalf("expected deny for webhook, got %s", r.Decision)
	}
}

func TestEvaluate_MatchedIDsOrderedByPriorityThenID(t *testing.T) {
	rules := []Rule{
		{ID: "b", Effect: EffectAllow, Priority: 10},
		{ID: "a", Effect: EffectAllow, Priority: 10},
		{ID: "c", Effect: EffectAllow, Priority: 50},
	}
	result := Evaluate(rules, docCtx("read", "document"))
	want := []string{"c", "a", "b"}
	if !reflect.DeepEqual(result.MatchedAllowRuleIDs, want) {
		t.Fatalf("expected %v, got %v", want, result.MatchedAllowRuleIDs)
	}
}

func TestEvaluate_PredicateCondition(t *testing.T) {
	rules := []Rule{
		{
			ID:     "r1",
			Effect: EffectAllow,
			Condition: &Condition{
				All: []Predicate{
					{Attribute: "subject.department", Operator: "eq", Value: "engineering"},
					{Attribute: "resource.size", Operator: "lte", Value: 100},
				},
			},
		},
	}

	rctx := &Context{
		Action:       "read",
		ResourceType: "document",
		Subject:      map[string]any{"department": "engineering"},
		Resource:     map[string]any{"size": 42},
	}
	if r := Evaluate(rules, rctx); r.Decision != DecisionAllow {
		t.Fatalf("expected allow, got %s", r.Decision)
	}

	rctx.Subject["department"] = "sales"
	if r := Evaluate(rules, rctx); r.Decision != DecisionDeny {
		t.Fatalf("expected deny for wrong department, got %s", r.Decision)
	}
}

func TestEvaluate_AnyPredicates(t *testing.T) {
	rules := []Rule{
		{
			ID:     "r1",
			Effect: EffectAllow,
			Condition: &Condition{
				Any: []Predicate{
					{Attribute: "subject.team", Operator: "eq", Value: "platform"},
					{Attribute: "subject.team", Operator: "eq", Value: "security"},
				},
			},
		},
	}

	rctx := &Context{Action: "read", Subject: map[string]any{"team": "security"}}
	if r := Evaluate(rules, rctx); r.Decision != DecisionAllow {
		t.Fatalf("expected allow via any-branch, got %s", r.Decision)
	}

	rctx.Subject["team"] = "sales"
	if r := Evaluate(rules, rctx); r.Decision != DecisionDeny {
		t.Fatalf("expected deny, got %s", r.Decision)
	}
}

func TestEvaluate_ExpressionCondition(t *testing.T) {
	rules := []Rule{
		{
			ID:     "r1",
			Effect: EffectDeny,
			Condition: &Condition{
				Expression: "env.hour < 8 || env.hour > 18",
			},
		},
		{ID: "r2", Effect: EffectAllow},
	}

	rctx := &Context{Action: "read", Env: map[string]any{"hour": 22}}
	if r := Evaluate(rules, rctx); r.Decision != DecisionDeny {
		t.Fatalf("expected deny outside business hours, got %s", r.Decision)
	}

	rctx.Env["hour"] = 12
	if r := Evaluate(rules, rctx); r.Decision != DecisionAllow {
		t.Fatalf("expected allow during business hours, got %s", r.Decision)
	}
}

func TestEvaluate_NonNumericOperandIsNoMatch(t *testing.T) {
	// A string attribute against a numeric bound must not satisfy any
	// ordering operator; the rule simply does not match.
	for _, op := range []string{"gt", "gte", "lt", "lte"} {
		rules := []Rule{
			{
				ID:     "r1",
				Effect: EffectAllow,
				Condition: &Condition{
					All: []Predicate{{Attribute: "subject.level", Operator: op, Value: 5}},
				},
			},
		}
		rctx := &Context{Action: "read", Subject: map[string]any{"level": "low"}}
		result := Evaluate(rules, rctx)
		if result.Decision != DecisionDeny {
			t.Fatalf("operator %s: expected default deny for non-numeric operand, got %s", op, result.Decision)
		}
		if len(result.MatchedAllowRuleIDs) != 0 {
			t.Fatalf("operator %s: rule matched on non-numeric operand: %v", op, result.MatchedAllowRuleIDs)
		}
	}
}

func TestEvaluate_MissingAttributeIsNoMatch(t *testing.T) {
	rules := []Rule{
		{
			ID:     "r1",
			Effect: EffectAllow,
			Condition: &Condition{
				All: []Predicate{{Attribute: "subject.clearance", Operator: "eq", Value: "high"}},
			},
		},
	}
	result := Evaluate(rules, docCtx("read", "document"))
	if result.Decision != DecisionDeny {
		t.Fatalf("expected deny when attribute is absent, got %s", result.Decision)
	}
}

func TestEvaluate_InOperator(t *testing.T) {
	rules := []Rule{
		{
			ID:     "r1",
			Effect: EffectAllow,
			Condition: &Condition{
				All: []Predicate{{Attribute: "subject.region", Operator: "in", Value: []any{"eu", "us"}}},
			},
		},
	}
	rctx := &Context{Action: "read", Subject: map[string]any{"region": "eu"}}
	if r := Evaluate(rules, rctx); r.Decision != DecisionAllow {
		t.Fatalf("expected allow for region in list, got %s", r.Decision)
	}
	rctx.Subject["region"] = "apac"
	if r := Evaluate(rules, rctx); r.Decision != DecisionDeny {
		t.Fatalf("expected deny for region not in list, got %s", r.Decision)
	}
}

func TestConditionValidate(t *testing.T) {
	bad := &Condition{All: []Predicate{{Attribute: "subject.x", Operator: "matches", Value: 1}}}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for unknown operator")
	}

	badExpr := &Condition{Expression: "subject.x =="}
	if err := badExpr.Validate(); err == nil {
		t.Fatal("expected error for malformed expression")
	}

	good := &Condition{
		All:        []Predicate{{Attribute: "subject.x", Operator: "eq", Value: 1}},
		Expression: "env.hour >= 8",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected valid condition, got %v", err)
	}
}
