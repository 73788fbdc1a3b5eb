package abac

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Condition is a structured predicate over the merged request context. All
// present parts must hold: every predicate in All, at least one in Any, and
// the Expression (an expr-lang boolean, no side effects). An empty condition
// always holds.
type Condition struct {
	All        []Predicate `json:"all,omitempty"`
	Any        []Predicate `json:"any,omitempty"`
	Expression string      `json:"expression,omitempty"`
}

// Predicate compares one context attribute (dotted path, e.g.
// "subject.department") against a literal value.
type Predicate struct {
	Attribute string `json:"attribute"`
	Operator  string `json:"operator"`
	Value     any    `json:"value"`
}

var knownOperators = map[string]bool{
	"eq": true, "neq": true,
	"in": true, "not_in": true,
	"gt": true, "gte": true, "lt": true, "lte": true,
	"contains": true,
}

// Validate checks operators and compiles the expression once to surface
// syntax errors at submission time rather than at evaluation time.
func (c *Condition) Validate() error {
	for _, p := range append(append([]Predicate{}, c.All...), c.Any...) {
		if p.Attribute == "" {
			return fmt.Errorf("predicate attribute must not be empty")
		}
		if !knownOperators[p.Operator] {
			return fmt.Errorf("unknown predicate operator %q", p.Operator)
		}
	}
	if c.Expression != "" {
		if _, err := CompileCondition(c.Expression); err != nil {
			return err
		}
	}
	return nil
}

// CompileCondition compiles a condition expression to a boolean program.
func CompileCondition(expression string) (*vm.Program, error) {
	prog, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile condition: %w", err)
	}
	return prog, nil
}

// Context is the request context conditions are evaluated against.
type Context struct {
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	Subject      map[string]any `json:"subject,omitempty"`
	Resource     map[string]any `json:"resource,omitempty"`
	Request      map[string]any `json:"request,omitempty"`
	Env          map[string]any `json:"env,omitempty"`
}

func (c *Context) envMap() map[string]any {
	return map[string]any{
		"action":        c.Action,
		"resource_type": c.ResourceType,
		"subject":       orEmpty(c.Subject),
		"resource":      orEmpty(c.Resource),
		"request":       orEmpty(c.Request),
		"env":           orEmpty(c.Env),
	}
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// evaluateCondition reports whether the rule's condition holds for env. The
// compiled program is cached on the rule. Evaluation errors (missing
// attribute in an expression, non-bool result) count as no-match.
func (r *Rule) evaluateCondition(env map[string]any) bool {
	c := r.Condition
	if c == nil {
		return true
	}

	for _, p := range c.All {
		if !evaluatePredicate(p, env) {
			return false
		}
	}

	if len(c.Any) > 0 {
		matched := false
		for _, p := range c.Any {
			if evaluatePredicate(p, env) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if c.Expression != "" {
		prog, ok := r.compiled.(*vm.Program)
		if !ok || prog == nil {
			// Lazy compile
			compiled, err := CompileCondition(c.Expression)
			if err != nil {
				return false
			}
			r.compiled = compiled
			prog = compiled
		}
		result, err := expr.Run(prog, env)
		if err != nil {
			return false
		}
		hold, ok := result.(bool)
		if !ok || !hold {
			return false
		}
	}

	return true
}

func evaluatePredicate(p Predicate, env map[string]any) bool {
	val, ok := lookupAttribute(env, p.Attribute)
	if !ok {
		return false
	}

	switch p.Operator {
	case "eq":
		return fmt.Sprintf("%v", val) == fmt.Sprintf("%v", p.Value)
	case "neq":
		return fmt.Sprintf("%v", val) != fmt.Sprintf("%v", p.Value)
	case "in":
		return valueInList(val, p.Value)
	case "not_in":
		return !valueInList(val, p.Value)
	case "gt":
		cmp, ok := compareNumeric(val, p.Value)
		return ok && cmp > 0
	case "gte":
		cmp, ok := compareNumeric(val, p.Value)
		return ok && cmp >= 0
	case "lt":
		cmp, ok := compareNumeric(val, p.Value)
		return ok && cmp < 0
	case "lte":
		cmp, ok := compareNumeric(val, p.Value)
		return ok && cmp <= 0
	case "contains":
		return valueInList(p.Value, val)
	default:
		return false
	}
}

// lookupAttribute resolves a dotted path like "subject.department" through
// nested maps.
func lookupAttribute(env map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var current any = env
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func valueInList(val, list any) bool {
	valStr := fmt.Sprintf("%v", val)
	switch l := list.(type) {
	case []any:
		for _, item := range l {
			if fmt.Sprintf("%v", item) == valStr {
				return true
			}
		}
	case []string:
		for _, item := range l {
			if item == valStr {
				return true
			}
		}
	}
	return false
}

// compareNumeric orders two numeric values. ok is false when either operand
// is non-numeric; the ordering operators treat that as no-match.
func compareNumeric(a, b any) (int, bool) {
	fa, aok := toFloat64(a)
	fb, bok := toFloat64(b)
	if !aok || !bok {
		return 0, false
	}
	if fa < fb {
		return -1, true
	}
	if fa > fb {
		return 1, true
	}
	return 0, true
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
