package authz

import (
	"context"
	"log"
	"time"

	"aegis-backend/internal/abac"
	"aegis-backend/internal/apperror"
	"aegis-backend/internal/rbac"
)

// Guard is the authorization boundary protected handlers call. RBAC decides
// first; for tenant-scoped resources the tenant's ABAC policy is then
// consulted according to its mode. ABAC can only narrow access — an ABAC
// allow never overrides an RBAC deny.
type Guard struct {
	cfg      rbac.Config
	policies *abac.Service
	sink     DecisionSink
	now      func() time.Time
}

func NewGuard(cfg rbac.Config, policies *abac.Service, sink DecisionSink) *Guard {
	if sink == nil {
		sink = NoopSink{}
	}
	return &Guard{cfg: cfg, policies: policies, sink: sink, now: time.Now}
}

// Authorize decides whether caller may perform in.Action on in.Scope. The
// optional abacCtx carries request attributes for ABAC rule conditions; when
// nil, a minimal context is built from the action and scope.
func (g *Guard) Authorize(ctx context.Context, caller *rbac.Caller, in rbac.Input, abacCtx *abac.Context) error {
	if err := rbac.Enforce(g.cfg, caller, in); err != nil {
		return err
	}

	if in.Scope.Kind != rbac.ScopeTenant {
		return nil
	}

	mode, rules, err := g.policies.PublishedRules(ctx, in.Scope.TenantID)
	if err != nil {
		// Fail closed: with an unreadable policy store an Enforce-mode
		// tenant must not be silently widened to RBAC-only.
		log.Printf("ERROR: authz: published rules for tenant %s: %v", in.Scope.TenantID, err)
		return apperror.Internal("Authorization backend failure")
	}
	if mode == abac.ModeDisabled {
		return nil
	}

	rctx := abacCtx
	if rctx == nil {
		rctx = &abac.Context{Action: in.Action.String()}
	}
	if rctx.Action == "" {
		rctx.Action = in.Action.String()
	}

	result := abac.Evaluate(rules, rctx)

	switch mode {
	case abac.ModeShadow:
		g.record(caller, in, mode, result, rctx)
		return nil
	case abac.ModeEnforce:
		if result.Decision == abac.DecisionDeny {
			g.record(caller, in, mode, result, rctx)
			return apperror.Forbidden("Denied by tenant policy")
		}
		return nil
	}
	return nil
}

func (g *Guard) record(caller *rbac.Caller, in rbac.Input, mode abac.Mode, result abac.Result, rctx *abac.Context) {
	g.sink.Record(DecisionRecord{
		TenantID:     in.Scope.TenantID,
		Subject:      caller.Subject,
		Action:       rctx.Action,
		ResourceType: rctx.ResourceType,
		Mode:         mode,
		Decision:     string(result.Decision),
		Reason:       result.Reason,
		AllowRuleIDs: result.MatchedAllowRuleIDs,
		DenyRuleIDs:  result.MatchedDenyRuleIDs,
		At:           g.now(),
	})
}
