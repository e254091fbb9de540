// Package service contains application services for the governance engine.
package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Suyash-Gaurav/gaas-system/internal/adapter/outbound/celcond"
	"github.com/Suyash-Gaurav/gaas-system/internal/clock"
	"github.com/Suyash-Gaurav/gaas-system/internal/domain/policy"
)

// ComplianceService scans all currently active policies for a given
// agent/action/context and returns the violated rules. Evaluation is purely
// functional given the store's current snapshot and the clock: no caching,
// no history mutation, no side effects.
//
// Policies are enumerated in ascending policy ID order so the violation list
// is reproducible for identical inputs.
type ComplianceService struct {
	store  policy.Store
	clock  clock.Clock
	cel    *celcond.Evaluator
	logger *slog.Logger
	tracer trace.Tracer
}

// NewComplianceService creates a ComplianceService. The CEL evaluator may be
// nil, in which case cel_condition rules never fire.
func NewComplianceService(store policy.Store, clk clock.Clock, cel *celcond.Evaluator, logger *slog.Logger) *ComplianceService {
	return &ComplianceService{
		store:  store,
		clock:  clk,
		cel:    cel,
		logger: logger,
		tracer: otel.Tracer("gaas/compliance"),
	}
}

// Evaluate checks the proposed or logged action against every applicable
// active policy. Each policy contributes at most one violation: its rules are
// evaluated in declaration order and the first rule that fires wins.
// Policy activity is re-checked on every call against the injected clock,
// never cached, because effective/expiry windows are wall-clock relative.
func (s *ComplianceService) Evaluate(ctx context.Context, agentID, actionType, actionDescription string, reqContext map[string]any) ([]policy.Violation, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.evaluate",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.String("action.type", actionType),
		))
	defer span.End()

	now := s.clock.Now()

	policies, err := s.store.GetAllPolicies(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(policies))
	for id := range policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	violations := make([]policy.Violation, 0)
	for _, id := range ids {
		if !s.store.IsActive(id, now) {
			continue
		}
		p := policies[id]
		if !policyApplies(&p.Content, agentID, actionType, reqContext) {
			continue
		}
		if v, ok := s.firstViolation(p, agentID, actionType, actionDescription, reqContext, now); ok {
			violations = append(violations, v)
		}
	}

	span.SetAttributes(attribute.Int("violations.count", len(violations)))
	return violations, nil
}

// policyApplies implements the applicability filter: agent scope, action type
// scope, and exact-match context conditions must all hold. A condition key
// missing from the context fails the condition (conservative default).
func policyApplies(c *policy.Content, agentID, actionType string, reqContext map[string]any) bool {
	if !scopeMatches(c.AgentScope, agentID) {
		return false
	}
	if !scopeMatches(c.ActionTypes, actionType) {
		return false
	}
	for key, expected := range c.Conditions {
		got, ok := reqContext[key]
		if !ok || !looseEqual(got, expected) {
			return false
		}
	}
	return true
}

// scopeMatches reports whether value is covered by the scope list.
// An empty scope or a "*" entry matches everything.
func scopeMatches(scope []string, value string) bool {
	if len(scope) == 0 {
		return true
	}
	for _, s := range scope {
		if s == "*" || s == value {
			return true
		}
	}
	return false
}

// firstViolation evaluates the policy's rules in order and returns the
// violation for the first rule that fires, if any.
func (s *ComplianceService) firstViolation(p *policy.Policy, agentID, actionType, actionDescription string, reqContext map[string]any, now time.Time) (policy.Violation, bool) {
	for _, rule := range p.Content.Rules {
		if s.ruleViolated(&rule, agentID, actionType, actionDescription, reqContext, now) {
			return policy.Violation{
				PolicyID:      p.ID,
				ViolationType: rule.ViolationType,
				Severity:      rule.Severity,
				Description:   rule.Description,
			}, true
		}
	}
	return policy.Violation{}, false
}

// ruleViolated dispatches on the rule kind. Unknown kinds and malformed
// context values never fire; every degenerate input degrades to "no
// violation" rather than aborting the evaluation of other policies.
func (s *ComplianceService) ruleViolated(r *policy.Rule, agentID, actionType, actionDescription string, reqContext map[string]any, now time.Time) bool {
	switch r.Kind {
	case policy.RuleForbiddenAction:
		desc := strings.ToLower(actionDescription)
		for _, pattern := range r.Patterns {
			if pattern != "" && strings.Contains(desc, strings.ToLower(pattern)) {
				return true
			}
		}
		return false

	case policy.RuleTimeRestriction:
		if len(r.AllowedHours) == 0 {
			return false
		}
		hour := now.Hour()
		for _, allowed := range r.AllowedHours {
			if hour == allowed {
				return false
			}
		}
		return true

	case policy.RuleResourceLimit:
		usage, _ := reqContext["resource_usage"].(map[string]any)
		for resource, limit := range r.MaxResources {
			if current, ok := toFloat(usage[resource]); ok && current > limit {
				return true
			}
		}
		return false

	case policy.RuleApprovalRequired:
		approved, _ := reqContext["approved"].(bool)
		return !approved

	case policy.RuleCELCondition:
		if s.cel == nil || r.Expression == "" {
			return false
		}
		fired, err := s.cel.Evaluate(r.Expression, celcond.Request{
			AgentID:           agentID,
			ActionType:        actionType,
			ActionDescription: actionDescription,
			Context:           reqContext,
		})
		if err != nil {
			s.logger.Debug("cel rule evaluation failed, treating as non-violation",
				"expression", r.Expression, "error", err)
			return false
		}
		return fired

	default:
		return false
	}
}
