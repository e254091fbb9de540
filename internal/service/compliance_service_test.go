package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Suyash-Gaurav/gaas-system/internal/adapter/outbound/celcond"
	"github.com/Suyash-Gaurav/gaas-system/internal/adapter/outbound/memory"
	"github.com/Suyash-Gaurav/gaas-system/internal/clock"
	"github.com/Suyash-Gaurav/gaas-system/internal/domain/policy"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testPolicy builds an active policy with the given ID and rules, effective
// well before the fixed test instant and without expiry.
func testPolicy(id string, content policy.Content) *policy.Policy {
	return &policy.Policy{
		ID:          id,
		Name:        "test " + id,
		Type:        policy.TypeCompliance,
		Version:     "1.0",
		Content:     content,
		EffectiveAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func forbiddenRule(patterns ...string) policy.Rule {
	return policy.Rule{
		Kind:          policy.RuleForbiddenAction,
		ViolationType: "forbidden_action",
		Severity:      policy.SeverityHigh,
		Description:   "forbidden pattern matched",
		Patterns:      patterns,
	}
}

func newComplianceFixture(t *testing.T, policies ...*policy.Policy) (*ComplianceService, *clock.Fixed) {
	t.Helper()
	store := memory.NewPolicyStore()
	for _, p := range policies {
		store.AddPolicy(p)
	}
	clk := clock.NewFixed(time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC))
	cel, err := celcond.NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return NewComplianceService(store, clk, cel, discardLogger()), clk
}

func TestComplianceEvaluateForbiddenAction(t *testing.T) {
	svc, _ := newComplianceFixture(t, testPolicy("POL_001", policy.Content{
		Rules: []policy.Rule{forbiddenRule("delete user data")},
	}))

	violations, err := svc.Evaluate(context.Background(), "agent-1", "data_access",
		"attempting to Delete User Data from the store", nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	v := violations[0]
	if v.PolicyID != "POL_001" {
		t.Errorf("policy ID = %q, want POL_001", v.PolicyID)
	}
	if v.ViolationType != "forbidden_action" {
		t.Errorf("violation type = %q", v.ViolationType)
	}
	if v.Severity != policy.SeverityHigh {
		t.Errorf("severity = %q, want high", v.Severity)
	}
}

func TestComplianceEvaluateNoMatch(t *testing.T) {
	svc, _ := newComplianceFixture(t, testPolicy("POL_001", policy.Content{
		Rules: []policy.Rule{forbiddenRule("delete user data")},
	}))

	violations, err := svc.Evaluate(context.Background(), "agent-1", "data_access",
		"reading aggregate report", nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %+v", violations)
	}
}

func TestComplianceSkipsInactivePolicies(t *testing.T) {
	notYet := testPolicy("POL_FUTURE", policy.Content{
		Rules: []policy.Rule{forbiddenRule("anything")},
	})
	notYet.EffectiveAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	expired := testPolicy("POL_EXPIRED", policy.Content{
		Rules: []policy.Rule{forbiddenRule("anything")},
	})
	exp := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	expired.ExpiresAt = &exp

	svc, _ := newComplianceFixture(t, notYet, expired)

	violations, err := svc.Evaluate(context.Background(), "agent-1", "other", "doing anything", nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("inactive policies should not fire, got %+v", violations)
	}
}

func TestComplianceAgentScope(t *testing.T) {
	cases := []struct {
		name    string
		scope   []string
		agentID string
		want    bool
	}{
		{"empty scope matches all", nil, "agent-1", true},
		{"wildcard matches all", []string{"*"}, "agent-1", true},
		{"exact match", []string{"agent-1", "agent-2"}, "agent-1", true},
		{"non-member excluded", []string{"agent-2"}, "agent-1", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newComplianceFixture(t, testPolicy("POL_SCOPE", policy.Content{
				AgentScope: tc.scope,
				Rules:      []policy.Rule{forbiddenRule("bad")},
			}))
			violations, err := svc.Evaluate(context.Background(), tc.agentID, "other", "a bad thing", nil)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got := len(violations) == 1; got != tc.want {
				t.Errorf("fired = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestComplianceActionTypeScope(t *testing.T) {
	svc, _ := newComplianceFixture(t, testPolicy("POL_ACT", policy.Content{
		ActionTypes: []string{"data_access"},
		Rules:       []policy.Rule{forbiddenRule("bad")},
	}))

	violations, err := svc.Evaluate(context.Background(), "agent-1", "communication", "a bad thing", nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("wrong action type should not fire, got %+v", violations)
	}

	violations, err = svc.Evaluate(context.Background(), "agent-1", "data_access", "a bad thing", nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("matching action type should fire, got %d violations", len(violations))
	}
}

func TestComplianceConditions(t *testing.T) {
	p := testPolicy("POL_COND", policy.Content{
		Conditions: map[string]any{"environment": "production"},
		Rules:      []policy.Rule{forbiddenRule("bad")},
	})

	t.Run("missing key fails the condition", func(t *testing.T) {
		svc, _ := newComplianceFixture(t, p)
		violations, err := svc.Evaluate(context.Background(), "agent-1", "other", "a bad thing", nil)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if len(violations) != 0 {
			t.Fatalf("policy should not apply without the context key")
		}
	})

	t.Run("matching value applies", func(t *testing.T) {
		svc, _ := newComplianceFixture(t, p)
		violations, err := svc.Evaluate(context.Background(), "agent-1", "other", "a bad thing",
			map[string]any{"environment": "production"})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if len(violations) != 1 {
			t.Fatalf("policy should apply with matching context, got %d", len(violations))
		}
	})

	t.Run("mismatched value excluded", func(t *testing.T) {
		svc, _ := newComplianceFixture(t, p)
		violations, err := svc.Evaluate(context.Background(), "agent-1", "other", "a bad thing",
			map[string]any{"environment": "staging"})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if len(violations) != 0 {
			t.Fatalf("policy should not apply with mismatched context")
		}
	})
}

func TestComplianceApprovalRequired(t *testing.T) {
	p := testPolicy("POL_APPR", policy.Content{
		Rules: []policy.Rule{{
			Kind:          policy.RuleApprovalRequired,
			ViolationType: "unauthorized_access",
			Severity:      policy.SeverityMedium,
			Description:   "approval missing",
		}},
	})

	t.Run("fires without approval", func(t *testing.T) {
		svc, _ := newComplianceFixture(t, p)
		violations, _ := svc.Evaluate(context.Background(), "agent-1", "other", "routine action", nil)
		if len(violations) != 1 {
			t.Fatalf("expected violation without approved=true")
		}
	})

	t.Run("suppressed with approval", func(t *testing.T) {
		svc, _ := newComplianceFixture(t, p)
		violations, _ := svc.Evaluate(context.Background(), "agent-1", "other", "routine action",
			map[string]any{"approved": true})
		if len(violations) != 0 {
			t.Fatalf("expected no violation with approved=true, got %+v", violations)
		}
	})

	t.Run("non-bool approval still fires", func(t *testing.T) {
		svc, _ := newComplianceFixture(t, p)
		violations, _ := svc.Evaluate(context.Background(), "agent-1", "other", "routine action",
			map[string]any{"approved": "yes"})
		if len(violations) != 1 {
			t.Fatalf("string approval value must not satisfy the rule")
		}
	})
}

func TestComplianceTimeRestriction(t *testing.T) {
	p := testPolicy("POL_TIME", policy.Content{
		Rules: []policy.Rule{{
			Kind:          policy.RuleTimeRestriction,
			ViolationType: "time_violation",
			Severity:      policy.SeverityLow,
			Description:   "outside allowed hours",
			AllowedHours:  []int{9, 10, 11, 12, 13, 14, 15, 16},
		}},
	})

	svc, clk := newComplianceFixture(t, p)

	// Fixture clock sits at 14:30; inside the allowed window.
	violations, _ := svc.Evaluate(context.Background(), "agent-1", "other", "work", nil)
	if len(violations) != 0 {
		t.Fatalf("14h is an allowed hour, got %+v", violations)
	}

	clk.Advance(9 * time.Hour)
	violations, _ = svc.Evaluate(context.Background(), "agent-1", "other", "work", nil)
	if len(violations) != 1 {
		t.Fatalf("23h is outside the allowed hours, expected a violation")
	}
}

func TestComplianceResourceLimit(t *testing.T) {
	p := testPolicy("POL_RES", policy.Content{
		Rules: []policy.Rule{{
			Kind:          policy.RuleResourceLimit,
			ViolationType: "resource_abuse",
			Severity:      policy.SeverityMedium,
			Description:   "limit exceeded",
			MaxResources:  map[string]float64{"cpu": 80, "memory": 1024},
		}},
	})

	cases := []struct {
		name  string
		usage any
		fires bool
	}{
		{"under limit", map[string]any{"cpu": 50.0}, false},
		{"at limit", map[string]any{"cpu": 80.0}, false},
		{"over limit", map[string]any{"cpu": 90.0}, true},
		{"int usage over limit", map[string]any{"memory": 2048}, true},
		{"no usage reported", nil, false},
		{"malformed usage", "lots", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newComplianceFixture(t, p)
			reqCtx := map[string]any{}
			if tc.usage != nil {
				reqCtx["resource_usage"] = tc.usage
			}
			violations, err := svc.Evaluate(context.Background(), "agent-1", "other", "work", reqCtx)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got := len(violations) == 1; got != tc.fires {
				t.Errorf("fired = %v, want %v", got, tc.fires)
			}
		})
	}
}

func TestComplianceCELCondition(t *testing.T) {
	p := testPolicy("POL_CEL", policy.Content{
		Rules: []policy.Rule{{
			Kind:          policy.RuleCELCondition,
			ViolationType: "policy_violation",
			Severity:      policy.SeverityMedium,
			Description:   "cel matched",
			Expression:    `action_type == "data_access" && context.sensitive == true`,
		}},
	})

	svc, _ := newComplianceFixture(t, p)

	violations, err := svc.Evaluate(context.Background(), "agent-1", "data_access", "read",
		map[string]any{"sensitive": true})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected CEL rule to fire")
	}

	violations, _ = svc.Evaluate(context.Background(), "agent-1", "data_access", "read",
		map[string]any{"sensitive": false})
	if len(violations) != 0 {
		t.Fatalf("expected CEL rule not to fire, got %+v", violations)
	}
}

func TestComplianceCELErrorIsNonViolation(t *testing.T) {
	p := testPolicy("POL_CEL_BAD", policy.Content{
		Rules: []policy.Rule{{
			Kind:          policy.RuleCELCondition,
			ViolationType: "policy_violation",
			Severity:      policy.SeverityMedium,
			Description:   "broken expression",
			Expression:    `this is not CEL (`,
		}},
	})

	svc, _ := newComplianceFixture(t, p)
	violations, err := svc.Evaluate(context.Background(), "agent-1", "other", "work", nil)
	if err != nil {
		t.Fatalf("Evaluate must not fail on a broken expression: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("broken expression must not fire, got %+v", violations)
	}
}

func TestComplianceUnknownRuleNeverFires(t *testing.T) {
	p := testPolicy("POL_UNK", policy.Content{
		Rules: []policy.Rule{{
			Kind:          policy.RuleUnknown,
			ViolationType: "policy_violation",
			Severity:      policy.SeverityCritical,
			Description:   "unparseable rule",
		}},
	})

	svc, _ := newComplianceFixture(t, p)
	violations, _ := svc.Evaluate(context.Background(), "agent-1", "other", "work", nil)
	if len(violations) != 0 {
		t.Fatalf("unknown rule kinds must never fire")
	}
}

func TestComplianceFirstRuleWinsPerPolicy(t *testing.T) {
	p := testPolicy("POL_MULTI", policy.Content{
		Rules: []policy.Rule{
			{
				Kind:          policy.RuleForbiddenAction,
				ViolationType: "first_rule",
				Severity:      policy.SeverityLow,
				Description:   "first",
				Patterns:      []string{"target"},
			},
			{
				Kind:          policy.RuleForbiddenAction,
				ViolationType: "second_rule",
				Severity:      policy.SeverityCritical,
				Description:   "second",
				Patterns:      []string{"target"},
			},
		},
	})

	svc, _ := newComplianceFixture(t, p)
	violations, _ := svc.Evaluate(context.Background(), "agent-1", "other", "hit the target", nil)
	if len(violations) != 1 {
		t.Fatalf("a policy contributes at most one violation, got %d", len(violations))
	}
	if violations[0].ViolationType != "first_rule" {
		t.Errorf("expected first declared rule to win, got %q", violations[0].ViolationType)
	}
}

func TestComplianceDeterministicOrder(t *testing.T) {
	mk := func(id string) *policy.Policy {
		return testPolicy(id, policy.Content{
			Rules: []policy.Rule{forbiddenRule("trip")},
		})
	}
	svc, _ := newComplianceFixture(t, mk("POL_C"), mk("POL_A"), mk("POL_B"))

	for range 5 {
		violations, err := svc.Evaluate(context.Background(), "agent-1", "other", "trip wire", nil)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if len(violations) != 3 {
			t.Fatalf("expected 3 violations, got %d", len(violations))
		}
		for i, want := range []string{"POL_A", "POL_B", "POL_C"} {
			if violations[i].PolicyID != want {
				t.Fatalf("violations[%d].PolicyID = %q, want %q", i, violations[i].PolicyID, want)
			}
		}
	}
}
