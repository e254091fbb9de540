package celcond

import (
	"strings"
	"testing"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return e
}

func TestEvaluate(t *testing.T) {
	e := newTestEvaluator(t)
	req := Request{
		AgentID:           "agent-1",
		ActionType:        "data_access",
		ActionDescription: "read customer records",
		Context:           map[string]any{"environment": "production", "count": 5},
	}

	cases := []struct {
		name string
		expr string
		want bool
	}{
		{"agent match", `agent_id == "agent-1"`, true},
		{"agent mismatch", `agent_id == "agent-2"`, false},
		{"action type", `action_type == "data_access"`, true},
		{"description contains", `action_description.contains("customer")`, true},
		{"context string", `context.environment == "production"`, true},
		{"context number", `context.count > 3`, true},
		{"conjunction", `agent_id == "agent-1" && context.count < 3`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Evaluate(tc.expr, req)
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tc.expr, err)
			}
			if got != tc.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestEvaluateMissingContextKeyErrors(t *testing.T) {
	e := newTestEvaluator(t)
	_, err := e.Evaluate(`context.missing == true`, Request{})
	if err == nil {
		t.Fatal("expected error for missing context key")
	}
}

func TestEvaluateNonBooleanResult(t *testing.T) {
	e := newTestEvaluator(t)
	_, err := e.Evaluate(`agent_id`, Request{AgentID: "agent-1"})
	if err == nil {
		t.Fatal("expected error for non-boolean expression")
	}
}

func TestEvaluateCompileError(t *testing.T) {
	e := newTestEvaluator(t)
	if _, err := e.Evaluate(`this is not CEL (`, Request{}); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestEvaluateNilContext(t *testing.T) {
	e := newTestEvaluator(t)
	got, err := e.Evaluate(`size(context) == 0`, Request{})
	if err != nil {
		t.Fatalf("Evaluate with nil context: %v", err)
	}
	if !got {
		t.Error("nil context must evaluate as an empty map")
	}
}

func TestValidateExpression(t *testing.T) {
	e := newTestEvaluator(t)

	if err := e.ValidateExpression(`agent_id == "x"`); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := e.ValidateExpression(""); err == nil {
		t.Error("empty expression must be rejected")
	}
	if err := e.ValidateExpression(`undeclared_var == 1`); err == nil {
		t.Error("expression over undeclared variables must be rejected")
	}
	if err := e.ValidateExpression(`true ` + strings.Repeat("&& true ", 200)); err == nil {
		t.Error("over-long expression must be rejected")
	}

	deep := strings.Repeat("(", 60) + "true" + strings.Repeat(")", 60)
	if err := e.ValidateExpression(deep); err == nil {
		t.Error("deeply nested expression must be rejected")
	}
}

func TestProgramCacheReuse(t *testing.T) {
	e := newTestEvaluator(t)
	expr := `agent_id == "agent-1"`

	if _, err := e.Evaluate(expr, Request{AgentID: "agent-1"}); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	e.mu.RLock()
	_, cached := e.programs[expr]
	e.mu.RUnlock()
	if !cached {
		t.Error("expression not cached after first evaluation")
	}
}
