// Package celcond provides a CEL-based evaluator for cel_condition policy
// rules. Expressions are compiled once and cached; evaluation failures
// degrade to "rule does not fire" at the call site.
package celcond

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
)

// maxExpressionLength is the maximum allowed length for CEL expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit to prevent cost-exhaustion DoS.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout is the maximum time allowed for a single CEL evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context cancellation is checked.
const interruptCheckFreq = 100

// Request carries the variables a cel_condition expression can reference.
type Request struct {
	AgentID           string
	ActionType        string
	ActionDescription string
	Context           map[string]any
}

// Evaluator compiles and evaluates CEL expressions for cel_condition rules.
// Compiled programs are cached by expression text, so repeated evaluations
// of the same policy set pay the compile cost once.
type Evaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// newRuleEnvironment creates a CEL environment exposing the governance
// request variables.
func newRuleEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("agent_id", cel.StringType),
		cel.Variable("action_type", cel.StringType),
		cel.Variable("action_description", cel.StringType),
		cel.Variable("context", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// NewEvaluator creates a new CEL evaluator with the governance environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := newRuleEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create rule environment: %w", err)
	}
	return &Evaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// compile parses and type-checks a CEL expression, returning a compiled program.
func (e *Evaluator) compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}

	return prg, nil
}

// program returns the cached compiled form of expression, compiling on first use.
func (e *Evaluator) program(expression string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	prg, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[expression] = prg
	e.mu.Unlock()
	return prg, nil
}

// validateNesting checks that the expression does not exceed the maximum
// allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks that a CEL expression is syntactically valid and
// within the safety limits (expression length, nesting depth). Used on the
// policy upload path so invalid expressions are rejected before storage.
func (e *Evaluator) ValidateExpression(expr string) error {
	if expr == "" {
		return errors.New("expression is empty")
	}

	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}

	if err := validateNesting(expr); err != nil {
		return err
	}

	if _, err := e.compile(expr); err != nil {
		return fmt.Errorf("invalid CEL expression: %w", err)
	}

	return nil
}

// Evaluate runs the expression against the request and reports whether it
// evaluated to true. Compile errors, runtime errors, and non-boolean results
// are returned as errors; callers treat any error as "rule does not fire".
func (e *Evaluator) Evaluate(expression string, req Request) (bool, error) {
	prg, err := e.program(expression)
	if err != nil {
		return false, err
	}

	reqContext := req.Context
	if reqContext == nil {
		reqContext = map[string]any{}
	}
	activation := map[string]any{
		"agent_id":           req.AgentID,
		"action_type":        req.ActionType,
		"action_description": req.ActionDescription,
		"context":            reqContext,
	}

	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}

	return boolResult, nil
}
