package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Suyash-Gaurav/gaas-system/internal/clock"
	"github.com/Suyash-Gaurav/gaas-system/internal/domain/audit"
	"github.com/Suyash-Gaurav/gaas-system/internal/domain/enforcement"
	"github.com/Suyash-Gaurav/gaas-system/internal/domain/policy"
)

// recentViolationWindow is the lookback window for repeat-offender escalation.
const recentViolationWindow = 7 * 24 * time.Hour

// Escalation thresholds on the count of recent history records.
const (
	repeatBlockThreshold = 3
	repeatWarnThreshold  = 1
)

// DecisionAuditor receives a summary of each decision as a side effect.
// Record must not block and must not fail the decision.
type DecisionAuditor interface {
	Record(rec audit.DecisionRecord)
}

// EnforcementService turns a violation list plus an agent's rolling decision
// history into one graduated enforcement decision. It exclusively owns the
// HistoryLedger; no other component mutates it.
//
// Escalation precedence, first match wins:
//  1. no violations            -> allow
//  2. any critical severity    -> suspend
//  3. any high severity        -> block
//  4. >=3 recent history entries -> block (repeat offender)
//  5. >=1 recent history entry   -> warn
//  6. otherwise                  -> warn
//
// Severity is absolute: a clean history never softens a severity-driven
// block or suspend, and history only escalates otherwise-lenient outcomes.
type EnforcementService struct {
	ledger  *HistoryLedger
	clock   clock.Clock
	logger  *slog.Logger
	tracer  trace.Tracer
	auditor DecisionAuditor
	suspend func(agentID string)
}

// EnforcementOption configures EnforcementService.
type EnforcementOption func(*EnforcementService)

// WithAuditor sets the fire-and-forget decision audit sink.
func WithAuditor(a DecisionAuditor) EnforcementOption {
	return func(s *EnforcementService) {
		s.auditor = a
	}
}

// WithSuspendHook sets a callback invoked after a suspend decision, outside
// the ledger critical section. Used to flip the agent registry status.
func WithSuspendHook(fn func(agentID string)) EnforcementOption {
	return func(s *EnforcementService) {
		s.suspend = fn
	}
}

// NewEnforcementService creates an EnforcementService that owns the given ledger.
func NewEnforcementService(ledger *HistoryLedger, clk clock.Clock, logger *slog.Logger, opts ...EnforcementOption) *EnforcementService {
	s := &EnforcementService{
		ledger: ledger,
		clock:  clk,
		logger: logger,
		tracer: otel.Tracer("gaas/enforcement"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Decide computes the enforcement decision for the proposed action and
// records exactly one history entry for the agent. The history read and the
// append are one atomic unit under the agent's lock; audit logging, metrics,
// and the suspend hook run after the lock is released.
func (s *EnforcementService) Decide(ctx context.Context, agentID, proposedAction string, violations []policy.Violation) enforcement.Decision {
	_, span := s.tracer.Start(ctx, "enforcement.decide",
		trace.WithAttributes(attribute.String("agent.id", agentID)))
	defer span.End()

	now := s.clock.Now()

	var action enforcement.Action
	s.ledger.WithAgent(agentID, func(h *AgentHistory) {
		action = decideAction(violations, func() int {
			return h.CountSince(now.Add(-recentViolationWindow))
		})
		h.Append(enforcement.HistoryRecord{
			Timestamp:       now,
			Decision:        action,
			ViolationsCount: len(violations),
			ProposedAction:  proposedAction,
			ViolationTypes:  violationTypes(violations),
		})
	})

	decision := enforcement.Decision{
		Action:      action,
		AgentID:     agentID,
		Reasoning:   buildReasoning(action, violations),
		Violations:  violations,
		Timestamp:   now,
		Constraints: buildConstraints(action, violations),
	}

	span.SetAttributes(attribute.String("decision", string(action)))

	if action == enforcement.ActionSuspend && s.suspend != nil {
		s.suspend(agentID)
	}

	if s.auditor != nil {
		s.auditor.Record(audit.DecisionRecord{
			Timestamp:      now,
			AgentID:        agentID,
			Decision:       string(action),
			ProposedAction: proposedAction,
			ViolationCount: len(violations),
			ViolationTypes: violationTypes(violations),
			Reasoning:      decision.Reasoning,
		})
	}

	s.logger.Info("enforcement decision",
		"agent_id", agentID,
		"decision", string(action),
		"violations", len(violations),
	)

	return decision
}

// GetHistory returns a copy of the agent's decision history, oldest first.
func (s *EnforcementService) GetHistory(agentID string) []enforcement.HistoryRecord {
	return s.ledger.Records(agentID)
}

// GetStatistics aggregates decision counts across all agents.
func (s *EnforcementService) GetStatistics() enforcement.Statistics {
	return s.ledger.Statistics()
}

// decideAction applies the escalation precedence. recentCount is deferred
// behind a closure so the history is only consulted when severity alone does
// not determine the outcome.
func decideAction(violations []policy.Violation, recentCount func() int) enforcement.Action {
	if len(violations) == 0 {
		return enforcement.ActionAllow
	}

	hasHigh := false
	for _, v := range violations {
		switch v.Severity {
		case policy.SeverityCritical:
			return enforcement.ActionSuspend
		case policy.SeverityHigh:
			hasHigh = true
		}
	}
	if hasHigh {
		return enforcement.ActionBlock
	}

	switch count := recentCount(); {
	case count >= repeatBlockThreshold:
		return enforcement.ActionBlock
	case count >= repeatWarnThreshold:
		return enforcement.ActionWarn
	default:
		return enforcement.ActionWarn
	}
}

// buildReasoning renders the human-readable rationale for the decision.
func buildReasoning(action enforcement.Action, violations []policy.Violation) string {
	if action == enforcement.ActionAllow {
		return "No policy violations detected. Action is permitted."
	}

	summary := make([]string, 0, len(violations))
	for _, v := range violations {
		summary = append(summary, fmt.Sprintf("%s %s", v.Severity, v.ViolationType))
	}
	base := fmt.Sprintf("Detected violations: %s. ", strings.Join(summary, ", "))

	switch action {
	case enforcement.ActionWarn:
		return base + "Action permitted with warning."
	case enforcement.ActionBlock:
		return base + "Action blocked due to policy violations."
	case enforcement.ActionSuspend:
		return base + "Agent suspended due to critical violations."
	default:
		return base
	}
}

// buildConstraints assembles the follow-up constraints for the decision.
// Allow decisions carry no constraints object at all. Severity-driven
// notification flags are independent of the chosen action and combine with
// the action-specific set.
func buildConstraints(action enforcement.Action, violations []policy.Violation) map[string]any {
	if action == enforcement.ActionAllow {
		return nil
	}

	constraints := make(map[string]any)
	switch action {
	case enforcement.ActionWarn:
		constraints["monitoring_required"] = true
		constraints["report_required"] = true
	case enforcement.ActionBlock:
		constraints["action_blocked"] = true
		constraints["retry_allowed"] = false
		constraints["escalation_required"] = true
	case enforcement.ActionSuspend:
		constraints["agent_suspended"] = true
		constraints["manual_review_required"] = true
		constraints["suspension_duration_hours"] = 24
	}

	for _, v := range violations {
		switch v.Severity {
		case policy.SeverityCritical:
			constraints["immediate_notification"] = true
		case policy.SeverityHigh:
			constraints["supervisor_notification"] = true
		}
	}

	return constraints
}

// violationTypes extracts the violation type list for history and audit records.
func violationTypes(violations []policy.Violation) []string {
	if len(violations) == 0 {
		return nil
	}
	types := make([]string, 0, len(violations))
	for _, v := range violations {
		types = append(types, v.ViolationType)
	}
	return types
}
