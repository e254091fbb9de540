// Package enforcement contains domain types for graduated enforcement
// decisions: the verdict for one proposed action plus the per-agent history
// that drives repeat-offender escalation.
package enforcement

import (
	"time"

	"github.com/Suyash-Gaurav/gaas-system/internal/domain/policy"
)

// Action is the engine's verdict for one proposed agent action.
type Action string

const (
	// ActionAllow permits the action with no constraints.
	ActionAllow Action = "allow"
	// ActionWarn permits the action under monitoring constraints.
	ActionWarn Action = "warn"
	// ActionBlock rejects the action.
	ActionBlock Action = "block"
	// ActionSuspend rejects the action and suspends the agent.
	ActionSuspend Action = "suspend"
)

// Decision is the outcome of one enforcement evaluation. It is transient:
// computed fresh per request, with a summary appended to the agent's history.
type Decision struct {
	Action     Action             `json:"decision"`
	AgentID    string             `json:"agent_id"`
	Reasoning  string             `json:"reasoning"`
	Violations []policy.Violation `json:"violations"`
	Timestamp  time.Time          `json:"timestamp"`
	// Constraints is nil for allow decisions (absent, not empty).
	Constraints map[string]any `json:"additional_constraints,omitempty"`
}

// HistoryRecord is the bounded per-agent summary of a past decision.
type HistoryRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	Decision        Action    `json:"decision"`
	ViolationsCount int       `json:"violations_count"`
	ProposedAction  string    `json:"proposed_action"`
	ViolationTypes  []string  `json:"violation_types"`
}

// Statistics is an aggregate view over all agents' decision histories.
type Statistics struct {
	TotalDecisions    int            `json:"total_decisions"`
	DecisionsByType   map[string]int `json:"decisions_by_type"`
	AgentsWithHistory int            `json:"agents_with_history"`
}
