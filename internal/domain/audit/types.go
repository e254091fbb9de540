// Package audit contains domain types for the decision audit trail.
package audit

import "time"

// DecisionRecord is one audited enforcement decision. Records are written
// fire-and-forget after the decision is made; a write failure never fails
// or blocks the decision itself.
type DecisionRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	AgentID        string    `json:"agent_id"`
	Decision       string    `json:"decision"`
	ProposedAction string    `json:"proposed_action"`
	ViolationCount int       `json:"violations_count"`
	ViolationTypes []string  `json:"violation_types,omitempty"`
	Reasoning      string    `json:"reasoning"`
}
