// Package actionlog contains domain types for the agent action log: the
// record of actions agents report having taken, with any policy violations
// detected at submission time. Compliance reports fold over this log.
package actionlog

import "time"

// Action type classifications for proposed and logged actions.
const (
	ActionDataAccess      = "data_access"
	ActionSystemModify    = "system_modification"
	ActionUserInteraction = "user_interaction"
	ActionExternalAPICall = "external_api_call"
)

// KnownActionType reports whether t is one of the recognized classifications.
func KnownActionType(t string) bool {
	switch t {
	case ActionDataAccess, ActionSystemModify, ActionUserInteraction, ActionExternalAPICall:
		return true
	}
	return false
}

// Record is one logged agent action with its violation summary.
type Record struct {
	LogID            string    `json:"log_id"`
	AgentID          string    `json:"agent_id"`
	ActionType       string    `json:"action_type"`
	Description      string    `json:"action_description"`
	Timestamp        time.Time `json:"timestamp"`
	ResourceAccessed string    `json:"resource_accessed,omitempty"`
	ViolationCount   int       `json:"violation_count"`
	ViolationTypes   []string  `json:"violation_types,omitempty"`
}

// PeriodStats aggregates action log records over a reporting window.
type PeriodStats struct {
	TotalActions     int
	CompliantActions int
	TotalViolations  int
	// ViolationTypes counts occurrences per violation type.
	ViolationTypes map[string]int
}

// ComplianceRate returns the fraction of logged actions without violations.
// A window with no actions reports 1.0.
func (s PeriodStats) ComplianceRate() float64 {
	if s.TotalActions == 0 {
		return 1.0
	}
	return float64(s.CompliantActions) / float64(s.TotalActions)
}
