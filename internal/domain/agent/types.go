// Package agent contains domain types for registered governance agents.
package agent

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a registered agent.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Sentinel errors for registry operations.
var (
	ErrAgentExists    = errors.New("agent already registered")
	ErrAgentNotFound  = errors.New("agent not registered")
	ErrAgentNotActive = errors.New("agent is not active")
)

// Agent is a registered autonomous agent subject to governance policies.
type Agent struct {
	ID           string    `json:"agent_id"`
	Name         string    `json:"name"`
	Capabilities []string  `json:"capabilities"`
	AgentType    string    `json:"agent_type"`
	ContactInfo  string    `json:"contact_info,omitempty"`
	Status       Status    `json:"status"`
	RegisteredAt time.Time `json:"registration_timestamp"`
}
