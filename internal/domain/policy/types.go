// Package policy contains domain types for governance policy evaluation.
package policy

import "time"

// Severity is the ordinal weight of a violation, driving enforcement escalation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the escalation rank of the severity (low=0 .. critical=3).
// Unknown severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// ParseSeverity maps a wire severity string to a Severity.
// Unrecognized values default to medium, mirroring the document schema defaults.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s)
	default:
		return SeverityMedium
	}
}

// Type categorizes a policy document.
type Type string

const (
	TypeAccessControl  Type = "access_control"
	TypeDataGovernance Type = "data_governance"
	TypeCompliance     Type = "compliance"
	TypeSecurity       Type = "security"
)

// RuleKind discriminates the rule variants a policy may carry.
type RuleKind string

const (
	// RuleForbiddenAction fires when a forbidden pattern appears in the
	// action description (case-insensitive substring match).
	RuleForbiddenAction RuleKind = "forbidden_action"
	// RuleTimeRestriction fires when the current hour of day is outside
	// the allowed hours.
	RuleTimeRestriction RuleKind = "time_restriction"
	// RuleResourceLimit fires when reported resource usage exceeds a limit.
	RuleResourceLimit RuleKind = "resource_limit"
	// RuleApprovalRequired fires unless the request context carries
	// approved=true.
	RuleApprovalRequired RuleKind = "approval_required"
	// RuleCELCondition fires when a CEL expression over the request
	// evaluates to true.
	RuleCELCondition RuleKind = "cel_condition"
	// RuleUnknown is the parse result for unrecognized rule types.
	// Unknown rules never fire.
	RuleUnknown RuleKind = "unknown"
)

// Rule is one condition-to-violation mapping inside a policy's rule list.
// Kind selects which of the payload fields are meaningful; the others are
// zero-valued. Rules are evaluated in declaration order and the first rule
// that fires produces the policy's single violation.
type Rule struct {
	Kind          RuleKind
	ViolationType string
	Severity      Severity
	Description   string

	// Patterns is the payload for RuleForbiddenAction.
	Patterns []string
	// AllowedHours is the payload for RuleTimeRestriction (hours 0-23).
	AllowedHours []int
	// MaxResources is the payload for RuleResourceLimit.
	MaxResources map[string]float64
	// Expression is the payload for RuleCELCondition.
	Expression string
}

// Content holds the scope filters and rule list of a policy.
type Content struct {
	// AgentScope limits the policy to specific agent IDs. Empty or
	// containing "*" means the policy applies to all agents.
	AgentScope []string
	// ActionTypes limits the policy to specific action types. Empty or
	// containing "*" means all action types.
	ActionTypes []string
	// Conditions are exact-match predicates against the request context.
	// A missing context key means the condition fails and the policy does
	// not apply.
	Conditions map[string]any
	// Rules are evaluated in order; first firing rule wins.
	Rules []Rule
}

// Policy is a versioned, time-scoped governance document. Policies are
// immutable once loaded; uploads replace the stored document wholesale.
type Policy struct {
	ID          string
	Name        string
	Type        Type
	Version     string
	Content     Content
	EffectiveAt time.Time
	// ExpiresAt is nil for policies without an expiry.
	ExpiresAt  *time.Time
	UploadedAt time.Time
}

// ActiveAt reports whether the policy is within its effective window at
// the given instant. A zero EffectiveAt means not yet effective.
func (p *Policy) ActiveAt(now time.Time) bool {
	if p.EffectiveAt.IsZero() || now.Before(p.EffectiveAt) {
		return false
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return false
	}
	return true
}

// Violation is the immutable result of one rule firing against one request.
type Violation struct {
	PolicyID      string   `json:"policy_id"`
	ViolationType string   `json:"violation_type"`
	Severity      Severity `json:"severity"`
	Description   string   `json:"description"`
}
