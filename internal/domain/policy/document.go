package policy

import (
	"fmt"
	"strings"
	"time"
)

// Document is the persisted/uploaded wire form of a policy. Field names are
// part of the storage format and must stay stable across versions.
type Document struct {
	PolicyID        string          `json:"policy_id" validate:"required,min=1"`
	PolicyName      string          `json:"policy_name" validate:"required,min=1"`
	PolicyType      string          `json:"policy_type" validate:"required,oneof=access_control data_governance compliance security"`
	Version         string          `json:"version" validate:"required,min=1"`
	PolicyContent   DocumentContent `json:"policy_content"`
	EffectiveDate   string          `json:"effective_date" validate:"required"`
	ExpiryDate      *string         `json:"expiry_date,omitempty"`
	UploadTimestamp string          `json:"upload_timestamp,omitempty"`
}

// DocumentContent is the wire form of the policy content block.
type DocumentContent struct {
	AgentScope  []string       `json:"agent_scope,omitempty"`
	ActionTypes []string       `json:"action_types,omitempty"`
	Conditions  map[string]any `json:"conditions,omitempty"`
	Rules       []DocumentRule `json:"rules"`
}

// DocumentRule is the wire form of a rule. Type selects the kind-specific
// fields; unrecognized types parse to RuleUnknown rather than failing.
type DocumentRule struct {
	Type          string             `json:"type"`
	ViolationType string             `json:"violation_type,omitempty"`
	Severity      string             `json:"severity,omitempty"`
	Description   string             `json:"description,omitempty"`
	Patterns      []string           `json:"patterns,omitempty"`
	AllowedHours  []int              `json:"allowed_hours,omitempty"`
	MaxResources  map[string]float64 `json:"max_resources,omitempty"`
	Expression    string             `json:"expression,omitempty"`
}

// requiredDocumentFields are the fields a document must carry to be stored.
var requiredDocumentFields = []string{"policy_id", "policy_name", "policy_type", "policy_content", "version"}

// Validate checks the structural requirements of the document. It returns an
// InvalidDocumentError listing every missing field, or nil.
func (d *Document) Validate() error {
	var missing []string
	if d.PolicyID == "" {
		missing = append(missing, "policy_id")
	}
	if d.PolicyName == "" {
		missing = append(missing, "policy_name")
	}
	if d.PolicyType == "" {
		missing = append(missing, "policy_type")
	}
	if d.Version == "" {
		missing = append(missing, "version")
	}
	if len(d.PolicyContent.Rules) == 0 && len(d.PolicyContent.Conditions) == 0 &&
		len(d.PolicyContent.AgentScope) == 0 && len(d.PolicyContent.ActionTypes) == 0 {
		missing = append(missing, "policy_content")
	}
	if len(missing) > 0 {
		return &InvalidDocumentError{PolicyID: d.PolicyID, Missing: missing}
	}
	return nil
}

// InvalidDocumentError reports a document rejected for missing required fields.
type InvalidDocumentError struct {
	PolicyID string
	Missing  []string
}

func (e *InvalidDocumentError) Error() string {
	return fmt.Sprintf("invalid policy document %q: missing %s", e.PolicyID, strings.Join(e.Missing, ", "))
}

// timestampLayouts are the accepted wire timestamp formats, tried in order.
// The second form tolerates timestamps persisted without a zone offset.
var timestampLayouts = []string{time.RFC3339, "2006-01-02T15:04:05"}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Parse converts the wire document into a domain Policy. Unknown rule types
// and severities degrade to permissive defaults; only malformed timestamps
// and missing required fields are errors.
func (d *Document) Parse() (*Policy, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	effective, err := parseTimestamp(d.EffectiveDate)
	if err != nil {
		return nil, fmt.Errorf("policy %s: bad effective_date %q: %w", d.PolicyID, d.EffectiveDate, err)
	}

	p := &Policy{
		ID:          d.PolicyID,
		Name:        d.PolicyName,
		Type:        Type(d.PolicyType),
		Version:     d.Version,
		EffectiveAt: effective,
		Content: Content{
			AgentScope:  d.PolicyContent.AgentScope,
			ActionTypes: d.PolicyContent.ActionTypes,
			Conditions:  d.PolicyContent.Conditions,
		},
	}

	if d.ExpiryDate != nil && *d.ExpiryDate != "" {
		expiry, err := parseTimestamp(*d.ExpiryDate)
		if err != nil {
			return nil, fmt.Errorf("policy %s: bad expiry_date %q: %w", d.PolicyID, *d.ExpiryDate, err)
		}
		p.ExpiresAt = &expiry
	}

	if d.UploadTimestamp != "" {
		if uploaded, err := parseTimestamp(d.UploadTimestamp); err == nil {
			p.UploadedAt = uploaded
		}
	}

	p.Content.Rules = make([]Rule, 0, len(d.PolicyContent.Rules))
	for _, r := range d.PolicyContent.Rules {
		p.Content.Rules = append(p.Content.Rules, parseRule(r, d.PolicyID))
	}

	return p, nil
}

func parseRule(r DocumentRule, policyID string) Rule {
	kind := RuleKind(r.Type)
	switch kind {
	case RuleForbiddenAction, RuleTimeRestriction, RuleResourceLimit, RuleApprovalRequired, RuleCELCondition:
	default:
		kind = RuleUnknown
	}

	violationType := r.ViolationType
	if violationType == "" {
		violationType = "policy_violation"
	}
	description := r.Description
	if description == "" {
		description = fmt.Sprintf("Violation of policy %s", policyID)
	}

	return Rule{
		Kind:          kind,
		ViolationType: violationType,
		Severity:      ParseSeverity(r.Severity),
		Description:   description,
		Patterns:      r.Patterns,
		AllowedHours:  r.AllowedHours,
		MaxResources:  r.MaxResources,
		Expression:    r.Expression,
	}
}

// Document converts the domain policy back into its wire form for persistence.
func (p *Policy) Document() *Document {
	d := &Document{
		PolicyID:      p.ID,
		PolicyName:    p.Name,
		PolicyType:    string(p.Type),
		Version:       p.Version,
		EffectiveDate: p.EffectiveAt.UTC().Format(time.RFC3339),
		PolicyContent: DocumentContent{
			AgentScope:  p.Content.AgentScope,
			ActionTypes: p.Content.ActionTypes,
			Conditions:  p.Content.Conditions,
		},
	}
	if p.ExpiresAt != nil {
		s := p.ExpiresAt.UTC().Format(time.RFC3339)
		d.ExpiryDate = &s
	}
	if !p.UploadedAt.IsZero() {
		d.UploadTimestamp = p.UploadedAt.UTC().Format(time.RFC3339)
	}
	d.PolicyContent.Rules = make([]DocumentRule, 0, len(p.Content.Rules))
	for _, r := range p.Content.Rules {
		d.PolicyContent.Rules = append(d.PolicyContent.Rules, DocumentRule{
			Type:          string(r.Kind),
			ViolationType: r.ViolationType,
			Severity:      string(r.Severity),
			Description:   r.Description,
			Patterns:      r.Patterns,
			AllowedHours:  r.AllowedHours,
			MaxResources:  r.MaxResources,
			Expression:    r.Expression,
		})
	}
	return d
}
