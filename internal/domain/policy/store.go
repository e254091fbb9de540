package policy

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for policy store operations.
var (
	ErrPolicyNotFound = errors.New("policy not found")
)

// Store persists and retrieves policy documents. Implementations must hand
// out immutable snapshots: GetAllPolicies returns a set that stays stable for
// the duration of one evaluation even if a concurrent save installs a new
// policy set.
type Store interface {
	// GetAllPolicies returns a snapshot of all stored policies keyed by ID.
	GetAllPolicies(ctx context.Context) (map[string]*Policy, error)
	// GetPolicy returns a policy by ID, or ErrPolicyNotFound.
	GetPolicy(ctx context.Context, id string) (*Policy, error)
	// SavePolicy validates and stores a policy document, replacing any
	// previous version wholesale.
	SavePolicy(ctx context.Context, p *Policy) error
	// DeletePolicy removes a policy by ID, or returns ErrPolicyNotFound.
	DeletePolicy(ctx context.Context, id string) error
	// IsActive reports whether the identified policy is inside its
	// effective window at the given instant. Unknown IDs are inactive.
	IsActive(id string, now time.Time) bool
}
