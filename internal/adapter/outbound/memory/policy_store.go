// Package memory provides in-memory adapter implementations for development
// and testing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Suyash-Gaurav/gaas-system/internal/domain/policy"
)

// PolicyStore implements policy.Store with an in-memory map.
// Thread-safe for concurrent access. For development/testing only.
type PolicyStore struct {
	mu       sync.RWMutex
	policies map[string]*policy.Policy
}

// NewPolicyStore creates a new in-memory policy store.
func NewPolicyStore() *PolicyStore {
	return &PolicyStore{
		policies: make(map[string]*policy.Policy),
	}
}

// GetAllPolicies returns a snapshot of all stored policies.
func (s *PolicyStore) GetAllPolicies(ctx context.Context) (map[string]*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*policy.Policy, len(s.policies))
	for id, p := range s.policies {
		out[id] = p
	}
	return out, nil
}

// GetPolicy returns a policy by ID, or policy.ErrPolicyNotFound.
func (s *PolicyStore) GetPolicy(ctx context.Context, id string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return nil, policy.ErrPolicyNotFound
	}
	return p, nil
}

// SavePolicy validates and stores the policy, replacing any previous version.
func (s *PolicyStore) SavePolicy(ctx context.Context, p *policy.Policy) error {
	if err := p.Document().Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.ID] = p
	return nil
}

// DeletePolicy removes a policy by ID, or returns policy.ErrPolicyNotFound.
func (s *PolicyStore) DeletePolicy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[id]; !ok {
		return policy.ErrPolicyNotFound
	}
	delete(s.policies, id)
	return nil
}

// IsActive reports whether the identified policy is inside its effective window.
func (s *PolicyStore) IsActive(id string, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	return ok && p.ActiveAt(now)
}

// AddPolicy stores a policy without validation (for testing/seeding).
func (s *PolicyStore) AddPolicy(p *policy.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.ID] = p
}

// Compile-time interface verification.
var _ policy.Store = (*PolicyStore)(nil)
