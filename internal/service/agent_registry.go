package service

import (
	"sort"
	"sync"

	"github.com/Suyash-Gaurav/gaas-system/internal/clock"
	"github.com/Suyash-Gaurav/gaas-system/internal/domain/agent"
)

// AgentRegistry tracks registered agents in memory.
// It is safe for concurrent use.
type AgentRegistry struct {
	clock  clock.Clock
	mu     sync.RWMutex
	agents map[string]*agent.Agent
}

// NewAgentRegistry creates a new empty AgentRegistry.
func NewAgentRegistry(clk clock.Clock) *AgentRegistry {
	return &AgentRegistry{
		clock:  clk,
		agents: make(map[string]*agent.Agent),
	}
}

// Register adds an agent. Duplicate IDs are rejected with ErrAgentExists.
// The returned agent carries the assigned status and registration timestamp.
func (r *AgentRegistry) Register(a agent.Agent) (*agent.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[a.ID]; ok {
		return nil, agent.ErrAgentExists
	}

	copied := a
	copied.Status = agent.StatusActive
	copied.RegisteredAt = r.clock.Now()
	r.agents[a.ID] = &copied

	result := copied
	return &result, nil
}

// Get returns a copy of the agent by ID, or ErrAgentNotFound.
func (r *AgentRegistry) Get(id string) (*agent.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, agent.ErrAgentNotFound
	}
	copied := *a
	return &copied, nil
}

// RequireActive returns the agent if it is registered and active.
// Returns ErrAgentNotFound or ErrAgentNotActive otherwise.
func (r *AgentRegistry) RequireActive(id string) (*agent.Agent, error) {
	a, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if a.Status != agent.StatusActive {
		return nil, agent.ErrAgentNotActive
	}
	return a, nil
}

// List returns all agents sorted by registration time descending (newest first).
func (r *AgentRegistry) List() []agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]agent.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		result = append(result, *a)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RegisteredAt.After(result[j].RegisteredAt)
	})

	return result
}

// Count returns the number of registered agents.
func (r *AgentRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// SetStatus updates the status of an agent by ID.
// Does nothing if the agent is not found.
func (r *AgentRegistry) SetStatus(id string, status agent.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.agents[id]; ok {
		a.Status = status
	}
}

// Suspend marks the agent suspended. Used as the enforcement suspend hook.
func (r *AgentRegistry) Suspend(id string) {
	r.SetStatus(id, agent.StatusSuspended)
}
