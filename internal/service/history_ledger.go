package service

import (
	"sync"
	"time"

	"github.com/Suyash-Gaurav/gaas-system/internal/domain/enforcement"
)

// defaultHistoryCap is the hard bound on records kept per agent.
const defaultHistoryCap = 100

// HistoryLedger is the bounded, per-agent append-only log of past enforcement
// decisions. The EnforcementService owns the ledger exclusively; the history
// read and the subsequent append for one decision execute as a single
// critical section per agent, so concurrent decisions for the same agent
// cannot both observe the same history count. Distinct agents never contend:
// lock granularity is per agent ID.
type HistoryLedger struct {
	cap int

	mu     sync.RWMutex
	agents map[string]*AgentHistory
}

// AgentHistory is one agent's decision history. Methods must only be called
// inside the callback passed to HistoryLedger.WithAgent.
type AgentHistory struct {
	mu      sync.Mutex
	cap     int
	records []enforcement.HistoryRecord
}

// NewHistoryLedger creates a ledger. A non-positive cap uses the default of
// 100 records per agent.
func NewHistoryLedger(recordCap int) *HistoryLedger {
	if recordCap <= 0 {
		recordCap = defaultHistoryCap
	}
	return &HistoryLedger{
		cap:    recordCap,
		agents: make(map[string]*AgentHistory),
	}
}

// entry returns the agent's history, creating it on first use.
func (l *HistoryLedger) entry(agentID string) *AgentHistory {
	l.mu.RLock()
	h, ok := l.agents[agentID]
	l.mu.RUnlock()
	if ok {
		return h
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok = l.agents[agentID]; ok {
		return h
	}
	h = &AgentHistory{cap: l.cap}
	l.agents[agentID] = h
	return h
}

// WithAgent runs fn while holding the agent's exclusive lock. Callers must
// not perform I/O inside fn; persistence and logging side effects belong
// after the critical section.
func (l *HistoryLedger) WithAgent(agentID string, fn func(h *AgentHistory)) {
	h := l.entry(agentID)
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h)
}

// CountSince returns how many records have a timestamp at or after cutoff.
func (h *AgentHistory) CountSince(cutoff time.Time) int {
	count := 0
	for _, rec := range h.records {
		if !rec.Timestamp.Before(cutoff) {
			count++
		}
	}
	return count
}

// Append adds a record and evicts the oldest entries beyond the cap.
func (h *AgentHistory) Append(rec enforcement.HistoryRecord) {
	h.records = append(h.records, rec)
	if len(h.records) > h.cap {
		// Shift rather than reslice so the backing array cannot grow
		// without bound across many appends.
		overflow := len(h.records) - h.cap
		copy(h.records, h.records[overflow:])
		h.records = h.records[:h.cap]
	}
}

// Records returns a copy of the agent's history, oldest first. Unknown
// agents yield an empty slice.
func (l *HistoryLedger) Records(agentID string) []enforcement.HistoryRecord {
	l.mu.RLock()
	h, ok := l.agents[agentID]
	l.mu.RUnlock()
	if !ok {
		return []enforcement.HistoryRecord{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]enforcement.HistoryRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Statistics folds over every agent's history.
func (l *HistoryLedger) Statistics() enforcement.Statistics {
	l.mu.RLock()
	entries := make([]*AgentHistory, 0, len(l.agents))
	for _, h := range l.agents {
		entries = append(entries, h)
	}
	l.mu.RUnlock()

	stats := enforcement.Statistics{
		DecisionsByType: make(map[string]int),
	}
	for _, h := range entries {
		h.mu.Lock()
		if len(h.records) > 0 {
			stats.AgentsWithHistory++
		}
		stats.TotalDecisions += len(h.records)
		for _, rec := range h.records {
			stats.DecisionsByType[string(rec.Decision)]++
		}
		h.mu.Unlock()
	}
	return stats
}
