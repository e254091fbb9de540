// Package file provides the file-backed policy store: one JSON document per
// policy under a storage directory, with an immutable in-memory snapshot
// installed atomically on every change so concurrent evaluations never see a
// half-written policy set.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Suyash-Gaurav/gaas-system/internal/domain/policy"
)

// policySnapshot is the immutable policy set stored in atomic.Value.
type policySnapshot struct {
	policies    map[string]*policy.Policy
	fingerprint uint64
}

// PolicyStore implements policy.Store with JSON files and copy-on-write
// snapshots. Reads are lock-free; the mutex only serializes writers.
type PolicyStore struct {
	dir      string
	logger   *slog.Logger
	mu       sync.Mutex // serializes SavePolicy/DeletePolicy
	snapshot atomic.Value
}

// NewPolicyStore creates the storage directory if needed, loads every
// existing policy document, and installs the initial snapshot. Documents
// that fail to parse are skipped with a warning so one corrupt file cannot
// take down the store.
func NewPolicyStore(dir string, logger *slog.Logger) (*PolicyStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create policy directory: %w", err)
	}

	s := &PolicyStore{dir: dir, logger: logger}

	policies := make(map[string]*policy.Policy)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read policy directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		p, err := loadDocument(path)
		if err != nil {
			logger.Warn("skipping unreadable policy document", "path", path, "error", err)
			continue
		}
		policies[p.ID] = p
	}

	snap := buildSnapshot(policies)
	s.snapshot.Store(snap)
	logger.Info("policy store loaded",
		"dir", dir,
		"policies", len(policies),
		"fingerprint", fmt.Sprintf("%016x", snap.fingerprint),
	)
	return s, nil
}

func loadDocument(path string) (*policy.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc policy.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return doc.Parse()
}

// buildSnapshot computes the content fingerprint over the policy set in
// ascending ID order. The fingerprint changes iff the stored set changes,
// making reloads and no-op saves observable in logs and health output.
func buildSnapshot(policies map[string]*policy.Policy) *policySnapshot {
	ids := make([]string, 0, len(policies))
	for id := range policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := xxhash.New()
	for _, id := range ids {
		doc, _ := json.Marshal(policies[id].Document())
		_, _ = h.WriteString(id)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(doc)
		_, _ = h.Write([]byte{0})
	}

	return &policySnapshot{policies: policies, fingerprint: h.Sum64()}
}

func (s *PolicyStore) load() *policySnapshot {
	return s.snapshot.Load().(*policySnapshot)
}

// GetAllPolicies returns the current snapshot. The returned map is a shallow
// copy; the policies themselves are shared and must be treated as immutable.
func (s *PolicyStore) GetAllPolicies(ctx context.Context) (map[string]*policy.Policy, error) {
	snap := s.load()
	out := make(map[string]*policy.Policy, len(snap.policies))
	for id, p := range snap.policies {
		out[id] = p
	}
	return out, nil
}

// GetPolicy returns a policy by ID, or policy.ErrPolicyNotFound.
func (s *PolicyStore) GetPolicy(ctx context.Context, id string) (*policy.Policy, error) {
	if p, ok := s.load().policies[id]; ok {
		return p, nil
	}
	return nil, policy.ErrPolicyNotFound
}

// IsActive reports whether the identified policy is inside its effective
// window. Unknown IDs are inactive.
func (s *PolicyStore) IsActive(id string, now time.Time) bool {
	p, ok := s.load().policies[id]
	return ok && p.ActiveAt(now)
}

// SavePolicy validates, persists, and publishes the policy. The document is
// written to a temp file and renamed so a crash cannot leave a truncated
// document, then a new snapshot is installed. On write failure the previous
// snapshot keeps serving evaluations.
func (s *PolicyStore) SavePolicy(ctx context.Context, p *policy.Policy) error {
	doc := p.Document()
	if err := doc.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode policy %s: %w", p.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, p.ID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write policy %s: %w", p.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("install policy %s: %w", p.ID, err)
	}

	snap := s.load()
	next := make(map[string]*policy.Policy, len(snap.policies)+1)
	for id, existing := range snap.policies {
		next[id] = existing
	}
	next[p.ID] = p
	newSnap := buildSnapshot(next)
	s.snapshot.Store(newSnap)

	s.logger.Info("policy saved",
		"policy_id", p.ID,
		"version", p.Version,
		"fingerprint", fmt.Sprintf("%016x", newSnap.fingerprint),
	)
	return nil
}

// DeletePolicy removes the document and publishes a snapshot without it.
func (s *PolicyStore) DeletePolicy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.load()
	if _, ok := snap.policies[id]; !ok {
		return policy.ErrPolicyNotFound
	}

	path := filepath.Join(s.dir, id+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove policy %s: %w", id, err)
	}

	next := make(map[string]*policy.Policy, len(snap.policies))
	for pid, existing := range snap.policies {
		if pid != id {
			next[pid] = existing
		}
	}
	s.snapshot.Store(buildSnapshot(next))

	s.logger.Info("policy deleted", "policy_id", id)
	return nil
}

// Fingerprint returns the content hash of the current policy set.
func (s *PolicyStore) Fingerprint() uint64 {
	return s.load().fingerprint
}

// Count returns the number of stored policies.
func (s *PolicyStore) Count() int {
	return len(s.load().policies)
}

// Compile-time interface verification.
var _ policy.Store = (*PolicyStore)(nil)
