package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/forgehold/crucible/internal/manifest"
)

// MemStore is the in-memory Registry, used for embedding and tests.
type MemStore struct {
	mu            sync.RWMutex
	manifests     map[string]*manifest.Manifest
	installations map[string]*Installation
	order         []string // installation IDs in install order
}

// NewMemStore creates an empty in-memory registry.
func NewMemStore() *MemStore {
	return &MemStore{
		manifests:     make(map[string]*manifest.Manifest),
		installations: make(map[string]*Installation),
	}
}

// GetManifest implements Registry.
func (s *MemStore) GetManifest(itemID string) (*manifest.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.manifests[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: manifest %s", ErrNotFound, itemID)
	}
	return m.Clone(), nil
}

// GetInstallation implements Registry.
func (s *MemStore) GetInstallation(installationID, callerID, projectID string) (*Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.installations[installationID]
	if !ok {
		return nil, fmt.Errorf("%w: installation %s", ErrNotFound, installationID)
	}
	if !visibleTo(inst, callerID, projectID) {
		return nil, fmt.Errorf("%w: installation %s", ErrAccessDenied, installationID)
	}
	return inst.Clone(), nil
}

// ListInstallations implements Registry.
func (s *MemStore) ListInstallations(callerID, projectID string) ([]*Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Installation
	for _, id := range s.order {
		inst := s.installations[id]
		if visibleTo(inst, callerID, projectID) {
			out = append(out, inst.Clone())
		}
	}
	return out, nil
}

// Install implements Registry.
func (s *MemStore) Install(inst *Installation, m *manifest.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.installations[inst.ID]; ok {
		return fmt.Errorf("%w: installation %s", ErrExists, inst.ID)
	}
	clone := inst.Clone()
	if clone.InstalledAt.IsZero() {
		clone.InstalledAt = time.Now()
	}
	if clone.Health.Status == "" {
		clone.Health.Status = HealthUnknown
	}
	s.manifests[inst.ItemID] = m.Clone()
	s.installations[inst.ID] = clone
	s.order = append(s.order, inst.ID)
	return nil
}

// SetEnabled implements Registry.
func (s *MemStore) SetEnabled(installationID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.installations[installationID]
	if !ok {
		return fmt.Errorf("%w: installation %s", ErrNotFound, installationID)
	}
	inst.Enabled = enabled
	return nil
}

// Remove implements Registry.
func (s *MemStore) Remove(installationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.installations[installationID]; !ok {
		return fmt.Errorf("%w: installation %s", ErrNotFound, installationID)
	}
	delete(s.installations, installationID)
	for i, id := range s.order {
		if id == installationID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// RecordExecution implements Registry.
func (s *MemStore) RecordExecution(installationID string, duration time.Duration, success bool, costCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.installations[installationID]
	if !ok {
		return fmt.Errorf("%w: installation %s", ErrNotFound, installationID)
	}
	inst.Usage.ExecutionCount++
	if !success {
		inst.Usage.ErrorCount++
	}
	inst.Usage.TotalDurationMS += duration.Milliseconds()
	inst.Usage.TotalCostCents += costCents
	inst.Usage.LastUsed = time.Now()
	return nil
}

// UpdateHealth implements Registry.
func (s *MemStore) UpdateHealth(installationID string, status HealthStatus, issues []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.installations[installationID]
	if !ok {
		return fmt.Errorf("%w: installation %s", ErrNotFound, installationID)
	}
	inst.Health = Health{
		Status:      status,
		LastChecked: time.Now(),
		Issues:      append([]string(nil), issues...),
	}
	return nil
}

// sortByInstallOrder orders installations oldest first, then by ID for
// a stable total order.
func sortByInstallOrder(insts []*Installation) {
	sort.SliceStable(insts, func(i, j int) bool {
		if !insts[i].InstalledAt.Equal(insts[j].InstalledAt) {
			return insts[i].InstalledAt.Before(insts[j].InstalledAt)
		}
		return insts[i].ID < insts[j].ID
	})
}
