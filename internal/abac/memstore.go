package abac

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory VersionStore used by tests. SwapPublished
// holds the lock for the whole swap, giving the same all-or-nothing
// visibility the SQL store gets from a transaction.
type MemoryStore struct {
	mu           sync.RWMutex
	setsByTenant map[string]*PolicySet
	versions     map[string]*Version
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		setsByTenant: make(map[string]*PolicySet),
		versions:     make(map[string]*Version),
		now:          time.Now,
	}
}

func (m *MemoryStore) GetSet(_ context.Context, tenantID string) (*PolicySet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.setsByTenant[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *set
	return &copied, nil
}

func (m *MemoryStore) CreateSet(_ context.Context, set *PolicySet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *set
	m.setsByTenant[set.TenantID] = &copied
	return nil
}

func (m *MemoryStore) ListVersions(_ context.Context, setID string) ([]Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Version
	for _, v := range m.versions {
		if v.PolicySetID == setID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNo < out[j].VersionNo })
	return out, nil
}

func (m *MemoryStore) GetVersion(_ context.Context, versionID string) (*Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[versionID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (m *MemoryStore) CreateVersion(_ context.Context, v *Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *v
	m.versions[v.ID] = &copied
	return nil
}

func (m *MemoryStore) UpdateVersion(_ context.Context, v *Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.versions[v.ID]; !ok {
		return ErrNotFound
	}
	copied := *v
	m.versions[v.ID] = &copied
	return nil
}

func (m *MemoryStore) MaxVersionNo(_ context.Context, setID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max := 0
	for _, v := range m.versions {
		if v.PolicySetID == setID && v.VersionNo > max {
			max = v.VersionNo
		}
	}
	return max, nil
}

func (m *MemoryStore) SwapPublished(_ context.Context, setID, newVersionID string, mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.versions[newVersionID]
	if !ok || target.PolicySetID != setID {
		return ErrNotFound
	}

	var set *PolicySet
	for _, s := range m.setsByTenant {
		if s.ID == setID {
			set = s
			break
		}
	}
	if set == nil {
		return ErrNotFound
	}

	for _, v := range m.versions {
		if v.PolicySetID == setID && v.Status == StatusPublished && v.ID != newVersionID {
			v.Status = StatusArchived
		}
	}

	target.Status = StatusPublished
	publishedAt := m.now()
	target.PublishedAt = &publishedAt
	set.PublishedVersionID = newVersionID
	set.Mode = mode
	return nil
}
