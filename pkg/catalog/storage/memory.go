package storage

import (
	"context"
	"sort"
	"sync"

	"recordkeeper-hq/keeper/pkg/catalog"
	"recordkeeper-hq/keeper/pkg/retention"
)

// MemoryStore is an in-memory catalog. Foreign keys are returned in the order
// they were first saved.
type MemoryStore struct {
	mu       sync.RWMutex
	fkOrder  []string
	fks      map[string]catalog.ForeignKey
	groups   map[string]string
	policies map[string]*retention.Policy
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fks:      make(map[string]catalog.ForeignKey),
		groups:   make(map[string]string),
		policies: make(map[string]*retention.Policy),
	}
}

// ForeignKeys implements catalog.RelationshipStore.
func (m *MemoryStore) ForeignKeys(ctx context.Context) ([]catalog.ForeignKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]catalog.ForeignKey, 0, len(m.fkOrder))
	for _, id := range m.fkOrder {
		out = append(out, m.fks[id])
	}
	return out, nil
}

// SaveForeignKeys stores records, replacing any with the same ID.
func (m *MemoryStore) SaveForeignKeys(ctx context.Context, fks []catalog.ForeignKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, fk := range fks {
		id := fk.ID()
		if _, exists := m.fks[id]; !exists {
			m.fkOrder = append(m.fkOrder, id)
		}
		m.fks[id] = fk
	}
	return nil
}

// LookupGroup implements catalog.GroupStore.
func (m *MemoryStore) LookupGroup(ctx context.Context, entityPath string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[entityPath]
	return g, ok, nil
}

// AssignGroup sets an entity's group. An empty group removes the assignment.
func (m *MemoryStore) AssignGroup(ctx context.Context, entityPath, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if group == "" {
		delete(m.groups, entityPath)
		return nil
	}
	m.groups[entityPath] = group
	return nil
}

// Groups lists assignments ordered by entity path.
func (m *MemoryStore) Groups(ctx context.Context) ([]catalog.GroupAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]catalog.GroupAssignment, 0, len(m.groups))
	for path, g := range m.groups {
		out = append(out, catalog.GroupAssignment{EntityPath: path, Group: g})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityPath < out[j].EntityPath })
	return out, nil
}

// Policies implements catalog.PolicyStore.
func (m *MemoryStore) Policies(ctx context.Context, kind retention.Kind, ids []string) ([]*retention.Policy, error) {
	m.mu.RLock()
	all := make([]*retention.Policy, 0, len(m.policies))
	for _, p := range m.policies {
		cp := *p
		all = append(all, &cp)
	}
	m.mu.RUnlock()

	return catalog.SelectPolicies(all, kind, ids), nil
}

// PutPolicy creates or replaces a policy.
func (m *MemoryStore) PutPolicy(ctx context.Context, p *retention.Policy) error {
	catalog.PreparePolicy(p)

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	m.policies[p.ID] = &cp
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

var _ catalog.Store = (*MemoryStore)(nil)
