package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"recordkeeper-hq/keeper/pkg/catalog"
	"recordkeeper-hq/keeper/pkg/retention"
)

// Document is the on-disk catalog layout.
type Document struct {
	ForeignKeys []catalog.ForeignKey `yaml:"foreign_keys"`
	Groups      map[string]string    `yaml:"groups"`
	Policies    []*retention.Policy  `yaml:"policies"`
}

// Store is a catalog.Store over a YAML document. Reads are served from the
// last loaded snapshot; writes rewrite the whole document.
type Store struct {
	path   string
	logger *slog.Logger

	mu  sync.RWMutex
	doc *Document
}

// Open loads the document at path. A missing file yields an empty catalog
// that is created on the first write.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		logger: slog.Default().With("component", "catalog.file"),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the document from disk.
func (s *Store) Reload() error {
	doc, err := readDocument(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()

	s.logger.Debug("catalog loaded",
		"path", s.path,
		"foreign_keys", len(doc.ForeignKeys),
		"groups", len(doc.Groups),
		"policies", len(doc.Policies),
	)
	return nil
}

func readDocument(path string) (*Document, error) {
	doc := &Document{Groups: map[string]string{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if doc.Groups == nil {
		doc.Groups = map[string]string{}
	}
	for _, p := range doc.Policies {
		catalog.PreparePolicy(p)
	}
	return doc, nil
}

// write persists the document atomically. Callers hold s.mu.
func (s *Store) write() error {
	data, err := yaml.Marshal(s.doc)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create catalog directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

// ForeignKeys implements catalog.RelationshipStore.
func (s *Store) ForeignKeys(ctx context.Context) ([]catalog.ForeignKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]catalog.ForeignKey(nil), s.doc.ForeignKeys...), nil
}

// LookupGroup implements catalog.GroupStore.
func (s *Store) LookupGroup(ctx context.Context, entityPath string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.doc.Groups[entityPath]
	return g, ok && g != "", nil
}

// Policies implements catalog.PolicyStore.
func (s *Store) Policies(ctx context.Context, kind retention.Kind, ids []string) ([]*retention.Policy, error) {
	s.mu.RLock()
	all := make([]*retention.Policy, 0, len(s.doc.Policies))
	for _, p := range s.doc.Policies {
		cp := *p
		all = append(all, &cp)
	}
	s.mu.RUnlock()
	return catalog.SelectPolicies(all, kind, ids), nil
}

// SaveForeignKeys replaces records with the same ID and appends the rest.
func (s *Store) SaveForeignKeys(ctx context.Context, fks []catalog.ForeignKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[string]int, len(s.doc.ForeignKeys))
	for i, fk := range s.doc.ForeignKeys {
		index[fk.ID()] = i
	}
	for _, fk := range fks {
		if i, ok := index[fk.ID()]; ok {
			s.doc.ForeignKeys[i] = fk
			continue
		}
		index[fk.ID()] = len(s.doc.ForeignKeys)
		s.doc.ForeignKeys = append(s.doc.ForeignKeys, fk)
	}
	return s.write()
}

// AssignGroup sets an entity's group. An empty group removes the assignment.
func (s *Store) AssignGroup(ctx context.Context, entityPath, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if group == "" {
		delete(s.doc.Groups, entityPath)
	} else {
		s.doc.Groups[entityPath] = group
	}
	return s.write()
}

// Groups lists assignments ordered by entity path.
func (s *Store) Groups(ctx context.Context) ([]catalog.GroupAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]catalog.GroupAssignment, 0, len(s.doc.Groups))
	for path, g := range s.doc.Groups {
		out = append(out, catalog.GroupAssignment{EntityPath: path, Group: g})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityPath < out[j].EntityPath })
	return out, nil
}

// PutPolicy creates or replaces a policy.
func (s *Store) PutPolicy(ctx context.Context, p *retention.Policy) error {
	catalog.PreparePolicy(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	for i, existing := range s.doc.Policies {
		if existing.ID == p.ID {
			s.doc.Policies[i] = &cp
			return s.write()
		}
	}
	s.doc.Policies = append(s.doc.Policies, &cp)
	return s.write()
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

var _ catalog.Store = (*Store)(nil)
