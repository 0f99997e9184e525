package catalog

import (
	"context"

	"recordkeeper-hq/keeper/pkg/retention"
)

// ForeignKey relates a referencing (fk) entity to a referenced (pk) entity.
// Column lists are kept as written; a comma marks a multi-column key.
type ForeignKey struct {
	PKEntity  string `yaml:"pk_table" json:"pk_table"`
	FKEntity  string `yaml:"fk_table" json:"fk_table"`
	PKColumns string `yaml:"pk_columns" json:"pk_columns"`
	FKColumns string `yaml:"fk_columns" json:"fk_columns"`
}

// ID is the record identity: the referencing table and its columns. Saving a
// key with an existing ID replaces it.
func (fk ForeignKey) ID() string {
	return fk.FKEntity + "." + fk.FKColumns
}

// GroupAssignment labels an entity with a group.
type GroupAssignment struct {
	EntityPath string `yaml:"entity_path" json:"entity_path"`
	Group      string `yaml:"group" json:"group"`
}

// RelationshipStore yields every foreign-key record.
type RelationshipStore interface {
	ForeignKeys(ctx context.Context) ([]ForeignKey, error)
}

// GroupStore resolves the group of an entity. ok is false when the entity has
// no group assignment.
type GroupStore interface {
	LookupGroup(ctx context.Context, entityPath string) (group string, ok bool, err error)
}

// PolicyStore yields policies of one kind, restricted to ids when ids is
// non-empty, ordered by entity name, then groups, then action.
type PolicyStore interface {
	Policies(ctx context.Context, kind retention.Kind, ids []string) ([]*retention.Policy, error)
}

// Reader combines the read contracts.
type Reader interface {
	RelationshipStore
	GroupStore
	PolicyStore
}

// Writer maintains catalog contents.
type Writer interface {
	SaveForeignKeys(ctx context.Context, fks []ForeignKey) error
	AssignGroup(ctx context.Context, entityPath, group string) error
	Groups(ctx context.Context) ([]GroupAssignment, error)
	PutPolicy(ctx context.Context, p *retention.Policy) error
}

// Store is a readable and writable catalog.
type Store interface {
	Reader
	Writer
	Close() error
}
