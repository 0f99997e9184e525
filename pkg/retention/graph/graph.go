// Package graph builds the entity relationship graph the cascade walks: an
// undirected graph whose nodes are grouped entities and whose edges carry the
// join column on each endpoint.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"recordkeeper-hq/keeper/pkg/catalog"
	"recordkeeper-hq/keeper/pkg/retention"
)

// Node is an entity that has a group assignment.
type Node struct {
	Path  string
	Name  string
	Group string
}

// Edge joins two nodes. Each endpoint has its own join column.
type Edge struct {
	A, B     string // endpoint paths
	AColumns string
	BColumns string
}

// ColumnFor returns the join column of the given endpoint.
func (e *Edge) ColumnFor(path string) string {
	if path == e.A {
		return e.AColumns
	}
	return e.BColumns
}

// Other returns the endpoint opposite path.
func (e *Edge) Other(path string) string {
	if path == e.A {
		return e.B
	}
	return e.A
}

// Neighbor is an adjacent node together with the edge leading to it.
type Neighbor struct {
	Node *Node
	Edge *Edge
}

// JoinColumns returns the near and far join columns of the edge as seen from
// the node at path.
func (n Neighbor) JoinColumns(from string) (near, far string) {
	return n.Edge.ColumnFor(from), n.Edge.ColumnFor(n.Node.Path)
}

// Graph is read-only once built.
type Graph struct {
	nodes     map[string]*Node
	adjacency map[string][]string
	edges     map[edgeKey]*Edge
}

type edgeKey struct{ a, b string }

func keyOf(a, b string) edgeKey {
	if b < a {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:     make(map[string]*Node),
		adjacency: make(map[string][]string),
		edges:     make(map[edgeKey]*Edge),
	}
}

// AddNode adds a node, replacing the group of an existing node with the same
// path.
func (g *Graph) AddNode(path, group string) *Node {
	if n, ok := g.nodes[path]; ok {
		n.Group = group
		return n
	}
	n := &Node{Path: path, Name: retention.EntityName(path), Group: group}
	g.nodes[path] = n
	return n
}

// AddEdge connects two existing nodes. Adding an edge that already exists
// replaces its join columns. Both endpoints must already be nodes.
func (g *Graph) AddEdge(a, b, aColumns, bColumns string) error {
	if _, ok := g.nodes[a]; !ok {
		return fmt.Errorf("edge endpoint %s is not a node", a)
	}
	if _, ok := g.nodes[b]; !ok {
		return fmt.Errorf("edge endpoint %s is not a node", b)
	}

	k := keyOf(a, b)
	if e, ok := g.edges[k]; ok {
		e.A, e.B, e.AColumns, e.BColumns = a, b, aColumns, bColumns
		return nil
	}
	g.edges[k] = &Edge{A: a, B: b, AColumns: aColumns, BColumns: bColumns}
	g.adjacency[a] = append(g.adjacency[a], b)
	g.adjacency[b] = append(g.adjacency[b], a)
	return nil
}

// Node returns the node at path.
func (g *Graph) Node(path string) (*Node, bool) {
	n, ok := g.nodes[path]
	return n, ok
}

// Edge returns the edge between a and b.
func (g *Graph) Edge(a, b string) (*Edge, bool) {
	e, ok := g.edges[keyOf(a, b)]
	return e, ok
}

// Neighbors returns the nodes adjacent to path in the order their edges were
// added. It is empty for absent or isolated nodes.
func (g *Graph) Neighbors(path string) []Neighbor {
	adj := g.adjacency[path]
	out := make([]Neighbor, 0, len(adj))
	for _, other := range adj {
		out = append(out, Neighbor{Node: g.nodes[other], Edge: g.edges[keyOf(path, other)]})
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Build constructs the graph from foreign-key records. An entity becomes a
// node only if groups resolves a group for it, and an edge is added only when
// both endpoints are nodes. Omitted records are logged, not reported as
// errors; a failing group lookup is an error.
func Build(ctx context.Context, fks []catalog.ForeignKey, groups catalog.GroupStore, logger *slog.Logger) (*Graph, error) {
	if logger == nil {
		logger = slog.Default().With("component", "retention.graph")
	}

	g := New()
	cache := make(map[string]string)
	lookup := func(path string) (string, error) {
		if group, ok := cache[path]; ok {
			return group, nil
		}
		group, ok, err := groups.LookupGroup(ctx, path)
		if err != nil {
			return "", fmt.Errorf("lookup group for %s: %w", path, err)
		}
		if !ok {
			group = ""
		}
		cache[path] = group
		return group, nil
	}

	for _, fk := range fks {
		if fk.PKEntity == fk.FKEntity {
			logger.Warn("skipping self-referencing foreign key", "entity", fk.PKEntity, "columns", fk.FKColumns)
			continue
		}

		pkGroup, err := lookup(fk.PKEntity)
		if err != nil {
			return nil, err
		}
		fkGroup, err := lookup(fk.FKEntity)
		if err != nil {
			return nil, err
		}

		if pkGroup != "" {
			g.AddNode(fk.PKEntity, pkGroup)
		}
		if fkGroup != "" {
			g.AddNode(fk.FKEntity, fkGroup)
		}
		if pkGroup == "" || fkGroup == "" {
			logger.Debug("foreign key omitted from graph: endpoint has no group",
				"pk_entity", fk.PKEntity,
				"fk_entity", fk.FKEntity,
			)
			continue
		}

		if err := g.AddEdge(fk.PKEntity, fk.FKEntity, fk.PKColumns, fk.FKColumns); err != nil {
			return nil, err
		}
	}

	logger.Info("relationship graph built", "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return g, nil
}
