package cascade

import (
	"log/slog"

	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/retention/graph"
)

// VisitedSet holds the entity names a transitive walk has reached.
type VisitedSet map[string]struct{}

// Add marks name visited and reports whether it was new.
func (v VisitedSet) Add(name string) bool {
	if _, ok := v[name]; ok {
		return false
	}
	v[name] = struct{}{}
	return true
}

// Has reports whether name was visited.
func (v VisitedSet) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// SingleHop returns the in-scope direct neighbors of source in adjacency
// order. It is empty when the policy does not group or there is no graph.
func SingleHop(g *graph.Graph, p *retention.Policy, source string, logger *slog.Logger) []graph.Neighbor {
	if g == nil || !p.Grouping {
		return nil
	}
	var out []graph.Neighbor
	for _, nb := range g.Neighbors(source) {
		if !p.InScope(nb.Node.Group) {
			logger.Debug("neighbor out of scope", "neighbor", nb.Node.Path, "group", nb.Node.Group)
			continue
		}
		out = append(out, nb)
	}
	return out
}

// VisitFunc handles an in-scope neighbor reached from the entity at from.
// Returning true continues the walk from the neighbor.
type VisitFunc func(from string, nb graph.Neighbor) bool

// Walk visits the in-scope entities reachable from source depth-first, in
// adjacency order. Each entity name is visited at most once; the source
// counts as visited. Out-of-scope neighbors are skipped without being
// marked visited.
func Walk(g *graph.Graph, p *retention.Policy, source string, visit VisitFunc, logger *slog.Logger) VisitedSet {
	visited := VisitedSet{}
	visited.Add(retention.EntityName(source))
	if g == nil || !p.Grouping {
		return visited
	}

	type frame struct {
		path      string
		neighbors []graph.Neighbor
		next      int
	}
	stack := []*frame{{path: source, neighbors: g.Neighbors(source)}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.neighbors) {
			stack = stack[:len(stack)-1]
			continue
		}
		nb := top.neighbors[top.next]
		top.next++

		if !p.InScope(nb.Node.Group) {
			logger.Debug("neighbor out of scope", "from", top.path, "neighbor", nb.Node.Path, "group", nb.Node.Group)
			continue
		}
		if !visited.Add(nb.Node.Name) {
			logger.Debug("neighbor already visited", "from", top.path, "neighbor", nb.Node.Path)
			continue
		}
		logger.Debug("evaluating neighbor", "from", top.path, "neighbor", nb.Node.Path)
		if visit(top.path, nb) {
			stack = append(stack, &frame{path: nb.Node.Path, neighbors: g.Neighbors(nb.Node.Path)})
		}
	}
	return visited
}
