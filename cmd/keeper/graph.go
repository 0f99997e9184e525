package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recordkeeper-hq/keeper/pkg/retention/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect the entity relationship graph",
}

var graphNeighborsCmd = &cobra.Command{
	Use:   "neighbors <entity>",
	Short: "List the entities related to an entity",
	Long: `List the grouped entities that share a foreign key with <entity>, with
their groups and the columns each side of the relationship joins on.
Entities without a group assignment are not part of the graph.`,
	Args: cobra.ExactArgs(1),
	RunE: runGraphNeighbors,
}

func init() {
	graphCmd.AddCommand(graphNeighborsCmd)
	rootCmd.AddCommand(graphCmd)
}

// neighborTable lists the neighbors of one entity.
type neighborTable struct {
	Entity    string          `json:"entity"`
	Neighbors []neighborEntry `json:"neighbors"`
}

type neighborEntry struct {
	Entity     string `json:"entity"`
	Group      string `json:"group"`
	JoinColumn string `json:"join_column"`
	OnColumn   string `json:"on_column"`
}

func newNeighborTable(g *graph.Graph, entity string) neighborTable {
	t := neighborTable{Entity: entity, Neighbors: []neighborEntry{}}
	for _, nb := range g.Neighbors(entity) {
		near, far := nb.JoinColumns(entity)
		t.Neighbors = append(t.Neighbors, neighborEntry{
			Entity:     nb.Node.Path,
			Group:      nb.Node.Group,
			JoinColumn: far,
			OnColumn:   near,
		})
	}
	return t
}

func (t neighborTable) Header() []string {
	return []string{"NEIGHBOR", "GROUP", "NEIGHBOR COLUMNS", "ENTITY COLUMNS"}
}

func (t neighborTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Neighbors))
	for _, n := range t.Neighbors {
		rows = append(rows, []string{n.Entity, n.Group, n.JoinColumn, n.OnColumn})
	}
	return rows
}

func runGraphNeighbors(cmd *cobra.Command, args []string) error {
	out, err := formatter()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	fks, err := a.store.ForeignKeys(ctx)
	if err != nil {
		return err
	}
	g, err := graph.Build(ctx, fks, a.store, a.logger)
	if err != nil {
		return err
	}

	entity := args[0]
	node, ok := g.Node(entity)
	if !ok {
		return fmt.Errorf("%s is not in the relationship graph (no group assignment or no foreign keys)", entity)
	}
	a.logger.Debug("graph built", "nodes", g.NodeCount(), "edges", g.EdgeCount(), "group", node.Group)
	return out.FormatTo(cmd.OutOrStdout(), newNeighborTable(g, entity))
}
