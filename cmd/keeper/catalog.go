package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"recordkeeper-hq/keeper/pkg/catalog"
	"recordkeeper-hq/keeper/pkg/cli"
	"recordkeeper-hq/keeper/pkg/retention"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Maintain foreign keys, groups and policies",
}

var fkCmd = &cobra.Command{
	Use:   "fk",
	Short: "Import or export foreign-key relationships",
}

var fkImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load ALTER TABLE ... ADD FOREIGN KEY statements",
	Long: `Parse a file of statements of the form

  ALTER TABLE <fk_table> ADD FOREIGN KEY (<columns>) REFERENCES <pk_table>(<columns>);

and save each as a relationship. A relationship with the same referencing
table and columns as an existing one replaces it. Use "-" to read stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runFKImport,
}

var fkExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print every relationship as an ALTER TABLE statement",
	Args:  cobra.NoArgs,
	RunE:  runFKExport,
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Assign entities to groups",
}

var groupSetCmd = &cobra.Command{
	Use:   "set <entity> <group>",
	Short: "Assign an entity to a group",
	Args:  cobra.ExactArgs(2),
	RunE:  runGroupSet,
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List group assignments",
	Args:  cobra.NoArgs,
	RunE:  runGroupList,
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Create and list retention policies",
}

var policyPutCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Create or update policies from a YAML document",
	Long: `Create or update the policies in a YAML document holding one policy or a
list of policies. A policy without policy_id is given a generated id.

Example document:

  - kind: scheduled
    storage_system: BQ
    entity_path: sales.orders
    grouping: true
    entity_groups: [Sales]
    policy_action: archive
    ts_column: created_at
    retention: {value: 7, unit: year}`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicyPut,
}

var policyListFlags struct {
	kind string
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List policies in run order",
	Args:  cobra.NoArgs,
	RunE:  runPolicyList,
}

func init() {
	fkCmd.AddCommand(fkImportCmd, fkExportCmd)
	groupCmd.AddCommand(groupSetCmd, groupListCmd)
	policyCmd.AddCommand(policyPutCmd, policyListCmd)
	catalogCmd.AddCommand(fkCmd, groupCmd, policyCmd)
	rootCmd.AddCommand(catalogCmd)

	policyListCmd.Flags().StringVar(&policyListFlags.kind, "kind", "", `only list policies of this kind ("scheduled" or "on-demand")`)
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

func runFKImport(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	fks, err := catalog.ParseForeignKeyStatements(string(data))
	if err != nil {
		return cli.NewUsageError("%s: %v", args[0], err)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.SaveForeignKeys(ctx, fks); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d foreign keys\n", len(fks))
	return nil
}

func runFKExport(cmd *cobra.Command, args []string) error {
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
	_, err = io.WriteString(cmd.OutOrStdout(), catalog.FormatForeignKeyStatements(fks))
	return err
}

func runGroupSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.AssignGroup(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], args[1])
	return nil
}

type groupTable []catalog.GroupAssignment

func (t groupTable) Header() []string { return []string{"ENTITY", "GROUP"} }

func (t groupTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, g := range t {
		rows = append(rows, []string{g.EntityPath, g.Group})
	}
	return rows
}

func runGroupList(cmd *cobra.Command, args []string) error {
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

	groups, err := a.store.Groups(ctx)
	if err != nil {
		return err
	}
	return out.FormatTo(cmd.OutOrStdout(), groupTable(groups))
}

// decodePolicies accepts a single policy or a list of policies.
func decodePolicies(data []byte) ([]*retention.Policy, error) {
	var list []*retention.Policy
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var single retention.Policy
	if err := yaml.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parse policies: %w", err)
	}
	return []*retention.Policy{&single}, nil
}

func runPolicyPut(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	policies, err := decodePolicies(data)
	if err != nil {
		return cli.NewUsageError("%s: %v", args[0], err)
	}
	for _, p := range policies {
		catalog.PreparePolicy(p)
		if err := p.Validate(); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	for _, p := range policies {
		if err := a.store.PutPolicy(ctx, p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s %s %s\n", p.ID, p.Kind, p.Action, p.EntityPath)
	}
	return nil
}

type policyTable []*retention.Policy

func (t policyTable) Header() []string {
	return []string{"ID", "KIND", "STORAGE", "ENTITY", "ACTION", "GROUPS", "RULE"}
}

func (t policyTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		groups := "-"
		if p.Grouping {
			groups = strings.Join(p.EntityGroups, ",")
		}
		rows = append(rows, []string{p.ID, string(p.Kind), string(p.StorageSystem), p.EntityPath, string(p.Action), groups, policyRule(p)})
	}
	return rows
}

func policyRule(p *retention.Policy) string {
	if p.Kind == retention.KindOnDemand {
		return fmt.Sprintf("where %s, purge after %s", p.FilterExpression, p.SoftDelete)
	}
	rule := fmt.Sprintf("%s older than %s", p.TimestampColumn, p.Retention)
	if p.FilterExpression != "" {
		rule += " and " + p.FilterExpression
	}
	return rule
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	out, err := formatter()
	if err != nil {
		return err
	}
	kinds := []retention.Kind{retention.KindScheduled, retention.KindOnDemand}
	if policyListFlags.kind != "" {
		mode, err := retention.ParseMode(policyListFlags.kind)
		if err != nil {
			return err
		}
		kinds = []retention.Kind{mode.Kind()}
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	var all policyTable
	for _, kind := range kinds {
		policies, err := a.store.Policies(ctx, kind, nil)
		if err != nil {
			return err
		}
		all = append(all, policies...)
	}
	return out.FormatTo(cmd.OutOrStdout(), all)
}
