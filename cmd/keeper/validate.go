package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"recordkeeper-hq/keeper/pkg/retention"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and every stored policy",
	Long: `Load the configuration, open the catalog and backends, and check every
policy of both modes the way a run would before issuing any statement.
Nothing is executed against the warehouse.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{engine: true, dryRun: true})
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Configuration valid")

	var invalid []error
	for _, mode := range []retention.Mode{retention.ModeScheduled, retention.ModeOnDemand} {
		policies, errs, err := a.engine.Validate(ctx, mode)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s policies: %d, invalid: %d\n", mode, len(policies), len(errs))
		for _, e := range errs {
			fmt.Fprintf(out, "  ✗ %v\n", e)
		}
		invalid = append(invalid, errs...)
	}
	if len(invalid) > 0 {
		return retention.NewConfigurationError("catalog", fmt.Sprintf("%d invalid policies: %v", len(invalid), errors.Join(invalid...)))
	}
	fmt.Fprintln(out, "✓ Policies valid")
	return nil
}
