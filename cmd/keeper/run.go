package main

import (
	"github.com/spf13/cobra"

	"recordkeeper-hq/keeper/pkg/cli"
	"recordkeeper-hq/keeper/pkg/retention"
)

var runFlags struct {
	dryRun bool
}

var runCmd = &cobra.Command{
	Use:   "run <mode> [policy_ids]",
	Short: "Apply retention policies once",
	Long: `Apply every policy of one mode, then exit.

Mode is "scheduled" (or "s") or "on-demand" (or "d", "on_demand"). The optional
second argument restricts the run to a comma-delimited list of policy ids.

A policy that fails is reported and the run continues with the next policy;
the command still exits 0. An invalid mode or configuration exits 1.

Examples:
  # Apply scheduled policies
  keeper run scheduled

  # Apply two on-demand policies
  keeper run d 6f1c2a,93be07

  # Log the statements a run would issue
  keeper run s --dry-run --log-level debug`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRetention,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "log mutating statements and jobs instead of executing them")
}

func parseRunArgs(args []string) (retention.Mode, []string, error) {
	mode, err := retention.ParseMode(args[0])
	if err != nil {
		return "", nil, err
	}
	var ids []string
	if len(args) > 1 {
		ids = retention.ParsePolicyIDs(args[1])
	}
	return mode, ids, nil
}

func runRetention(cmd *cobra.Command, args []string) error {
	mode, ids, err := parseRunArgs(args)
	if err != nil {
		return err
	}
	out, err := formatter()
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	a, err := newApp(ctx, appOptions{engine: true, dryRun: runFlags.dryRun})
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.engine.Run(ctx, mode, ids)
	a.flushMetrics(ctx)
	if err != nil {
		return err
	}
	return out.FormatTo(cmd.OutOrStdout(), newReportView(report))
}
