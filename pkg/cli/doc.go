/*
Package cli provides command-line helpers for the keeper command.

Output Formatting:

Command results are printed as text, JSON or CSV:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Values implementing Table are printed as aligned columns in text mode and as
records in CSV mode. Values implementing TextWriter render themselves.

Exit Codes:

ExitCode maps a command error to the process exit status. Configuration
errors, including an invalid run mode, exit with status 1.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
