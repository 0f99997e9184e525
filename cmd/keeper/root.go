package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"recordkeeper-hq/keeper/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	logLevel     string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "keeper",
	Short: "Keeper - cascading data retention for warehouses and object stores",
	Long: `Keeper applies retention policies stored in a catalog.

Scheduled policies archive or delete rows older than their retention window.
On-demand policies soft-delete matching rows into tombstone tables and purge
them after the soft-delete period. Grouped policies follow foreign-key
relationships to related entities in the same group.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "keeper.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json, csv)")
}

func formatter() (cli.Formatter, error) {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return cli.NewFormatter(format), nil
}
