// Package commands implements the agentvfsd CLI command tree, grounded on
// the teacher's cobra root command (cmd/dittofs/commands/root.go).
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information, set by main from ldflags.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "agentvfsd",
	Short: "agentvfsd - AI-agent-facing virtual filesystem daemon",
	Long: `agentvfsd unifies heterogeneous storage backends (files, database
tables/rows, object storage buckets, in-memory namespaces) behind a single
path namespace, with Zanzibar-style relationship-based access control and a
three-tier coherent permission cache.

Use "agentvfsd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/agentvfs/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(rebacCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string {
	return cfgFile
}
