package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/kraftcheck/internal/logging"
)

var (
	verbose    bool
	jsonLogs   bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "kraftcheck",
	Short: "Black-box integration tests for unikernel images",
	Long: `kraftcheck boots unikernel images with kraft and checks how they behave.

Each test case in a description file names an image, an architecture and a
platform, plus the checks to run against the guest:
  - substrings, patterns or emptiness of stdout and stderr
  - the exit code of the launcher
  - TCP ports that must be listening after the timeout
  - HTTP endpoints and their status codes and bodies`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose, jsonLogs, cmd.ErrOrStderr())
		logging.SetUserOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default $XDG_CONFIG_HOME/kraftcheck/config.toml)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
	logError   = logging.UserError
)
