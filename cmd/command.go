package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/kraftcheck/internal/launcher"
)

var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "Print the launch command of each test case without running it",
	RunE:  runCommand,
}

func init() {
	addCaseFlags(commandCmd)
	addLauncherFlag(commandCmd)
	rootCmd.AddCommand(commandCmd)
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	base, err := cfg.LauncherCommand()
	if err != nil {
		return err
	}

	_, selected, err := loadSelected()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, sel := range selected {
		fmt.Fprintf(out, "# %d: %s\n", sel.Index, sel.Case)
		fmt.Fprintln(out, launcher.Display(launcher.Build(sel.Case, base)))
	}
	return nil
}
