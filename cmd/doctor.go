package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/kraftcheck/internal/app"
	"github.com/firefly-engineering/kraftcheck/internal/errors"
)

const doctorTimeout = 10 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the launcher is installed and usable",
	RunE:  runDoctor,
}

func init() {
	addLauncherFlag(doctorCmd)
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		logError("Configuration: %v", err)
		return err
	}
	logSuccess("Configuration OK (launcher %q, host %s)", cfg.Launcher, cfg.Host)

	argv, err := cfg.LauncherCommand()
	if err != nil {
		return err
	}

	path, err := app.Default.Exec.LookPath(argv[0])
	if err != nil {
		logError("Launcher %s not found in PATH", argv[0])
		return errors.LaunchError(argv[0], err)
	}
	logSuccess("Launcher found at %s", path)

	ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
	defer cancel()

	out, err := app.Default.Exec.Execute(ctx, path, "version")
	if err != nil {
		logError("%s version failed: %v", argv[0], err)
		return errors.LaunchError(argv[0]+" version", err)
	}
	version, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	logSuccess("%s version: %s", argv[0], version)
	return nil
}
