package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/kraftcheck/internal/app"
	"github.com/firefly-engineering/kraftcheck/internal/config"
	"github.com/firefly-engineering/kraftcheck/internal/errors"
	"github.com/firefly-engineering/kraftcheck/internal/history"
	"github.com/firefly-engineering/kraftcheck/internal/report"
	"github.com/firefly-engineering/kraftcheck/internal/runner"
	"github.com/firefly-engineering/kraftcheck/internal/tui"
)

const (
	outputText = "text"
	outputJSON = "json"
)

var (
	runPick      bool
	runOutput    string
	runArtifacts string
	runNoHistory bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run test cases",
	Long: `Run boots every selected test case, evaluates its checks and reports the
verdicts. The exit code is 3 when any case failed or errored.`,
	Example: `  kraftcheck run -f tests/caddy.json
  kraftcheck run -f tests/nginx.yaml --filter plat=qemu --filter arch=x86_64
  kraftcheck run -f tests/caddy.json --output json --artifacts ./out`,
	RunE: runRun,
}

func init() {
	addCaseFlags(runCmd)
	addLauncherFlag(runCmd)
	runCmd.Flags().BoolVar(&runPick, "pick", false, "Choose cases interactively")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", outputText, "Report format: text or json")
	runCmd.Flags().StringVar(&runArtifacts, "artifacts", "", "Directory to save per-case output and verdicts")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record this run in the history")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := validateOutput(runOutput); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cases, selected, err := loadSelected()
	if err != nil {
		return err
	}
	if err := requireSelection(cases, selected); err != nil {
		return err
	}

	if runPick {
		result, err := tui.RunPicker(selected)
		if err != nil {
			return fmt.Errorf("picker failed: %w", err)
		}
		if result.Action != tui.ActionRun {
			logInfo("No test cases chosen")
			return nil
		}
		selected = tui.Narrow(selected, result.Indices)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := runBatch(ctx, cmd.OutOrStdout(), cfg, selected, runOutput)
	if err != nil {
		return err
	}
	if !sum.OK() {
		return errors.ChecksFailed(sum.Failed, sum.Errored, sum.Total)
	}
	return nil
}

func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON:
		return nil
	}
	return errors.ValidationError(fmt.Sprintf("invalid output format %q (expected text or json)", format))
}

// runBatch executes selected cases and writes the report to out.
func runBatch(ctx context.Context, out io.Writer, cfg *config.Config, selected []runner.Selected, format string) (*runner.Summary, error) {
	exec, err := app.Default.NewExecutor(cfg)
	if err != nil {
		return nil, err
	}

	var observers []runner.Observer
	var console *report.Console
	if format == outputText {
		console = report.NewConsole(out)
		observers = append(observers, console)
	}
	if !runNoHistory && !cfg.NoHistory {
		observers = append(observers, history.NewRecorder(app.Default.FS, cfg.HistoryDir()))
	}
	artifacts := runArtifacts
	if artifacts == "" {
		artifacts = cfg.ArtifactsDir
	}
	if artifacts != "" {
		observers = append(observers, report.NewArtifacts(app.Default.FS, artifacts))
	}

	sum := runner.New(exec, observers...).RunSelected(ctx, selected)

	if console != nil {
		console.Summary(sum)
	} else if err := report.WriteJSON(out, sum); err != nil {
		return sum, fmt.Errorf("failed to write report: %w", err)
	}
	if artifacts != "" && console != nil {
		logInfo("Artifacts saved under %s", artifacts)
	}
	return sum, nil
}
