package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/kraftcheck/internal/app"
	"github.com/firefly-engineering/kraftcheck/internal/errors"
	"github.com/firefly-engineering/kraftcheck/internal/runner"
	"github.com/firefly-engineering/kraftcheck/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run test cases whenever the description file changes",
	RunE:  runWatch,
}

func init() {
	addCaseFlags(watchCmd)
	addLauncherFlag(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Wait this long after the last change before re-running")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := runner.ParseFilters(caseFilters); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := watch.New(app.Default.FS, caseFile)
	w.Debounce = watchDebounce

	logInfo("Watching %s (Ctrl-C to stop)", caseFile)
	err = w.Run(ctx, func(ctx context.Context, data []byte) error {
		selected, err := selectData(data)
		if err != nil {
			logError("%v", err)
			return nil
		}
		if len(selected) == 0 {
			logWarning("No test cases match")
			return nil
		}
		_, err = runBatch(ctx, cmd.OutOrStdout(), cfg, selected, outputText)
		return err
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
