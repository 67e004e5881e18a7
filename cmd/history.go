package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/kraftcheck/internal/app"
	"github.com/firefly-engineering/kraftcheck/internal/history"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history <image>",
	Short: "Show recorded runs of an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "Show at most this many recent events (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print events as JSON lines")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	image := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	events, err := history.NewRecorder(app.Default.FS, cfg.HistoryDir()).Events(image)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		logInfo("No history for %s", image)
		return nil
	}
	if historyLimit > 0 && len(events) > historyLimit {
		events = events[len(events)-historyLimit:]
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		enc := json.NewEncoder(out)
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tRUN\tINDEX\tTARGET\tDETAILS")
	fmt.Fprintln(w, "----\t-----\t---\t-----\t------\t-------")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Type, shortRunID(e.RunID), e.Index, e.Target, eventDetails(e))
	}
	return w.Flush()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func eventDetails(e history.Event) string {
	var parts []string
	if e.ExitCode != nil {
		parts = append(parts, fmt.Sprintf("exit=%d", *e.ExitCode))
	}
	if len(e.Failed) > 0 {
		parts = append(parts, fmt.Sprintf("%d failed: %s", len(e.Failed), e.Failed[0]))
	}
	if e.Details != "" {
		parts = append(parts, e.Details)
	}
	return strings.Join(parts, "; ")
}
