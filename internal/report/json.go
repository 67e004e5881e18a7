package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/firefly-engineering/kraftcheck/internal/check"
	"github.com/firefly-engineering/kraftcheck/internal/runner"
)

// JSONSummary is the machine-readable form of a batch.
type JSONSummary struct {
	RunID      string     `json:"run_id"`
	Started    time.Time  `json:"started"`
	DurationMS int64      `json:"duration_ms"`
	Total      int        `json:"total"`
	Passed     int        `json:"passed"`
	Failed     int        `json:"failed"`
	Errored    int        `json:"errored"`
	Skipped    int        `json:"skipped"`
	OK         bool       `json:"ok"`
	Cases      []JSONCase `json:"cases"`
}

// JSONCase is one case of a JSONSummary.
type JSONCase struct {
	Index      int             `json:"index"`
	Image      string          `json:"image"`
	Arch       string          `json:"arch"`
	Plat       string          `json:"plat"`
	Status     runner.Status   `json:"status"`
	Command    string          `json:"command,omitempty"`
	PID        int             `json:"pid,omitempty"`
	ExitCode   int             `json:"exit_code"`
	FailedFast bool            `json:"failed_fast,omitempty"`
	Probed     bool            `json:"probed"`
	DurationMS int64           `json:"duration_ms"`
	Error      string          `json:"error,omitempty"`
	Verdicts   []check.Verdict `json:"verdicts"`
}

// NewJSONSummary converts a batch summary.
func NewJSONSummary(sum *runner.Summary) JSONSummary {
	out := JSONSummary{
		RunID:      sum.RunID,
		Started:    sum.Started,
		DurationMS: sum.Duration.Milliseconds(),
		Total:      sum.Total,
		Passed:     sum.Passed,
		Failed:     sum.Failed,
		Errored:    sum.Errored,
		Skipped:    sum.Skipped,
		OK:         sum.OK(),
		Cases:      make([]JSONCase, 0, len(sum.Results)),
	}

	for _, res := range sum.Results {
		jc := JSONCase{
			Index:    res.Index,
			Image:    res.Case.Image,
			Arch:     string(res.Case.Arch),
			Plat:     res.Case.Platform.Flag(),
			Status:   res.Status,
			Verdicts: []check.Verdict{},
		}
		if rep := res.Report; rep != nil {
			jc.Command = rep.CommandLine()
			jc.PID = rep.PID
			jc.ExitCode = rep.ExitCode
			jc.FailedFast = rep.FailedFast
			jc.Probed = rep.Probed
			jc.DurationMS = rep.Duration.Milliseconds()
			if rep.Verdicts != nil {
				jc.Verdicts = rep.Verdicts
			}
		}
		if res.Err != nil {
			jc.Error = res.Err.Error()
		}
		out.Cases = append(out.Cases, jc)
	}
	return out
}

// WriteJSON writes sum as indented JSON.
func WriteJSON(w io.Writer, sum *runner.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewJSONSummary(sum))
}
