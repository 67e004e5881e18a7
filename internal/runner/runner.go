package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/firefly-engineering/kraftcheck/internal/executor"
	"github.com/firefly-engineering/kraftcheck/internal/loader"
	"github.com/firefly-engineering/kraftcheck/internal/logging"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

// Executor runs a single test case.
type Executor interface {
	Run(ctx context.Context, tc *testcase.TestCase) (*executor.Report, error)
}

// Status is the classification of one finished case.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
)

// Result is the outcome of one case in a batch.
type Result struct {
	Index  int
	Case   *testcase.TestCase
	Status Status
	Report *executor.Report
	Err    error
}

// Observer receives progress callbacks while a batch runs.
type Observer interface {
	CaseStarted(runID string, index int, tc *testcase.TestCase)
	CaseFinished(runID string, res Result)
}

// Summary aggregates a batch.
type Summary struct {
	RunID    string
	Started  time.Time
	Duration time.Duration

	Total   int
	Passed  int
	Failed  int
	Errored int

	// Skipped counts selected cases never started because the run was
	// cancelled.
	Skipped int

	Results []Result
}

// OK reports whether no case failed or errored.
func (s *Summary) OK() bool {
	return s.Failed == 0 && s.Errored == 0
}

// Runner runs selected test cases one after another.
type Runner struct {
	Executor  Executor
	Observers []Observer
}

// New creates a Runner.
func New(exec Executor, observers ...Observer) *Runner {
	return &Runner{Executor: exec, Observers: observers}
}

// Run executes every case matching filters. A failing, erroring or
// panicking case never stops the batch. Cancelling ctx stops further cases
// from starting; the case in flight still finishes its cleanup.
func (r *Runner) Run(ctx context.Context, cases []*testcase.TestCase, filters []Filter) *Summary {
	selected := Select(cases, filters)
	logging.Debug("selected test cases", "selected", len(selected), "total", len(cases), "filters", fmt.Sprint(filters))
	return r.RunSelected(ctx, selected)
}

// RunSelected executes an already selected set of cases.
func (r *Runner) RunSelected(ctx context.Context, selected []Selected) *Summary {
	sum := &Summary{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Total:   len(selected),
	}
	log := logging.With("run_id", sum.RunID)
	log.Debug("starting run", "cases", len(selected))

	for i, sel := range selected {
		if err := ctx.Err(); err != nil {
			sum.Skipped = len(selected) - i
			log.Warn("run cancelled", "skipped", sum.Skipped)
			break
		}

		for _, o := range r.Observers {
			o.CaseStarted(sum.RunID, sel.Index, sel.Case)
		}

		res := r.runCase(ctx, sel)
		switch res.Status {
		case StatusPassed:
			sum.Passed++
		case StatusFailed:
			sum.Failed++
		case StatusErrored:
			sum.Errored++
			log.Error("test case errored",
				"index", sel.Index,
				"case", describe(sel.Case),
				"error", res.Err)
		}
		sum.Results = append(sum.Results, res)

		for _, o := range r.Observers {
			o.CaseFinished(sum.RunID, res)
		}
	}

	sum.Duration = time.Since(sum.Started)
	log.Debug("run finished",
		"passed", sum.Passed,
		"failed", sum.Failed,
		"errored", sum.Errored,
		"duration", sum.Duration)
	return sum
}

func (r *Runner) runCase(ctx context.Context, sel Selected) (res Result) {
	res = Result{Index: sel.Index, Case: sel.Case}

	defer func() {
		if p := recover(); p != nil {
			logging.Debug("test case panicked", "index", sel.Index, "stack", string(debug.Stack()))
			res.Status = StatusErrored
			res.Err = fmt.Errorf("panic: %v", p)
		}
	}()

	rep, err := r.Executor.Run(ctx, sel.Case)
	res.Report = rep
	switch {
	case err != nil:
		res.Status = StatusErrored
		res.Err = err
	case rep == nil:
		res.Status = StatusErrored
		res.Err = fmt.Errorf("executor returned no report")
	case rep.Passed():
		res.Status = StatusPassed
	default:
		res.Status = StatusFailed
	}
	return res
}

// describe renders a case as its JSON description for logs.
func describe(tc *testcase.TestCase) string {
	data, err := loader.Marshal([]*testcase.TestCase{tc}, loader.FormatJSON)
	if err != nil {
		return tc.String()
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return string(data)
	}
	return buf.String()
}
