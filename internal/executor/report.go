package executor

import (
	"time"

	"github.com/firefly-engineering/kraftcheck/internal/check"
	"github.com/firefly-engineering/kraftcheck/internal/launcher"
	"github.com/firefly-engineering/kraftcheck/internal/probe"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

// Report is everything observed while running one test case.
type Report struct {
	Case *testcase.TestCase

	Command []string
	Path    []State
	PID     int

	Stdout   []byte
	Stderr   []byte
	ExitCode int

	// FailedFast is set when the guest exited on its own with a non-zero
	// code, which usually means the launcher could not start it.
	FailedFast bool

	// Probed is set when the guest outlived its timeout and was probed.
	Probed bool
	TCP    []probe.ConnectResult
	HTTP   []check.HTTPOutcome

	Verdicts []check.Verdict
	Duration time.Duration
}

func (r *Report) enter(s State) {
	r.Path = append(r.Path, s)
}

func (r *Report) store(out launcher.Output) {
	r.Stdout = out.Stdout
	r.Stderr = out.Stderr
	r.ExitCode = out.ExitCode
}

// CommandLine returns the launch command as a shell line.
func (r *Report) CommandLine() string {
	return launcher.Display(r.Command)
}

// Passed reports whether every verdict passed. A report without verdicts
// passes.
func (r *Report) Passed() bool {
	return check.Passed(r.Verdicts)
}

// Reached reports whether the run went through state s.
func (r *Report) Reached(s State) bool {
	for _, p := range r.Path {
		if p == s {
			return true
		}
	}
	return false
}

// ByCategory groups the verdicts by category, keeping their order.
func (r *Report) ByCategory() map[check.Category][]check.Verdict {
	m := make(map[check.Category][]check.Verdict)
	for _, v := range r.Verdicts {
		m[v.Category] = append(m[v.Category], v)
	}
	return m
}
