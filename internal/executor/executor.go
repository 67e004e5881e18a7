package executor

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/firefly-engineering/kraftcheck/internal/check"
	"github.com/firefly-engineering/kraftcheck/internal/errors"
	"github.com/firefly-engineering/kraftcheck/internal/launcher"
	"github.com/firefly-engineering/kraftcheck/internal/logging"
	"github.com/firefly-engineering/kraftcheck/internal/probe"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

const (
	// DefaultStopGrace is how long a terminated guest may take to shut down
	// before it is killed.
	DefaultStopGrace = 10 * time.Second

	// killGrace bounds the drain after SIGKILL.
	killGrace = 5 * time.Second
)

// State is a step of a test case's lifecycle.
type State string

const (
	StateBuilt           State = "built"
	StateLaunched        State = "launched"
	StateNaturallyExited State = "naturally_exited"
	StateTimedOut        State = "timed_out"
	StateProbed          State = "probed"
	StateStopped         State = "stopped"
	StateEvaluated       State = "evaluated"
)

// Prober is the network probing an Executor needs.
type Prober interface {
	TCP(ctx context.Context, port int) probe.ConnectResult
	HTTP(ctx context.Context, method string, port int, uri string) (*probe.HTTPResult, error)

	// Target is the host probes are sent to.
	Target() string
}

// Executor runs single test cases.
type Executor struct {
	Launcher launcher.Launcher
	Prober   Prober

	// Command is the launcher invocation argv starts with.
	Command []string

	// StopGrace bounds the shutdown after SIGTERM.
	StopGrace time.Duration
}

// New returns an Executor with the default launcher command and grace.
func New(l launcher.Launcher, p Prober) *Executor {
	return &Executor{
		Launcher:  l,
		Prober:    p,
		Command:   []string{"kraft", "run", "--rm"},
		StopGrace: DefaultStopGrace,
	}
}

// Run executes tc end to end. The launched process is stopped before Run
// returns on every path, including panics, which are re-raised.
//
// The returned report is never nil; on error it holds whatever was gathered
// before the failure.
func (e *Executor) Run(ctx context.Context, tc *testcase.TestCase) (*Report, error) {
	start := time.Now()
	rep := &Report{Case: tc, ExitCode: -1}
	defer func() { rep.Duration = time.Since(start) }()

	argv := launcher.Build(tc, e.Command)
	rep.Command = argv
	rep.enter(StateBuilt)

	log := logging.With("image", tc.Image, "plat", tc.Platform.Flag(), "arch", string(tc.Arch))
	log.Debug("testing " + tc.String())
	log.Debug("launch command", "command", launcher.Display(argv))

	proc, err := e.Launcher.Launch(ctx, argv)
	if err != nil {
		return rep, errors.LaunchError(launcher.Display(argv), err)
	}
	rep.PID = proc.PID()
	rep.enter(StateLaunched)
	log.Debug("process started", "pid", rep.PID)

	stopped := false
	defer func() {
		if stopped {
			return
		}
		r := recover()
		log.Warn("killing process after failure", "pid", rep.PID)
		e.forceKill(proc)
		if r != nil {
			panic(r)
		}
	}()

	out, err := proc.Wait(tc.Timeout())
	switch {
	case err == nil:
		stopped = true
		rep.enter(StateNaturallyExited)
		reap(proc)
		if out.ExitCode != 0 {
			rep.FailedFast = true
			log.Warn("failed to run "+tc.Image,
				"exit_code", out.ExitCode,
				"command", launcher.Display(argv),
				"stdout", string(out.Stdout))
		}

	case stderrors.Is(err, launcher.ErrTimedOut):
		rep.enter(StateTimedOut)
		e.probe(ctx, tc, rep)

		out, err = e.stop(proc)
		stopped = true
		reap(proc)
		if err != nil {
			rep.store(out)
			return rep, err
		}
		if out.ExitCode == 1 {
			log.Warn("failed to run "+tc.Image,
				"exit_code", out.ExitCode,
				"stdout", string(out.Stdout))
		}

	default:
		return rep, errors.Wrap(errors.ExitGeneralError, "waiting for process", err)
	}

	rep.store(out)
	rep.enter(StateStopped)

	rep.Verdicts = evaluate(tc, rep)
	rep.enter(StateEvaluated)
	log.Debug("test case evaluated", "path", rep.Path, "verdicts", len(rep.Verdicts), "passed", rep.Passed())

	return rep, nil
}

// probe checks every published port and HTTP endpoint of a running guest.
// TCP and HTTP probes do not depend on each other.
func (e *Executor) probe(ctx context.Context, tc *testcase.TestCase, rep *Report) {
	if len(tc.Ports) == 0 && len(tc.HTTP) == 0 {
		return
	}

	for _, p := range tc.Ports {
		rep.TCP = append(rep.TCP, e.Prober.TCP(ctx, p.Published))
	}

	for _, hc := range tc.HTTP {
		o := check.HTTPOutcome{Check: hc}
		res, err := e.Prober.HTTP(ctx, hc.Method, hc.Port, hc.URI)
		if err != nil {
			var cf *probe.ConnectionFailure
			if !stderrors.As(err, &cf) {
				cf = &probe.ConnectionFailure{URL: hc.URL(e.Prober.Target()), Err: err}
			}
			o.Failure = cf
		} else {
			o.Result = res
		}
		rep.HTTP = append(rep.HTTP, o)
	}

	rep.Probed = true
	rep.enter(StateProbed)
}

// stop terminates a running guest and escalates to SIGKILL when it outlives
// the grace period.
func (e *Executor) stop(proc launcher.Process) (launcher.Output, error) {
	pid := proc.PID()

	if err := proc.Terminate(); err != nil {
		logging.Error("terminate failed", "pid", pid, "error", err)
		return e.forceKill(proc), errors.ProcessControlError("terminate", pid, err)
	}

	out, err := proc.Drain(e.grace())
	if err == nil {
		return out, nil
	}
	logging.Warn("process outlived stop grace, killing", "pid", pid, "grace", e.grace())

	if err := proc.Kill(); err != nil {
		logging.Error("kill failed", "pid", pid, "error", err)
		return e.forceKill(proc), errors.ProcessControlError("kill", pid, err)
	}

	out, err = proc.Drain(killGrace)
	if err != nil {
		return out, errors.ProcessControlError("kill", pid, err)
	}
	return out, nil
}

// reap clears guest processes the launcher left behind in its group.
func reap(proc launcher.Process) {
	if err := proc.Reap(); err != nil {
		logging.Debug("reap process group failed", "pid", proc.PID(), "error", err)
	}
}

// forceKill is the best-effort last resort. Failures are only logged.
func (e *Executor) forceKill(proc launcher.Process) launcher.Output {
	if err := proc.Kill(); err != nil {
		logging.Error("kill failed", "pid", proc.PID(), "error", err)
	}
	out, err := proc.Drain(killGrace)
	if err != nil {
		logging.Error("process did not exit after kill", "pid", proc.PID(), "error", err)
	}
	return out
}

func (e *Executor) grace() time.Duration {
	if e.StopGrace <= 0 {
		return DefaultStopGrace
	}
	return e.StopGrace
}

// evaluate runs every applicable evaluator against the stopped process.
func evaluate(tc *testcase.TestCase, rep *Report) []check.Verdict {
	var vs []check.Verdict

	vs = append(vs, check.Output(check.CategoryStdout, "stdout", tc.Stdout, rep.Stdout)...)
	vs = append(vs, check.Output(check.CategoryStderr, "stderr", tc.Stderr, rep.Stderr)...)
	vs = append(vs, check.ReturnCode(tc.ReturnCode, rep.ExitCode)...)

	if rep.Probed {
		for _, r := range rep.TCP {
			vs = append(vs, check.TCP(r))
		}
		for _, o := range rep.HTTP {
			vs = append(vs, check.HTTP(o)...)
		}
		return vs
	}

	for _, p := range tc.Ports {
		vs = append(vs, check.TCPNotProbed(p.Published))
	}
	for _, hc := range tc.HTTP {
		vs = append(vs, check.HTTP(check.HTTPOutcome{Check: hc})...)
	}
	return vs
}
