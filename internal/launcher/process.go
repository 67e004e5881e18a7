package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/firefly-engineering/kraftcheck/internal/logging"
)

// ErrTimedOut is returned by Wait and Drain when the process is still
// running at the deadline.
var ErrTimedOut = errors.New("process still running")

// DefaultWaitDelay bounds how long output pipes are drained after the
// launcher exits. Guests started by the launcher can inherit the pipes and
// keep them open.
const DefaultWaitDelay = 2 * time.Second

// Output is what a terminated process left behind.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Process is a handle on one launched guest. Callers must bring every
// Process to a terminal state: natural exit, Terminate or Kill.
type Process interface {
	// PID returns the process id, which is also its process group id.
	PID() int

	// Wait blocks until the process exits or timeout elapses. It returns
	// ErrTimedOut in the latter case.
	Wait(timeout time.Duration) (Output, error)

	// Terminate sends SIGTERM to the process group.
	Terminate() error

	// Kill sends SIGKILL to the process group.
	Kill() error

	// Reap sends SIGKILL to whatever is left in the process group after the
	// launcher itself exited. An empty group is not an error.
	Reap() error

	// Drain waits up to grace for a stopped process to exit and returns
	// everything it wrote.
	Drain(grace time.Duration) (Output, error)
}

// Launcher starts guest processes.
type Launcher interface {
	Launch(ctx context.Context, argv []string) (Process, error)
}

// ExecLauncher starts processes with os/exec, each in its own process group.
type ExecLauncher struct {
	// WaitDelay bounds pipe draining after exit (see DefaultWaitDelay).
	WaitDelay time.Duration
}

// NewExecLauncher returns a launcher using DefaultWaitDelay.
func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{WaitDelay: DefaultWaitDelay}
}

// Launch starts argv. Stdout and stderr are captured; stdin is /dev/null.
// Cancelling ctx sends SIGTERM to the process group.
func (l *ExecLauncher) Launch(ctx context.Context, argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command line")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	p := &execProcess{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr
	cmd.Cancel = func() error {
		return p.signal(unix.SIGTERM)
	}
	cmd.WaitDelay = l.WaitDelay

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	logging.Debug("launched process", "pid", cmd.Process.Pid, "argv", argv)

	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

// execProcess buffers are written by os/exec's copy goroutines and must only
// be read after done is closed.
type execProcess struct {
	cmd     *exec.Cmd
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	done    chan struct{}
	waitErr error
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait(timeout time.Duration) (Output, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return p.output(), nil
	case <-timer.C:
		return Output{}, ErrTimedOut
	}
}

func (p *execProcess) Drain(grace time.Duration) (Output, error) {
	return p.Wait(grace)
}

func (p *execProcess) Terminate() error {
	return p.signal(unix.SIGTERM)
}

func (p *execProcess) Kill() error {
	return p.signal(unix.SIGKILL)
}

func (p *execProcess) Reap() error {
	return p.signal(unix.SIGKILL)
}

// signal delivers sig to the whole process group so the guest processes the
// launcher spawned are reached as well. The group can outlive its leader.
func (p *execProcess) signal(sig unix.Signal) error {
	err := unix.Kill(-p.cmd.Process.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func (p *execProcess) output() Output {
	var exitErr *exec.ExitError
	if p.waitErr != nil && !errors.As(p.waitErr, &exitErr) {
		logging.Debug("process wait returned", "pid", p.PID(), "error", p.waitErr)
	}

	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}

	return Output{
		Stdout:   bytes.Clone(p.stdout.Bytes()),
		Stderr:   bytes.Clone(p.stderr.Bytes()),
		ExitCode: code,
	}
}

var _ Launcher = (*ExecLauncher)(nil)
var _ Process = (*execProcess)(nil)
