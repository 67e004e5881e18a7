package launcher

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockLauncher hands out scripted processes and records every argv it was
// asked to start.
type MockLauncher struct {
	mu sync.Mutex

	// Processes are returned in order, one per Launch.
	Processes []*MockProcess

	// Err, when set, fails every Launch.
	Err error

	Launched [][]string
}

// NewMockLauncher returns a launcher that serves procs in order.
func NewMockLauncher(procs ...*MockProcess) *MockLauncher {
	return &MockLauncher{Processes: procs}
}

func (m *MockLauncher) Launch(ctx context.Context, argv []string) (Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Launched = append(m.Launched, append([]string(nil), argv...))
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Processes) == 0 {
		return nil, fmt.Errorf("mock launcher: no process scripted for %v", argv)
	}
	p := m.Processes[0]
	m.Processes = m.Processes[1:]
	return p, nil
}

// MockProcess is a scripted Process.
//
// A process with Running false exits on its own and Wait returns Output.
// A Running process times out in Wait and exits once stopped, after which
// Drain returns Output.
type MockProcess struct {
	mu sync.Mutex

	Pid    int
	Output Output

	Running bool

	// IgnoreTerm keeps the process running after Terminate.
	IgnoreTerm bool

	WaitErr      error
	TerminateErr error
	KillErr      error

	Calls []string
}

func (p *MockProcess) PID() int {
	return p.Pid
}

func (p *MockProcess) Wait(timeout time.Duration) (Output, error) {
	p.record("wait")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.WaitErr != nil {
		return Output{}, p.WaitErr
	}
	if p.Running {
		return Output{}, ErrTimedOut
	}
	return p.Output, nil
}

func (p *MockProcess) Terminate() error {
	p.record("terminate")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TerminateErr != nil {
		return p.TerminateErr
	}
	if !p.IgnoreTerm {
		p.Running = false
	}
	return nil
}

func (p *MockProcess) Kill() error {
	p.record("kill")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.KillErr != nil {
		return p.KillErr
	}
	p.Running = false
	return nil
}

func (p *MockProcess) Reap() error {
	p.record("reap")
	return nil
}

func (p *MockProcess) Drain(grace time.Duration) (Output, error) {
	p.record("drain")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Running {
		return Output{}, ErrTimedOut
	}
	return p.Output, nil
}

// Called reports whether op was invoked at least once.
func (p *MockProcess) Called(op string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.Calls {
		if c == op {
			return true
		}
	}
	return false
}

// Stopped reports whether the process has reached a terminal state.
func (p *MockProcess) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.Running
}

func (p *MockProcess) record(op string) {
	p.mu.Lock()
	p.Calls = append(p.Calls, op)
	p.mu.Unlock()
}

var _ Launcher = (*MockLauncher)(nil)
var _ Process = (*MockProcess)(nil)
