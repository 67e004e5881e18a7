package testutil

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/firefly-engineering/kraftcheck/internal/app"
	"github.com/firefly-engineering/kraftcheck/internal/config"
	"github.com/firefly-engineering/kraftcheck/internal/launcher"
	"github.com/firefly-engineering/kraftcheck/internal/probe"
	"github.com/firefly-engineering/kraftcheck/internal/system"
)

// FakeProber answers TCP and HTTP probes from tables instead of the network.
// Unknown ports are refused.
type FakeProber struct {
	mu        sync.Mutex
	listening map[int]bool
	responses map[int]probe.HTTPResult

	// Host appears in reported URLs. Empty means probe.DefaultHost.
	Host string

	// Probed records each probe as "tcp:PORT" or "METHOD:PORT URI".
	Probed []string
}

// NewFakeProber creates a FakeProber with no open ports.
func NewFakeProber() *FakeProber {
	return &FakeProber{
		listening: make(map[int]bool),
		responses: make(map[int]probe.HTTPResult),
	}
}

// Listen marks ports as accepting TCP connections.
func (p *FakeProber) Listen(ports ...int) *FakeProber {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, port := range ports {
		p.listening[port] = true
	}
	return p
}

// Serve answers HTTP requests on port with status and body.
func (p *FakeProber) Serve(port, status int, body string) *FakeProber {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[port] = probe.HTTPResult{StatusCode: status, Body: []byte(body)}
	return p
}

func (p *FakeProber) Target() string {
	if p.Host == "" {
		return probe.DefaultHost
	}
	return p.Host
}

func (p *FakeProber) TCP(ctx context.Context, port int) probe.ConnectResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Probed = append(p.Probed, fmt.Sprintf("tcp:%d", port))
	if p.listening[port] {
		return probe.ConnectResult{Port: port, OK: true}
	}
	return probe.ConnectResult{Port: port, Errno: int(unix.ECONNREFUSED), Err: unix.ECONNREFUSED}
}

func (p *FakeProber) HTTP(ctx context.Context, method string, port int, uri string) (*probe.HTTPResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Probed = append(p.Probed, fmt.Sprintf("%s:%d %s", method, port, uri))

	url := "http://" + net.JoinHostPort(p.Target(), strconv.Itoa(port)) + uri
	resp, ok := p.responses[port]
	if !ok {
		return nil, &probe.ConnectionFailure{URL: url, Err: unix.ECONNREFUSED}
	}
	resp.URL = url
	resp.Body = append([]byte(nil), resp.Body...)
	return &resp, nil
}

// TestEnv holds an isolated command environment: temp directories, a mock
// launcher and a fake prober installed in app.Default.
type TestEnv struct {
	T        *testing.T
	TmpDir   string
	Paths    *config.Paths
	Launcher *launcher.MockLauncher
	Prober   *FakeProber
	Exec     *system.MockExecutor
	App      *app.App
	cleanup  func()
}

// NewTestEnv creates a test environment and makes it the default app.
// Call Cleanup (or rely on t.Cleanup) to restore the previous default.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()
	env := map[string]string{
		"HOME":            tmpDir,
		"XDG_CONFIG_HOME": filepath.Join(tmpDir, "config"),
		"XDG_STATE_HOME":  filepath.Join(tmpDir, "state"),
	}
	getenv := func(k string) string { return env[k] }
	paths := config.PathsFromEnv(getenv)

	for _, dir := range []string{paths.ConfigDir, paths.StateDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	mockLauncher := launcher.NewMockLauncher()
	prober := NewFakeProber()
	exec := system.NewMockExecutor()

	testApp := app.New(
		app.WithPaths(paths),
		app.WithFS(system.DefaultFS()),
		app.WithExecutor(exec),
		app.WithLauncher(mockLauncher),
		app.WithProber(prober),
		app.WithGetenv(getenv),
	)

	originalDefault := app.Default
	app.SetDefault(testApp)

	e := &TestEnv{
		T:        t,
		TmpDir:   tmpDir,
		Paths:    paths,
		Launcher: mockLauncher,
		Prober:   prober,
		Exec:     exec,
		App:      testApp,
		cleanup: func() {
			app.SetDefault(originalDefault)
		},
	}
	t.Cleanup(e.Cleanup)
	return e
}

// Cleanup restores the original app default
func (e *TestEnv) Cleanup() {
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
}

// WriteFile writes a file under the temp directory and returns its path.
func (e *TestEnv) WriteFile(name string, data []byte) string {
	e.T.Helper()

	path := filepath.Join(e.TmpDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		e.T.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		e.T.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// WriteFixture copies a named fixture into the temp directory.
func (e *TestEnv) WriteFixture(name string) string {
	e.T.Helper()

	data, err := LoadFixture(name)
	if err != nil {
		e.T.Fatalf("Failed to load fixture %s: %v", name, err)
	}
	return e.WriteFile(name, data)
}

// WriteConfig writes config.toml at the default location.
func (e *TestEnv) WriteConfig(content string) string {
	e.T.Helper()

	if err := os.WriteFile(e.Paths.ConfigFile(), []byte(content), 0644); err != nil {
		e.T.Fatalf("Failed to write config: %v", err)
	}
	return e.Paths.ConfigFile()
}

// AddProcess queues a mock process for the next launch.
func (e *TestEnv) AddProcess(p *launcher.MockProcess) {
	e.Launcher.Processes = append(e.Launcher.Processes, p)
}
