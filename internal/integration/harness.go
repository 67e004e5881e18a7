package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/firefly-engineering/kraftcheck/internal/config"
	"github.com/firefly-engineering/kraftcheck/internal/executor"
	"github.com/firefly-engineering/kraftcheck/internal/launcher"
	"github.com/firefly-engineering/kraftcheck/internal/loader"
	"github.com/firefly-engineering/kraftcheck/internal/probe"
	"github.com/firefly-engineering/kraftcheck/internal/runner"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

// EnvIntegration enables tests that boot real unikernels.
const EnvIntegration = "KRAFTCHECK_INTEGRATION_TESTS"

// TestHarness runs test cases against a real kraft installation.
type TestHarness struct {
	t       *testing.T
	tempDir string
	paths   *config.Paths
	cfg     *config.Config
}

// NewHarness creates a harness rooted in a temp directory. It skips the test
// unless EnvIntegration is set and the launcher is on PATH.
func NewHarness(t *testing.T) *TestHarness {
	t.Helper()

	if os.Getenv(EnvIntegration) == "" {
		t.Skipf("integration tests disabled (set %s=1 to enable)", EnvIntegration)
	}

	tempDir := t.TempDir()
	paths := &config.Paths{
		ConfigDir:  filepath.Join(tempDir, "config"),
		StateDir:   filepath.Join(tempDir, "state"),
		HistoryDir: filepath.Join(tempDir, "state", "history"),
	}
	for _, dir := range []string{paths.ConfigDir, paths.StateDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	cfg := config.Default(paths)
	cfg.ApplyEnv(os.Getenv)

	argv, err := cfg.LauncherCommand()
	if err != nil {
		t.Fatalf("invalid launcher: %v", err)
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		t.Skipf("%s not found in PATH", argv[0])
	}

	return &TestHarness{
		t:       t,
		tempDir: tempDir,
		paths:   paths,
		cfg:     cfg,
	}
}

// Paths returns the harness paths.
func (h *TestHarness) Paths() *config.Paths {
	return h.paths
}

// Config returns the configuration the harness runs with.
func (h *TestHarness) Config() *config.Config {
	return h.cfg
}

// RequireHypervisor skips the test when the binary backing plat is missing.
func (h *TestHarness) RequireHypervisor(plat testcase.Platform, arch testcase.Architecture) {
	h.t.Helper()

	bin := hypervisorBinary(plat, arch)
	if _, err := exec.LookPath(bin); err != nil {
		h.t.Skipf("%s not found in PATH", bin)
	}
}

func hypervisorBinary(plat testcase.Platform, arch testcase.Architecture) string {
	switch plat {
	case testcase.PlatformFirecracker:
		return "firecracker"
	case testcase.PlatformXen:
		return "xl"
	}
	if arch == testcase.ArchARM64 {
		return "qemu-system-aarch64"
	}
	return "qemu-system-x86_64"
}

// WriteCases writes cases to name under the temp directory in the format
// its extension implies.
func (h *TestHarness) WriteCases(name string, cases []*testcase.TestCase) string {
	h.t.Helper()

	path := filepath.Join(h.tempDir, name)
	data, err := loader.Marshal(cases, loader.FormatFromPath(path))
	if err != nil {
		h.t.Fatalf("Failed to marshal cases: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		h.t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// Run boots every case with the real launcher and prober.
func (h *TestHarness) Run(ctx context.Context, cases []*testcase.TestCase, observers ...runner.Observer) *runner.Summary {
	h.t.Helper()

	argv, err := h.cfg.LauncherCommand()
	if err != nil {
		h.t.Fatalf("invalid launcher: %v", err)
	}

	p := probe.New(h.cfg.Host)
	p.DialTimeout = h.cfg.DialTimeout
	p.RequestTimeout = h.cfg.RequestTimeout

	e := executor.New(launcher.NewExecLauncher(), p)
	e.Command = argv
	e.StopGrace = h.cfg.StopGrace

	return runner.New(e, observers...).Run(ctx, cases, nil)
}

// HelloWorld returns a case that boots the helloworld image and expects its
// greeting.
func HelloWorld(plat testcase.Platform, arch testcase.Architecture) *testcase.TestCase {
	return &testcase.TestCase{
		Image:          "unikraft.org/helloworld:latest",
		Arch:           arch,
		Platform:       plat,
		Memory:         "64M",
		TimeoutSeconds: 10,
		Stdout:         &testcase.OutputCheck{Contains: []string{"Hello from Unikraft!"}},
	}
}
