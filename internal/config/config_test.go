package config

import (
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/firefly-engineering/kraftcheck/internal/errors"
	"github.com/firefly-engineering/kraftcheck/internal/launcher"
	"github.com/firefly-engineering/kraftcheck/internal/system"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func testPaths() *Paths {
	return PathsFromEnv(envMap(map[string]string{"HOME": "/home/tester"}))
}

func TestPathsFromEnv(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantCfg   string
		wantState string
	}{
		{
			name:      "home fallback",
			env:       map[string]string{"HOME": "/home/tester"},
			wantCfg:   "/home/tester/.config/kraftcheck",
			wantState: "/home/tester/.local/state/kraftcheck",
		},
		{
			name: "xdg overrides",
			env: map[string]string{
				"HOME":            "/home/tester",
				"XDG_CONFIG_HOME": "/xdg/config",
				"XDG_STATE_HOME":  "/xdg/state",
			},
			wantCfg:   "/xdg/config/kraftcheck",
			wantState: "/xdg/state/kraftcheck",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PathsFromEnv(envMap(tt.env))
			if p.ConfigDir != tt.wantCfg {
				t.Errorf("ConfigDir = %q, want %q", p.ConfigDir, tt.wantCfg)
			}
			if p.StateDir != tt.wantState {
				t.Errorf("StateDir = %q, want %q", p.StateDir, tt.wantState)
			}
			if p.HistoryDir != filepath.Join(tt.wantState, "history") {
				t.Errorf("HistoryDir = %q", p.HistoryDir)
			}
			if p.ConfigFile() != filepath.Join(tt.wantCfg, "config.toml") {
				t.Errorf("ConfigFile() = %q", p.ConfigFile())
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	fs := system.NewMockFS()
	paths := testPaths()

	cfg, err := Load(fs, paths.ConfigFile(), false, paths)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Launcher != launcher.DefaultCommand {
		t.Errorf("Launcher = %q, want %q", cfg.Launcher, launcher.DefaultCommand)
	}
	if cfg.Host != "localhost" {
		t.Errorf("Host = %q, want localhost", cfg.Host)
	}
	if cfg.StateDir != paths.StateDir {
		t.Errorf("StateDir = %q, want %q", cfg.StateDir, paths.StateDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	_, err = Load(fs, "/etc/kraftcheck.toml", true, paths)
	if err == nil {
		t.Fatal("expected error for explicit missing config")
	}
	if code := errors.GetExitCode(err); code != errors.ExitConfigError {
		t.Errorf("exit code = %d, want %d", code, errors.ExitConfigError)
	}
}

func TestLoad_File(t *testing.T) {
	fs := system.NewMockFS()
	paths := testPaths()
	fs.AddFile(paths.ConfigFile(), []byte(`
launcher = "sudo kraft run --rm --log-level debug"
host = "127.0.0.1"
dial_timeout = "500ms"
stop_grace = "30s"
artifacts_dir = "/tmp/kraftcheck"
`))

	cfg, err := Load(fs, paths.ConfigFile(), false, paths)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.DialTimeout != 500*time.Millisecond {
		t.Errorf("DialTimeout = %v, want 500ms", cfg.DialTimeout)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v, want default", cfg.RequestTimeout)
	}
	if cfg.StopGrace != 30*time.Second {
		t.Errorf("StopGrace = %v, want 30s", cfg.StopGrace)
	}
	if cfg.ArtifactsDir != "/tmp/kraftcheck" {
		t.Errorf("ArtifactsDir = %q", cfg.ArtifactsDir)
	}

	argv, err := cfg.LauncherCommand()
	if err != nil {
		t.Fatalf("LauncherCommand() error: %v", err)
	}
	want := []string{"sudo", "kraft", "run", "--rm", "--log-level", "debug"}
	if len(argv) != len(want) {
		t.Fatalf("LauncherCommand() = %q, want %q", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	paths := testPaths()

	t.Run("malformed toml", func(t *testing.T) {
		fs := system.NewMockFS()
		fs.AddFile(paths.ConfigFile(), []byte("launcher = \n"))
		_, err := Load(fs, paths.ConfigFile(), false, paths)
		if code := errors.GetExitCode(err); code != errors.ExitConfigError {
			t.Errorf("exit code = %d, want %d (err = %v)", code, errors.ExitConfigError, err)
		}
	})

	t.Run("read error", func(t *testing.T) {
		fs := system.NewMockFS()
		fs.ReadFileErr = stderrors.New("permission denied")
		_, err := Load(fs, paths.ConfigFile(), false, paths)
		if code := errors.GetExitCode(err); code != errors.ExitConfigError {
			t.Errorf("exit code = %d, want %d", code, errors.ExitConfigError)
		}
	})
}

func TestApplyEnv(t *testing.T) {
	cfg := Default(testPaths())
	cfg.ApplyEnv(envMap(map[string]string{
		EnvLauncher: "/opt/kraft/bin/kraft run --rm",
		EnvHost:     " 10.0.0.5 ",
	}))

	if cfg.Launcher != "/opt/kraft/bin/kraft run --rm" {
		t.Errorf("Launcher = %q", cfg.Launcher)
	}
	if cfg.Host != "10.0.0.5" {
		t.Errorf("Host = %q, want 10.0.0.5", cfg.Host)
	}

	cfg.ApplyEnv(envMap(nil))
	if cfg.Host != "10.0.0.5" {
		t.Errorf("empty env should not reset Host, got %q", cfg.Host)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty launcher", func(c *Config) { c.Launcher = "  " }, true},
		{"unbalanced quotes", func(c *Config) { c.Launcher = `kraft run "--rm` }, true},
		{"empty host", func(c *Config) { c.Host = "" }, true},
		{"zero dial timeout", func(c *Config) { c.DialTimeout = 0 }, true},
		{"negative request timeout", func(c *Config) { c.RequestTimeout = -time.Second }, true},
		{"zero stop grace", func(c *Config) { c.StopGrace = 0 }, true},
		{"relative state dir", func(c *Config) { c.StateDir = "state" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(testPaths())
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && errors.GetExitCode(err) != errors.ExitConfigError {
				t.Errorf("exit code = %d, want %d", errors.GetExitCode(err), errors.ExitConfigError)
			}
		})
	}
}

func TestHistoryDir(t *testing.T) {
	cfg := Default(testPaths())
	cfg.StateDir = "/var/lib/kraftcheck"
	if got := cfg.HistoryDir(); got != "/var/lib/kraftcheck/history" {
		t.Errorf("HistoryDir() = %q", got)
	}
}
