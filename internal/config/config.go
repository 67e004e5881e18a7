package config

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/firefly-engineering/kraftcheck/internal/errors"
	"github.com/firefly-engineering/kraftcheck/internal/executor"
	"github.com/firefly-engineering/kraftcheck/internal/launcher"
	"github.com/firefly-engineering/kraftcheck/internal/logging"
	"github.com/firefly-engineering/kraftcheck/internal/probe"
	"github.com/firefly-engineering/kraftcheck/internal/system"
)

const (
	AppName        = "kraftcheck"
	ConfigFileName = "config.toml"

	EnvLauncher = "KRAFTCHECK_LAUNCHER"
	EnvHost     = "KRAFTCHECK_HOST"
)

// Default probe and shutdown timings.
const (
	DefaultDialTimeout    = probe.DefaultDialTimeout
	DefaultRequestTimeout = probe.DefaultRequestTimeout
	DefaultStopGrace      = executor.DefaultStopGrace
)

// Config is the user configuration from config.toml.
type Config struct {
	Launcher       string        `toml:"launcher"`
	Host           string        `toml:"host"`
	DialTimeout    time.Duration `toml:"dial_timeout"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	StopGrace      time.Duration `toml:"stop_grace"`
	StateDir       string        `toml:"state_dir"`
	ArtifactsDir   string        `toml:"artifacts_dir"`
	NoHistory      bool          `toml:"no_history"`
}

// Default returns the configuration used when no file is present.
func Default(paths *Paths) *Config {
	return &Config{
		Launcher:       launcher.DefaultCommand,
		Host:           probe.DefaultHost,
		DialTimeout:    DefaultDialTimeout,
		RequestTimeout: DefaultRequestTimeout,
		StopGrace:      DefaultStopGrace,
		StateDir:       paths.StateDir,
	}
}

// Paths holds the per-user directories.
type Paths struct {
	ConfigDir  string
	StateDir   string
	HistoryDir string
}

// ConfigFile returns the default config file location.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, ConfigFileName)
}

// PathsFromEnv resolves the XDG directories through getenv, falling back to
// ~/.config and ~/.local/state.
func PathsFromEnv(getenv func(string) string) *Paths {
	home := getenv("HOME")

	configHome := getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}
	stateHome := getenv("XDG_STATE_HOME")
	if stateHome == "" {
		stateHome = filepath.Join(home, ".local", "state")
	}

	stateDir := filepath.Join(stateHome, AppName)
	return &Paths{
		ConfigDir:  filepath.Join(configHome, AppName),
		StateDir:   stateDir,
		HistoryDir: filepath.Join(stateDir, "history"),
	}
}

// Load reads the config file at path on top of the defaults. A missing file
// is only an error when the path was given explicitly.
func Load(fsys system.FileSystem, path string, explicit bool, paths *Paths) (*Config, error) {
	cfg := Default(paths)

	data, err := fsys.ReadFile(path)
	switch {
	case err == nil:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("failed to parse %s", path), err)
		}
		for _, key := range md.Undecoded() {
			logging.Warn("unknown config key", "path", path, "key", key.String())
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		logging.Debug("no config file, using defaults", "path", path)
	default:
		return nil, errors.ConfigError(fmt.Sprintf("failed to read %s", path), err)
	}

	if cfg.StateDir == "" {
		cfg.StateDir = paths.StateDir
	}
	return cfg, nil
}

// ApplyEnv overrides fields from KRAFTCHECK_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvLauncher)); v != "" {
		c.Launcher = v
	}
	if v := strings.TrimSpace(getenv(EnvHost)); v != "" {
		c.Host = v
	}
}

// HistoryDir returns where run history is kept.
func (c *Config) HistoryDir() string {
	return filepath.Join(c.StateDir, "history")
}

// LauncherCommand splits Launcher into an argv prefix.
func (c *Config) LauncherCommand() ([]string, error) {
	argv, err := launcher.ParseCommand(c.Launcher)
	if err != nil {
		return nil, errors.ConfigError("invalid launcher", err)
	}
	return argv, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Launcher) == "" {
		return errors.ConfigError("launcher is required", nil)
	}
	if _, err := c.LauncherCommand(); err != nil {
		return err
	}
	if c.Host == "" {
		return errors.ConfigError("host is required", nil)
	}

	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{"dial_timeout", c.DialTimeout},
		{"request_timeout", c.RequestTimeout},
		{"stop_grace", c.StopGrace},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			return errors.ConfigError(fmt.Sprintf("%s must be positive (got %s)", t.name, t.d), nil)
		}
	}

	if c.StateDir != "" && !filepath.IsAbs(c.StateDir) {
		return errors.ConfigError(fmt.Sprintf("state_dir must be an absolute path (got %q)", c.StateDir), nil)
	}
	return nil
}
