// Package app provides the application context for kraftcheck.
// It allows dependency injection for testing.
package app

import (
	"os"

	"github.com/firefly-engineering/kraftcheck/internal/config"
	"github.com/firefly-engineering/kraftcheck/internal/executor"
	"github.com/firefly-engineering/kraftcheck/internal/launcher"
	"github.com/firefly-engineering/kraftcheck/internal/probe"
	"github.com/firefly-engineering/kraftcheck/internal/system"
)

// App holds the application dependencies
type App struct {
	Paths *config.Paths

	// Config is the loaded configuration. It is nil until LoadConfig runs
	// unless set with WithConfig.
	Config *config.Config

	FS       system.FileSystem
	Exec     system.CommandExecutor
	Launcher launcher.Launcher

	// Prober overrides the prober built from Config.
	Prober executor.Prober

	Getenv func(string) string
}

// Option is a function that configures the App
type Option func(*App)

// WithPaths sets custom paths
func WithPaths(paths *config.Paths) Option {
	return func(a *App) {
		a.Paths = paths
	}
}

// WithConfig sets a preloaded configuration
func WithConfig(cfg *config.Config) Option {
	return func(a *App) {
		a.Config = cfg
	}
}

// WithFS sets the filesystem
func WithFS(fs system.FileSystem) Option {
	return func(a *App) {
		a.FS = fs
	}
}

// WithExecutor sets the command executor used for helper commands
func WithExecutor(exec system.CommandExecutor) Option {
	return func(a *App) {
		a.Exec = exec
	}
}

// WithLauncher sets the process launcher
func WithLauncher(l launcher.Launcher) Option {
	return func(a *App) {
		a.Launcher = l
	}
}

// WithProber sets the network prober
func WithProber(p executor.Prober) Option {
	return func(a *App) {
		a.Prober = p
	}
}

// WithGetenv sets the environment lookup
func WithGetenv(getenv func(string) string) Option {
	return func(a *App) {
		a.Getenv = getenv
	}
}

// New creates a new App with the given options.
func New(opts ...Option) *App {
	app := &App{
		FS:       system.DefaultFS(),
		Exec:     system.DefaultExecutor(),
		Launcher: launcher.NewExecLauncher(),
		Getenv:   os.Getenv,
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.Paths == nil {
		app.Paths = config.PathsFromEnv(app.Getenv)
	}
	return app
}

// LoadConfig loads the configuration once. An empty path reads the default
// location, where a missing file is not an error.
func (a *App) LoadConfig(path string) (*config.Config, error) {
	if a.Config != nil {
		return a.Config, nil
	}

	explicit := path != ""
	if !explicit {
		path = a.Paths.ConfigFile()
	}

	cfg, err := config.Load(a.FS, path, explicit, a.Paths)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(a.Getenv)
	a.Config = cfg
	return cfg, nil
}

// NewProber returns the configured prober.
func (a *App) NewProber(cfg *config.Config) executor.Prober {
	if a.Prober != nil {
		return a.Prober
	}
	p := probe.New(cfg.Host)
	p.DialTimeout = cfg.DialTimeout
	p.RequestTimeout = cfg.RequestTimeout
	return p
}

// NewExecutor builds a test-case executor from cfg.
func (a *App) NewExecutor(cfg *config.Config) (*executor.Executor, error) {
	argv, err := cfg.LauncherCommand()
	if err != nil {
		return nil, err
	}
	e := executor.New(a.Launcher, a.NewProber(cfg))
	e.Command = argv
	e.StopGrace = cfg.StopGrace
	return e, nil
}

// Default is the default application instance
var Default = New()

// SetDefault sets the default application instance (used for testing)
func SetDefault(app *App) {
	Default = app
}

// ResetDefault resets to the default application instance
func ResetDefault() {
	Default = New()
}
