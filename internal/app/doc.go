// Package app provides the application context for kraftcheck.
//
// App carries the dependencies commands need (paths, configuration,
// filesystem, launcher and prober) using functional options, so tests can
// swap in mocks:
//
//	a := app.New(
//	    app.WithFS(system.NewMockFS()),
//	    app.WithLauncher(launcher.NewMockLauncher(proc)),
//	    app.WithProber(fakeProber),
//	)
//	app.SetDefault(a)
//	defer app.ResetDefault()
//
// LoadConfig reads config.toml and applies environment overrides once;
// NewExecutor turns the configuration into a ready test-case executor.
package app
