// Package config loads kraftcheck's user configuration.
//
// Settings come from three layers, later ones winning:
//
//   - config.toml under $XDG_CONFIG_HOME/kraftcheck (or ~/.config/kraftcheck)
//   - KRAFTCHECK_LAUNCHER and KRAFTCHECK_HOST environment variables
//   - command-line flags, applied by the caller
//
// A config file looks like:
//
//	launcher        = "kraft run --rm"
//	host            = "localhost"
//	dial_timeout    = "2s"
//	request_timeout = "5s"
//	stop_grace      = "10s"
//	state_dir       = "/home/me/.local/state/kraftcheck"
//	artifacts_dir   = "/tmp/kraftcheck"
//	no_history      = false
//
// Durations use Go duration syntax. Run history lives under state_dir.
package config
