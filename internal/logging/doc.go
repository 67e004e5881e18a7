// Package logging carries the two output channels of kraftcheck.
//
// Diagnostics are slog records on stderr. They are Info and above by
// default; --verbose adds Debug and --json-logs switches to the JSON handler:
//
//	logging.Debug("state transition", "from", "launched", "to", "timed_out")
//	logging.With("run_id", id).Warn("run cancelled", "skipped", n)
//
// Messages for the person at the terminal go through the User* printers,
// each prefixed with a status glyph:
//
//	logging.UserInfo("Loaded %d test cases from %s", n, path)    // ℹ, stdout
//	logging.UserSuccess("Wrote %d test cases to %s", n, path)   // ✓, stdout
//	logging.UserWarning("No test cases match %v", filters)       // ⚠, stderr
//	logging.UserError("Launcher %s not found in PATH", name)     // ✗, stderr
//
// SetUserOutput redirects both streams, which cobra commands use to follow
// cmd.OutOrStdout and cmd.ErrOrStderr.
package logging
