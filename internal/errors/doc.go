// Package errors provides typed errors with exit codes for kraftcheck.
//
// # Error Types
//
// KraftError is the base error type that wraps an error with an exit code:
//
//	type KraftError struct {
//	    Code    int    // Exit code
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// ParseError reports an invalid field of a test-case description, with the
// index of the offending case.
//
// # Exit Codes
//
//	ExitSuccess        = 0  // Success
//	ExitGeneralError   = 1  // General/unknown errors
//	ExitLaunchFailed   = 2  // Launcher binary missing or not executable
//	ExitChecksFailed   = 3  // Run finished with failed or errored cases
//	ExitParseError     = 4  // Invalid test-case description or filter
//	ExitConfigError    = 5  // Configuration error
//	ExitProcessControl = 6  // Terminate/kill of a guest process failed
//
// # Extracting Exit Codes
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors
