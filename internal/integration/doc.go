// Package integration holds end-to-end tests of the run pipeline.
//
// The workflow tests drive the real process launcher and network prober
// against a shell script standing in for kraft and local HTTP servers, so
// they run anywhere a POSIX shell is available.
//
// Tests that boot real unikernels are skipped unless the
// KRAFTCHECK_INTEGRATION_TESTS environment variable is set. They require:
//   - kraft on PATH (or KRAFTCHECK_LAUNCHER pointing at it)
//   - the hypervisor for the platform under test
//   - network access to pull images
//
// # Test Harness
//
//	func TestMyImage(t *testing.T) {
//	    h := integration.NewHarness(t) // Skips if env var not set
//	    h.RequireHypervisor(testcase.PlatformQEMU, testcase.ArchX86_64)
//
//	    sum := h.Run(ctx, []*testcase.TestCase{tc})
//	    if !sum.OK() { ... }
//	}
//
// # Running Integration Tests
//
//	KRAFTCHECK_INTEGRATION_TESTS=1 go test -v ./internal/integration/...
package integration
