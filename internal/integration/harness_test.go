package integration

import (
	"context"
	"testing"
	"time"

	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

func TestHypervisorBinary(t *testing.T) {
	tests := []struct {
		plat testcase.Platform
		arch testcase.Architecture
		want string
	}{
		{testcase.PlatformQEMU, testcase.ArchX86_64, "qemu-system-x86_64"},
		{testcase.PlatformQEMU, testcase.ArchARM64, "qemu-system-aarch64"},
		{testcase.PlatformFirecracker, testcase.ArchX86_64, "firecracker"},
		{testcase.PlatformXen, testcase.ArchX86_64, "xl"},
	}

	for _, tt := range tests {
		if got := hypervisorBinary(tt.plat, tt.arch); got != tt.want {
			t.Errorf("hypervisorBinary(%s, %s) = %q, want %q", tt.plat, tt.arch, got, tt.want)
		}
	}
}

func TestHelloWorld(t *testing.T) {
	tc := HelloWorld(testcase.PlatformQEMU, testcase.ArchX86_64)
	if !tc.HasChecks() {
		t.Error("HelloWorld case should declare checks")
	}
	if tc.Timeout() <= testcase.DefaultTimeoutSeconds*time.Second {
		t.Errorf("Timeout = %v, should leave room for boot", tc.Timeout())
	}
}

// TestRealKraft_HelloWorld boots a real image.
// It is skipped unless KRAFTCHECK_INTEGRATION_TESTS=1.
func TestRealKraft_HelloWorld(t *testing.T) {
	h := NewHarness(t)
	h.RequireHypervisor(testcase.PlatformQEMU, testcase.ArchX86_64)

	sum := h.Run(context.Background(), []*testcase.TestCase{
		HelloWorld(testcase.PlatformQEMU, testcase.ArchX86_64),
	})
	if !sum.OK() {
		for _, res := range sum.Results {
			t.Logf("case %d: %s err=%v", res.Index, res.Status, res.Err)
		}
		t.Fatalf("helloworld failed: %d failed, %d errored", sum.Failed, sum.Errored)
	}
}
