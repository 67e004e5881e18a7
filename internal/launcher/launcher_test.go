package launcher

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

var base = []string{"kraft", "run", "--rm"}

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		tc   testcase.TestCase
		want []string
	}{
		{
			name: "minimal",
			tc:   testcase.TestCase{Image: "unikraft.org/hello:latest", Arch: testcase.ArchX86_64, Platform: testcase.PlatformQEMU},
			want: []string{"kraft", "run", "--rm", "--plat", "qemu", "--arch", "x86_64", "unikraft.org/hello:latest"},
		},
		{
			name: "firecracker uses short flag",
			tc:   testcase.TestCase{Image: "img", Arch: testcase.ArchARM64, Platform: testcase.PlatformFirecracker},
			want: []string{"kraft", "run", "--rm", "--plat", "fc", "--arch", "arm64", "img"},
		},
		{
			name: "memory ports and args",
			tc: testcase.TestCase{
				Image:    "nginx:latest",
				Arch:     testcase.ArchX86_64,
				Platform: testcase.PlatformQEMU,
				Memory:   "256Mi",
				Ports:    []testcase.PortMapping{{Published: 8080, Internal: 80}, {Published: 8443, Internal: 443}},
				Args: []testcase.Arg{
					{Name: "disable-acceleration", Bare: true},
					{Name: "kernel-arg", Value: "console=ttyS0"},
				},
			},
			want: []string{
				"kraft", "run", "--rm",
				"-M", "256Mi",
				"-p8080:80", "-p8443:443",
				"--plat", "qemu",
				"--disable-acceleration",
				"--kernel-arg", "console=ttyS0",
				"--arch", "x86_64", "nginx:latest",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build(&tt.tc, base)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Build() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuild_DoesNotAliasBase(t *testing.T) {
	b := make([]string, 3, 10)
	copy(b, base)
	tc := &testcase.TestCase{Image: "a", Arch: testcase.ArchARM, Platform: testcase.PlatformXen}

	first := Build(tc, b)
	tc.Image = "b"
	Build(tc, b)

	if first[len(first)-1] != "a" {
		t.Errorf("first argv was modified: %q", first)
	}
}

func TestParseCommand(t *testing.T) {
	got, err := ParseCommand(`/opt/kraft/bin/kraft --log-type "basic" run --rm`)
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}
	want := []string{"/opt/kraft/bin/kraft", "--log-type", "basic", "run", "--rm"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseCommand() = %q, want %q", got, want)
	}

	if _, err := ParseCommand("   "); err == nil {
		t.Error("ParseCommand(blank) should fail")
	}
	if _, err := ParseCommand(`kraft "run`); err == nil {
		t.Error("ParseCommand(unterminated quote) should fail")
	}
}

func TestDisplay(t *testing.T) {
	got := Display([]string{"kraft", "run", "--kernel-arg", "console=ttyS0 quiet", "img"})
	want := `kraft run --kernel-arg 'console=ttyS0 quiet' img`
	if got != want {
		t.Errorf("Display() = %q, want %q", got, want)
	}
}

func TestExecLauncher_NaturalExit(t *testing.T) {
	l := NewExecLauncher()
	p, err := l.Launch(context.Background(), []string{"sh", "-c", "echo out; echo err >&2; exit 3"})
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	out, err := p.Wait(5 * time.Second)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if string(out.Stdout) != "out\n" {
		t.Errorf("Stdout = %q, want %q", out.Stdout, "out\n")
	}
	if string(out.Stderr) != "err\n" {
		t.Errorf("Stderr = %q, want %q", out.Stderr, "err\n")
	}
	if out.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", out.ExitCode)
	}

	// Signalling an exited process is a no-op.
	if err := p.Terminate(); err != nil {
		t.Errorf("Terminate() after exit error = %v", err)
	}
}

func TestExecLauncher_TimeoutThenTerminate(t *testing.T) {
	l := NewExecLauncher()
	p, err := l.Launch(context.Background(), []string{"sh", "-c", "echo booted; exec sleep 30"})
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	if _, err := p.Wait(200 * time.Millisecond); !errors.Is(err, ErrTimedOut) {
		t.Fatalf("Wait() error = %v, want ErrTimedOut", err)
	}

	if err := p.Terminate(); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	out, err := p.Drain(5 * time.Second)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if string(out.Stdout) != "booted\n" {
		t.Errorf("Stdout = %q, want %q", out.Stdout, "booted\n")
	}
	if out.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1 for a signalled process", out.ExitCode)
	}
}

func TestExecLauncher_KillIgnoringTerm(t *testing.T) {
	l := NewExecLauncher()
	p, err := l.Launch(context.Background(), []string{"sh", "-c", "trap '' TERM; while :; do sleep 1; done"})
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	// Give the shell time to install the trap.
	time.Sleep(200 * time.Millisecond)

	if err := p.Terminate(); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	if _, err := p.Drain(300 * time.Millisecond); !errors.Is(err, ErrTimedOut) {
		t.Fatalf("Drain() after ignored TERM error = %v, want ErrTimedOut", err)
	}

	if err := p.Kill(); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}
	if _, err := p.Drain(5 * time.Second); err != nil {
		t.Fatalf("Drain() after kill error = %v", err)
	}
}

// alive reports whether pid is a running, non-zombie process.
func alive(t *testing.T, pid int) bool {
	t.Helper()
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	if err != nil {
		t.Skipf("cannot inspect /proc: %v", err)
	}
	// The state follows the parenthesised command name.
	_, rest, _ := strings.Cut(string(data), ") ")
	return !strings.HasPrefix(rest, "Z") && !strings.HasPrefix(rest, "X")
}

func TestExecLauncher_ReapAfterNaturalExit(t *testing.T) {
	l := NewExecLauncher()
	p, err := l.Launch(context.Background(), []string{"sh", "-c", "( exec sleep 30 ) >/dev/null 2>&1 & echo $!; exit 1"})
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	out, err := p.Wait(5 * time.Second)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	child, err := strconv.Atoi(strings.TrimSpace(string(out.Stdout)))
	if err != nil {
		t.Fatalf("unexpected stdout %q", out.Stdout)
	}
	if !alive(t, child) {
		t.Fatalf("background child %d should outlive the launcher", child)
	}

	if err := p.Reap(); err != nil {
		t.Fatalf("Reap() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for alive(t, child) {
		if time.Now().After(deadline) {
			t.Fatalf("child %d still running after Reap()", child)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// The group is empty now.
	if err := p.Reap(); err != nil {
		t.Errorf("second Reap() error = %v", err)
	}
}

func TestExecLauncher_MissingExecutable(t *testing.T) {
	l := NewExecLauncher()
	if _, err := l.Launch(context.Background(), []string{"/nonexistent/kraft", "run"}); err == nil {
		t.Error("Launch() of missing executable should fail")
	}
	if _, err := l.Launch(context.Background(), nil); err == nil {
		t.Error("Launch() of empty argv should fail")
	}
}

func TestMockProcess_Lifecycle(t *testing.T) {
	p := &MockProcess{Pid: 7, Running: true, IgnoreTerm: true, Output: Output{ExitCode: -1}}
	l := NewMockLauncher(p)

	got, err := l.Launch(context.Background(), base)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if _, err := got.Wait(time.Second); !errors.Is(err, ErrTimedOut) {
		t.Errorf("Wait() error = %v, want ErrTimedOut", err)
	}
	_ = got.Terminate()
	if p.Stopped() {
		t.Error("process ignoring TERM should still be running")
	}
	_ = got.Kill()
	if !p.Stopped() {
		t.Error("process should be stopped after kill")
	}
	if _, err := l.Launch(context.Background(), base); err == nil {
		t.Error("Launch() with no scripted process should fail")
	}
	if len(l.Launched) != 2 {
		t.Errorf("Launched = %d, want 2", len(l.Launched))
	}
}
