package integration

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/kraftcheck/internal/check"
	"github.com/firefly-engineering/kraftcheck/internal/executor"
	"github.com/firefly-engineering/kraftcheck/internal/history"
	"github.com/firefly-engineering/kraftcheck/internal/launcher"
	"github.com/firefly-engineering/kraftcheck/internal/loader"
	"github.com/firefly-engineering/kraftcheck/internal/probe"
	"github.com/firefly-engineering/kraftcheck/internal/report"
	"github.com/firefly-engineering/kraftcheck/internal/runner"
	"github.com/firefly-engineering/kraftcheck/internal/system"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

// fakeKraft stands in for the launcher. It picks a behaviour from the last
// argument, the image.
const fakeKraft = `#!/bin/sh
for image; do :; done
echo "args: $*"
case "$image" in
  */exit-ok) echo "Hello from Unikraft!"; exit 0 ;;
  */exit-fail) echo "boom" >&2; exit 3 ;;
  */orphan) ( exec sleep 30 ) >/dev/null 2>&1 & echo $! > "$0.orphan"; echo "started"; exit 1 ;;
  */stubborn) trap '' TERM; echo "stubborn"; sleep 30; exit 0 ;;
  *) echo "serving"; exec sleep 30 ;;
esac
`

func writeFakeKraft(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kraft")
	require.NoError(t, os.WriteFile(path, []byte(fakeKraft), 0755))
	return path
}

func newExecutor(t *testing.T) *executor.Executor {
	t.Helper()
	p := probe.New("127.0.0.1")
	p.DialTimeout = time.Second
	p.RequestTimeout = 2 * time.Second

	e := executor.New(launcher.NewExecLauncher(), p)
	e.Command = []string{writeFakeKraft(t), "run", "--rm"}
	e.StopGrace = 500 * time.Millisecond
	return e
}

func serverPort(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}

// closedPort returns a port nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func intp(i int) *int { return &i }

func failedNames(vs []check.Verdict) []string {
	var names []string
	for _, v := range check.Failures(vs) {
		names = append(names, string(v.Category)+"."+v.Name)
	}
	return names
}

func TestWorkflow_NaturalExitPasses(t *testing.T) {
	e := newExecutor(t)

	rep, err := e.Run(context.Background(), &testcase.TestCase{
		Image:          "local/exit-ok",
		Arch:           testcase.ArchX86_64,
		Platform:       testcase.PlatformQEMU,
		Memory:         "64M",
		TimeoutSeconds: 5,
		Stdout:         &testcase.OutputCheck{Contains: []string{"Hello from Unikraft!"}},
		Stderr:         &testcase.OutputCheck{Empty: true},
		ReturnCode:     &testcase.ReturnCodeCheck{Equals: intp(0)},
	})
	require.NoError(t, err)

	assert.True(t, rep.Passed(), "failures: %v", failedNames(rep.Verdicts))
	assert.Equal(t, 0, rep.ExitCode)
	assert.False(t, rep.FailedFast)
	assert.False(t, rep.Probed)
	assert.Contains(t, string(rep.Stdout), "args: run --rm -M 64M --plat qemu --arch x86_64 local/exit-ok")
	assert.Equal(t, []executor.State{
		executor.StateBuilt,
		executor.StateLaunched,
		executor.StateNaturallyExited,
		executor.StateStopped,
		executor.StateEvaluated,
	}, rep.Path)
}

func TestWorkflow_FailedFast(t *testing.T) {
	e := newExecutor(t)

	rep, err := e.Run(context.Background(), &testcase.TestCase{
		Image:      "local/exit-fail",
		Arch:       testcase.ArchX86_64,
		Platform:   testcase.PlatformQEMU,
		Stderr:     &testcase.OutputCheck{Contains: []string{"boom"}},
		ReturnCode: &testcase.ReturnCodeCheck{Equals: intp(0)},
	})
	require.NoError(t, err)

	assert.True(t, rep.FailedFast)
	assert.Equal(t, 3, rep.ExitCode)
	assert.False(t, rep.Passed())
	assert.Equal(t, []string{"return_code.equals"}, failedNames(rep.Verdicts))
}

func TestWorkflow_ServingGuestIsProbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>Hello, World!</p>\n"))
	}))
	defer srv.Close()
	port := serverPort(t, srv)

	e := newExecutor(t)
	start := time.Now()
	rep, err := e.Run(context.Background(), &testcase.TestCase{
		Image:          "local/caddy",
		Arch:           testcase.ArchX86_64,
		Platform:       testcase.PlatformQEMU,
		TimeoutSeconds: 1,
		Ports:          []testcase.PortMapping{{Published: port, Internal: 2015}},
		Stdout:         &testcase.OutputCheck{Contains: []string{"serving"}},
		HTTP: []testcase.HTTPCheck{{
			URI:        "/",
			Method:     http.MethodGet,
			Port:       port,
			StatusCode: intp(http.StatusOK),
			Response:   &testcase.OutputCheck{Contains: []string{"Hello, World!"}},
		}},
	})
	require.NoError(t, err)

	assert.True(t, rep.Probed)
	assert.True(t, rep.Passed(), "failures: %v", failedNames(rep.Verdicts))
	assert.Equal(t, -1, rep.ExitCode, "terminated guest has no exit code")
	assert.Contains(t, rep.Path, executor.StateProbed)
	assert.Less(t, time.Since(start), 10*time.Second)

	require.Len(t, rep.TCP, 1)
	assert.True(t, rep.TCP[0].OK)
	require.Len(t, rep.HTTP, 1)
	require.NotNil(t, rep.HTTP[0].Result)
	assert.Equal(t, http.StatusOK, rep.HTTP[0].Result.StatusCode)
}

func TestWorkflow_ClosedPortFails(t *testing.T) {
	port := closedPort(t)
	e := newExecutor(t)

	rep, err := e.Run(context.Background(), &testcase.TestCase{
		Image:          "local/nginx",
		Arch:           testcase.ArchARM64,
		Platform:       testcase.PlatformFirecracker,
		TimeoutSeconds: 1,
		Ports:          []testcase.PortMapping{{Published: port, Internal: 80}},
		HTTP:           []testcase.HTTPCheck{{URI: "/", Method: http.MethodGet, Port: port}},
	})
	require.NoError(t, err)

	assert.True(t, rep.Probed)
	assert.False(t, rep.Passed())
	assert.ElementsMatch(t, []string{"tcp_check.listening", "http_check.connection"}, failedNames(rep.Verdicts))

	require.Len(t, rep.TCP, 1)
	assert.Equal(t, "ECONNREFUSED", rep.TCP[0].ErrnoName())
	require.Len(t, rep.HTTP, 1)
	assert.NotNil(t, rep.HTTP[0].Failure)
}

// processAlive reports whether pid is running and not a zombie.
func processAlive(pid int) bool {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return false
	}
	_, rest, _ := strings.Cut(string(data), ") ")
	return !strings.HasPrefix(rest, "Z") && !strings.HasPrefix(rest, "X")
}

func TestWorkflow_LeftoverGuestIsReapedAfterExit(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("needs /proc")
	}
	e := newExecutor(t)

	rep, err := e.Run(context.Background(), &testcase.TestCase{
		Image:          "local/orphan",
		Arch:           testcase.ArchX86_64,
		Platform:       testcase.PlatformQEMU,
		TimeoutSeconds: 3,
	})
	require.NoError(t, err)
	assert.True(t, rep.FailedFast)
	assert.Equal(t, 1, rep.ExitCode)

	data, err := os.ReadFile(e.Command[0] + ".orphan")
	require.NoError(t, err)
	child, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return !processAlive(child) }, 3*time.Second, 20*time.Millisecond,
		"guest %d left by the launcher should not survive Run", child)
}

func TestWorkflow_GuestIgnoringTermIsKilled(t *testing.T) {
	e := newExecutor(t)

	start := time.Now()
	rep, err := e.Run(context.Background(), &testcase.TestCase{
		Image:          "local/stubborn",
		Arch:           testcase.ArchX86_64,
		Platform:       testcase.PlatformXen,
		TimeoutSeconds: 1,
		Stdout:         &testcase.OutputCheck{Contains: []string{"stubborn"}},
	})
	require.NoError(t, err)

	assert.True(t, rep.Passed(), "failures: %v", failedNames(rep.Verdicts))
	assert.Equal(t, -1, rep.ExitCode)
	assert.Less(t, time.Since(start), 10*time.Second, "stubborn guest should be killed after the stop grace")
}

func TestWorkflow_DescriptionFileToReports(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()
	port := serverPort(t, srv)

	dir := t.TempDir()
	cases := []*testcase.TestCase{
		{
			Image:      "local/exit-ok",
			Arch:       testcase.ArchX86_64,
			Platform:   testcase.PlatformQEMU,
			ReturnCode: &testcase.ReturnCodeCheck{Equals: intp(0)},
		},
		{
			Image:          "local/teapot",
			Arch:           testcase.ArchX86_64,
			Platform:       testcase.PlatformQEMU,
			TimeoutSeconds: 1,
			HTTP:           []testcase.HTTPCheck{{URI: "/brew", Method: http.MethodGet, Port: port, StatusCode: intp(http.StatusOK)}},
		},
		{
			Image:    "local/exit-ok",
			Arch:     testcase.ArchARM64,
			Platform: testcase.PlatformFirecracker,
		},
	}
	data, err := loader.Marshal(cases, loader.FormatYAML)
	require.NoError(t, err)
	path := filepath.Join(dir, "cases.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))

	fs := system.DefaultFS()
	loaded, err := loader.Load(fs, path)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	filters, err := runner.ParseFilters([]string{"arch=amd64"})
	require.NoError(t, err)

	recorder := history.NewRecorder(fs, filepath.Join(dir, "history"))
	artifacts := report.NewArtifacts(fs, filepath.Join(dir, "artifacts"))
	var console bytes.Buffer

	sum := runner.New(newExecutor(t), report.NewConsole(&console), recorder, artifacts).
		Run(context.Background(), loaded, filters)

	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Passed)
	assert.Equal(t, 1, sum.Failed)
	assert.False(t, sum.OK())

	out := console.String()
	assert.Contains(t, out, "Testing local/exit-ok on qemu/x86_64")
	assert.Contains(t, out, "Testing local/teapot on qemu/x86_64")
	assert.NotContains(t, out, "fc/arm64")

	events, err := recorder.Events("local/teapot")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, history.EventStart, events[0].Type)
	assert.Equal(t, history.EventFailed, events[1].Type)
	require.Len(t, events[1].Failed, 1)
	assert.Contains(t, events[1].Failed[0], "418")

	caseDir, err := artifacts.CaseDir(sum.RunID, 1, "local/teapot")
	require.NoError(t, err)
	verdicts, err := os.ReadFile(filepath.Join(caseDir, report.VerdictsFile))
	require.NoError(t, err)
	assert.Contains(t, string(verdicts), `"status_code"`)
	command, err := os.ReadFile(filepath.Join(caseDir, report.CommandFile))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(command)), "--plat qemu --arch x86_64 local/teapot"))
}

func TestWorkflow_CancelledRunSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cases := []*testcase.TestCase{
		{Image: "local/server", Arch: testcase.ArchX86_64, Platform: testcase.PlatformQEMU, TimeoutSeconds: 30},
		{Image: "local/exit-ok", Arch: testcase.ArchX86_64, Platform: testcase.PlatformQEMU},
	}

	time.AfterFunc(300*time.Millisecond, cancel)
	start := time.Now()
	sum := runner.New(newExecutor(t)).Run(ctx, cases, nil)

	assert.Less(t, time.Since(start), 10*time.Second, "cancel should stop the running guest")
	assert.Equal(t, 1, sum.Skipped)
	require.Len(t, sum.Results, 1)
}
