package history

import (
	stderrors "errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/firefly-engineering/kraftcheck/internal/check"
	"github.com/firefly-engineering/kraftcheck/internal/executor"
	"github.com/firefly-engineering/kraftcheck/internal/runner"
	"github.com/firefly-engineering/kraftcheck/internal/system"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

const historyDir = "/state/kraftcheck/history"

func nginxCase() *testcase.TestCase {
	return &testcase.TestCase{
		Image:    "unikraft.org/nginx:1.15",
		Arch:     testcase.ArchX86_64,
		Platform: testcase.PlatformFirecracker,
	}
}

func TestRecorder_LogAndEvents(t *testing.T) {
	fs := system.NewMockFS()
	rec := NewRecorder(fs, historyDir)

	now := time.Now().Truncate(time.Millisecond)
	events := []Event{
		{Timestamp: now, Type: EventStart, RunID: "r1", Image: "unikraft.org/nginx:1.15", Target: "fc/x86_64"},
		{Timestamp: now.Add(time.Second), Type: EventPassed, RunID: "r1", Image: "unikraft.org/nginx:1.15", Target: "fc/x86_64"},
		{Timestamp: now.Add(2 * time.Second), Type: EventErrored, RunID: "r2", Image: "unikraft.org/nginx:1.15", Details: "launch failed"},
	}
	for _, e := range events {
		if err := rec.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	got, err := rec.Events("unikraft.org/nginx:1.15")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("got %d events, want %d", len(got), len(events))
	}
	for i, e := range got {
		if e.Type != events[i].Type {
			t.Errorf("event %d: type = %q, want %q", i, e.Type, events[i].Type)
		}
		if e.RunID != events[i].RunID {
			t.Errorf("event %d: run_id = %q, want %q", i, e.RunID, events[i].RunID)
		}
		if !e.Timestamp.Equal(events[i].Timestamp) {
			t.Errorf("event %d: timestamp = %v, want %v", i, e.Timestamp, events[i].Timestamp)
		}
	}
}

func TestRecorder_EventsEmpty(t *testing.T) {
	rec := NewRecorder(system.NewMockFS(), historyDir)

	got, err := rec.Events("unikraft.org/never-run:latest")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d events, want 0", len(got))
	}
}

func TestRecorder_SkipsMalformedLines(t *testing.T) {
	fs := system.NewMockFS()
	rec := NewRecorder(fs, historyDir)

	path, err := rec.Path("helloworld")
	if err != nil {
		t.Fatal(err)
	}
	fs.AddFile(path, []byte("{\"type\":\"run-start\",\"image\":\"helloworld\"}\nnot json\n\n{\"type\":\"case-passed\",\"image\":\"helloworld\"}\n"))

	got, err := rec.Events("helloworld")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[1].Type != EventPassed {
		t.Errorf("second event type = %q, want %q", got[1].Type, EventPassed)
	}
}

func TestRecorder_PathStaysInDir(t *testing.T) {
	rec := NewRecorder(system.NewMockFS(), historyDir)

	for _, image := range []string{"../../etc/passwd", "..", "/abs/image", "unikraft.org/nginx:1.15"} {
		path, err := rec.Path(image)
		if err != nil {
			t.Fatalf("Path(%q) error: %v", image, err)
		}
		if filepath.Dir(path) != historyDir {
			t.Errorf("Path(%q) = %q, want a file directly under %s", image, path, historyDir)
		}
		if !strings.HasSuffix(path, ".jsonl") {
			t.Errorf("Path(%q) = %q, want .jsonl suffix", image, path)
		}
	}
}

func TestRecorder_Observer(t *testing.T) {
	fs := system.NewMockFS()
	rec := NewRecorder(fs, historyDir)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	tc := nginxCase()
	rep := &executor.Report{
		ExitCode: 1,
		Verdicts: []check.Verdict{
			{Passed: true, Message: "Check tcp port 8080 is listening"},
			{Passed: false, Message: "Check exit code equals 0, got: 1"},
		},
	}

	var obs runner.Observer = rec
	obs.CaseStarted("run-1", 0, tc)
	obs.CaseFinished("run-1", runner.Result{Index: 0, Case: tc, Status: runner.StatusFailed, Report: rep})
	obs.CaseStarted("run-1", 1, tc)
	obs.CaseFinished("run-1", runner.Result{Index: 1, Case: tc, Status: runner.StatusErrored, Err: stderrors.New("kraft not found")})

	got, err := rec.Events(tc.Image)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	wantTypes := []EventType{EventStart, EventFailed, EventStart, EventErrored}
	if len(got) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(got), len(wantTypes))
	}
	for i, want := range wantTypes {
		if got[i].Type != want {
			t.Errorf("event %d: type = %q, want %q", i, got[i].Type, want)
		}
		if got[i].Target != "fc/x86_64" {
			t.Errorf("event %d: target = %q, want fc/x86_64", i, got[i].Target)
		}
		if !got[i].Timestamp.Equal(fixed) {
			t.Errorf("event %d: timestamp = %v, want %v", i, got[i].Timestamp, fixed)
		}
	}

	failed := got[1]
	if failed.ExitCode == nil || *failed.ExitCode != 1 {
		t.Errorf("exit_code = %v, want 1", failed.ExitCode)
	}
	if len(failed.Failed) != 1 || failed.Failed[0] != "Check exit code equals 0, got: 1" {
		t.Errorf("failed = %q", failed.Failed)
	}
	if got[3].Details != "kraft not found" {
		t.Errorf("details = %q, want kraft not found", got[3].Details)
	}
}

func TestRecorder_WriteErrorDoesNotPanic(t *testing.T) {
	fs := system.NewMockFS()
	fs.MkdirAllErr = stderrors.New("read-only file system")
	rec := NewRecorder(fs, historyDir)

	if err := rec.Log(Event{Type: EventStart, Image: "x"}); err == nil {
		t.Error("expected error when directory cannot be created")
	}
	rec.CaseStarted("run-1", 0, nginxCase())
}
