// Package history records test-case outcomes as JSON Lines, one file per
// image, so earlier runs of an image can be inspected later.
package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/firefly-engineering/kraftcheck/internal/check"
	"github.com/firefly-engineering/kraftcheck/internal/errors"
	"github.com/firefly-engineering/kraftcheck/internal/logging"
	"github.com/firefly-engineering/kraftcheck/internal/runner"
	"github.com/firefly-engineering/kraftcheck/internal/system"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

// EventType classifies a history entry.
type EventType string

const (
	EventStart   EventType = "run-start"
	EventPassed  EventType = "case-passed"
	EventFailed  EventType = "case-failed"
	EventErrored EventType = "case-errored"
)

// Event is a single history entry.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	Image     string    `json:"image"`
	Target    string    `json:"target"`
	Index     int       `json:"index"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Failed    []string  `json:"failed,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Recorder appends events under dir. It satisfies runner.Observer.
type Recorder struct {
	fs  system.FileSystem
	dir string
	now func() time.Time
}

// NewRecorder creates a Recorder rooted at dir.
func NewRecorder(fsys system.FileSystem, dir string) *Recorder {
	return &Recorder{fs: fsys, dir: dir, now: time.Now}
}

// Path returns the JSONL file holding image's events.
func (r *Recorder) Path(image string) (string, error) {
	path, err := securejoin.SecureJoin(r.dir, testcase.ImageSlug(image)+".jsonl")
	if err != nil {
		return "", fmt.Errorf("failed to resolve history path for %s: %w", image, err)
	}
	return path, nil
}

// Log appends an event to its image's history.
func (r *Recorder) Log(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now()
	}

	path, err := r.Path(event.Image)
	if err != nil {
		return err
	}
	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.fs.AppendFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Events reads all events for image in the order they were written.
// Malformed lines are skipped.
func (r *Recorder) Events(image string) ([]Event, error) {
	path, err := r.Path(image)
	if err != nil {
		return nil, err
	}

	data, err := r.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var events []Event
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading history: %w", err)
	}
	return events, nil
}

// CaseStarted records a run-start event.
func (r *Recorder) CaseStarted(runID string, index int, tc *testcase.TestCase) {
	r.logQuietly(Event{
		Type:   EventStart,
		RunID:  runID,
		Image:  tc.Image,
		Target: target(tc),
		Index:  index,
	})
}

// CaseFinished records the outcome of a case.
func (r *Recorder) CaseFinished(runID string, res runner.Result) {
	event := Event{
		RunID:  runID,
		Image:  res.Case.Image,
		Target: target(res.Case),
		Index:  res.Index,
	}

	switch res.Status {
	case runner.StatusPassed:
		event.Type = EventPassed
	case runner.StatusFailed:
		event.Type = EventFailed
	default:
		event.Type = EventErrored
	}

	if res.Report != nil {
		code := res.Report.ExitCode
		event.ExitCode = &code
		for _, v := range check.Failures(res.Report.Verdicts) {
			event.Failed = append(event.Failed, v.Message)
		}
	}
	if res.Err != nil {
		event.Details = res.Err.Error()
	}
	r.logQuietly(event)
}

// logQuietly records an event without failing the run.
func (r *Recorder) logQuietly(event Event) {
	if err := r.Log(event); err != nil {
		logging.Warn("failed to record history", "image", event.Image, "error", err)
	}
}

func target(tc *testcase.TestCase) string {
	return tc.Platform.Flag() + "/" + string(tc.Arch)
}
