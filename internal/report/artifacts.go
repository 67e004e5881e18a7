package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/firefly-engineering/kraftcheck/internal/logging"
	"github.com/firefly-engineering/kraftcheck/internal/runner"
	"github.com/firefly-engineering/kraftcheck/internal/system"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

// Artifact file names written per case.
const (
	CommandFile  = "command.txt"
	StdoutFile   = "stdout.log"
	StderrFile   = "stderr.log"
	VerdictsFile = "verdicts.json"
	ErrorFile    = "error.txt"
)

// Artifacts saves each case's captured output under
// {dir}/{run id}/{index}-{image}/. It satisfies runner.Observer.
type Artifacts struct {
	fs  system.FileSystem
	dir string
}

// NewArtifacts creates an artifact writer rooted at dir.
func NewArtifacts(fsys system.FileSystem, dir string) *Artifacts {
	return &Artifacts{fs: fsys, dir: dir}
}

// CaseDir returns the directory holding one case's artifacts. The result is
// always inside the artifact root.
func (a *Artifacts) CaseDir(runID string, index int, image string) (string, error) {
	rel := filepath.Join(runID, fmt.Sprintf("%03d-%s", index, testcase.ImageSlug(image)))
	dir, err := securejoin.SecureJoin(a.dir, rel)
	if err != nil {
		return "", fmt.Errorf("failed to resolve artifact directory: %w", err)
	}
	return dir, nil
}

// Write stores the artifacts of one finished case.
func (a *Artifacts) Write(runID string, res runner.Result) error {
	dir, err := a.CaseDir(runID, res.Index, res.Case.Image)
	if err != nil {
		return err
	}
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	files := map[string][]byte{}
	if rep := res.Report; rep != nil {
		verdicts, err := json.MarshalIndent(rep.Verdicts, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal verdicts: %w", err)
		}
		files[CommandFile] = []byte(rep.CommandLine() + "\n")
		files[StdoutFile] = rep.Stdout
		files[StderrFile] = rep.Stderr
		files[VerdictsFile] = append(verdicts, '\n')
	}
	if res.Err != nil {
		files[ErrorFile] = []byte(res.Err.Error() + "\n")
	}

	for name, data := range files {
		if err := a.fs.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

// CaseStarted is a no-op.
func (a *Artifacts) CaseStarted(runID string, index int, tc *testcase.TestCase) {}

// CaseFinished writes the case's artifacts, logging any failure.
func (a *Artifacts) CaseFinished(runID string, res runner.Result) {
	if err := a.Write(runID, res); err != nil {
		logging.Warn("failed to save artifacts", "index", res.Index, "image", res.Case.Image, "error", err)
		return
	}
	logging.Debug("saved artifacts", "index", res.Index, "run_id", runID)
}
