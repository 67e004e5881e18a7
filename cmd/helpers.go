package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/kraftcheck/internal/app"
	"github.com/firefly-engineering/kraftcheck/internal/config"
	"github.com/firefly-engineering/kraftcheck/internal/errors"
	"github.com/firefly-engineering/kraftcheck/internal/loader"
	"github.com/firefly-engineering/kraftcheck/internal/runner"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

// Flags shared by the commands that read a description file.
var (
	caseFile     string
	caseFilters  []string
	launcherFlag string
)

func addCaseFlags(c *cobra.Command) {
	c.Flags().StringVarP(&caseFile, "file", "f", "", "Test-case description file (.json, .yaml or .toml)")
	c.Flags().StringArrayVar(&caseFilters, "filter", nil, "Only use cases whose field matches (key=value, repeatable)")
	_ = c.MarkFlagRequired("file")
}

func addLauncherFlag(c *cobra.Command) {
	c.Flags().StringVar(&launcherFlag, "launcher", "", `Launcher invocation (default "kraft run --rm")`)
}

// loadConfig loads the configuration and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	loaded, err := app.Default.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	cfg := *loaded
	if launcherFlag != "" {
		cfg.Launcher = launcherFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadSelected reads caseFile and applies caseFilters.
func loadSelected() ([]*testcase.TestCase, []runner.Selected, error) {
	filters, err := runner.ParseFilters(caseFilters)
	if err != nil {
		return nil, nil, err
	}
	cases, err := loader.Load(app.Default.FS, caseFile)
	if err != nil {
		return nil, nil, err
	}
	return cases, runner.Select(cases, filters), nil
}

// selectData parses description data already read from caseFile.
func selectData(data []byte) ([]runner.Selected, error) {
	filters, err := runner.ParseFilters(caseFilters)
	if err != nil {
		return nil, err
	}
	cases, err := loader.Parse(data, loader.FormatFromPath(caseFile))
	if err != nil {
		return nil, err
	}
	return runner.Select(cases, filters), nil
}

// requireSelection fails when no case survived filtering.
func requireSelection(cases []*testcase.TestCase, selected []runner.Selected) error {
	switch {
	case len(cases) == 0:
		return errors.ValidationError("no test cases in " + caseFile)
	case len(selected) == 0:
		return errors.ValidationError("no test cases match the given filters")
	}
	return nil
}
