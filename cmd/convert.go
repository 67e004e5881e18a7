package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/kraftcheck/internal/app"
	"github.com/firefly-engineering/kraftcheck/internal/errors"
	"github.com/firefly-engineering/kraftcheck/internal/loader"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

var (
	convertTo  string
	convertOut string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Rewrite a description file in another format",
	Example: `  kraftcheck convert -f tests/caddy.json --to yaml
  kraftcheck convert -f tests/caddy.yaml --to toml -o tests/caddy.toml`,
	RunE: runConvert,
}

func init() {
	addCaseFlags(convertCmd)
	convertCmd.Flags().StringVar(&convertTo, "to", "", "Target format: json, yaml or toml")
	convertCmd.Flags().StringVarP(&convertOut, "output", "o", "", "Write to this file instead of stdout")
	_ = convertCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	format, err := loader.ParseFormat(convertTo)
	if err != nil {
		return errors.ValidationError(err.Error())
	}

	_, selected, err := loadSelected()
	if err != nil {
		return err
	}
	cases := make([]*testcase.TestCase, len(selected))
	for i, sel := range selected {
		cases[i] = sel.Case
	}

	data, err := loader.Marshal(cases, format)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}

	if convertOut == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := app.Default.FS.WriteFile(convertOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", convertOut, err)
	}
	logSuccess("Wrote %d test cases to %s", len(cases), convertOut)
	return nil
}
