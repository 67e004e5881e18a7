package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List test cases in a description file",
	RunE:  runList,
}

func init() {
	addCaseFlags(listCmd)
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cases, selected, err := loadSelected()
	if err != nil {
		return err
	}

	if len(selected) == 0 {
		logInfo("No test cases found (%d in file)", len(cases))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tIMAGE\tPLAT\tARCH\tMEMORY\tTIMEOUT\tPORTS\tCHECKS")
	fmt.Fprintln(w, "-----\t-----\t----\t----\t------\t-------\t-----\t------")

	for _, sel := range selected {
		tc := sel.Case
		memory := tc.Memory
		if memory == "" {
			memory = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			sel.Index, tc.Image, tc.Platform.Flag(), tc.Arch, memory, tc.Timeout(), formatPorts(tc), formatChecks(tc))
	}

	return w.Flush()
}

func formatPorts(tc *testcase.TestCase) string {
	if len(tc.Ports) == 0 {
		return "-"
	}
	ports := make([]string, len(tc.Ports))
	for i, p := range tc.Ports {
		ports[i] = p.String()
	}
	return strings.Join(ports, ",")
}

func formatChecks(tc *testcase.TestCase) string {
	var checks []string
	if tc.Stdout != nil {
		checks = append(checks, "stdout")
	}
	if tc.Stderr != nil {
		checks = append(checks, "stderr")
	}
	if tc.ReturnCode != nil {
		checks = append(checks, "return_code")
	}
	if len(tc.Ports) > 0 {
		checks = append(checks, "tcp")
	}
	if len(tc.HTTP) > 0 {
		checks = append(checks, fmt.Sprintf("http(%d)", len(tc.HTTP)))
	}
	if len(checks) == 0 {
		return "-"
	}
	return strings.Join(checks, ",")
}
