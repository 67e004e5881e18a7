package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/firefly-engineering/kraftcheck/internal/check"
	"github.com/firefly-engineering/kraftcheck/internal/runner"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

const (
	glyphPass = "✅"
	glyphFail = "❌"
)

// Console streams a human-readable report as cases run. It satisfies
// runner.Observer.
type Console struct {
	w io.Writer

	header lipgloss.Style
	pass   lipgloss.Style
	fail   lipgloss.Style
	dim    lipgloss.Style

	// ShowOutput prints the guest's stdout when it exited early with a
	// non-zero code.
	ShowOutput bool
}

// NewConsole creates a Console writing to w. Colors are only emitted when w
// is a terminal.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:          w,
		header:     r.NewStyle().Bold(true),
		pass:       r.NewStyle().Foreground(lipgloss.Color("42")),
		fail:       r.NewStyle().Foreground(lipgloss.Color("196")),
		dim:        r.NewStyle().Foreground(lipgloss.Color("241")),
		ShowOutput: true,
	}
}

// CaseStarted prints the case banner.
func (c *Console) CaseStarted(runID string, index int, tc *testcase.TestCase) {
	fmt.Fprintln(c.w, c.header.Render("Testing "+tc.String()))
}

// CaseFinished prints the launch details and every verdict, grouped by
// category.
func (c *Console) CaseFinished(runID string, res runner.Result) {
	if rep := res.Report; rep != nil {
		if len(rep.Command) > 0 {
			fmt.Fprintf(c.w, "=> command:\n`%s`\n", rep.CommandLine())
		}
		if rep.PID > 0 {
			fmt.Fprintf(c.w, "=> pid: %d\n", rep.PID)
		}

		if rep.FailedFast {
			fmt.Fprintln(c.w, c.fail.Render(glyphFail+" Failed to run "+res.Case.Image))
			if c.ShowOutput {
				fmt.Fprintf(c.w, "=> stdout:\n```\n%s", rep.Stdout)
				if len(rep.Stdout) > 0 && rep.Stdout[len(rep.Stdout)-1] != '\n' {
					fmt.Fprintln(c.w)
				}
				fmt.Fprintln(c.w, "```")
			}
		}

		groups := rep.ByCategory()
		for _, cat := range check.Categories {
			vs := groups[cat]
			if len(vs) == 0 {
				continue
			}
			fmt.Fprintf(c.w, "=> %s:\n", cat)
			for _, v := range vs {
				fmt.Fprintln(c.w, c.verdictLine(v))
			}
		}
	}

	if res.Err != nil {
		fmt.Fprintln(c.w, c.fail.Render(fmt.Sprintf("%s %s: %v", glyphFail, res.Case, res.Err)))
	}

	fmt.Fprintln(c.w, c.dim.Render(c.resultLine(res)))
	fmt.Fprintln(c.w)
}

func (c *Console) verdictLine(v check.Verdict) string {
	if v.Passed {
		return c.pass.Render(glyphPass) + " " + v.Message
	}
	return c.fail.Render(glyphFail) + " " + v.Message
}

func (c *Console) resultLine(res runner.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=> result: %s", res.Status)
	if rep := res.Report; rep != nil && len(rep.Verdicts) > 0 {
		passed := len(rep.Verdicts) - len(check.Failures(rep.Verdicts))
		fmt.Fprintf(&b, " (%d/%d checks)", passed, len(rep.Verdicts))
	}
	if rep := res.Report; rep != nil && rep.Duration > 0 {
		fmt.Fprintf(&b, " in %s", rep.Duration.Round(time.Millisecond))
	}
	return b.String()
}

// Summary prints the batch totals.
func (c *Console) Summary(sum *runner.Summary) {
	line := fmt.Sprintf("%d passed, %d failed, %d errored of %d test cases",
		sum.Passed, sum.Failed, sum.Errored, sum.Total)
	if sum.Skipped > 0 {
		line += fmt.Sprintf(", %d skipped", sum.Skipped)
	}
	line += fmt.Sprintf(" in %s", sum.Duration.Round(time.Millisecond))

	if sum.OK() {
		fmt.Fprintln(c.w, c.pass.Render(glyphPass+" "+line))
	} else {
		fmt.Fprintln(c.w, c.fail.Render(glyphFail+" "+line))
	}
}
