package launcher

import (
	"fmt"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

// DefaultCommand is the launcher invocation every argv starts with.
const DefaultCommand = "kraft run --rm"

// ParseCommand splits a shell-quoted launcher invocation such as
// `kraft run --rm` or `/opt/kraft/bin/kraft --log-type basic run --rm`.
func ParseCommand(s string) ([]string, error) {
	words, err := shellquote.Split(s)
	if err != nil {
		return nil, fmt.Errorf("invalid launcher command %q: %w", s, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("launcher command is empty")
	}
	return words, nil
}

// Build assembles the argv that boots tc. The order is fixed:
//
//	<base...> [-M mem] [-p<pub>:<int>...] --plat <plat> [--flag [value]...] --arch <arch> <image>
func Build(tc *testcase.TestCase, base []string) []string {
	argv := make([]string, 0, len(base)+8+len(tc.Ports)+2*len(tc.Args))
	argv = append(argv, base...)

	if tc.Memory != "" {
		argv = append(argv, "-M", tc.Memory)
	}

	for _, p := range tc.Ports {
		argv = append(argv, "-p"+p.String())
	}

	argv = append(argv, "--plat", tc.Platform.Flag())

	for _, a := range tc.Args {
		if a.Bare {
			argv = append(argv, "--"+a.Name)
			continue
		}
		argv = append(argv, "--"+a.Name, a.Value)
	}

	argv = append(argv, "--arch", string(tc.Arch), tc.Image)
	return argv
}

// Display renders argv as a line that can be pasted into a shell.
func Display(argv []string) string {
	return shellquote.Join(argv...)
}
