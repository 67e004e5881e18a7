package runner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/firefly-engineering/kraftcheck/internal/errors"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

// Filter selects test cases whose field Key equals Value.
type Filter struct {
	Key   string
	Value string
}

func (f Filter) String() string {
	return f.Key + "=" + f.Value
}

// ParseFilters parses key=value expressions.
func ParseFilters(exprs []string) ([]Filter, error) {
	filters := make([]Filter, 0, len(exprs))
	for _, expr := range exprs {
		key, value, ok := strings.Cut(expr, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.ValidationError(fmt.Sprintf("invalid filter %q (expected key=value)", expr))
		}
		filters = append(filters, Filter{Key: key, Value: strings.TrimSpace(value)})
	}
	return filters, nil
}

// Match reports whether tc satisfies f. Keys that are not test-case fields
// never match.
func (f Filter) Match(tc *testcase.TestCase) bool {
	got, ok := tc.Field(f.Key)
	if !ok {
		return false
	}

	switch f.Key {
	case "arch":
		want, err := testcase.ParseArchitecture(f.Value)
		return err == nil && string(want) == got
	case "plat":
		want, err := testcase.ParsePlatform(f.Value)
		return err == nil && string(want) == got
	case "timeout":
		want, err := strconv.Atoi(f.Value)
		return err == nil && strconv.Itoa(want) == got
	}
	return got == f.Value
}

// MatchAll reports whether tc satisfies every filter.
func MatchAll(tc *testcase.TestCase, filters []Filter) bool {
	for _, f := range filters {
		if !f.Match(tc) {
			return false
		}
	}
	return true
}

// Selected is a test case chosen to run, with its position in the
// description file.
type Selected struct {
	Index int
	Case  *testcase.TestCase
}

// Select returns the cases matching every filter, in file order.
func Select(cases []*testcase.TestCase, filters []Filter) []Selected {
	var out []Selected
	for i, tc := range cases {
		if MatchAll(tc, filters) {
			out = append(out, Selected{Index: i, Case: tc})
		}
	}
	return out
}
