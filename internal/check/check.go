package check

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"github.com/firefly-engineering/kraftcheck/internal/probe"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

// Category groups verdicts the way a description groups its checks.
type Category string

const (
	CategoryStdout     Category = "stdout_check"
	CategoryStderr     Category = "stderr_check"
	CategoryReturnCode Category = "return_code"
	CategoryTCP        Category = "tcp_check"
	CategoryHTTP       Category = "http_check"
)

// Categories lists every category in report order.
var Categories = []Category{CategoryStdout, CategoryStderr, CategoryReturnCode, CategoryTCP, CategoryHTTP}

// Verdict is the outcome of one assertion.
type Verdict struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Expected string   `json:"expected"`
	Observed string   `json:"observed"`
	Passed   bool     `json:"passed"`
	Message  string   `json:"message"`
}

func verdict(cat Category, name, expected, observed string, passed bool, msg string) Verdict {
	return Verdict{
		Name:     name,
		Category: cat,
		Expected: expected,
		Observed: observed,
		Passed:   passed,
		Message:  msg,
	}
}

// Output evaluates chk against a captured stream. stream names the stream in
// messages, e.g. "stdout".
func Output(cat Category, stream string, chk *testcase.OutputCheck, out []byte) []Verdict {
	if chk == nil {
		return nil
	}
	return evalText(cat, stream, chk, out)
}

func evalText(cat Category, subject string, chk *testcase.OutputCheck, out []byte) []Verdict {
	var vs []Verdict

	for _, substr := range chk.Contains {
		ok := bytes.Contains(out, []byte(substr))
		vs = append(vs, verdict(cat, "contains", substr, observed(out), ok,
			fmt.Sprintf("Check '%s' in %s", substr, subject)))
	}

	for _, pattern := range chk.Match {
		vs = append(vs, matchVerdict(cat, subject, pattern, out))
	}

	if chk.Empty {
		ok := len(out) == 0
		vs = append(vs, verdict(cat, "empty", "", observed(out), ok,
			fmt.Sprintf("Check %s is empty", subject)))
	}

	return vs
}

func matchVerdict(cat Category, subject, pattern string, out []byte) Verdict {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return verdict(cat, "match", pattern, err.Error(), false,
			fmt.Sprintf("Check %s matches /%s/, got: invalid pattern", subject, pattern))
	}
	msg := fmt.Sprintf("Check %s matches /%s/", subject, pattern)
	for _, line := range bytes.Split(out, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if re.Match(line) {
			return verdict(cat, "match", pattern, string(line), true, msg)
		}
	}
	return verdict(cat, "match", pattern, observed(out), false, msg)
}

// observedLimit bounds how much captured text is copied into a verdict.
const observedLimit = 256

func observed(out []byte) string {
	if len(out) > observedLimit {
		return string(out[:observedLimit]) + "..."
	}
	return string(out)
}

// ReturnCode evaluates each exit code expectation on its own.
func ReturnCode(chk *testcase.ReturnCodeCheck, code int) []Verdict {
	if chk == nil {
		return nil
	}

	var vs []Verdict
	got := strconv.Itoa(code)

	if chk.Equals != nil {
		want := *chk.Equals
		vs = append(vs, codeVerdict("equals", "equals", want, code, code == want, got))
	}
	if chk.NotEqualTo != nil {
		want := *chk.NotEqualTo
		vs = append(vs, codeVerdict("not_equal_to", "not equal to", want, code, code != want, got))
	}
	if chk.GreaterThan != nil {
		want := *chk.GreaterThan
		vs = append(vs, codeVerdict("greater_than", "greater than", want, code, code > want, got))
	}

	return vs
}

func codeVerdict(name, relation string, want, code int, ok bool, got string) Verdict {
	msg := fmt.Sprintf("Check exit code %s %d", relation, want)
	if !ok {
		msg += ", got: " + got
	}
	return verdict(CategoryReturnCode, name, strconv.Itoa(want), got, ok, msg)
}

// TCP evaluates a reachability probe. It passes iff the connection
// succeeded.
func TCP(r probe.ConnectResult) Verdict {
	ok := r.Errno == 0
	msg := fmt.Sprintf("Check tcp port %d is listening", r.Port)
	if !ok {
		msg += fmt.Sprintf(", got: errno = %d (%s)", r.Errno, r.ErrnoName())
	}
	return verdict(CategoryTCP, "listening", strconv.Itoa(r.Port), r.ErrnoName(), ok, msg)
}

const notProbed = "not probed, process exited before timeout"

// TCPNotProbed is the verdict for a declared port that was never probed
// because the guest exited on its own.
func TCPNotProbed(port int) Verdict {
	return verdict(CategoryTCP, "listening", strconv.Itoa(port), notProbed, false,
		fmt.Sprintf("Check tcp port %d is listening, got: %s", port, notProbed))
}

// HTTPOutcome pairs an HTTP check with what probing it produced. At most one
// of Result and Failure is set; neither means the check was never probed.
type HTTPOutcome struct {
	Check   testcase.HTTPCheck
	Result  *probe.HTTPResult
	Failure *probe.ConnectionFailure
}

// HTTP evaluates one HTTP check. A connection failure, or a check that was
// never probed, yields a single failed verdict.
func HTTP(o HTTPOutcome) []Verdict {
	if o.Failure != nil || o.Result == nil {
		reason := notProbed
		if o.Failure != nil {
			reason = o.Failure.Err.Error()
		}
		return []Verdict{verdict(CategoryHTTP, "connection", o.Check.URI, reason, false,
			fmt.Sprintf("Check '%s' failed with error %s", o.Check.URI, reason))}
	}

	res := o.Result
	var vs []Verdict

	if o.Check.StatusCode != nil {
		want := *o.Check.StatusCode
		ok := res.StatusCode == want
		msg := fmt.Sprintf("Check '%s' returns %d", res.URL, want)
		if !ok {
			msg += fmt.Sprintf(", got: %d", res.StatusCode)
		}
		vs = append(vs, verdict(CategoryHTTP, "status_code", strconv.Itoa(want), strconv.Itoa(res.StatusCode), ok, msg))
	}

	if o.Check.Response != nil {
		vs = append(vs, evalText(CategoryHTTP, fmt.Sprintf("'%s' body", res.URL), o.Check.Response, res.Body)...)
	}

	return vs
}

// Passed reports whether every verdict passed. An empty set passes.
func Passed(vs []Verdict) bool {
	for _, v := range vs {
		if !v.Passed {
			return false
		}
	}
	return true
}

// Failures returns the verdicts that did not pass.
func Failures(vs []Verdict) []Verdict {
	var out []Verdict
	for _, v := range vs {
		if !v.Passed {
			out = append(out, v)
		}
	}
	return out
}
