package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/firefly-engineering/kraftcheck/internal/errors"
	"github.com/firefly-engineering/kraftcheck/internal/logging"
	"github.com/firefly-engineering/kraftcheck/internal/system"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

// Format is a description file syntax.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from the file extension. Anything that is
// not YAML or TOML is read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	}
	return FormatJSON
}

// ParseFormat maps a user-supplied format name onto a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unknown format %q (must be json, yaml or toml)", s)
}

// tomlFile is the top level of a TOML description.
type tomlFile struct {
	TestCase []toml.Primitive `toml:"test_case"`
}

// Load reads and parses the description file at path.
func Load(fsys system.FileSystem, path string) ([]*testcase.TestCase, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ExitParseError, "failed to read "+path, err)
	}

	cases, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, err
	}
	logging.Debug("loaded test cases", "path", path, "count", len(cases))
	return cases, nil
}

// Parse decodes and validates every test case in data. The first invalid
// case aborts parsing with a *errors.ParseError.
func Parse(data []byte, format Format) ([]*testcase.TestCase, error) {
	raws, err := decode(data, format)
	if err != nil {
		return nil, err
	}

	cases := make([]*testcase.TestCase, 0, len(raws))
	for i, rc := range raws {
		tc, err := rc.toTestCase(i)
		if err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

func decode(data []byte, format Format) ([]rawCase, error) {
	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatYAML:
		return decodeYAML(data)
	case FormatTOML:
		return decodeTOML(data)
	}
	return nil, errors.ValidationError(fmt.Sprintf("unknown format %q", format))
}

func decodeJSON(data []byte) ([]rawCase, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &errors.ParseError{Index: -1, Msg: "descriptions must be a JSON array of test cases: " + err.Error()}
	}

	raws := make([]rawCase, len(items))
	for i, item := range items {
		dec := json.NewDecoder(bytes.NewReader(item))
		if err := dec.Decode(&raws[i]); err != nil {
			return nil, &errors.ParseError{Index: i, Field: jsonField(err), Msg: err.Error()}
		}
	}
	return raws, nil
}

func jsonField(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Field
	}
	return ""
}

func decodeYAML(data []byte) ([]rawCase, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &errors.ParseError{Index: -1, Msg: err.Error()}
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, &errors.ParseError{Index: -1, Msg: fmt.Sprintf("line %d: descriptions must be a YAML sequence of test cases", root.Line)}
	}

	raws := make([]rawCase, len(root.Content))
	for i, item := range root.Content {
		if err := item.Decode(&raws[i]); err != nil {
			return nil, &errors.ParseError{Index: i, Msg: err.Error()}
		}
	}
	return raws, nil
}

func decodeTOML(data []byte) ([]rawCase, error) {
	var f tomlFile
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, &errors.ParseError{Index: -1, Msg: err.Error()}
	}

	raws := make([]rawCase, len(f.TestCase))
	order := tomlArgOrder(md.Keys(), len(raws))
	for i, p := range f.TestCase {
		if err := md.PrimitiveDecode(p, &raws[i]); err != nil {
			return nil, &errors.ParseError{Index: i, Msg: err.Error()}
		}
		raws[i].Args.reorder(order[i])
	}

	for _, key := range md.Undecoded() {
		logging.Warn("ignoring unknown description key", "key", key.String())
	}
	return raws, nil
}

// tomlArgOrder returns, per test case, the arg names in the order they
// appear in the document. Keys come back in document order, with one
// test_case key for every [[test_case]] header.
func tomlArgOrder(keys []toml.Key, n int) [][]string {
	order := make([][]string, n)
	current := -1
	for _, k := range keys {
		if len(k) == 0 || k[0] != "test_case" {
			continue
		}
		switch {
		case len(k) == 1:
			current++
		case len(k) == 3 && k[1] == "args" && current >= 0 && current < n:
			order[current] = append(order[current], k[2])
		}
	}
	return order
}

func (rc *rawCase) toTestCase(index int) (*testcase.TestCase, error) {
	fail := func(field, msg string) error {
		return &errors.ParseError{Index: index, Field: field, Msg: msg}
	}

	if rc.Image == "" {
		return nil, fail("image", "is required")
	}
	if rc.Arch == "" {
		return nil, fail("arch", "is required")
	}
	if rc.Plat == "" {
		return nil, fail("plat", "is required")
	}

	arch, err := testcase.ParseArchitecture(rc.Arch)
	if err != nil {
		return nil, fail("arch", err.Error())
	}
	plat, err := testcase.ParsePlatform(rc.Plat)
	if err != nil {
		return nil, fail("plat", err.Error())
	}

	tc := &testcase.TestCase{
		Image:    rc.Image,
		Arch:     arch,
		Platform: plat,
		Memory:   rc.Memory,
	}

	if rc.Timeout != nil {
		if *rc.Timeout <= 0 {
			return nil, fail("timeout", fmt.Sprintf("must be positive, got %d", *rc.Timeout))
		}
		tc.TimeoutSeconds = *rc.Timeout
	}

	for _, a := range rc.Args {
		arg, skip, err := toArg(a)
		if err != nil {
			return nil, fail("args."+a.Name, err.Error())
		}
		if !skip {
			tc.Args = append(tc.Args, arg)
		}
	}

	for _, p := range rc.Ports {
		tc.Ports = append(tc.Ports, testcase.PortMapping{Published: p[0], Internal: p[1]})
	}

	if tc.Stdout, err = toOutputCheck(rc.Stdout); err != nil {
		return nil, fail("stdout_check.match", err.Error())
	}
	if tc.Stderr, err = toOutputCheck(rc.Stderr); err != nil {
		return nil, fail("stderr_check.match", err.Error())
	}

	if rc.ReturnCode != nil {
		tc.ReturnCode = &testcase.ReturnCodeCheck{
			Equals:      rc.ReturnCode.Equals,
			NotEqualTo:  rc.ReturnCode.NotEqualTo,
			GreaterThan: rc.ReturnCode.GreaterThan,
		}
	}

	for i, h := range rc.HTTP {
		hc := testcase.HTTPCheck{
			URI:        h.URI,
			Method:     strings.ToUpper(h.Method),
			Port:       h.Port,
			StatusCode: h.StatusCode,
		}
		if hc.URI == "" {
			hc.URI = "/"
		}
		if hc.Method == "" {
			hc.Method = "GET"
		}
		if hc.Response, err = toOutputCheck(h.Response); err != nil {
			return nil, fail(fmt.Sprintf("http_check[%d].response_check.match", i), err.Error())
		}
		tc.HTTP = append(tc.HTTP, hc)
	}

	if err := tc.Validate(); err != nil {
		var fe *testcase.FieldError
		if errors.As(err, &fe) {
			return nil, fail(fe.Field, fe.Msg)
		}
		return nil, fail("", err.Error())
	}

	return tc, nil
}

// toArg applies the truthiness rule for arg values: false, null, zero and
// the empty string drop the flag, true makes it bare.
func toArg(a rawArg) (testcase.Arg, bool, error) {
	arg := testcase.Arg{Name: a.Name}

	switch v := a.Value.(type) {
	case nil:
		return arg, true, nil
	case bool:
		arg.Bare = v
		return arg, !v, nil
	case string:
		arg.Value = v
		return arg, v == "", nil
	case json.Number:
		arg.Value = v.String()
		f, err := v.Float64()
		return arg, err == nil && f == 0, nil
	case int:
		arg.Value = strconv.Itoa(v)
		return arg, v == 0, nil
	case int64:
		arg.Value = strconv.FormatInt(v, 10)
		return arg, v == 0, nil
	case uint64:
		arg.Value = strconv.FormatUint(v, 10)
		return arg, v == 0, nil
	case float64:
		arg.Value = strconv.FormatFloat(v, 'f', -1, 64)
		return arg, v == 0, nil
	}
	return arg, false, fmt.Errorf("unsupported value of type %T", a.Value)
}

func toOutputCheck(raw *rawOutputCheck) (*testcase.OutputCheck, error) {
	if raw == nil {
		return nil, nil
	}
	for _, pattern := range raw.Match {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, err
		}
	}
	return &testcase.OutputCheck{
		Contains: raw.Contains,
		Match:    raw.Match,
		Empty:    raw.Empty,
	}, nil
}
