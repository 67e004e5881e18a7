package loader

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

// Marshal writes cases in format. Loading the output yields test cases that
// build the same command lines and checks.
func Marshal(cases []*testcase.TestCase, format Format) ([]byte, error) {
	raws := make([]rawCase, len(cases))
	for i, tc := range cases {
		raws[i] = fromTestCase(tc)
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(raws, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil

	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(raws); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(struct {
			TestCase []rawCase `toml:"test_case"`
		}{raws}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

func fromTestCase(tc *testcase.TestCase) rawCase {
	rc := rawCase{
		Image:  tc.Image,
		Arch:   string(tc.Arch),
		Plat:   tc.Platform.Flag(),
		Memory: tc.Memory,
	}
	if tc.TimeoutSeconds > 0 {
		t := tc.TimeoutSeconds
		rc.Timeout = &t
	}

	for _, a := range tc.Args {
		if a.Bare {
			rc.Args = append(rc.Args, rawArg{Name: a.Name, Value: true})
		} else {
			rc.Args = append(rc.Args, rawArg{Name: a.Name, Value: a.Value})
		}
	}

	for _, p := range tc.Ports {
		rc.Ports = append(rc.Ports, portPair{p.Published, p.Internal})
	}

	rc.Stdout = fromOutputCheck(tc.Stdout)
	rc.Stderr = fromOutputCheck(tc.Stderr)

	if tc.ReturnCode != nil {
		rc.ReturnCode = &rawReturnCode{
			Equals:      tc.ReturnCode.Equals,
			NotEqualTo:  tc.ReturnCode.NotEqualTo,
			GreaterThan: tc.ReturnCode.GreaterThan,
		}
	}

	for _, h := range tc.HTTP {
		rc.HTTP = append(rc.HTTP, rawHTTPCheck{
			URI:        h.URI,
			Method:     h.Method,
			Port:       h.Port,
			StatusCode: h.StatusCode,
			Response:   fromOutputCheck(h.Response),
		})
	}

	return rc
}

func fromOutputCheck(c *testcase.OutputCheck) *rawOutputCheck {
	if c == nil {
		return nil
	}
	return &rawOutputCheck{
		Contains: c.Contains,
		Match:    c.Match,
		Empty:    c.Empty,
	}
}
