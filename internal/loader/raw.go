package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawCase is a test case as written in a description file, before
// validation. The same struct serves all three formats.
type rawCase struct {
	Image      string          `json:"image" yaml:"image" toml:"image"`
	Arch       string          `json:"arch" yaml:"arch" toml:"arch"`
	Plat       string          `json:"plat" yaml:"plat" toml:"plat"`
	Memory     string          `json:"memory,omitempty" yaml:"memory,omitempty" toml:"memory,omitempty"`
	Timeout    *int            `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Args       orderedArgs     `json:"args,omitempty" yaml:"args,omitempty" toml:"args,omitempty"`
	Ports      []portPair      `json:"ports,omitempty" yaml:"ports,omitempty" toml:"ports,omitempty"`
	Stdout     *rawOutputCheck `json:"stdout_check,omitempty" yaml:"stdout_check,omitempty" toml:"stdout_check,omitempty"`
	Stderr     *rawOutputCheck `json:"stderr_check,omitempty" yaml:"stderr_check,omitempty" toml:"stderr_check,omitempty"`
	ReturnCode *rawReturnCode  `json:"return_code,omitempty" yaml:"return_code,omitempty" toml:"return_code,omitempty"`
	HTTP       []rawHTTPCheck  `json:"http_check,omitempty" yaml:"http_check,omitempty" toml:"http_check,omitempty"`
}

type rawOutputCheck struct {
	Contains stringList `json:"contains,omitempty" yaml:"contains,omitempty" toml:"contains,omitempty"`
	Match    stringList `json:"match,omitempty" yaml:"match,omitempty" toml:"match,omitempty"`
	Empty    bool       `json:"empty,omitempty" yaml:"empty,omitempty" toml:"empty,omitempty"`
}

type rawReturnCode struct {
	Equals      *int `json:"equals,omitempty" yaml:"equals,omitempty" toml:"equals,omitempty"`
	NotEqualTo  *int `json:"not_equal_to,omitempty" yaml:"not_equal_to,omitempty" toml:"not_equal_to,omitempty"`
	GreaterThan *int `json:"greater_than,omitempty" yaml:"greater_than,omitempty" toml:"greater_than,omitempty"`
}

type rawHTTPCheck struct {
	URI        string          `json:"uri,omitempty" yaml:"uri,omitempty" toml:"uri,omitempty"`
	Method     string          `json:"method,omitempty" yaml:"method,omitempty" toml:"method,omitempty"`
	Port       int             `json:"port" yaml:"port" toml:"port"`
	StatusCode *int            `json:"status_code,omitempty" yaml:"status_code,omitempty" toml:"status_code,omitempty"`
	Response   *rawOutputCheck `json:"response_check,omitempty" yaml:"response_check,omitempty" toml:"response_check,omitempty"`
}

// rawArg is one entry of the args table. Value keeps the decoded type so
// that booleans can be told apart from strings.
type rawArg struct {
	Name  string
	Value any
}

// orderedArgs keeps args in document order where the format allows it.
type orderedArgs []rawArg

func (a *orderedArgs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*a = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("args must be an object")
	}

	var out orderedArgs
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("args.%s: %w", key, err)
		}
		out = append(out, rawArg{Name: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*a = out
	return nil
}

func (a orderedArgs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, arg := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(arg.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(arg.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *orderedArgs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: args must be a mapping", node.Line)
	}

	var out orderedArgs
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var v any
		if err := val.Decode(&v); err != nil {
			return fmt.Errorf("args.%s: %w", key.Value, err)
		}
		out = append(out, rawArg{Name: key.Value, Value: v})
	}

	*a = out
	return nil
}

func (a orderedArgs) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, arg := range a {
		var val yaml.Node
		if err := val.Encode(arg.Value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: arg.Name},
			&val)
	}
	return node, nil
}

// UnmarshalTOML receives the decoded table, which has lost key order. Keys
// are sorted here; decodeTOML then restores document order with reorder.
func (a *orderedArgs) UnmarshalTOML(data any) error {
	m, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("args must be a table")
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(orderedArgs, 0, len(keys))
	for _, k := range keys {
		out = append(out, rawArg{Name: k, Value: m[k]})
	}

	*a = out
	return nil
}

// MarshalTOML writes args as an inline table. JSON string quoting is valid
// TOML basic string syntax.
func (a orderedArgs) MarshalTOML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{ ")
	for i, arg := range a {
		if i > 0 {
			buf.WriteString(", ")
		}
		k, err := json.Marshal(arg.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(arg.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteString(" = ")
		buf.Write(v)
	}
	buf.WriteString(" }")
	return buf.Bytes(), nil
}

// reorder sorts args by their position in names. Args missing from names
// keep their relative order after the named ones.
func (a orderedArgs) reorder(names []string) {
	pos := make(map[string]int, len(names))
	for i, n := range names {
		if _, seen := pos[n]; !seen {
			pos[n] = i
		}
	}
	rank := func(arg rawArg) int {
		if i, ok := pos[arg.Name]; ok {
			return i
		}
		return len(names)
	}
	sort.SliceStable(a, func(i, j int) bool { return rank(a[i]) < rank(a[j]) })
}

// stringList accepts either a single string or a list of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*s = stringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or a list of strings")
	}
	*s = many
	return nil
}

func (s *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = stringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*s = many
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
}

func (s *stringList) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		*s = stringList{v}
		return nil
	case []any:
		out := make(stringList, 0, len(v))
		for _, e := range v {
			str, ok := e.(string)
			if !ok {
				return fmt.Errorf("expected a string or a list of strings")
			}
			out = append(out, str)
		}
		*s = out
		return nil
	}
	return fmt.Errorf("expected a string or a list of strings")
}

// portPair is a [published, internal] pair. The "published:internal" string
// form is accepted as well.
type portPair [2]int

func parsePortString(s string) (portPair, error) {
	pub, internal, ok := strings.Cut(s, ":")
	if !ok {
		return portPair{}, fmt.Errorf("port mapping %q must be published:internal", s)
	}
	p, err := strconv.Atoi(strings.TrimSpace(pub))
	if err != nil {
		return portPair{}, fmt.Errorf("port mapping %q: %w", s, err)
	}
	i, err := strconv.Atoi(strings.TrimSpace(internal))
	if err != nil {
		return portPair{}, fmt.Errorf("port mapping %q: %w", s, err)
	}
	return portPair{p, i}, nil
}

func (p *portPair) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := parsePortString(s)
		*p = v
		return err
	}
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil || len(pair) != 2 {
		return fmt.Errorf("port mapping must be [published, internal]")
	}
	*p = portPair{pair[0], pair[1]}
	return nil
}

func (p portPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([]int{p[0], p[1]})
}

func (p *portPair) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		v, err := parsePortString(node.Value)
		*p = v
		return err
	}
	var pair []int
	if err := node.Decode(&pair); err != nil || len(pair) != 2 {
		return fmt.Errorf("line %d: port mapping must be [published, internal]", node.Line)
	}
	*p = portPair{pair[0], pair[1]}
	return nil
}

func (p portPair) MarshalYAML() (any, error) {
	return &yaml.Node{
		Kind:  yaml.SequenceNode,
		Style: yaml.FlowStyle,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(p[0])},
			{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(p[1])},
		},
	}, nil
}

func (p *portPair) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		pp, err := parsePortString(v)
		*p = pp
		return err
	case []any:
		if len(v) != 2 {
			break
		}
		a, ok1 := v[0].(int64)
		b, ok2 := v[1].(int64)
		if !ok1 || !ok2 {
			break
		}
		*p = portPair{int(a), int(b)}
		return nil
	}
	return fmt.Errorf("port mapping must be [published, internal]")
}
