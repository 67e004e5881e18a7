package testcase

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeoutSeconds is how long a guest may run before it is considered
// up and serving.
const DefaultTimeoutSeconds = 2

// Platform is the hypervisor the launcher boots the guest on.
type Platform string

const (
	PlatformQEMU        Platform = "qemu"
	PlatformFirecracker Platform = "firecracker"
	PlatformXen         Platform = "xen"
)

// ParsePlatform maps a description value onto a Platform. Matching is
// case-insensitive and accepts the launcher's short form "fc".
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "qemu":
		return PlatformQEMU, nil
	case "fc", "firecracker":
		return PlatformFirecracker, nil
	case "xen":
		return PlatformXen, nil
	}
	return "", fmt.Errorf("unknown platform %q (must be qemu, fc or xen)", s)
}

// Flag returns the value passed to the launcher's --plat flag.
func (p Platform) Flag() string {
	if p == PlatformFirecracker {
		return "fc"
	}
	return string(p)
}

// Architecture is the CPU architecture of the unikernel image.
type Architecture string

const (
	ArchX86_64 Architecture = "x86_64"
	ArchARM64  Architecture = "arm64"
	ArchARM    Architecture = "arm"
)

// ParseArchitecture maps a description value onto an Architecture.
func ParseArchitecture(s string) (Architecture, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x86_64", "x86-64", "amd64":
		return ArchX86_64, nil
	case "arm64", "aarch64":
		return ArchARM64, nil
	case "arm":
		return ArchARM, nil
	}
	return "", fmt.Errorf("unknown architecture %q (must be x86_64, arm64 or arm)", s)
}

// PortMapping forwards a host port to a port inside the guest.
type PortMapping struct {
	Published int
	Internal  int
}

func (p PortMapping) String() string {
	return fmt.Sprintf("%d:%d", p.Published, p.Internal)
}

// Arg is one extra launcher flag. A Bare arg is passed as "--name"; any
// other arg is passed as "--name value".
type Arg struct {
	Name  string
	Value string
	Bare  bool
}

// OutputCheck holds the expectations for a captured stream or response body.
type OutputCheck struct {
	Contains []string
	Match    []string
	Empty    bool
}

// ReturnCodeCheck holds independent expectations on the exit code. Nil
// fields are not evaluated.
type ReturnCodeCheck struct {
	Equals      *int
	NotEqualTo  *int
	GreaterThan *int
}

// HTTPCheck describes one request made against the guest once it is up.
type HTTPCheck struct {
	URI        string
	Method     string
	Port       int
	StatusCode *int
	Response   *OutputCheck
}

// URL returns the address the check requests on host.
func (c HTTPCheck) URL(host string) string {
	return fmt.Sprintf("http://%s%s", hostPort(host, c.Port), c.URI)
}

func hostPort(host string, port int) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return host + ":" + strconv.Itoa(port)
}

// TestCase is one declarative unikernel test.
type TestCase struct {
	Image          string
	Arch           Architecture
	Platform       Platform
	Memory         string
	Args           []Arg
	Ports          []PortMapping
	TimeoutSeconds int
	Stdout         *OutputCheck
	Stderr         *OutputCheck
	ReturnCode     *ReturnCodeCheck
	HTTP           []HTTPCheck
}

// Timeout returns the wait bound for the guest, applying the default when
// the description leaves it unset.
func (tc *TestCase) Timeout() time.Duration {
	if tc.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(tc.TimeoutSeconds) * time.Second
}

// HasChecks reports whether any check category is declared.
func (tc *TestCase) HasChecks() bool {
	return tc.Stdout != nil || tc.Stderr != nil || tc.ReturnCode != nil ||
		len(tc.Ports) > 0 || len(tc.HTTP) > 0
}

func (tc *TestCase) String() string {
	return fmt.Sprintf("%s on %s/%s", tc.Image, tc.Platform.Flag(), tc.Arch)
}

// ImageSlug turns an image reference into a single file-name component.
// Characters outside [A-Za-z0-9._-] become underscores.
func ImageSlug(image string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, image)
	if strings.Trim(slug, ".") == "" {
		return "_" + slug
	}
	return slug
}

// Field returns the string form of a description field for filtering.
// Only scalar fields are addressable.
func (tc *TestCase) Field(key string) (string, bool) {
	switch key {
	case "image":
		return tc.Image, true
	case "arch":
		return string(tc.Arch), true
	case "plat":
		return string(tc.Platform), true
	case "memory":
		if tc.Memory == "" {
			return "", false
		}
		return tc.Memory, true
	case "timeout":
		return strconv.Itoa(int(tc.Timeout() / time.Second)), true
	}
	return "", false
}

// FieldError is a validation failure on a named description field.
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Msg
}

// Validate checks the invariants a runnable test case must satisfy.
func (tc *TestCase) Validate() error {
	if tc.Image == "" {
		return &FieldError{Field: "image", Msg: "is required"}
	}
	if tc.Arch == "" {
		return &FieldError{Field: "arch", Msg: "is required"}
	}
	if tc.Platform == "" {
		return &FieldError{Field: "plat", Msg: "is required"}
	}
	if tc.TimeoutSeconds < 0 {
		return &FieldError{Field: "timeout", Msg: "must not be negative"}
	}
	for i, p := range tc.Ports {
		if !validPort(p.Published) || !validPort(p.Internal) {
			return &FieldError{Field: fmt.Sprintf("ports[%d]", i), Msg: fmt.Sprintf("invalid mapping %s", p)}
		}
	}
	for i, a := range tc.Args {
		if a.Name == "" || strings.HasPrefix(a.Name, "-") {
			return &FieldError{Field: fmt.Sprintf("args[%d]", i), Msg: fmt.Sprintf("invalid flag name %q", a.Name)}
		}
	}
	for i, h := range tc.HTTP {
		if !validPort(h.Port) {
			return &FieldError{Field: fmt.Sprintf("http_check[%d].port", i), Msg: fmt.Sprintf("invalid port %d", h.Port)}
		}
		if !strings.HasPrefix(h.URI, "/") {
			return &FieldError{Field: fmt.Sprintf("http_check[%d].uri", i), Msg: fmt.Sprintf("must start with /, got %q", h.URI)}
		}
		if !AllowedMethod(h.Method) {
			return &FieldError{Field: fmt.Sprintf("http_check[%d].method", i), Msg: fmt.Sprintf("unsupported method %q (GET, HEAD or OPTIONS)", h.Method)}
		}
	}
	return nil
}

// AllowedMethod reports whether method is a body-less request kraftcheck
// can issue.
func AllowedMethod(method string) bool {
	switch method {
	case "GET", "HEAD", "OPTIONS":
		return true
	}
	return false
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}
