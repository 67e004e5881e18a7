package system

import (
	"context"
	"io/fs"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// MockFS is an in-memory FileSystem. Like a real one, it refuses to write a
// file whose parent directory was never created.
type MockFS struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool

	// Injected failures, returned before any other check.
	ReadFileErr  error
	WriteFileErr error
	MkdirAllErr  error
}

// NewMockFS returns an empty MockFS.
func NewMockFS() *MockFS {
	return &MockFS{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// AddFile seeds a file, creating its parent directories.
func (m *MockFS) AddFile(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.files[path] = append([]byte(nil), data...)
	m.mkdirs(filepath.Dir(path))
}

// GetFile returns a file's contents.
func (m *MockFS) GetFile(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[filepath.Clean(path)]
	return data, ok
}

// Files returns the paths of all files below dir, sorted.
func (m *MockFS) Files(dir string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := filepath.Clean(dir) + string(filepath.Separator)
	var out []string
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Exists reports whether path is a file or directory.
func (m *MockFS) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	path = filepath.Clean(path)
	_, isFile := m.files[path]
	return isFile || m.dirs[path]
}

func (m *MockFS) ReadFile(path string) ([]byte, error) {
	if m.ReadFileErr != nil {
		return nil, m.ReadFileErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (m *MockFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	return m.write("write", path, data, false)
}

func (m *MockFS) AppendFile(path string, data []byte, perm fs.FileMode) error {
	return m.write("append", path, data, true)
}

func (m *MockFS) write(op, path string, data []byte, appending bool) error {
	if m.WriteFileErr != nil {
		return m.WriteFileErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	if !m.isDir(filepath.Dir(path)) {
		return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
	}
	if m.dirs[path] {
		return &fs.PathError{Op: op, Path: path, Err: fs.ErrExist}
	}

	if appending {
		m.files[path] = append(m.files[path], data...)
	} else {
		m.files[path] = append([]byte(nil), data...)
	}
	return nil
}

func (m *MockFS) MkdirAll(path string, perm fs.FileMode) error {
	if m.MkdirAllErr != nil {
		return m.MkdirAllErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirs(filepath.Clean(path))
	return nil
}

func (m *MockFS) isDir(dir string) bool {
	return dir == "/" || dir == "." || m.dirs[dir]
}

func (m *MockFS) mkdirs(dir string) {
	for !m.isDir(dir) {
		m.dirs[dir] = true
		dir = filepath.Dir(dir)
	}
}

// MockExecutor is a scripted CommandExecutor.
type MockExecutor struct {
	mu sync.Mutex

	// Commands records every executed command.
	Commands []MockCommand

	// Responses are keyed by command line ("kraft version"). The longest
	// matching prefix of the executed command wins.
	Responses map[string]MockResponse

	// DefaultResponse answers commands no key matches.
	DefaultResponse MockResponse

	// Paths maps names to what LookPath resolves them to. Names that are
	// missing fail with exec.ErrNotFound.
	Paths map[string]string
}

// MockCommand records an executed command.
type MockCommand struct {
	Name string
	Args []string
}

// MockResponse is the scripted result of a command.
type MockResponse struct {
	Output []byte
	Err    error
}

// NewMockExecutor returns a MockExecutor with no responses and an empty PATH.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		Responses: make(map[string]MockResponse),
		Paths:     make(map[string]string),
	}
}

// AddResponse scripts the result of commands starting with line.
func (m *MockExecutor) AddResponse(line string, output []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[line] = MockResponse{Output: output, Err: err}
}

func (m *MockExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Commands = append(m.Commands, MockCommand{Name: name, Args: args})

	words := append([]string{name}, args...)
	for n := len(words); n > 0; n-- {
		if resp, ok := m.Responses[strings.Join(words[:n], " ")]; ok {
			return resp.Output, resp.Err
		}
	}
	return m.DefaultResponse.Output, m.DefaultResponse.Err
}

func (m *MockExecutor) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Paths[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// LastCommand returns the most recently executed command.
func (m *MockExecutor) LastCommand() (MockCommand, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Commands) == 0 {
		return MockCommand{}, false
	}
	return m.Commands[len(m.Commands)-1], true
}

var _ FileSystem = (*MockFS)(nil)
var _ CommandExecutor = (*MockExecutor)(nil)
