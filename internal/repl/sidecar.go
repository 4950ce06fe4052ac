package repl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/luadbg/internal/debug"
)

// sidecarVersion is the format version written to the breakpoint file.
const sidecarVersion = 1

// sidecarFile is the on-disk shape: breakpoint lines grouped by script
// path. The engine never reads this file; it belongs to the front-end.
type sidecarFile struct {
	Version int              `json:"version"`
	Files   map[string][]int `json:"files"`
}

// Sidecar persists breakpoint lines per script path across debugger
// runs.
type Sidecar struct {
	path string
}

// NewSidecar stores breakpoints at path.
func NewSidecar(path string) *Sidecar {
	return &Sidecar{path: path}
}

// Path returns the sidecar file location.
func (s *Sidecar) Path() string { return s.path }

// Load reads saved breakpoint lines. A missing file is an empty save.
func (s *Sidecar) Load() (map[string][]int, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]int{}, nil
		}
		return nil, fmt.Errorf("read breakpoints: %w", err)
	}
	var data sidecarFile
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("unmarshal breakpoints: %w", err)
	}
	if data.Version != sidecarVersion {
		return nil, fmt.Errorf("breakpoint file version %d is not supported", data.Version)
	}
	if data.Files == nil {
		data.Files = map[string][]int{}
	}
	return data.Files, nil
}

// Save writes breakpoint lines, dropping paths whose list is empty.
func (s *Sidecar) Save(files map[string][]int) error {
	trimmed := make(map[string][]int, len(files))
	for path, lines := range files {
		if len(lines) > 0 {
			trimmed[path] = lines
		}
	}
	content, err := json.MarshalIndent(sidecarFile{Version: sidecarVersion, Files: trimmed}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal breakpoints: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(s.path, content, 0644); err != nil {
		return fmt.Errorf("write breakpoints: %w", err)
	}
	return nil
}

// ApplyLines sets a breakpoint on every listed line the session does
// not already carry.
func ApplyLines(sess *debug.Session, lines []int) {
	for _, line := range lines {
		if !sess.Breakpoints().Contains(line) {
			sess.Breakpoints().Toggle(line)
		}
	}
}

// CollectLines gathers breakpoint lines per path. The later session
// wins when several share a path.
func CollectLines(sessions []*debug.Session) map[string][]int {
	files := make(map[string][]int, len(sessions))
	for _, sess := range sessions {
		files[sess.Path()] = sess.Breakpoints().Lines()
	}
	return files
}
