// Package loader reads configuration maps from TOML files and from
// LUADBG_-prefixed environment variables.
package loader

import "os"

// Loader reads configuration from a source and returns it as a nested
// map. A missing source yields nil, nil: absence is not an error.
type Loader interface {
	Load() (map[string]any, error)
}

// FileSystem abstracts file reads so tests can supply in-memory files.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

// OSFS reads from the real file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// DefaultFS returns the operating system file system.
func DefaultFS() FileSystem {
	return OSFS{}
}
