// Package config holds the debugger's typed configuration, assembled
// from defaults, an optional TOML file, and LUADBG_ environment
// overrides, in that precedence order.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/luadbg/internal/config/loader"
	"github.com/dshills/luadbg/internal/runtime"
)

// EnvPrefix marks environment variables the debugger reads.
const EnvPrefix = "LUADBG_"

// Config is the complete debugger configuration.
type Config struct {
	Runtime RuntimeConfig `toml:"runtime"`
	REPL    REPLConfig    `toml:"repl"`
	Watcher WatcherConfig `toml:"watcher"`
}

// RuntimeConfig bounds the embedded interpreter.
type RuntimeConfig struct {
	// CallStackSize is the interpreter's maximum call depth.
	CallStackSize int `toml:"callStackSize"`
	// RegistrySize is the interpreter's initial registry allocation.
	RegistrySize int `toml:"registrySize"`
}

// REPLConfig shapes the interactive prompt.
type REPLConfig struct {
	// HistoryFile persists readline history between runs; empty
	// disables persistence.
	HistoryFile string `toml:"historyFile"`
	// Color toggles styled output.
	Color bool `toml:"color"`
	// StackDepth caps frames shown by the stack command, 0 = all.
	StackDepth int `toml:"stackDepth"`
	// BreakpointFile persists breakpoints between runs; empty disables
	// persistence.
	BreakpointFile string `toml:"breakpointFile"`
}

// WatcherConfig controls source file watching.
type WatcherConfig struct {
	// Enabled turns on change notifications for loaded script files.
	Enabled bool `toml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := defaultConfigDir()
	return &Config{
		Runtime: RuntimeConfig{
			CallStackSize: runtime.DefaultCallStackSize,
			RegistrySize:  runtime.DefaultRegistrySize,
		},
		REPL: REPLConfig{
			HistoryFile:    filepath.Join(dir, "history"),
			Color:          true,
			StackDepth:     0,
			BreakpointFile: filepath.Join(dir, "breakpoints.json"),
		},
		Watcher: WatcherConfig{Enabled: true},
	}
}

// Load assembles the configuration: defaults, then the TOML file at
// path (missing is fine), then environment overrides. An empty path
// uses DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	return load(loader.NewTOMLLoader(path), loader.NewEnvLoader(EnvPrefix))
}

// LoadWithFS is Load reading the file through fs.
func LoadWithFS(fs loader.FileSystem, path string) (*Config, error) {
	return load(loader.NewTOMLLoaderWithFS(fs, path), loader.NewEnvLoader(EnvPrefix))
}

func load(loaders ...loader.Loader) (*Config, error) {
	merged := make(map[string]any)
	for _, l := range loaders {
		m, err := l.Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, m)
	}

	cfg := Default()
	if err := apply(cfg, merged); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply overlays a configuration map onto cfg. Round-tripping through
// the TOML codec reuses its type coercion rules, so file and
// environment values behave identically.
func apply(cfg *Config, overlay map[string]any) error {
	if len(overlay) == 0 {
		return nil
	}
	data, err := toml.Marshal(overlay)
	if err != nil {
		return fmt.Errorf("merging configuration: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("applying configuration: %w", err)
	}
	return nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Runtime.CallStackSize <= 0 {
		return fmt.Errorf("runtime.callStackSize must be positive, got %d", c.Runtime.CallStackSize)
	}
	if c.Runtime.RegistrySize <= 0 {
		return fmt.Errorf("runtime.registrySize must be positive, got %d", c.Runtime.RegistrySize)
	}
	if c.REPL.StackDepth < 0 {
		return fmt.Errorf("repl.stackDepth must not be negative, got %d", c.REPL.StackDepth)
	}
	return nil
}

// HostOptions translates the runtime section into interpreter options.
func (c *Config) HostOptions() []runtime.Option {
	return []runtime.Option{
		runtime.WithCallStackSize(c.Runtime.CallStackSize),
		runtime.WithRegistrySize(c.Runtime.RegistrySize),
	}
}

// DefaultPath returns the expected location of the user's config file.
func DefaultPath() string {
	return filepath.Join(defaultConfigDir(), "config.toml")
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "luadbg")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "luadbg")
}
