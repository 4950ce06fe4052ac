package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/luadbg/internal/config/loader"
	"github.com/dshills/luadbg/internal/runtime"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Runtime.CallStackSize != runtime.DefaultCallStackSize {
		t.Errorf("callStackSize = %d, want %d", cfg.Runtime.CallStackSize, runtime.DefaultCallStackSize)
	}
	if !cfg.REPL.Color {
		t.Errorf("color defaults off")
	}
	if !cfg.Watcher.Enabled {
		t.Errorf("watcher defaults off")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[runtime]
callStackSize = 64

[repl]
color = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Runtime.CallStackSize != 64 {
		t.Errorf("callStackSize = %d, want 64", cfg.Runtime.CallStackSize)
	}
	if cfg.REPL.Color {
		t.Errorf("color = true, want file override")
	}
	// Untouched settings keep their defaults.
	if cfg.Runtime.RegistrySize != runtime.DefaultRegistrySize {
		t.Errorf("registrySize = %d, want default", cfg.Runtime.RegistrySize)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[repl]\nstackDepth = 4\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("LUADBG_STACK_DEPTH", "32")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.REPL.StackDepth != 32 {
		t.Errorf("stackDepth = %d, want env to win", cfg.REPL.StackDepth)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Runtime.CallStackSize != runtime.DefaultCallStackSize {
		t.Errorf("callStackSize = %d, want default", cfg.Runtime.CallStackSize)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[repl\ncolor = true\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Load(path)
	var perr *loader.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ParseError", err)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[runtime]\ncallStackSize = -1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("negative callStackSize accepted")
	}
}

func TestLoadWithFS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[repl]\ncolor = false\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadWithFS(loader.OSFS{}, path)
	if err != nil {
		t.Fatalf("LoadWithFS failed: %v", err)
	}
	if cfg.REPL.Color {
		t.Errorf("color = true, want file override")
	}
}

func TestHostOptions(t *testing.T) {
	cfg := Default()
	if got := len(cfg.HostOptions()); got != 2 {
		t.Errorf("host options = %d, want 2", got)
	}
}
