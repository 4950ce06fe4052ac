package loader

import (
	"os"
	"strconv"
	"strings"
)

// EnvLoader loads configuration from environment variables carrying a
// prefix, e.g. LUADBG_STACK_DEPTH=32. Known variables map through an
// explicit table; anything else prefixed converts positionally, first
// segment the section and the rest camelCased into the key.
type EnvLoader struct {
	prefix  string
	mapping map[string]string
}

// NewEnvLoader creates a loader for the prefix, which must include the
// trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{prefix: prefix, mapping: defaultEnvMapping(prefix)}
}

func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "CALL_STACK_SIZE": "runtime.callStackSize",
		prefix + "REGISTRY_SIZE":   "runtime.registrySize",
		prefix + "HISTORY_FILE":    "repl.historyFile",
		prefix + "COLOR":           "repl.color",
		prefix + "STACK_DEPTH":     "repl.stackDepth",
		prefix + "BREAKPOINT_FILE": "repl.breakpointFile",
		prefix + "WATCH":           "watcher.enabled",
	}
}

// Load reads matching environment variables into a configuration map.
// Empty values are valid values, not unset markers.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for env, path := range l.mapping {
		if val, ok := os.LookupEnv(env); ok {
			setByPath(config, path, parseValue(val))
		}
	}

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, l.prefix) {
			continue
		}
		name, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if _, mapped := l.mapping[name]; mapped {
			continue
		}
		setByPath(config, l.envToPath(name), parseValue(value))
	}

	return config, nil
}

// envToPath converts LUADBG_REPL_STACK_DEPTH to repl.stackDepth.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.TrimPrefix(env, l.prefix)
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return strings.ToLower(name)
	}

	key := strings.ToLower(parts[1])
	for _, part := range parts[2:] {
		if part == "" {
			continue
		}
		key += strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
	}
	return strings.ToLower(parts[0]) + "." + key
}

// parseValue types a raw environment string. Only literal true/false
// become booleans so numeric settings like "1" stay numbers.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
