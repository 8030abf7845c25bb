// Package config resolves effective settings for a single awxctl
// invocation from internal defaults, the system-wide file, the user
// file, and command-line parameters, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SystemPath is the system-wide settings file, lowest file precedence.
const SystemPath = "/etc/awx/awxctl.cfg"

// userFileName is resolved against the invoking user's home directory.
// AWXCTL_CONFIG overrides the full path.
const userFileName = ".awxctl.cfg"

// Source identifies which layer supplied a setting's effective value.
type Source int

const (
	SourceDefault Source = iota
	SourceSystem
	SourceUser
	SourceRuntime
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceSystem:
		return "system"
	case SourceUser:
		return "user"
	case SourceRuntime:
		return "runtime"
	}
	return "unknown"
}

// ParseError reports an unparsable line in a settings file.
type ParseError struct {
	File string
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: cannot parse %q (expected key: value or key = value)", e.File, e.Line, e.Text)
}

// Defaults returns the built-in bottom-precedence settings.
func Defaults() map[string]string {
	return map[string]string{
		"host":                "127.0.0.1",
		"username":            "",
		"password":            "",
		"verify_ssl":          "true",
		"format":              "human",
		"monitor_interval":    "2s",
		"monitor_backoff_max": "30s",
		"monitor_timeout":     "0",
		"transport_retries":   "3",
		"max_pages":           "100",
	}
}

// Settings is the merged configuration for one invocation. It is built
// once by Load and never mutated afterward.
type Settings struct {
	values map[string]string
	origin map[string]Source
}

// Load resolves settings from the standard file locations plus the
// supplied runtime (command-line) values. Missing files are fine;
// malformed files return a *ParseError.
func Load(runtime map[string]string) (*Settings, error) {
	userPath := os.Getenv("AWXCTL_CONFIG")
	if userPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			userPath = filepath.Join(home, userFileName)
		}
	}
	return LoadFrom(SystemPath, userPath, runtime)
}

// LoadFrom is Load with explicit file paths, for tests and tooling.
func LoadFrom(systemPath, userPath string, runtime map[string]string) (*Settings, error) {
	s := &Settings{
		values: make(map[string]string),
		origin: make(map[string]Source),
	}
	for k, v := range Defaults() {
		s.set(k, v, SourceDefault)
	}

	layers := []struct {
		path   string
		source Source
	}{
		{systemPath, SourceSystem},
		{userPath, SourceUser},
	}
	for _, layer := range layers {
		if layer.path == "" {
			continue
		}
		kv, err := parseFile(layer.path)
		if err != nil {
			return nil, err
		}
		for k, v := range kv {
			s.set(k, v, layer.source)
		}
	}

	for k, v := range runtime {
		s.set(k, v, SourceRuntime)
	}
	return s, nil
}

func (s *Settings) set(key, value string, source Source) {
	s.values[key] = value
	s.origin[key] = source
}

// Get returns the effective value for a key ("" if unset anywhere).
func (s *Settings) Get(key string) string {
	return s.values[key]
}

// Origin reports which source supplied the effective value for a key.
func (s *Settings) Origin(key string) (Source, bool) {
	src, ok := s.origin[key]
	return src, ok
}

// GetBool interprets the value as a boolean; unparsable values are false.
func (s *Settings) GetBool(key string) bool {
	b, err := strconv.ParseBool(s.values[key])
	return err == nil && b
}

// GetBoolDefault interprets the value as a boolean, falling back to
// def when it does not parse. Security-sensitive keys use this so a
// typo cannot silently flip them to false.
func (s *Settings) GetBoolDefault(key string, def bool) bool {
	b, err := strconv.ParseBool(s.values[key])
	if err != nil {
		return def
	}
	return b
}

// GetInt interprets the value as an integer, falling back to def.
func (s *Settings) GetInt(key string, def int) int {
	n, err := strconv.Atoi(s.values[key])
	if err != nil {
		return def
	}
	return n
}

// GetDuration interprets the value as a time.Duration. Bare integers
// are taken as seconds ("30" == "30s"), matching the file format's
// pre-Go heritage. Unparsable values fall back to def.
func (s *Settings) GetDuration(key string, def time.Duration) time.Duration {
	raw := s.values[key]
	if raw == "" {
		return def
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

// Keys returns every known setting name, sorted. Unknown keys from the
// files are included: they are preserved for forward compatibility.
func (s *Settings) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseFile reads a line-oriented key/value file. Either ":" or "=" may
// separate key and value; blank lines and "#" comments are skipped. A
// missing file yields an empty map.
func parseFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	kv := make(map[string]string)
	for i, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, value, ok := splitSetting(trimmed)
		if !ok || key == "" {
			return nil, &ParseError{File: path, Line: i + 1, Text: trimmed}
		}
		kv[key] = value
	}
	return kv, nil
}

// splitSetting splits on whichever of ":" or "=" appears first.
func splitSetting(line string) (key, value string, ok bool) {
	colon := strings.Index(line, ":")
	equals := strings.Index(line, "=")
	sep := colon
	if sep < 0 || (equals >= 0 && equals < sep) {
		sep = equals
	}
	if sep < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:sep]), strings.TrimSpace(line[sep+1:]), true
}
