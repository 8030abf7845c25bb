package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFrom_Precedence(t *testing.T) {
	system := writeFile(t, "system.cfg", "host: system.example.com\nusername: sysadmin\n")
	user := writeFile(t, "user.cfg", "username = operator\nformat: json\n")

	s, err := LoadFrom(system, user, map[string]string{"host": "cli.example.com"})
	if err != nil {
		t.Fatalf("LoadFrom returned error: %v", err)
	}

	if got := s.Get("host"); got != "cli.example.com" {
		t.Errorf("host = %q, want cli.example.com (runtime wins)", got)
	}
	if got := s.Get("username"); got != "operator" {
		t.Errorf("username = %q, want operator (user file wins over system)", got)
	}
	if got := s.Get("format"); got != "json" {
		t.Errorf("format = %q, want json", got)
	}
	if got := s.Get("verify_ssl"); got != "true" {
		t.Errorf("verify_ssl = %q, want default true", got)
	}
}

func TestLoadFrom_Provenance(t *testing.T) {
	system := writeFile(t, "system.cfg", "host: h\n")
	user := writeFile(t, "user.cfg", "password: p\n")

	s, err := LoadFrom(system, user, map[string]string{"username": "u"})
	if err != nil {
		t.Fatalf("LoadFrom returned error: %v", err)
	}

	tests := []struct {
		key  string
		want Source
	}{
		{"host", SourceSystem},
		{"password", SourceUser},
		{"username", SourceRuntime},
		{"format", SourceDefault},
	}
	for _, tc := range tests {
		src, ok := s.Origin(tc.key)
		if !ok {
			t.Errorf("Origin(%q) not found", tc.key)
			continue
		}
		if src != tc.want {
			t.Errorf("Origin(%q) = %s, want %s", tc.key, src, tc.want)
		}
	}
}

func TestLoadFrom_OverrideChain(t *testing.T) {
	// defaults={a:1,b:2}, system={b:3,c:4}, user={c:5}, cli={a:9}
	// is the canonical override chain: later layers win per key.
	system := writeFile(t, "system.cfg", "b: 3\nc: 4\n")
	user := writeFile(t, "user.cfg", "c: 5\n")

	s, err := LoadFrom(system, user, map[string]string{"a": "9"})
	if err != nil {
		t.Fatalf("LoadFrom returned error: %v", err)
	}
	// "a" and "b" are not built-in defaults, so seed expectations from
	// what the layers supply.
	if got := s.Get("a"); got != "9" {
		t.Errorf("a = %q, want 9", got)
	}
	if got := s.Get("b"); got != "3" {
		t.Errorf("b = %q, want 3", got)
	}
	if got := s.Get("c"); got != "5" {
		t.Errorf("c = %q, want 5", got)
	}
}

func TestLoadFrom_MissingFilesOK(t *testing.T) {
	s, err := LoadFrom("/nonexistent/system.cfg", "/nonexistent/user.cfg", nil)
	if err != nil {
		t.Fatalf("missing files should not error, got: %v", err)
	}
	if got := s.Get("host"); got != "127.0.0.1" {
		t.Errorf("host = %q, want default 127.0.0.1", got)
	}
}

func TestLoadFrom_MalformedLine(t *testing.T) {
	bad := writeFile(t, "bad.cfg", "host: ok\nthis line has no separator\n")

	_, err := LoadFrom("", bad, nil)
	if err == nil {
		t.Fatal("malformed file should error")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
	if pe.Line != 2 {
		t.Errorf("ParseError.Line = %d, want 2", pe.Line)
	}
	if pe.File != bad {
		t.Errorf("ParseError.File = %q, want %q", pe.File, bad)
	}
}

func TestLoadFrom_CommentsAndBlanks(t *testing.T) {
	f := writeFile(t, "c.cfg", "# leading comment\n\nhost: example.com\n\n# trailing\n")
	s, err := LoadFrom("", f, nil)
	if err != nil {
		t.Fatalf("LoadFrom returned error: %v", err)
	}
	if got := s.Get("host"); got != "example.com" {
		t.Errorf("host = %q, want example.com", got)
	}
}

func TestLoadFrom_UnknownKeysPreserved(t *testing.T) {
	f := writeFile(t, "u.cfg", "some_future_setting = 42\n")
	s, err := LoadFrom("", f, nil)
	if err != nil {
		t.Fatalf("LoadFrom returned error: %v", err)
	}
	if got := s.Get("some_future_setting"); got != "42" {
		t.Errorf("unknown key = %q, want 42", got)
	}
	found := false
	for _, k := range s.Keys() {
		if k == "some_future_setting" {
			found = true
		}
	}
	if !found {
		t.Error("Keys() should include unknown keys")
	}
}

func TestSplitSetting(t *testing.T) {
	tests := []struct {
		line  string
		key   string
		value string
		ok    bool
	}{
		{"host: example.com", "host", "example.com", true},
		{"host = example.com", "host", "example.com", true},
		{"url: http://x:80", "url", "http://x:80", true},
		{"weird=a: b", "weird", "a: b", true},
		{"no separator here", "", "", false},
	}
	for _, tc := range tests {
		key, value, ok := splitSetting(tc.line)
		if key != tc.key || value != tc.value || ok != tc.ok {
			t.Errorf("splitSetting(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.line, key, value, ok, tc.key, tc.value, tc.ok)
		}
	}
}

func TestGetters(t *testing.T) {
	f := writeFile(t, "g.cfg", "verify_ssl: false\nmax_pages: 7\nmonitor_interval: 500ms\nmonitor_timeout: 30\n")
	s, err := LoadFrom("", f, nil)
	if err != nil {
		t.Fatalf("LoadFrom returned error: %v", err)
	}
	if s.GetBool("verify_ssl") {
		t.Error("GetBool(verify_ssl) = true, want false")
	}
	if got := s.GetInt("max_pages", 0); got != 7 {
		t.Errorf("GetInt(max_pages) = %d, want 7", got)
	}
	if got := s.GetDuration("monitor_interval", 0); got != 500*time.Millisecond {
		t.Errorf("GetDuration(monitor_interval) = %v, want 500ms", got)
	}
	// Bare integer means seconds.
	if got := s.GetDuration("monitor_timeout", 0); got != 30*time.Second {
		t.Errorf("GetDuration(monitor_timeout) = %v, want 30s", got)
	}
}

func TestGetBoolDefault(t *testing.T) {
	f := writeFile(t, "b.cfg", "verify_ssl: yes\nenabled: false\n")
	s, err := LoadFrom("", f, nil)
	if err != nil {
		t.Fatalf("LoadFrom returned error: %v", err)
	}
	// "yes" does not parse; the default must hold so security keys
	// cannot be flipped off by a typo.
	if !s.GetBoolDefault("verify_ssl", true) {
		t.Error("GetBoolDefault(verify_ssl, true) = false for unparsable value")
	}
	if s.GetBoolDefault("enabled", true) {
		t.Error("GetBoolDefault(enabled, true) = true, want parsed false")
	}
	if s.GetBoolDefault("no_such_key", true) != true {
		t.Error("GetBoolDefault on unset key should return the default")
	}
}
