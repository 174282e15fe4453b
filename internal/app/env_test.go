package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// LoadEnvFiles reads KEY=VALUE pairs and populates the process environment.
func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	unsetEnv(t, "FOO", "BAR", "QUOTED", "EXPORTED", "COMMENTED")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nBAR=beta\nQUOTED=\"a # b\"\nexport EXPORTED=yes\nCOMMENTED=value # note\nnot a pair\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := LoadEnvFiles(envPath); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}

	for key, want := range map[string]string{
		"FOO":       "alpha",
		"BAR":       "beta",
		"QUOTED":    "a # b",
		"EXPORTED":  "yes",
		"COMMENTED": "value",
	} {
		if got := os.Getenv(key); got != want {
			t.Fatalf("%s=%q, want %q", key, got, want)
		}
	}
}

// Later files override earlier ones when loading multiple dotenv files.
func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	unsetEnv(t, "K")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}

	if err := LoadEnvFiles(a, filepath.Join(dir, "missing"), b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

// The real environment wins over dotenv files.
func TestLoadEnvFiles_KeepsProcessEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PORT=9999\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := LoadEnvFiles(path); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("PORT"); got != "8080" {
		t.Fatalf("PORT=%q, want process value 8080", got)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "6000")
	t.Setenv("ALLOWED_DOMAIN", "edx.org")
	t.Setenv("ALLOWED_DOMAIN_NAME", "edX")
	t.Setenv("RULE_SET", "readability")
	t.Setenv("FETCH_TIMEOUT", "3")
	t.Setenv("FETCH_MAX_ATTEMPTS", "3")
	t.Setenv("FETCH_MAX_BODY_BYTES", "2048")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("HIDE_ERROR_DETAILS", "yes")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-token=abc, broken, y=1")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Port != 6000 || cfg.AllowedDomain != "edx.org" || cfg.AllowedDomainName != "edX" || cfg.RuleSet != "readability" {
		t.Fatalf("unexpected site config: %+v", cfg)
	}
	if cfg.Fetch.Timeout != 3*time.Second || cfg.Fetch.MaxAttempts != 3 || cfg.Fetch.MaxBodyBytes != 2048 {
		t.Fatalf("unexpected fetch config: %+v", cfg.Fetch)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("CORSOrigins=%v", cfg.CORSOrigins)
	}
	if !cfg.HideErrorDetails {
		t.Fatalf("HIDE_ERROR_DETAILS=yes should enable HideErrorDetails")
	}
	if len(cfg.Telemetry.Headers) != 2 || cfg.Telemetry.Headers["x-token"] != "abc" {
		t.Fatalf("headers=%v", cfg.Telemetry.Headers)
	}
}

func TestConfigFromEnv_RejectsBadNumbers(t *testing.T) {
	t.Setenv("PORT", "http")
	t.Setenv("FETCH_TIMEOUT", "soon")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected error for malformed PORT and FETCH_TIMEOUT")
	}
}

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}
