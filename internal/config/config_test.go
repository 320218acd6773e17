package config

import (
	"os"
	"testing"
)

func TestApplyCLIOverridesPrecedence(t *testing.T) {
	cfg := &Config{Host: "0.0.0.0", Port: 4080}

	ApplyCLIOverrides(cfg, nil)
	if cfg.Host != "0.0.0.0" || cfg.Port != 4080 {
		t.Fatalf("no args should leave env-derived address untouched, got %s:%d", cfg.Host, cfg.Port)
	}

	ApplyCLIOverrides(cfg, []string{"example.com"})
	if cfg.Host != "example.com" || cfg.Port != 4080 {
		t.Fatalf("host-only override: got %s:%d", cfg.Host, cfg.Port)
	}

	ApplyCLIOverrides(cfg, []string{"127.0.0.1", "9999"})
	if cfg.Host != "127.0.0.1" || cfg.Port != 9999 {
		t.Fatalf("host+port override: got %s:%d", cfg.Host, cfg.Port)
	}
}

func TestApplyCLIOverridesIgnoresMalformedPort(t *testing.T) {
	cfg := &Config{Host: "0.0.0.0", Port: 4080}

	ApplyCLIOverrides(cfg, []string{"example.com", "not-a-port"})
	if cfg.Host != "example.com" || cfg.Port != 4080 {
		t.Fatalf("malformed port should be ignored, leaving the prior port in place: got %s:%d", cfg.Host, cfg.Port)
	}
}

// TestLoadMissingEnvFileNotFatal runs Load from a directory with no .env
// file, confirming that a missing (as opposed to malformed) .env is not a
// load error.
func TestLoadMissingEnvFileNotFatal(t *testing.T) {
	dir := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(orig)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("expected a missing .env file to be non-fatal, got %v", err)
	}
	if cfg.Port != 4080 {
		t.Fatalf("expected default port when no env override is set, got %d", cfg.Port)
	}
}
