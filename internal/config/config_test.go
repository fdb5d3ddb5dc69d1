package config

import (
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.Services.Auth.Enabled || !cfg.Services.Workflows.Enabled || !cfg.Services.Onboarding.Enabled {
		t.Fatal("all services should be enabled by default")
	}
	if cfg.Uploads.MaxFiles != 10 {
		t.Fatalf("maxFiles = %d, want 10", cfg.Uploads.MaxFiles)
	}
}

func TestFromYAMLOverrides(t *testing.T) {
	cfg, err := FromYAML([]byte(`
services:
  onboarding:
    addr: ":9000"
auth:
  jwt_secret: supersecret
  token_ttl_hours: 2
uploads:
  max_files: 3
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Services.Onboarding.Addr != ":9000" {
		t.Fatalf("addr = %s", cfg.Services.Onboarding.Addr)
	}
	if cfg.Auth.JWTSecret != "supersecret" || cfg.Auth.TokenTTLHours != 2 {
		t.Fatalf("auth = %+v", cfg.Auth)
	}
	if cfg.Uploads.MaxFiles != 3 {
		t.Fatalf("maxFiles = %d", cfg.Uploads.MaxFiles)
	}
	// Untouched sections keep their defaults.
	if cfg.Services.Auth.Addr == "" {
		t.Fatal("auth service addr lost its default")
	}
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	if _, err := FromYAML([]byte("auth:\n  token_ttl_hours: -1\n")); err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	workspace := t.TempDir()
	cfg := Default()
	cfg.Auth.JWTSecret = "roundtrip"
	if err := cfg.Save(Path(workspace)); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(workspace)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Auth.JWTSecret != "roundtrip" {
		t.Fatalf("secret = %s", loaded.Auth.JWTSecret)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		t.Fatal("expected default config")
	}
}
