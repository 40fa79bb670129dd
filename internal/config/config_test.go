package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSeller_DefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadSeller(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadSeller returned error for missing file: %v", err)
	}
	if cfg.Service.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Service.Port)
	}
	if cfg.Task.DefaultDeadlineSeconds != 300 {
		t.Fatalf("expected default deadline 300, got %d", cfg.Task.DefaultDeadlineSeconds)
	}
	if cfg.Task.JanitorIntervalSeconds != 600 {
		t.Fatalf("expected default janitor interval 600, got %d", cfg.Task.JanitorIntervalSeconds)
	}
	if cfg.Payment.PaymentEnabled() {
		t.Fatalf("expected payment mode off by default")
	}
}

func TestLoadSeller_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
service:
  port: 9090
task:
  default_deadline_seconds: 120
payment:
  mode: "on"
  payee_wallet_address: "0xabc"
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadSeller(path)
	if err != nil {
		t.Fatalf("LoadSeller returned error: %v", err)
	}
	if cfg.Service.Port != 9090 {
		t.Fatalf("expected port 9090 from file, got %d", cfg.Service.Port)
	}
	if cfg.Task.DefaultDeadlineSeconds != 120 {
		t.Fatalf("expected deadline 120 from file, got %d", cfg.Task.DefaultDeadlineSeconds)
	}
	if !cfg.Payment.PaymentEnabled() {
		t.Fatalf("expected payment mode on from file")
	}
	if cfg.Payment.PayeeWalletAddress != "0xabc" {
		t.Fatalf("expected payee address from file, got %q", cfg.Payment.PayeeWalletAddress)
	}
	// Janitor interval wasn't set in the file, so the default should survive.
	if cfg.Task.JanitorIntervalSeconds != 600 {
		t.Fatalf("expected janitor interval to keep default 600, got %d", cfg.Task.JanitorIntervalSeconds)
	}
}

func TestLoadSeller_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("service:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	t.Setenv("PORT", "7070")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadSeller(path)
	if err != nil {
		t.Fatalf("LoadSeller returned error: %v", err)
	}
	if cfg.Service.Port != 7070 {
		t.Fatalf("expected env override port 7070, got %d", cfg.Service.Port)
	}
	if cfg.Service.LogLevel != "DEBUG" {
		t.Fatalf("expected log level DEBUG (uppercased), got %q", cfg.Service.LogLevel)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultSellerConfig()
	if cfg.DefaultDeadline().Seconds() != 300 {
		t.Fatalf("expected 300s default deadline duration, got %v", cfg.DefaultDeadline())
	}
	if cfg.JanitorInterval().Seconds() != 600 {
		t.Fatalf("expected 600s janitor interval duration, got %v", cfg.JanitorInterval())
	}
	if cfg.RateLimitWindow().Seconds() != 60 {
		t.Fatalf("expected 60s rate limit window duration, got %v", cfg.RateLimitWindow())
	}
	if cfg.Registration.RetryDelay().Seconds() != 2 {
		t.Fatalf("expected 2s registration retry delay, got %v", cfg.Registration.RetryDelay())
	}
}

func TestLoadMarketplace_Defaults(t *testing.T) {
	cfg, err := LoadMarketplace(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadMarketplace returned error: %v", err)
	}
	if cfg.Service.Port != 8081 {
		t.Fatalf("expected default marketplace port 8081, got %d", cfg.Service.Port)
	}
	if cfg.DataPath != "agents.json" {
		t.Fatalf("expected default data path agents.json, got %q", cfg.DataPath)
	}
}
