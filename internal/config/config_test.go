package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.RuntimeCommand != "claude" {
		t.Errorf("RuntimeCommand = %q, want claude", cfg.RuntimeCommand)
	}
	if cfg.MaxIterations != 3 {
		t.Errorf("MaxIterations = %d, want 3", cfg.MaxIterations)
	}
	if cfg.InvokeTimeout.Std() != 15*time.Minute {
		t.Errorf("InvokeTimeout = %v, want 15m", cfg.InvokeTimeout.Std())
	}
}

func TestLoad_ProjectFile(t *testing.T) {
	root := t.TempDir()
	content := `runtime_command: codex
max_iterations: 5
retry_delay: 10s
pricing:
  claude-sonnet-4:
    input: 3.0
    output: 15.0
`
	if err := os.WriteFile(filepath.Join(root, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.RuntimeCommand != "codex" {
		t.Errorf("RuntimeCommand = %q, want codex", cfg.RuntimeCommand)
	}
	if cfg.MaxIterations != 5 {
		t.Errorf("MaxIterations = %d, want 5", cfg.MaxIterations)
	}
	if cfg.RetryDelay.Std() != 10*time.Second {
		t.Errorf("RetryDelay = %v, want 10s", cfg.RetryDelay.Std())
	}
	// Unset fields keep their defaults.
	if cfg.Retries != 2 {
		t.Errorf("Retries = %d, want default 2", cfg.Retries)
	}

	price, ok := cfg.Pricing["claude-sonnet-4"]
	if !ok {
		t.Fatal("pricing entry missing")
	}
	if price.Input != 3.0 || price.Output != 15.0 {
		t.Errorf("price = %+v", price)
	}
}

func TestLoad_ExplicitZeroSurvivesMerge(t *testing.T) {
	root := t.TempDir()
	content := `retries: 0
retry_delay: 0s
`
	if err := os.WriteFile(filepath.Join(root, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Retries != 0 {
		t.Errorf("Retries = %d, want 0 (explicit zero must not fall back to the default)", cfg.Retries)
	}
	if cfg.RetryDelay.Std() != 0 {
		t.Errorf("RetryDelay = %v, want 0", cfg.RetryDelay.Std())
	}
	// Keys absent from the file still default.
	if cfg.MaxIterations != 3 {
		t.Errorf("MaxIterations = %d, want default 3", cfg.MaxIterations)
	}
}

func TestLoad_ExplicitPathWins(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ConfigFileName), []byte("max_iterations: 9\n"), 0644); err != nil {
		t.Fatal(err)
	}
	explicit := filepath.Join(t.TempDir(), "other.yaml")
	if err := os.WriteFile(explicit, []byte("max_iterations: 7\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root, explicit)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxIterations != 7 {
		t.Errorf("MaxIterations = %d, want 7 (explicit path)", cfg.MaxIterations)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ConfigFileName), []byte("max_iterations: -2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(root, ""); err == nil {
		t.Error("expected validation error for negative max_iterations")
	}
}

func TestDuration_BareIntegerIsSeconds(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ConfigFileName), []byte("retry_delay: 30\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(root, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RetryDelay.Std() != 30*time.Second {
		t.Errorf("RetryDelay = %v, want 30s", cfg.RetryDelay.Std())
	}
}
