package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("default config must parse: %v", err)
	}
	if cfg.Import.Workers != 5 {
		t.Errorf("expected 5 workers, got %d", cfg.Import.Workers)
	}
	if cfg.Import.SearchPageDelaySeconds != 10 {
		t.Errorf("expected 10s search page delay, got %d", cfg.Import.SearchPageDelaySeconds)
	}
	if len(cfg.Check.Queries) == 0 {
		t.Error("expected default check queries")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected info level, got %q", cfg.Logging.Level)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := parse([]byte("output:\n  data_dir: /tmp/data\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Output.DataDir != "/tmp/data" {
		t.Errorf("explicit value lost: %q", cfg.Output.DataDir)
	}
	if cfg.Import.Workers != 5 {
		t.Errorf("expected default workers, got %d", cfg.Import.Workers)
	}
	if cfg.Import.FetchTimeoutSeconds != 15 {
		t.Errorf("expected default fetch timeout, got %d", cfg.Import.FetchTimeoutSeconds)
	}
	if cfg.Render.TimeoutSeconds != 30 {
		t.Errorf("expected default render timeout, got %d", cfg.Render.TimeoutSeconds)
	}
}

func TestParseOverride(t *testing.T) {
	cfg, err := parse([]byte("import:\n  workers: 2\n  reimport_delay_seconds: 9\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Import.Workers != 2 {
		t.Errorf("override lost, got %d workers", cfg.Import.Workers)
	}
	if cfg.Import.ReimportDelaySeconds != 9 {
		t.Errorf("override lost, got %ds reimport delay", cfg.Import.ReimportDelaySeconds)
	}
}

func TestParseRejectsBadYAML(t *testing.T) {
	if _, err := parse([]byte("import: [not a map")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
}
