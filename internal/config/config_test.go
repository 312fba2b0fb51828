package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Analysis.PerformanceThreshold != 10000 {
		t.Fatalf("expected default threshold 10000, got %d", cfg.Analysis.PerformanceThreshold)
	}
	if cfg.Analysis.TaskTimeout != 30*time.Second {
		t.Fatalf("expected default task timeout 30s, got %v", cfg.Analysis.TaskTimeout)
	}
	if cfg.Chunking.MemoryBudgetMB != 500 {
		t.Fatalf("expected default memory budget 500, got %f", cfg.Chunking.MemoryBudgetMB)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
analysis:
  performanceThreshold: 5000
  maxWorkers: 2
chunking:
  memoryBudgetMB: 128
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Analysis.PerformanceThreshold != 5000 {
		t.Fatalf("expected threshold 5000, got %d", cfg.Analysis.PerformanceThreshold)
	}
	if cfg.Analysis.MaxWorkers != 2 {
		t.Fatalf("expected 2 workers, got %d", cfg.Analysis.MaxWorkers)
	}
	if cfg.Chunking.MemoryBudgetMB != 128 {
		t.Fatalf("expected budget 128, got %f", cfg.Chunking.MemoryBudgetMB)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("TSREPORT_PERFORMANCE_THRESHOLD", "2500")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Analysis.PerformanceThreshold != 2500 {
		t.Fatalf("expected env override 2500, got %d", cfg.Analysis.PerformanceThreshold)
	}
}

func TestValidateRejectsBadSignificance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("analysis:\n  adfSignificance: 1.5\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for significance out of range")
	}
}
