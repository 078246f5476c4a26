package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Run from an empty directory so no project config file is found.
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got, want := len(cfg.Scraper.ETFSymbols), 4; got != want {
		t.Errorf("ETFSymbols = %v, want 4 defaults", cfg.Scraper.ETFSymbols)
	}
	if cfg.Scraper.ETFSymbols[0] != "VTI" {
		t.Errorf("ETFSymbols[0] = %q, want VTI", cfg.Scraper.ETFSymbols[0])
	}
	if cfg.Scraper.MaxHoldings != 100 {
		t.Errorf("MaxHoldings = %d, want 100", cfg.Scraper.MaxHoldings)
	}
	if cfg.Scraper.MaxWorkers != 3 {
		t.Errorf("MaxWorkers = %d, want 3", cfg.Scraper.MaxWorkers)
	}
	if cfg.Scraper.RequestsPerSec != 2 {
		t.Errorf("RequestsPerSec = %d, want 2", cfg.Scraper.RequestsPerSec)
	}
	if cfg.Lake.BasePath != "data_lake" {
		t.Errorf("Lake.BasePath = %q", cfg.Lake.BasePath)
	}
	if cfg.API.Host != "0.0.0.0" || cfg.API.Port != 3000 {
		t.Errorf("API = %s:%d, want 0.0.0.0:3000", cfg.API.Host, cfg.API.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
scraper:
  etf_symbols: ["SCHB", "SCHX"]
  max_holdings: 25
  max_workers: 8
lake:
  base_path: /var/lib/etfscope
api:
  port: 8080
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if len(cfg.Scraper.ETFSymbols) != 2 || cfg.Scraper.ETFSymbols[0] != "SCHB" {
		t.Errorf("ETFSymbols = %v", cfg.Scraper.ETFSymbols)
	}
	if cfg.Scraper.MaxHoldings != 25 {
		t.Errorf("MaxHoldings = %d, want 25", cfg.Scraper.MaxHoldings)
	}
	if cfg.Scraper.MaxWorkers != 8 {
		t.Errorf("MaxWorkers = %d, want 8", cfg.Scraper.MaxWorkers)
	}
	// Unset keys keep their defaults.
	if cfg.Scraper.RequestsPerSec != 2 {
		t.Errorf("RequestsPerSec = %d, want default 2", cfg.Scraper.RequestsPerSec)
	}
	if cfg.Lake.BasePath != "/var/lib/etfscope" {
		t.Errorf("Lake.BasePath = %q", cfg.Lake.BasePath)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadUnreadableFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "config", "config.yaml")
	if err := os.WriteFile(bad, []byte(":: not yaml ::"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load should fall back to defaults, got %v", err)
	}
	if cfg.Scraper.MaxHoldings != 100 {
		t.Errorf("MaxHoldings = %d, want default 100", cfg.Scraper.MaxHoldings)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ETFSCOPE_LAKE_BASE_PATH", "/tmp/override")
	t.Setenv("ETFSCOPE_LOGGING_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Lake.BasePath != "/tmp/override" {
		t.Errorf("Lake.BasePath = %q, want env override", cfg.Lake.BasePath)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}
