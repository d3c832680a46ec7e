package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnvOnlyDefaults(t *testing.T) {
	cfg, err := Load("does-not-exist.yaml", true)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("http_addr=%s want=:8080", cfg.Server.HTTPAddr)
	}
	if cfg.Store.Backend != "file" {
		t.Fatalf("backend=%s want=file", cfg.Store.Backend)
	}
	if cfg.Refresh.MinFetchInterval != 4*time.Second {
		t.Fatalf("min_fetch_interval=%v want=4s", cfg.Refresh.MinFetchInterval)
	}
	if cfg.Cron.Tick != "@every 1s" {
		t.Fatalf("tick=%q", cfg.Cron.Tick)
	}
	if cfg.Trade.OrderCutoff != "15:00" {
		t.Fatalf("order_cutoff=%q want=15:00", cfg.Trade.OrderCutoff)
	}
	if cfg.Proxy["019005"] != "161226" {
		t.Fatalf("proxy[019005]=%q want=161226", cfg.Proxy["019005"])
	}
	if cfg.Feeds.Estimate.BaseURL == "" {
		t.Fatalf("estimate base url not defaulted")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
server:
  http_addr: ":9090"
store:
  backend: postgres
trade:
  order_cutoff: "14:45"
proxy:
  "016702": "513100"
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.HTTPAddr != ":9090" {
		t.Fatalf("http_addr=%s want=:9090", cfg.Server.HTTPAddr)
	}
	if cfg.Store.Backend != "postgres" {
		t.Fatalf("backend=%s want=postgres", cfg.Store.Backend)
	}
	if cfg.Trade.OrderCutoff != "14:45" {
		t.Fatalf("order_cutoff=%s want=14:45", cfg.Trade.OrderCutoff)
	}
	if cfg.Proxy["016702"] != "513100" {
		t.Fatalf("proxy[016702]=%q want=513100", cfg.Proxy["016702"])
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("defaults lost when file present: log.level=%s", cfg.Log.Level)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("does-not-exist.yaml", false); err == nil {
		t.Fatalf("want error for missing config file")
	}
}
