package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMarketDefaults(t *testing.T) {
	cfg, err := LoadMarket("")
	if err != nil {
		t.Fatalf("LoadMarket(\"\") error = %v", err)
	}

	if cfg.Instance.Name != "Market" {
		t.Errorf("Instance.Name = %q, want Market", cfg.Instance.Name)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.AdvertiseURL != "http://localhost:8080" {
		t.Errorf("Server.AdvertiseURL = %q", cfg.Server.AdvertiseURL)
	}
	if cfg.Registry.URL != "http://localhost:1099" {
		t.Errorf("Registry.URL = %q, want default registry port 1099", cfg.Registry.URL)
	}
	if cfg.Bank.Name != "Nordea" {
		t.Errorf("Bank.Name = %q, want Nordea", cfg.Bank.Name)
	}
	if cfg.Callbacks.BufferSize != 256 || cfg.Callbacks.PingInterval != 15*time.Second {
		t.Errorf("Callbacks = %+v", cfg.Callbacks)
	}
	if cfg.Ledger.Enabled {
		t.Error("Ledger.Enabled = true by default")
	}
}

func TestLoadMarketFromFile(t *testing.T) {
	path := writeConfig(t, `
instance:
  name: TestMarket
server:
  host: 0.0.0.0
  port: 9090
registry:
  url: http://registry:1099
bank:
  name: SEB
  timeout: 3s
ledger:
  enabled: true
  batch_size: 16
  db:
    host: db
    name: market
    user: market
`)

	cfg, err := LoadMarket(path)
	if err != nil {
		t.Fatalf("LoadMarket() error = %v", err)
	}
	if cfg.Instance.Name != "TestMarket" || cfg.Bank.Name != "SEB" {
		t.Errorf("names = %q, %q", cfg.Instance.Name, cfg.Bank.Name)
	}
	if cfg.Bank.Timeout != 3*time.Second {
		t.Errorf("Bank.Timeout = %v, want 3s", cfg.Bank.Timeout)
	}
	// Wildcard hosts advertise as localhost.
	if cfg.Server.AdvertiseURL != "http://localhost:9090" {
		t.Errorf("AdvertiseURL = %q, want http://localhost:9090", cfg.Server.AdvertiseURL)
	}
	if !cfg.Ledger.Enabled || cfg.Ledger.BatchSize != 16 {
		t.Errorf("Ledger = %+v", cfg.Ledger)
	}
	if cfg.Ledger.DB.Port != 5432 || cfg.Ledger.DB.SSLMode != "prefer" {
		t.Errorf("Ledger.DB defaults = %+v", cfg.Ledger.DB)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "hunter2")
	path := writeConfig(t, `
ledger:
  enabled: true
  db:
    host: db
    name: market
    user: market
    password: ${TEST_DB_PASSWORD}
`)

	cfg, err := LoadMarket(path)
	if err != nil {
		t.Fatalf("LoadMarket() error = %v", err)
	}
	if cfg.Ledger.DB.Password != "hunter2" {
		t.Errorf("DB.Password = %q, want expanded env value", cfg.Ledger.DB.Password)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad port",
			content: "server:\n  port: 70000\n",
			wantErr: "server.port",
		},
		{
			name:    "zero buffer",
			content: "callbacks:\n  buffer_size: -1\n",
			wantErr: "callbacks.buffer_size",
		},
		{
			name:    "ledger without db host",
			content: "ledger:\n  enabled: true\n  db:\n    name: market\n    user: market\n",
			wantErr: "ledger.db.host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadMarket(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadMarket() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadBankDefaults(t *testing.T) {
	cfg, err := LoadBank("")
	if err != nil {
		t.Fatalf("LoadBank(\"\") error = %v", err)
	}
	if cfg.Instance.Name != "Nordea" || cfg.Server.Port != 8081 {
		t.Errorf("bank defaults = %q, %d", cfg.Instance.Name, cfg.Server.Port)
	}
}

func TestLoadRegistryDefaults(t *testing.T) {
	cfg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry(\"\") error = %v", err)
	}
	if cfg.Server.Port != 1099 {
		t.Errorf("registry port = %d, want 1099", cfg.Server.Port)
	}
}

func TestLoadTraderDefaults(t *testing.T) {
	cfg, err := LoadTrader("")
	if err != nil {
		t.Fatalf("LoadTrader(\"\") error = %v", err)
	}
	if cfg.Market != "Market" || cfg.Bank != "Nordea" {
		t.Errorf("trader defaults = %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadMarket(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadMarket() of missing file succeeded")
	}
}
