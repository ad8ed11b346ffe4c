package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "tip": {"bot_handle": "tipjar", "beer_price": "5"},
	  "rates": {"source": "http", "url": "http://127.0.0.1:9/spot", "cache_seconds": 30},
	  "store": {"path": "/tmp/tips.db"},
	  "channels": {"telegram": {}},
	  "gateway": {"host": "0.0.0.0", "port": 18790},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("TIPBOT_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Logging.Format != "json" {
		t.Fatalf("logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging.level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if !cfg.Logging.AddSource {
		t.Fatal("logging.add_source = false, want true")
	}
	if cfg.Tip.BotHandle != "tipjar" {
		t.Fatalf("tip.bot_handle = %q, want %q", cfg.Tip.BotHandle, "tipjar")
	}
	if cfg.Tip.Fiat != "USD" {
		t.Fatalf("tip.fiat = %q, want default USD", cfg.Tip.Fiat)
	}
	if cfg.Rates.JSONPath != "data.amount" {
		t.Fatalf("rates.json_path = %q, want default %q", cfg.Rates.JSONPath, "data.amount")
	}
	if cfg.Rates.TimeoutSeconds != 10 {
		t.Fatalf("rates.timeout_seconds = %d, want 10", cfg.Rates.TimeoutSeconds)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
tip:
  bot_handle: tippercoin
rates:
  source: static
  static_rate: "695"
channels:
  telegram:
    enabled: true
    token: abc
    allow_from: ["alice", "bob"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if cfg.Rates.StaticRate != "695" {
		t.Fatalf("rates.static_rate = %q, want %q", cfg.Rates.StaticRate, "695")
	}
	if !cfg.Channels.Telegram.Enabled || len(cfg.Channels.Telegram.AllowFrom) != 2 {
		t.Fatalf("telegram config = %+v", cfg.Channels.Telegram)
	}
	if cfg.Store.Path != filepath.Join("data", "tipbot.db") {
		t.Fatalf("store.path = %q, want default", cfg.Store.Path)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"rates": {"source": "http", "url": "http://example.invalid"}}`), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("TELEGRAM_BOT_TOKEN", "token-from-env")
	t.Setenv("TELEGRAM_ALLOW_FROM", " alice, ,bob ")
	t.Setenv("TIPBOT_BOT_HANDLE", "envbot")
	t.Setenv("TIPBOT_STATIC_RATE", "700.5")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if cfg.Channels.Telegram.Token != "token-from-env" {
		t.Fatalf("telegram.token = %q", cfg.Channels.Telegram.Token)
	}
	if got := cfg.Channels.Telegram.AllowFrom; len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("telegram.allow_from = %v", got)
	}
	if cfg.Tip.BotHandle != "envbot" {
		t.Fatalf("tip.bot_handle = %q", cfg.Tip.BotHandle)
	}
	if cfg.Rates.Source != RateSourceStatic || cfg.Rates.StaticRate != "700.5" {
		t.Fatalf("rates = %+v, want static 700.5", cfg.Rates)
	}
}

func TestLoadConfigRejectsMissingRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"rates": {"source": "static"}}`), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for static source without a rate")
	}
}

func TestLoadConfigRejectsUnknownSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"rates": {"source": "carrier-pigeon"}}`), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unknown rate source")
	}
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	t.Setenv("TIPBOT_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Tip.BotHandle != "tippercoin" {
		t.Fatalf("tip.bot_handle = %q", cfg.Tip.BotHandle)
	}
	if cfg.Rates.Source != RateSourceStatic {
		t.Fatalf("rates.source = %q", cfg.Rates.Source)
	}
}

func TestLoadConfigNotFound(t *testing.T) {
	t.Setenv("TIPBOT_CONFIG", "")
	t.Chdir(t.TempDir())

	_, err := LoadConfig()
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("error = %v, want ErrConfigNotFound", err)
	}
}
