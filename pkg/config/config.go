package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	envConfigPath        = "TIPBOT_CONFIG"
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
	envBotHandle         = "TIPBOT_BOT_HANDLE"
	envStaticRate        = "TIPBOT_STATIC_RATE"
)

const (
	RateSourceStatic = "static"
	RateSourceHTTP   = "http"
)

// Config is the root runtime configuration loaded from config.json or config.yaml.
type Config struct {
	Tip      TipConfig      `json:"tip" yaml:"tip"`
	Rates    RatesConfig    `json:"rates" yaml:"rates"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Channels ChannelsConfig `json:"channels" yaml:"channels"`
	Gateway  GatewayConfig  `json:"gateway" yaml:"gateway"`
	Logging  LoggingConfig  `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty"`
	File      string `json:"file,omitempty" yaml:"file,omitempty"`
}

// TipConfig configures message parsing.
type TipConfig struct {
	BotHandle     string `json:"bot_handle" yaml:"bot_handle"`
	Fiat          string `json:"fiat" yaml:"fiat"`
	BeerPrice     string `json:"beer_price,omitempty" yaml:"beer_price,omitempty"`
	InternetPrice string `json:"internet_price,omitempty" yaml:"internet_price,omitempty"`
}

// RatesConfig selects and configures the exchange-rate feed.
type RatesConfig struct {
	Source         string `json:"source" yaml:"source"`
	StaticRate     string `json:"static_rate,omitempty" yaml:"static_rate,omitempty"`
	URL            string `json:"url,omitempty" yaml:"url,omitempty"`
	JSONPath       string `json:"json_path,omitempty" yaml:"json_path,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	CacheSeconds   int    `json:"cache_seconds,omitempty" yaml:"cache_seconds,omitempty"`
	MaxRetries     int    `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// StoreConfig configures the processed-message ledger.
type StoreConfig struct {
	Path string `json:"path" yaml:"path"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Token     string   `json:"token" yaml:"token"`
	AllowFrom []string `json:"allow_from" yaml:"allow_from"`
}

// GatewayConfig configures HTTP gateway bind settings.
type GatewayConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// ErrConfigNotFound is returned by LoadConfig when no config file exists in
// the default locations.
var ErrConfigNotFound = errors.New("config file not found")

// Defaults returns a config that runs offline with a static rate.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Tip.BotHandle) == "" {
		c.Tip.BotHandle = "tippercoin"
	}
	if strings.TrimSpace(c.Tip.Fiat) == "" {
		c.Tip.Fiat = "USD"
	}
	if strings.TrimSpace(c.Rates.Source) == "" {
		c.Rates.Source = RateSourceStatic
	}
	if c.Rates.Source == RateSourceHTTP && strings.TrimSpace(c.Rates.JSONPath) == "" {
		c.Rates.JSONPath = "data.amount"
	}
	if c.Rates.TimeoutSeconds <= 0 {
		c.Rates.TimeoutSeconds = 10
	}
	if c.Rates.MaxRetries < 0 {
		c.Rates.MaxRetries = 0
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = filepath.Join("data", "tipbot.db")
	}
}

// LoadConfig resolves the config file, unmarshals it, and applies environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadFile(configPath)
}

// LoadFile reads one config file. YAML is used for .yaml/.yml, JSON otherwise.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &cfg)
	default:
		err = json.Unmarshal(content, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings that cannot produce a working parser.
func (c *Config) Validate() error {
	switch c.Rates.Source {
	case RateSourceStatic:
		if strings.TrimSpace(c.Rates.StaticRate) == "" {
			return fmt.Errorf("rates.static_rate is required for the %s source", RateSourceStatic)
		}
	case RateSourceHTTP:
		if strings.TrimSpace(c.Rates.URL) == "" {
			return fmt.Errorf("rates.url is required for the %s source", RateSourceHTTP)
		}
	default:
		return fmt.Errorf("unsupported rates.source %q", c.Rates.Source)
	}

	return nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}

	if handle := strings.TrimSpace(os.Getenv(envBotHandle)); handle != "" {
		cfg.Tip.BotHandle = handle
	}

	if rate := strings.TrimSpace(os.Getenv(envStaticRate)); rate != "" {
		if _, err := strconv.ParseFloat(rate, 64); err != nil {
			return fmt.Errorf("%s: %w", envStaticRate, err)
		}
		cfg.Rates.Source = RateSourceStatic
		cfg.Rates.StaticRate = rate
	}

	return nil
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is TIPBOT_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config", "config.json"),
		filepath.Join(cwd, "config", "config.yaml"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w (checked %s)", ErrConfigNotFound, strings.Join(candidates, ", "))
}
