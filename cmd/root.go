/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"tipbot/pkg/config"
	"tipbot/pkg/logger"
	"tipbot/pkg/rates"
	"tipbot/pkg/tip"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tipbot",
	Short: "Parse and process chat tip requests",
	Long: `tipbot reads chat messages such as "@alice 2 beers", works out who tips whom
and how many satoshis, and records the result in a local ledger.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadDotEnv)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $TIPBOT_CONFIG, ./config.json or ./config.yaml)")
}

// loadDotEnv exports ./.env into the environment without overriding
// variables that are already set, so TELEGRAM_BOT_TOKEN can live there.
func loadDotEnv() {
	_ = godotenv.Load()
}

// loadConfig reads --config when given and the default locations otherwise.
// With allowMissing, a missing default config yields the built-in defaults.
func loadConfig(allowMissing bool) (*config.Config, error) {
	if path := strings.TrimSpace(configPath); path != "" {
		return config.LoadFile(path)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		if allowMissing && errors.Is(err, config.ErrConfigNotFound) {
			return config.Defaults(), nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// setupLogger installs the configured logger as slog's default.
func setupLogger(cfg *config.Config) (*slog.Logger, func() error, error) {
	appLogger, closeLog, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)
	return appLogger, closeLog, nil
}

// buildParser wires the configured rate source and unit prices into a parser.
// A static source without a rate leaves fiat units unpriced.
func buildParser(cfg *config.Config, log *slog.Logger) (*tip.Parser, tip.RateSource, error) {
	var source tip.RateSource
	if cfg.Rates.Source != config.RateSourceStatic || strings.TrimSpace(cfg.Rates.StaticRate) != "" {
		built, err := rates.New(cfg.Rates, log)
		if err != nil {
			return nil, nil, fmt.Errorf("configure rate source: %w", err)
		}
		source = built
	}

	prices, err := unitPrices(cfg.Tip)
	if err != nil {
		return nil, nil, err
	}

	parser := tip.NewParser(source,
		tip.WithBotHandle(cfg.Tip.BotHandle),
		tip.WithFiat(cfg.Tip.Fiat),
		tip.WithUnits(tip.NewUnitTable(prices)),
		tip.WithLogger(log),
	)
	return parser, source, nil
}

func unitPrices(cfg config.TipConfig) (tip.Prices, error) {
	var prices tip.Prices
	for _, field := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{name: "tip.beer_price", raw: cfg.BeerPrice, dst: &prices.Beer},
		{name: "tip.internet_price", raw: cfg.InternetPrice, dst: &prices.Internet},
	} {
		raw := strings.TrimSpace(field.raw)
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return tip.Prices{}, fmt.Errorf("%s: %w", field.name, err)
		}
		*field.dst = value
	}

	return prices, nil
}
