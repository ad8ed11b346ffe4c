package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tipbot/pkg/bus"
	"tipbot/pkg/channel"
	"tipbot/pkg/channel/telegram"
	"tipbot/pkg/config"
	"tipbot/pkg/gateway"
	"tipbot/pkg/store"
)

const telegramChannelName = "telegram"

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the chat gateway",
	Long:  "Connects the enabled chat channels, records every tip in the ledger and serves health and readiness endpoints.",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}

		_, closeLog, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer closeLog()
		log := slog.Default().With("component", "cmd.gateway")

		adapters, err := enabledAdapters(cfg, log)
		if err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			return err
		}

		parser, source, err := buildParser(cfg, slog.Default())
		if err != nil {
			return err
		}

		ledger, err := store.Open(cfg.Store.Path, slog.Default())
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer ledger.Close()

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		messageBus := bus.NewMessageBus()
		defer messageBus.Close()
		go bus.ObserveEvents(runCtx, messageBus, slog.Default())

		svc, err := gateway.NewService(cfg, adapters, gateway.Deps{
			Parser: parser,
			Rates:  source,
			Ledger: ledger,
			Bus:    messageBus,
		}, slog.Default())
		if err != nil {
			return fmt.Errorf("initialize gateway service: %w", err)
		}

		log.Info("Gateway started", "channels", enabledChannelNames(adapters), "bot", parser.BotHandle(), "rates", cfg.Rates.Source, "ledger", cfg.Store.Path)
		if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Gateway runtime failed", "error", err)
			return err
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 1)

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
