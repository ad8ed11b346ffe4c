package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	channelpkg "tipbot/pkg/channel"
	"tipbot/pkg/config"
	"tipbot/pkg/logger"
)

type testAdapter struct{ name string }

func (a testAdapter) Name() string { return a.name }

func (a testAdapter) Run(_ context.Context, _ channelpkg.Handler) error { return nil }

func TestEnabledAdaptersRequiresAtLeastOneChannel(t *testing.T) {
	t.Parallel()

	_, err := enabledAdapters(&config.Config{}, nil)
	assert.Error(t, err)
}

func TestEnabledAdaptersRequiresTelegramToken(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Channels.Telegram.Enabled = true

	_, err := enabledAdapters(cfg, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
}

func TestEnabledAdaptersTelegram(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Channels.Telegram.Enabled = true
	cfg.Channels.Telegram.Token = "123:abc"

	adapters, err := enabledAdapters(cfg, logger.Discard())
	require.NoError(t, err)
	require.Len(t, adapters, 1)
	assert.Equal(t, telegramChannelName, adapters[0].Name())
}

func TestEnabledChannelNames(t *testing.T) {
	t.Parallel()

	adapters := []channelpkg.Adapter{testAdapter{name: "telegram"}, testAdapter{name: "slack"}}
	assert.Equal(t, "telegram,slack", enabledChannelNames(adapters))
}
