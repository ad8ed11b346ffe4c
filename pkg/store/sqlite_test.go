package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tipbot/pkg/logger"
	"tipbot/pkg/tip"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "tipbot.db"), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func parseIntent(t *testing.T, text string) tip.Intent {
	t.Helper()
	parser := tip.NewParser(tip.FixedRate(decimal.NewFromInt(695)))
	intent, err := parser.Parse(context.Background(), tip.Message{Text: text, Sender: "sender"})
	require.NoError(t, err)
	return intent
}

func TestRecordAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	intent := parseIntent(t, "@recipient 5 USD")
	inserted, err := s.Record(ctx, NewRecord("telegram", "42", "@recipient 5 USD", intent))
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := s.Get(ctx, "telegram", "42")
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "sender", got.Sender)
	assert.Equal(t, "recipient", got.Recipient)
	assert.Equal(t, int64(719_424), got.Amount)
	assert.True(t, got.Valid)
	assert.Empty(t, got.Reason)
	assert.Equal(t, []int64{719_424}, got.Intent.Amounts)
	assert.Equal(t, tip.KindFiat, got.Intent.Tokens[0].Unit.Kind)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRecordIgnoresDuplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := NewRecord("telegram", "7", "@recipient 1 mbtc", parseIntent(t, "@recipient 1 mbtc"))
	inserted, err := s.Record(ctx, rec)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = s.Record(ctx, rec)
	require.NoError(t, err)
	assert.False(t, inserted)

	seen, err := s.Seen(ctx, "telegram", "7")
	require.NoError(t, err)
	assert.True(t, seen)

	// Same message id on another channel is a different message.
	inserted, err = s.Record(ctx, NewRecord("cli", "7", rec.Text, rec.Intent))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestRecordStoresInvalidIntents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := NewRecord("telegram", "9", "@tippercoin 1 btc", parseIntent(t, "@tippercoin 1 btc"))
	_, err := s.Record(ctx, rec)
	require.NoError(t, err)

	got, err := s.Get(ctx, "telegram", "9")
	require.NoError(t, err)
	assert.False(t, got.Valid)
	assert.Equal(t, tip.ReasonDirectedAtBot, got.Reason)
}

func TestRecordRequiresKey(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Record(context.Background(), Record{Channel: "telegram"})
	assert.Error(t, err)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "telegram", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecentNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"1", "2", "3"} {
		rec := NewRecord("telegram", id, "@recipient 1 sat", parseIntent(t, "@recipient 1 sat"))
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := s.Record(ctx, rec)
		require.NoError(t, err)
	}

	records, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "3", records[0].MessageID)
	assert.Equal(t, "2", records[1].MessageID)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tipbot.db")

	first, err := Open(path, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path, logger.Discard())
	require.NoError(t, err)
	defer second.Close()

	version, err := currentVersion(second.db)
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, version)
}

func TestOpenEnablesWALAndBusyTimeout(t *testing.T) {
	s := openTestStore(t)

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, s.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open(":memory:", logger.Discard())
	require.NoError(t, err)
	defer s.Close()

	inserted, err := s.Record(context.Background(), NewRecord("cli", "1", "x", tip.Intent{}))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ", nil)
	assert.Error(t, err)
}
