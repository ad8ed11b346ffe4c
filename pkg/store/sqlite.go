// Package store keeps the ledger of processed tip messages in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tipbot/pkg/tip"
)

// ErrNotFound is returned by Get when no record matches.
var ErrNotFound = errors.New("tip record not found")

// Record is one processed inbound message and the intent parsed from it.
type Record struct {
	ID        string     `json:"id"`
	Channel   string     `json:"channel"`
	MessageID string     `json:"message_id"`
	Sender    string     `json:"sender"`
	Recipient string     `json:"recipient,omitempty"`
	Amount    int64      `json:"amount"`
	Valid     bool       `json:"valid"`
	Reason    string     `json:"reason,omitempty"`
	Text      string     `json:"text"`
	Intent    tip.Intent `json:"intent"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewRecord fills the summary columns from intent.
func NewRecord(channel string, messageID string, text string, intent tip.Intent) Record {
	return Record{
		Channel:   channel,
		MessageID: messageID,
		Sender:    intent.Sender,
		Recipient: intent.Recipient,
		Amount:    intent.Amount,
		Valid:     intent.Valid(),
		Reason:    intent.Reason(),
		Text:      text,
		Intent:    intent,
	}
}

// SQLiteStore is the ledger backed by modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates the database directory if needed, opens the file and applies
// pending migrations. The path ":memory:" opens a private in-memory ledger.
func Open(path string, log *slog.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = slog.Default()
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store path is required")
	}

	dsn := path
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite serializes writers; one connection keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, log: log.With("component", "store")}
	if err := runMigrations(db, store.log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

// Record inserts rec unless (channel, message_id) is already present. It
// reports whether a new row was written.
func (s *SQLiteStore) Record(ctx context.Context, rec Record) (bool, error) {
	if strings.TrimSpace(rec.Channel) == "" || strings.TrimSpace(rec.MessageID) == "" {
		return false, errors.New("record requires channel and message id")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	intentJSON, err := json.Marshal(rec.Intent)
	if err != nil {
		return false, fmt.Errorf("encode intent: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO tips (id, channel, message_id, sender, recipient, amount, valid, reason, text, intent, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Channel, rec.MessageID, rec.Sender, rec.Recipient, rec.Amount, rec.Valid,
		rec.Reason, rec.Text, string(intentJSON), rec.Error, rec.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert tip: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert tip: %w", err)
	}
	if affected == 0 {
		s.log.Debug("Skipped duplicate message", "channel", rec.Channel, "message_id", rec.MessageID)
		return false, nil
	}

	return true, nil
}

// Seen reports whether a message was already recorded.
func (s *SQLiteStore) Seen(ctx context.Context, channel string, messageID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM tips WHERE channel = ? AND message_id = ?`, channel, messageID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query tip: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Get(ctx context.Context, channel string, messageID string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM tips WHERE channel = ? AND message_id = ?`, channel, messageID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// Recent returns up to limit records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM tips ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query tips: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const recordColumns = `id, channel, message_id, sender, recipient, amount, valid, reason, text, intent, error, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec        Record
		intentJSON string
	)
	err := row.Scan(&rec.ID, &rec.Channel, &rec.MessageID, &rec.Sender, &rec.Recipient, &rec.Amount,
		&rec.Valid, &rec.Reason, &rec.Text, &intentJSON, &rec.Error, &rec.CreatedAt)
	if err != nil {
		return Record{}, err
	}
	if intentJSON != "" {
		if err := json.Unmarshal([]byte(intentJSON), &rec.Intent); err != nil {
			return Record{}, fmt.Errorf("decode intent %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}
