// Package sqlite provides a SQLite-backed rdc store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/Homlet/middleware-android-sub001/internal/rdc/store"
)

const (
	KeyPath        = "path"
	KeyJournalMode = "journal_mode"
	KeyBusyTimeout = "busy_timeout"
)

func init() {
	store.Register("sqlite", NewFactory, Defaults)
}

// Defaults returns the default configuration for the SQLite store.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:        "~/.mw-rdc/index.db",
		KeyJournalMode: "wal",
		KeyBusyTimeout: "5000",
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS announcements (
    location_key TEXT PRIMARY KEY,
    seq          INTEGER NOT NULL,
    updated      INTEGER NOT NULL,
    record       BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_announcements_seq ON announcements(seq);
`

// NewFactory opens (creating when needed) the SQLite database at path.
func NewFactory(_ context.Context, s store.Settings) (store.Store, error) {
	path, err := s.Path(KeyPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, s.Err(KeyPath, "failed to create directory", err)
	}

	journalMode := s.String(KeyJournalMode, "wal")
	busyTimeout, err := s.Int(KeyBusyTimeout, 5000)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(%d)", path, journalMode, busyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, s.Err(KeyPath, "failed to open database", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, s.Err(KeyPath, "failed to initialize schema", err)
	}

	slog.Info("sqlite rdc store initialized", "path", path, "journal_mode", journalMode)
	return &Store{db: db}, nil
}

// Store is a SQLite implementation of store.Store.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
}

func (s *Store) Put(ctx context.Context, rec *store.Record) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sqlite put: encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO announcements (location_key, seq, updated, record) VALUES (?, ?, ?, ?)
		 ON CONFLICT(location_key) DO UPDATE SET seq = excluded.seq, updated = excluded.updated, record = excluded.record`,
		rec.Key(), int64(rec.Seq), rec.Updated.UnixMilli(), val)
	if err != nil {
		return fmt.Errorf("sqlite put: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (*store.Record, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	var val []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM announcements WHERE location_key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	return decode(val)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM announcements WHERE location_key = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]*store.Record, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM announcements ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list: %w", err)
	}
	defer rows.Close()

	var out []*store.Record
	for rows.Next() {
		var val []byte
		if err := rows.Scan(&val); err != nil {
			return nil, fmt.Errorf("sqlite list: scan: %w", err)
		}
		rec, err := decode(val)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func decode(val []byte) (*store.Record, error) {
	var rec store.Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("sqlite: decode record: %w", err)
	}
	return &rec, nil
}
