// Package sqlite stores the offline queue in a SQLite database so queued
// writes survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jonwraymond/offlinekit/queue"
	"github.com/jonwraymond/offlinekit/queue/sqlite/migrations"
)

// ErrMissingPath is returned by Open for an empty path.
var ErrMissingPath = errors.New("sqlite: storage path is required")

// dsnParams are applied by modernc.org/sqlite to every pooled connection.
// Write transactions begin IMMEDIATE so concurrent writers wait on
// busy_timeout instead of failing on lock upgrade.
const dsnParams = "?_pragma=journal_mode(WAL)" +
	"&_pragma=foreign_keys(1)" +
	"&_pragma=busy_timeout(5000)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_txlock=immediate"

// Store is a queue.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrMissingPath
	}
	dsn := filepath.Clean(path) + dsnParams

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Append(ctx context.Context, item queue.Item) error {
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("append: item id is required")
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO offline_queue (id, payload, enqueued_at) VALUES (?, ?, ?)",
		item.ID, []byte(item.Payload), item.EnqueuedAt.UTC().UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("append %s: %w", item.ID, err)
	}
	return nil
}

// List returns items oldest first; ties keep insertion order.
func (s *Store) List(ctx context.Context) ([]queue.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, payload, enqueued_at
FROM offline_queue
ORDER BY enqueued_at ASC, seq ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var items []queue.Item
	for rows.Next() {
		var (
			item    queue.Item
			payload []byte
			at      int64
		)
		if err := rows.Scan(&item.ID, &payload, &at); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		item.Payload = payload
		item.EnqueuedAt = time.UnixMicro(at).UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue: %w", err)
	}
	return items, nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM offline_queue").Scan(&n); err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	return n, nil
}

func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM offline_queue WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", id, err)
	}
	return n > 0, nil
}

// Complete records rec and deletes its item in one transaction.
func (s *Store) Complete(ctx context.Context, rec queue.ResponseRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("complete %s: begin: %w", rec.ItemID, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, "DELETE FROM offline_queue WHERE id = ?", rec.ItemID)
	if err != nil {
		return fmt.Errorf("complete %s: delete: %w", rec.ItemID, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		if err == nil {
			err = queue.ErrItemNotFound
		}
		return fmt.Errorf("complete %s: %w", rec.ItemID, err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO offline_responses (item_id, result, recorded_at) VALUES (?, ?, ?)
ON CONFLICT (item_id) DO UPDATE SET result = excluded.result, recorded_at = excluded.recorded_at
`, rec.ItemID, rec.Result, rec.RecordedAt.UTC().UnixMicro()); err != nil {
		return fmt.Errorf("complete %s: insert: %w", rec.ItemID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("complete %s: commit: %w", rec.ItemID, err)
	}
	return nil
}

// Responses lists replay results oldest first.
func (s *Store) Responses(ctx context.Context) ([]queue.ResponseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT item_id, result, recorded_at
FROM offline_responses
ORDER BY recorded_at ASC, rowid ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var records []queue.ResponseRecord
	for rows.Next() {
		var (
			rec queue.ResponseRecord
			at  int64
		)
		if err := rows.Scan(&rec.ItemID, &rec.Result, &at); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		rec.RecordedAt = time.UnixMicro(at).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return records, nil
}

var _ queue.Store = (*Store)(nil)
