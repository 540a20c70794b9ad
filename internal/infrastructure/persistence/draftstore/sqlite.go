package draftstore

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// SQLiteBackend stores entries in the kv_entries table.
type SQLiteBackend struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteBackend creates a backend over an open database whose migrations
// have been applied.
func NewSQLiteBackend(db *sql.DB, logger *zap.Logger) *SQLiteBackend {
	return &SQLiteBackend{
		db:     db,
		logger: logger,
	}
}

func (b *SQLiteBackend) Name() string { return "sqlite" }

// Set upserts a value
func (b *SQLiteBackend) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := b.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}
	return nil
}

// Get retrieves a value by key
func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query entry: %w", err)
	}
	return []byte(value), true, nil
}

// Delete removes a key
func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	result, err := b.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		b.logger.Debug("Delete of absent key", zap.String("key", key))
	}
	return nil
}

// Scan lists entries by key prefix. substr avoids LIKE wildcard escaping.
func (b *SQLiteBackend) Scan(ctx context.Context, prefix string) ([]KV, error) {
	query := `
		SELECT key, value FROM kv_entries
		WHERE substr(key, 1, ?) = ?
		ORDER BY key
	`
	rows, err := b.db.QueryContext(ctx, query, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entries: %w", err)
	}
	defer rows.Close()

	var out []KV
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to read entry: %w", err)
		}
		out = append(out, KV{Key: key, Value: []byte(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return out, nil
}
