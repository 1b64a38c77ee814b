package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/crewcrew/internal/repository"
)

var _ repository.KV = (*DB)(nil)

// Get returns the value stored under key, or repository.ErrKeyNotFound.
func (db *DB) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		`SELECT value FROM local_storage WHERE key = ?`, key,
	).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", repository.ErrKeyNotFound
		}
		return "", fmt.Errorf("sqlite: reading key %q: %w", key, err)
	}
	return value, nil
}

// Set writes value under key, replacing any previous value entirely.
//
// ON CONFLICT ... DO UPDATE is SQLite's upsert: insert the row, or if the
// key already exists overwrite its value in place.
func (db *DB) Set(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: writing key %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error, the same as
// localStorage.removeItem.
func (db *DB) Delete(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite: deleting key %q: %w", key, err)
	}
	return nil
}
