package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// KVRepository keeps opaque string values in the kv_entries table. It
// satisfies storage.KV so profiles can live in the same SQLite file as users.
type KVRepository struct {
	db *sql.DB
}

func NewKVRepository(db *sql.DB) *KVRepository {
	return &KVRepository{db: db}
}

func (r *KVRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(
		ctx,
		`SELECT value FROM kv_entries WHERE key = ?`,
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get kv entry %s: %w", key, err)
	}
	return value, true, nil
}

func (r *KVRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO kv_entries (key, value, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			 value = excluded.value,
			 updated_at = excluded.updated_at`,
		key,
		value,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("set kv entry %s: %w", key, err)
	}
	return nil
}
