package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps entries in the kv_entries table. Expiry is evaluated with the
// database clock so several service instances agree on it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Delete(ctx, key)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, value, expires_at)
		 VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, ttl.Milliseconds())
	if err != nil {
		return fmt.Errorf("set %s: %w", namespace(key), err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 AND expires_at > now()`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", namespace(key), err)
	}
	return value, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", namespace(key), err)
	}
	return nil
}

func (s *PostgresStore) Take(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`DELETE FROM kv_entries WHERE key = $1 AND expires_at > now() RETURNING value`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("take %s: %w", namespace(key), err)
	}
	return value, nil
}

func (s *PostgresStore) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		tag, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1 AND expires_at > now()`, key)
		if err != nil {
			return false, fmt.Errorf("replace %s: %w", namespace(key), err)
		}
		return tag.RowsAffected() > 0, nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE kv_entries
		 SET value = $2, expires_at = now() + ($3::bigint * interval '1 millisecond')
		 WHERE key = $1 AND expires_at > now()`,
		key, value, ttl.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("replace %s: %w", namespace(key), err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Sweep(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("sweep expired entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// namespace keeps raw tokens out of error messages.
func namespace(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return "key"
}
