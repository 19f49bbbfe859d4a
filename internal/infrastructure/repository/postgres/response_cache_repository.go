package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ResponseCacheRepository is the shared tier of the LLM response cache.
// Expired rows are invisible to reads and removed by PurgeExpired.
type ResponseCacheRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewResponseCacheRepository(db *sql.DB) *ResponseCacheRepository {
	return &ResponseCacheRepository{db: db, now: time.Now}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ResponseCacheRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across replicas starting together.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS llm_cache (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_llm_cache_expires_at ON llm_cache(expires_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Lookup returns a live row with its expiry so callers can bound local copies.
func (r *ResponseCacheRepository) Lookup(ctx context.Context, key string) (string, time.Time, bool, error) {
	var (
		value     string
		expiresAt time.Time
	)
	err := r.db.QueryRowContext(ctx, `
SELECT value, expires_at FROM llm_cache
WHERE key = $1 AND expires_at > $2
`, key, r.now().UTC()).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, false, nil
		}
		return "", time.Time{}, false, fmt.Errorf("select cached response: %w", err)
	}
	return value, expiresAt, true, nil
}

func (r *ResponseCacheRepository) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO llm_cache (key, value, expires_at, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
`, key, value, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("upsert cached response: %w", err)
	}
	return nil
}

func (r *ResponseCacheRepository) Clear(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM llm_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear cached responses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear cached responses rows affected: %w", err)
	}
	return int(n), nil
}

func (r *ResponseCacheRepository) Len(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM llm_cache WHERE expires_at > $1`, r.now().UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count cached responses: %w", err)
	}
	return n, nil
}

func (r *ResponseCacheRepository) PurgeExpired(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM llm_cache WHERE expires_at <= $1`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired responses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired rows affected: %w", err)
	}
	return int(n), nil
}
