package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS kv_list (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	key TEXT NOT NULL,
	value BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kv_list_key ON kv_list(key, id);
CREATE TABLE IF NOT EXISTS kv_list_meta (
	key TEXT PRIMARY KEY,
	expires_at INTEGER NOT NULL DEFAULT 0
);
`

// SQLite is the durable Store implementation. Expiry is enforced on read and
// expired rows are purged lazily.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (or creates) the store database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open store db: %w", err)
	}
	s, err := NewSQLiteFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteFromDB wraps an already-open database handle. The caller picks
// the driver; the schema is applied here.
func NewSQLiteFromDB(db *sql.DB) (*SQLite, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to apply store schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, s.expiryMilli(ttl))
	if err != nil {
		return fmt.Errorf("store set %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv WHERE key = ?`, key).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store get %s: %w", key, err)
	}
	if s.isExpired(expiresAt) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("store delete %s: %w", key, err)
	}
	_, _ = s.db.ExecContext(ctx, `DELETE FROM kv_list WHERE key = ?`, key)
	_, _ = s.db.ExecContext(ctx, `DELETE FROM kv_list_meta WHERE key = ?`, key)
	return nil
}

func (s *SQLite) AppendToList(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.purgeListIfExpired(ctx, key)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_list (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("store append %s: %w", key, err)
	}
	// Each append refreshes the list's retention window.
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_list_meta (key, expires_at) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET expires_at = excluded.expires_at`,
		key, s.expiryMilli(ttl)); err != nil {
		return fmt.Errorf("store append meta %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) RangeOfList(ctx context.Context, key string, start, end int) ([][]byte, error) {
	s.purgeListIfExpired(ctx, key)
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM kv_list WHERE key = ? ORDER BY id`, key)
	if err != nil {
		return nil, fmt.Errorf("store range %s: %w", key, err)
	}
	defer rows.Close()

	var all [][]byte
	for rows.Next() {
		var v []byte
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("store range scan %s: %w", key, err)
		}
		all = append(all, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store range rows %s: %w", key, err)
	}
	lo, hi, ok := rangeBounds(start, end, len(all))
	if !ok {
		return nil, nil
	}
	return all[lo : hi+1], nil
}

func (s *SQLite) ScanKeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	now := s.now().UnixMilli()
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE key >= ? AND key < ? AND (expires_at = 0 OR expires_at > ?) ORDER BY key`,
		prefix, prefix+"\xff", now)
	if err != nil {
		return nil, fmt.Errorf("store scan %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("store scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CompareAndSwap replaces the stored value only when it still equals old.
// The conditional UPDATE is a single statement, so concurrent swaps of the
// same key serialize inside SQLite and at most one wins.
func (s *SQLite) CompareAndSwap(ctx context.Context, key string, old, new []byte, ttl time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE kv SET value = ?, expires_at = ?
		 WHERE key = ? AND value = ? AND (expires_at = 0 OR expires_at > ?)`,
		new, s.expiryMilli(ttl), key, old, s.now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("store cas %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store cas rows %s: %w", key, err)
	}
	return n == 1, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) expiryMilli(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return s.now().Add(ttl).UnixMilli()
}

func (s *SQLite) isExpired(expiresAt int64) bool {
	return expiresAt != 0 && s.now().UnixMilli() >= expiresAt
}

func (s *SQLite) purgeListIfExpired(ctx context.Context, key string) {
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM kv_list_meta WHERE key = ?`, key).Scan(&expiresAt)
	if err != nil {
		return
	}
	if s.isExpired(expiresAt) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv_list WHERE key = ?`, key)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv_list_meta WHERE key = ?`, key)
	}
}
