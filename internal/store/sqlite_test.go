package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewSQLiteFromDB(db)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, newTestSQLite(t))
}

func TestSQLiteExpiry(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	base := time.Now()
	s.now = func() time.Time { return base }

	if err := s.Set(ctx, "short", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.AppendToList(ctx, "list", []byte("v"), time.Minute); err != nil {
		t.Fatalf("append: %v", err)
	}

	base = base.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "short"); err != ErrNotFound {
		t.Fatalf("expired key should be absent, got %v", err)
	}
	if ok, _ := s.CompareAndSwap(ctx, "short", []byte("v"), []byte("w"), 0); ok {
		t.Fatal("cas on an expired key should fail")
	}
	items, err := s.RangeOfList(ctx, "list", 0, -1)
	if err != nil || len(items) != 0 {
		t.Fatalf("expired list should be empty: %v %v", items, err)
	}
	keys, _ := s.ScanKeysByPrefix(ctx, "short")
	if len(keys) != 0 {
		t.Fatalf("expired keys leaked into scan: %v", keys)
	}
}

func TestSQLiteAppendRefreshesRetention(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	base := time.Now()
	s.now = func() time.Time { return base }

	_ = s.AppendToList(ctx, "log", []byte("a"), time.Hour)
	base = base.Add(30 * time.Minute)
	_ = s.AppendToList(ctx, "log", []byte("b"), time.Hour)

	// 45 minutes after the second append the list must still be alive,
	// because each append refreshed the window.
	base = base.Add(45 * time.Minute)
	items, err := s.RangeOfList(ctx, "log", 0, -1)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("list lost entries: %v", items)
	}
}
