// Package store provides the durable key-value storage used for execution
// records, audit logs, and conversation transcripts.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.New("store: key not found")

// Store is the minimal key-value contract the engine requires. Values are
// opaque bytes. Scalar keys and list keys are independent namespaces sharing
// the same key strings. A ttl of zero or less means the key never expires;
// expired keys behave as absent.
//
// CompareAndSwap is the sole atomic conditional primitive: it replaces the
// value only if the currently stored bytes equal old, and reports whether
// the swap happened. State-machine transitions are built on it.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error

	// AppendToList appends value to the ordered list at key and refreshes
	// the list's expiry, giving bounded retention per list.
	AppendToList(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// RangeOfList returns list elements between start and end inclusive.
	// Negative indices count from the end, so (-n, -1) is the last n items.
	RangeOfList(ctx context.Context, key string, start, end int) ([][]byte, error)

	ScanKeysByPrefix(ctx context.Context, prefix string) ([]string, error)
	CompareAndSwap(ctx context.Context, key string, old, new []byte, ttl time.Duration) (bool, error)

	Close() error
}

// rangeBounds normalizes Redis-style list range indices against a list of
// length n. It returns ok=false when the range selects nothing.
func rangeBounds(start, end, n int) (lo, hi int, ok bool) {
	if n == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if start > end || start >= n || end < 0 {
		return 0, 0, false
	}
	return start, end, true
}
