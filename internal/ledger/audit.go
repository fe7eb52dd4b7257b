package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// AuditEntry is the append-only summary of a completed execution. Entries
// accumulate on a per-caller, per-day list and are never mutated.
type AuditEntry struct {
	ExecutionID string    `json:"execution_id"`
	Tool        string    `json:"tool"`
	Status      Status    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Dangerous   bool      `json:"dangerous"`
}

func auditKey(requester string, day time.Time) string {
	return fmt.Sprintf("audit:%s:%s", requester, day.UTC().Format("20060102"))
}

// appendAudit writes one audit entry for a record that just reached a
// terminal status, and mirrors it to the audit stream when one is
// configured. Both writes are best-effort: failure is logged, never
// propagated.
func (l *Ledger) appendAudit(ctx context.Context, rec *Record) {
	entry := AuditEntry{
		ExecutionID: rec.ID,
		Tool:        rec.Tool,
		Status:      rec.Status,
		Timestamp:   time.Now().UTC(),
		Dangerous:   rec.Dangerous,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		slog.Warn("Audit entry marshal failed", "execution_id", rec.ID, "error", err)
		return
	}
	key := auditKey(rec.RequestedBy, entry.Timestamp)
	if err := l.store.AppendToList(ctx, key, data, l.auditTTL); err != nil {
		slog.Warn("Audit append failed", "execution_id", rec.ID, "key", key, "error", err)
	}
	if l.publisher != nil {
		if err := l.publisher.Publish(ctx, rec.ID, entry); err != nil {
			slog.Warn("Audit stream publish failed", "execution_id", rec.ID, "error", err)
		}
	}
}

// AuditHistory returns up to limit of today's audit entries for a caller,
// most recent last.
func (l *Ledger) AuditHistory(ctx context.Context, requester string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	key := auditKey(requester, time.Now())
	raw, err := l.store.RangeOfList(ctx, key, -limit, -1)
	if err != nil {
		return nil, fmt.Errorf("audit history for %s: %w", requester, err)
	}
	entries := make([]AuditEntry, 0, len(raw))
	for _, data := range raw {
		var e AuditEntry
		if err := json.Unmarshal(data, &e); err != nil {
			slog.Warn("Skipping unreadable audit entry", "key", key, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
