// Package notify tells humans about executions waiting on their approval.
// Notification is best-effort: a delivery failure never fails the gated
// submission itself.
package notify

import "context"

// PendingNotice describes a gated execution awaiting a human decision.
type PendingNotice struct {
	ExecutionID string
	Tool        string
	Requester   string
	Dangerous   bool
	ResolveHint string
}

// Notifier delivers a pending-approval notice.
type Notifier interface {
	NotifyPending(ctx context.Context, n PendingNotice) error
}
