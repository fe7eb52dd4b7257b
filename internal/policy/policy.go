// Package policy provides the pure approval-gating decision for tool
// executions. It has no side effects and no dependencies on the ledger.
package policy

import (
	"fmt"
	"strings"
	"time"
)

// Mode controls how aggressively operations are gated behind human approval.
type Mode string

const (
	// ModeStrict gates every operation unless the caller explicitly
	// overrides with auto-approve.
	ModeStrict Mode = "strict"
	// ModeNormal gates dangerous operations only. The default.
	ModeNormal Mode = "normal"
	// ModeAuto never gates. Dangerous.
	ModeAuto Mode = "auto"
)

// ParseMode parses a case-insensitive mode string. An empty string maps to
// ModeNormal.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeNormal:
		return ModeNormal, nil
	case ModeStrict:
		return ModeStrict, nil
	case ModeAuto:
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown approval mode: %q", s)
	}
}

// NeedsApproval reports whether an operation must be held for human
// approval, given its danger classification, the caller's auto-approve
// override, and the approval mode.
func NeedsApproval(dangerous, callerAutoApprove bool, mode Mode) bool {
	switch mode {
	case ModeAuto:
		return false
	case ModeStrict:
		return !callerAutoApprove
	default: // ModeNormal
		return dangerous && !callerAutoApprove
	}
}

// Decision is the result of a policy evaluation, with context for logging
// and notifications.
type Decision struct {
	RequiresApproval bool
	Reason           string
	Mode             Mode
	Dangerous        bool
	Ts               time.Time
}

// Decide evaluates the gating rule and returns a Decision with a reason.
func Decide(dangerous, callerAutoApprove bool, mode Mode) Decision {
	d := Decision{
		Mode:      mode,
		Dangerous: dangerous,
		Ts:        time.Now(),
	}
	d.RequiresApproval = NeedsApproval(dangerous, callerAutoApprove, mode)
	switch {
	case mode == ModeAuto:
		d.Reason = "auto_mode_never_gated"
	case !d.RequiresApproval && callerAutoApprove:
		d.Reason = "caller_auto_approved"
	case !d.RequiresApproval:
		d.Reason = "safe_operation_auto_approved"
	case mode == ModeStrict:
		d.Reason = "strict_mode_requires_approval"
	default:
		d.Reason = "dangerous_operation_requires_approval"
	}
	return d
}
