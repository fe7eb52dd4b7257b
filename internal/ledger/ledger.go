// Package ledger owns the approval/execution state machine: every requested
// operation becomes a durable record whose status moves monotonically
// through pending → {approved → executing → {success, failed}, rejected},
// with one audit entry per terminal transition.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opsgate/opsgate/internal/notify"
	"github.com/opsgate/opsgate/internal/policy"
	"github.com/opsgate/opsgate/internal/router"
	"github.com/opsgate/opsgate/internal/store"
	"github.com/opsgate/opsgate/internal/stream"
	"github.com/opsgate/opsgate/internal/validate"
)

// ErrExecutionNotFound is returned when resolving an unknown or expired id.
var ErrExecutionNotFound = errors.New("execution not found")

// ErrInvalidState is returned when a resolution targets a record that is no
// longer pending, including the loser of a concurrent double-resolution.
var ErrInvalidState = errors.New("execution is not in a resolvable state")

const (
	defaultRecordTTL   = 24 * time.Hour
	defaultAuditTTL    = 30 * 24 * time.Hour
	defaultExecTimeout = 60 * time.Second
)

// Options tunes a Ledger. Zero values take the defaults above.
type Options struct {
	// ExecTimeout bounds each executor invocation; expiry marks the
	// record failed rather than leaving it executing forever.
	ExecTimeout time.Duration
	RecordTTL   time.Duration
	AuditTTL    time.Duration
	// Notifier, when set, is told about gated submissions. Best-effort.
	Notifier notify.Notifier
	// Publisher, when set, mirrors audit entries to a stream. Best-effort.
	Publisher stream.Publisher
	// ResolveHint is included in approval notifications, e.g. the CLI
	// command a human runs to resolve the execution.
	ResolveHint func(executionID string) string
}

// Ledger is the execution state machine over a Store and a Router.
type Ledger struct {
	store       store.Store
	router      *router.Router
	notifier    notify.Notifier
	publisher   stream.Publisher
	resolveHint func(string) string
	execTimeout time.Duration
	recordTTL   time.Duration
	auditTTL    time.Duration
}

// New creates a ledger.
func New(st store.Store, rt *router.Router, opts Options) *Ledger {
	if opts.ExecTimeout <= 0 {
		opts.ExecTimeout = defaultExecTimeout
	}
	if opts.RecordTTL <= 0 {
		opts.RecordTTL = defaultRecordTTL
	}
	if opts.AuditTTL <= 0 {
		opts.AuditTTL = defaultAuditTTL
	}
	return &Ledger{
		store:       st,
		router:      rt,
		notifier:    opts.Notifier,
		publisher:   opts.Publisher,
		resolveHint: opts.ResolveHint,
		execTimeout: opts.ExecTimeout,
		recordTTL:   opts.RecordTTL,
		auditTTL:    opts.AuditTTL,
	}
}

// SubmitRequest describes one requested operation invocation.
type SubmitRequest struct {
	Tool           string
	Params         map[string]any
	RequestedBy    string
	ConversationID string
	// RequestID is the model's tool-call id, carried so a resumed
	// execution can be folded back into the transcript.
	RequestID   string
	Dangerous   bool
	Mode        policy.Mode
	AutoApprove bool
}

// Submit records the request and either gates it behind approval or runs it
// to a terminal status immediately.
func (l *Ledger) Submit(ctx context.Context, req SubmitRequest) (*Outcome, error) {
	rec := &Record{
		ID:             newExecutionID(),
		Tool:           req.Tool,
		Params:         req.Params,
		RequestedBy:    req.RequestedBy,
		ConversationID: req.ConversationID,
		RequestID:      req.RequestID,
		Dangerous:      req.Dangerous,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal execution %s: %w", rec.ID, err)
	}
	if err := l.store.Set(ctx, executionKey(rec.ID), raw, l.recordTTL); err != nil {
		return nil, fmt.Errorf("persist execution %s: %w", rec.ID, err)
	}

	decision := policy.Decide(req.Dangerous, req.AutoApprove, req.Mode)
	if decision.RequiresApproval {
		slog.Info("Execution gated pending approval",
			"execution_id", rec.ID, "tool", rec.Tool, "requester", rec.RequestedBy, "reason", decision.Reason)
		l.notifyPending(ctx, rec)
		return &Outcome{
			Status:           StatusPending,
			ApprovalRequired: true,
			ExecutionID:      rec.ID,
			Tool:             rec.Tool,
			Params:           rec.Params,
			Dangerous:        rec.Dangerous,
			Message:          fmt.Sprintf("This operation requires approval: %s", rec.Tool),
		}, nil
	}

	raw, err = l.persistTransition(ctx, rec, raw, StatusExecuting, func(r *Record) {
		now := time.Now().UTC()
		r.ExecutedAt = &now
	})
	if err != nil {
		return nil, err
	}
	return l.executeAndValidate(ctx, rec, raw), nil
}

// Resolve applies a human decision to a pending execution. The pending
// check and the first status write are a single compare-and-swap, so two
// concurrent resolutions of one id cannot both proceed.
func (l *Ledger) Resolve(ctx context.Context, executionID, approverID string, approved bool) (*Outcome, error) {
	raw, err := l.store.Get(ctx, executionKey(executionID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load execution %s: %w", executionID, err)
	}
	rec := &Record{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("decode execution %s: %w", executionID, err)
	}
	if rec.Status != StatusPending {
		return nil, fmt.Errorf("%w: execution %s is %s", ErrInvalidState, executionID, rec.Status)
	}

	if !approved {
		if _, err := l.persistTransition(ctx, rec, raw, StatusRejected, func(r *Record) {
			r.ApprovedBy = approverID
		}); err != nil {
			return nil, err
		}
		slog.Info("Execution rejected", "execution_id", rec.ID, "tool", rec.Tool, "approver", approverID)
		l.appendAudit(ctx, rec)
		return &Outcome{
			Status:      StatusRejected,
			ExecutionID: rec.ID,
			Tool:        rec.Tool,
			Dangerous:   rec.Dangerous,
			Message:     "Execution rejected by " + approverID,
		}, nil
	}

	raw, err = l.persistTransition(ctx, rec, raw, StatusApproved, func(r *Record) {
		r.ApprovedBy = approverID
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Execution approved", "execution_id", rec.ID, "tool", rec.Tool, "approver", approverID)

	raw, err = l.persistTransition(ctx, rec, raw, StatusExecuting, func(r *Record) {
		now := time.Now().UTC()
		r.ExecutedAt = &now
	})
	if err != nil {
		return nil, err
	}
	return l.executeAndValidate(ctx, rec, raw), nil
}

// executeAndValidate runs a record already persisted as executing through
// the router and the validator, and lands it on a terminal status. Executor
// errors and panics become a failed record; they never propagate, so no
// record is left stuck executing.
func (l *Ledger) executeAndValidate(ctx context.Context, rec *Record, raw []byte) *Outcome {
	result, execErr := l.invoke(ctx, rec)

	if execErr != nil {
		if _, err := l.persistTransition(ctx, rec, raw, StatusFailed, func(r *Record) {
			r.Error = execErr.Error()
		}); err != nil {
			slog.Error("Failed to persist failed execution", "execution_id", rec.ID, "error", err)
		}
		slog.Warn("Execution failed", "execution_id", rec.ID, "tool", rec.Tool, "error", execErr)
		l.appendAudit(ctx, rec)
		return &Outcome{
			Status:      StatusFailed,
			ExecutionID: rec.ID,
			Tool:        rec.Tool,
			Dangerous:   rec.Dangerous,
			Error:       execErr.Error(),
		}
	}

	validation := validate.Validate(rec.Tool, result)
	if _, err := l.persistTransition(ctx, rec, raw, StatusSuccess, func(r *Record) {
		r.Result = result
		if !validation.Valid {
			r.ValidationWarning = validation.Message
		}
	}); err != nil {
		slog.Error("Failed to persist completed execution", "execution_id", rec.ID, "error", err)
	}
	if !validation.Valid {
		slog.Warn("Validation warning", "execution_id", rec.ID, "tool", rec.Tool, "message", validation.Message)
	}
	slog.Info("Execution completed", "execution_id", rec.ID, "tool", rec.Tool)
	l.appendAudit(ctx, rec)
	return &Outcome{
		Status:            StatusSuccess,
		ExecutionID:       rec.ID,
		Tool:              rec.Tool,
		Dangerous:         rec.Dangerous,
		Result:            result,
		ValidationWarning: rec.ValidationWarning,
	}
}

// invoke delegates to the router under the configured timeout, converting
// panics into errors.
func (l *Ledger) invoke(ctx context.Context, rec *Record) (result string, err error) {
	runCtx, cancel := context.WithTimeout(ctx, l.execTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	result, err = l.router.Route(runCtx, rec.Tool, rec.Params)
	if err == nil && runCtx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("execution timed out after %s", l.execTimeout)
	}
	return result, err
}

// persistTransition moves rec to next and writes it with a compare-and-swap
// against the previously read bytes. A lost swap means somebody else moved
// the record first and surfaces as ErrInvalidState.
func (l *Ledger) persistTransition(ctx context.Context, rec *Record, oldRaw []byte, next Status, mutate func(*Record)) ([]byte, error) {
	if !canTransition(rec.Status, next) {
		return nil, fmt.Errorf("%w: execution %s cannot move %s -> %s", ErrInvalidState, rec.ID, rec.Status, next)
	}
	prev := rec.Status
	rec.Status = next
	if mutate != nil {
		mutate(rec)
	}
	newRaw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal execution %s: %w", rec.ID, err)
	}
	swapped, err := l.store.CompareAndSwap(ctx, executionKey(rec.ID), oldRaw, newRaw, l.recordTTL)
	if err != nil {
		return nil, fmt.Errorf("persist execution %s: %w", rec.ID, err)
	}
	if !swapped {
		return nil, fmt.Errorf("%w: execution %s was concurrently moved out of %s", ErrInvalidState, rec.ID, prev)
	}
	return newRaw, nil
}

func (l *Ledger) notifyPending(ctx context.Context, rec *Record) {
	if l.notifier == nil {
		return
	}
	hint := ""
	if l.resolveHint != nil {
		hint = l.resolveHint(rec.ID)
	}
	err := l.notifier.NotifyPending(ctx, notify.PendingNotice{
		ExecutionID: rec.ID,
		Tool:        rec.Tool,
		Requester:   rec.RequestedBy,
		Dangerous:   rec.Dangerous,
		ResolveHint: hint,
	})
	if err != nil {
		slog.Warn("Approval notification failed", "execution_id", rec.ID, "error", err)
	}
}

// GetRecord loads one execution record by id.
func (l *Ledger) GetRecord(ctx context.Context, executionID string) (*Record, error) {
	raw, err := l.store.Get(ctx, executionKey(executionID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load execution %s: %w", executionID, err)
	}
	rec := &Record{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("decode execution %s: %w", executionID, err)
	}
	return rec, nil
}

// PendingApprovals lists pending executions, filtered by requester when one
// is given.
func (l *Ledger) PendingApprovals(ctx context.Context, requester string) ([]Record, error) {
	keys, err := l.store.ScanKeysByPrefix(ctx, "execution:")
	if err != nil {
		return nil, fmt.Errorf("scan executions: %w", err)
	}
	var pending []Record
	for _, key := range keys {
		raw, err := l.store.Get(ctx, key)
		if err != nil {
			continue // expired between scan and read
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			slog.Warn("Skipping unreadable execution record", "key", key, "error", err)
			continue
		}
		if rec.Status != StatusPending {
			continue
		}
		if requester != "" && rec.RequestedBy != requester {
			continue
		}
		pending = append(pending, rec)
	}
	return pending, nil
}
