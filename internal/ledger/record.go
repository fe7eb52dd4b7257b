package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Status is an execution record's position in its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusExecuting Status = "executing"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
)

// transitions is the explicit map of allowed status moves. Every write goes
// through it; a record can never re-enter pending and never executes twice.
var transitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusApproved:  {},
		StatusRejected:  {},
		StatusExecuting: {}, // submissions that need no approval skip the approved hop
	},
	StatusApproved: {
		StatusExecuting: {},
	},
	StatusExecuting: {
		StatusSuccess: {},
		StatusFailed:  {},
	},
}

// canTransition reports whether from → to is a legal move.
func canTransition(from, to Status) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Record is the durable state of one requested operation invocation. It is
// owned exclusively by the ledger and persisted keyed by ID.
type Record struct {
	ID                string         `json:"id"`
	Tool              string         `json:"tool_name"`
	Params            map[string]any `json:"parameters"`
	RequestedBy       string         `json:"requested_by"`
	ConversationID    string         `json:"conversation_id"`
	RequestID         string         `json:"request_id,omitempty"`
	Dangerous         bool           `json:"dangerous"`
	Status            Status         `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
	ApprovedBy        string         `json:"approved_by,omitempty"`
	ExecutedAt        *time.Time     `json:"executed_at,omitempty"`
	Result            string         `json:"result,omitempty"`
	Error             string         `json:"error,omitempty"`
	ValidationWarning string         `json:"validation_warning,omitempty"`
}

// Outcome is what a submission or resolution returns to the caller.
type Outcome struct {
	Status            Status         `json:"status"`
	ApprovalRequired  bool           `json:"approval_required"`
	ExecutionID       string         `json:"execution_id"`
	Tool              string         `json:"tool_name"`
	Params            map[string]any `json:"parameters,omitempty"`
	Dangerous         bool           `json:"dangerous"`
	Result            string         `json:"result,omitempty"`
	Error             string         `json:"error,omitempty"`
	ValidationWarning string         `json:"validation_warning,omitempty"`
	Message           string         `json:"message,omitempty"`
}

// newExecutionID returns a time-derived id with a random suffix, unique even
// for submissions landing in the same millisecond.
func newExecutionID() string {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("exec_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("exec_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(b[:]))
}

func executionKey(id string) string {
	return "execution:" + id
}
