// Package validate provides a heuristic post-execution sanity check over raw
// executor output. Findings are advisory: a failed validation never changes
// the terminal status of an execution, it only annotates the record.
package validate

import (
	"strconv"
	"strings"
)

// errorIndicators are tokens whose presence in a result suggests the
// operation did not do what the model expects, even though the executor
// returned without error.
var errorIndicators = []string{
	"error",
	"failed",
	"exception",
	"denied",
	"forbidden",
	"not found",
}

// Result is the outcome of a validation pass.
type Result struct {
	Valid   bool
	Message string
}

// Validate inspects a raw tool result for error indicators or emptiness.
// Any internal failure degrades to Valid=true rather than failing the
// execution.
func Validate(toolName, raw string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Valid: true, Message: "could not validate result"}
		}
	}()

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{
			Valid:   false,
			Message: "result is empty; the operation may not have produced the expected output",
		}
	}

	lowered := strings.ToLower(trimmed)
	for _, token := range errorIndicators {
		if strings.Contains(lowered, token) {
			return Result{
				Valid:   false,
				Message: "result contains error indicator " + strconv.Quote(token) + "; verify the operation succeeded",
			}
		}
	}

	return Result{Valid: true, Message: "result validation passed"}
}
