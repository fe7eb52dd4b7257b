package agent

import (
	"fmt"

	"github.com/opsgate/opsgate/internal/ledger"
	"github.com/opsgate/opsgate/internal/provider"
)

const defaultSystemPrompt = `You are OpsGate, a senior DevOps engineer agent with execution capabilities.

You can actually execute operations against the infrastructure, not just suggest them. Your tools cover Kubernetes (pods, deployments, logs, events, scaling), Docker, Git, Prometheus queries, security scanning, and health analysis.

Guidelines:
- Prefer read-only diagnostics before mutating anything.
- Dangerous operations (scaling, deleting, restarting, arbitrary commands) are gated behind human approval; when a tool result says an execution is pending approval, tell the user what you wanted to do and wait.
- Report command output faithfully. If a result looks like an error, say so and propose the next diagnostic step.
- Keep answers short and operational.`

// withSystemPrompt returns the transcript with a system message in front,
// unless the caller already supplied one.
func withSystemPrompt(prompt string, transcript []provider.Message) []provider.Message {
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	if len(transcript) > 0 && transcript[0].Role == "system" {
		return append([]provider.Message(nil), transcript...)
	}
	msgs := make([]provider.Message, 0, len(transcript)+1)
	msgs = append(msgs, provider.Message{Role: "system", Content: prompt})
	return append(msgs, transcript...)
}

func toolMessage(callID, content string) provider.Message {
	return provider.Message{Role: "tool", Content: content, ToolCallID: callID}
}

// toolResultContent renders a terminal execution outcome the way the model
// sees it in the transcript.
func toolResultContent(out *ledger.Outcome) string {
	if out.Status == ledger.StatusFailed {
		return "Execution failed: " + out.Error
	}
	if out.ValidationWarning != "" {
		return fmt.Sprintf("%s\n[validation warning: %s]", out.Result, out.ValidationWarning)
	}
	return out.Result
}
