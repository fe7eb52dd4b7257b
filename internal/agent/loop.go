// Package agent drives the tool-calling loop: repeated model calls
// interleaved with operation execution until a final answer, an approval
// gate, or the iteration budget.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opsgate/opsgate/internal/catalog"
	"github.com/opsgate/opsgate/internal/ledger"
	"github.com/opsgate/opsgate/internal/policy"
	"github.com/opsgate/opsgate/internal/provider"
)

const defaultMaxIterations = 5

// Turn statuses reported to callers.
const (
	StatusCompleted        = "completed"
	StatusApprovalRequired = "approval_required"
	StatusMaxIterations    = "max_iterations"
)

// Options tunes a Loop. Zero values fall back to sensible defaults.
type Options struct {
	SystemPrompt  string
	Model         string
	MaxTokens     int
	Temperature   float64
	MaxIterations int
}

// Loop runs agent turns. It holds no per-conversation state; everything the
// model needs travels in the transcript.
type Loop struct {
	provider      provider.LLMProvider
	catalog       *catalog.Catalog
	ledger        *ledger.Ledger
	systemPrompt  string
	model         string
	maxTokens     int
	temperature   float64
	maxIterations int
}

func New(p provider.LLMProvider, cat *catalog.Catalog, led *ledger.Ledger, opts Options) *Loop {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.Model == "" {
		opts.Model = p.DefaultModel()
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	return &Loop{
		provider:      p,
		catalog:       cat,
		ledger:        led,
		systemPrompt:  opts.SystemPrompt,
		model:         opts.Model,
		maxTokens:     opts.MaxTokens,
		temperature:   opts.Temperature,
		maxIterations: opts.MaxIterations,
	}
}

// TurnRequest is one user message plus the conversation so far.
type TurnRequest struct {
	UserMessage    string
	Transcript     []provider.Message
	Requester      string
	ConversationID string
	AutoApprove    bool
	Mode           policy.Mode
}

// TurnResult is what one agent turn produced. Transcript carries the full
// message history including this turn, ready to persist and resume from.
type TurnResult struct {
	Status         string
	Response       string
	ConversationID string
	Transcript     []provider.Message
	Executions     []ledger.Outcome
	Pending        *ledger.Outcome
	Iterations     int
	Usage          provider.Usage
}

// Run executes one agent turn. Operations requested by the model run
// sequentially in model order; the first gated operation ends the turn.
func (l *Loop) Run(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	msgs := withSystemPrompt(l.systemPrompt, req.Transcript)
	msgs = append(msgs, provider.Message{Role: "user", Content: req.UserMessage})
	defs := l.catalog.Definitions()

	var executions []ledger.Outcome
	var usage provider.Usage

	for i := 0; i < l.maxIterations; i++ {
		resp, err := l.provider.Chat(ctx, &provider.ChatRequest{
			Messages:    msgs,
			Tools:       defs,
			Model:       l.model,
			MaxTokens:   l.maxTokens,
			Temperature: l.temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("model call: %w", err)
		}
		usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			msgs = append(msgs, provider.Message{Role: "assistant", Content: resp.Content})
			return &TurnResult{
				Status:         StatusCompleted,
				Response:       resp.Content,
				ConversationID: req.ConversationID,
				Transcript:     msgs,
				Executions:     executions,
				Iterations:     i + 1,
				Usage:          usage,
			}, nil
		}

		msgs = append(msgs, provider.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for idx, call := range resp.ToolCalls {
			slog.Info("Model requested operation", "tool", call.Name, "conversation", req.ConversationID)

			dangerous, err := l.catalog.IsDangerous(call.Name)
			if err != nil {
				msgs = append(msgs, toolMessage(call.ID, fmt.Sprintf("Error: %v", err)))
				continue
			}
			out, err := l.ledger.Submit(ctx, ledger.SubmitRequest{
				Tool:           call.Name,
				Params:         call.Arguments,
				RequestedBy:    req.Requester,
				ConversationID: req.ConversationID,
				RequestID:      call.ID,
				Dangerous:      dangerous,
				Mode:           req.Mode,
				AutoApprove:    req.AutoApprove,
			})
			if err != nil {
				slog.Warn("Submission failed", "tool", call.Name, "error", err)
				msgs = append(msgs, toolMessage(call.ID, fmt.Sprintf("Error: %v", err)))
				continue
			}
			executions = append(executions, *out)

			if out.ApprovalRequired {
				msgs = append(msgs, toolMessage(call.ID,
					fmt.Sprintf("Pending human approval (execution %s)", out.ExecutionID)))
				for _, rest := range resp.ToolCalls[idx+1:] {
					msgs = append(msgs, toolMessage(rest.ID,
						fmt.Sprintf("Not executed: awaiting approval of execution %s", out.ExecutionID)))
				}
				return &TurnResult{
					Status:         StatusApprovalRequired,
					Response:       fmt.Sprintf("I'd like to execute %s, which requires your approval.", out.Tool),
					ConversationID: req.ConversationID,
					Transcript:     msgs,
					Executions:     executions,
					Pending:        out,
					Iterations:     i + 1,
					Usage:          usage,
				}, nil
			}

			msgs = append(msgs, toolMessage(call.ID, toolResultContent(out)))
		}
	}

	return &TurnResult{
		Status:         StatusMaxIterations,
		Response:       "I've reached the maximum number of tool executions for this request. Please break the task into smaller steps.",
		ConversationID: req.ConversationID,
		Transcript:     msgs,
		Executions:     executions,
		Iterations:     l.maxIterations,
		Usage:          usage,
	}, nil
}

// ResumeRequest carries a human decision back into a gated conversation.
type ResumeRequest struct {
	ExecutionID    string
	Approved       bool
	Approver       string
	ConversationID string
	Transcript     []provider.Message
}

// ResumeAfterApproval applies the decision to the pending execution.
// Rejection answers without a model call. Approval runs the operation, then
// asks the model once to summarize the result for the user.
func (l *Loop) ResumeAfterApproval(ctx context.Context, req ResumeRequest) (*TurnResult, error) {
	out, err := l.ledger.Resolve(ctx, req.ExecutionID, req.Approver, req.Approved)
	if err != nil {
		return nil, err
	}

	if !req.Approved {
		return &TurnResult{
			Status:         StatusCompleted,
			Response:       "Operation cancelled. How else can I help you?",
			ConversationID: req.ConversationID,
			Transcript:     req.Transcript,
			Executions:     []ledger.Outcome{*out},
		}, nil
	}

	var report string
	if out.Status == ledger.StatusFailed {
		report = fmt.Sprintf("The approved operation %s failed: %s", out.Tool, out.Error)
	} else {
		report = fmt.Sprintf("The operation %s was approved and executed. Result:\n%s", out.Tool, toolResultContent(out))
	}
	msgs := withSystemPrompt(l.systemPrompt, req.Transcript)
	msgs = append(msgs, provider.Message{Role: "user", Content: report})

	resp, err := l.provider.Chat(ctx, &provider.ChatRequest{
		Messages:  msgs,
		Model:     l.model,
		MaxTokens: l.maxTokens,
	})
	response := ""
	usage := provider.Usage{}
	if err != nil {
		// The execution already ran; losing its result over a summary
		// call would be worse than a canned answer.
		slog.Warn("Summary call failed after approval", "execution_id", req.ExecutionID, "error", err)
		if out.Status == ledger.StatusFailed {
			response = fmt.Sprintf("Operation failed: %s", out.Error)
		} else {
			response = fmt.Sprintf("Operation completed successfully.\n\n%s", out.Result)
		}
	} else {
		response = resp.Content
		usage = resp.Usage
		msgs = append(msgs, provider.Message{Role: "assistant", Content: resp.Content})
	}

	return &TurnResult{
		Status:         StatusCompleted,
		Response:       response,
		ConversationID: req.ConversationID,
		Transcript:     msgs,
		Executions:     []ledger.Outcome{*out},
		Iterations:     1,
		Usage:          usage,
	}, nil
}
