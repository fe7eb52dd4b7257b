package cli

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/opsgate/opsgate/internal/agent"
	"github.com/opsgate/opsgate/internal/ledger"
	"github.com/opsgate/opsgate/internal/policy"
)

var (
	chatMessage      string
	chatConversation string
	chatMode         string
	chatAutoApprove  bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run one agent turn",
	Run:   runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Message to send to the agent")
	chatCmd.Flags().StringVarP(&chatConversation, "conversation", "c", "", "Conversation ID to continue (new one if omitted)")
	chatCmd.Flags().StringVar(&chatMode, "mode", "", "Approval mode: strict, normal, or auto")
	chatCmd.Flags().BoolVar(&chatAutoApprove, "auto-approve", false, "Skip approval for this turn's dangerous operations")
}

func runChat(cmd *cobra.Command, args []string) {
	if chatMessage == "" {
		fmt.Println("Error: --message is required")
		os.Exit(1)
	}
	printHeader("💬 OpsGate Chat")

	eng, err := buildEngine()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	mode, err := policy.ParseMode(pickMode(chatMode, eng.cfg.Agent.DefaultMode))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	conversationID := chatConversation
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	ctx := context.Background()

	transcript, err := eng.sessions.History(ctx, conversationID)
	if err != nil {
		fmt.Printf("Error loading conversation: %v\n", err)
		os.Exit(1)
	}

	res, err := eng.loop.Run(ctx, agent.TurnRequest{
		UserMessage:    chatMessage,
		Transcript:     transcript,
		Requester:      currentUser(),
		ConversationID: conversationID,
		AutoApprove:    chatAutoApprove,
		Mode:           mode,
	})
	if err != nil {
		fmt.Printf("Agent error: %v\n", err)
		os.Exit(1)
	}

	if err := eng.sessions.Replace(ctx, conversationID, res.Transcript); err != nil {
		fmt.Printf("Warning: conversation not saved: %v\n", err)
	}

	printTurnResult(res)
	fmt.Printf("\nConversation: %s\n", conversationID)
}

func printTurnResult(res *agent.TurnResult) {
	fmt.Println(res.Response)

	if len(res.Executions) > 0 {
		fmt.Println()
		for _, exec := range res.Executions {
			fmt.Printf("  %s %s (%s)\n", statusMark(exec.Status), exec.Tool, exec.ExecutionID)
			if exec.Error != "" {
				fmt.Printf("      %s\n", exec.Error)
			}
			if exec.ValidationWarning != "" {
				fmt.Printf("      warning: %s\n", exec.ValidationWarning)
			}
		}
	}

	if res.Pending != nil {
		fmt.Println()
		fmt.Println(color.YellowString("⏳ Approval required"))
		fmt.Printf("  Tool:      %s\n", res.Pending.Tool)
		fmt.Printf("  Execution: %s\n", res.Pending.ExecutionID)
		fmt.Printf("  Approve:   opsgate approvals resolve %s --approve\n", res.Pending.ExecutionID)
		fmt.Printf("  Reject:    opsgate approvals resolve %s --reject\n", res.Pending.ExecutionID)
	}
}

func statusMark(s ledger.Status) string {
	switch s {
	case ledger.StatusSuccess:
		return color.GreenString("✓")
	case ledger.StatusFailed:
		return color.RedString("✗")
	case ledger.StatusPending:
		return color.YellowString("⏳")
	case ledger.StatusRejected:
		return color.RedString("⊘")
	default:
		return "•"
	}
}

func pickMode(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "operator"
}
