package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/opsgate/opsgate/internal/agent"
	"github.com/opsgate/opsgate/internal/ledger"
)

var (
	approvalsMine    bool
	approvalsQR      bool
	approvalsApprove bool
	approvalsReject  bool
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Manage executions waiting for approval",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending executions",
	Run:   runApprovalsList,
}

var approvalsShowCmd = &cobra.Command{
	Use:   "show <execution-id>",
	Short: "Show one execution record",
	Args:  cobra.ExactArgs(1),
	Run:   runApprovalsShow,
}

var approvalsResolveCmd = &cobra.Command{
	Use:   "resolve <execution-id>",
	Short: "Approve or reject a pending execution",
	Args:  cobra.ExactArgs(1),
	Run:   runApprovalsResolve,
}

func init() {
	approvalsListCmd.Flags().BoolVar(&approvalsMine, "requester-me", false, "Only my own requests")
	approvalsShowCmd.Flags().BoolVar(&approvalsQR, "qr", false, "Print an approval QR code")
	approvalsResolveCmd.Flags().BoolVar(&approvalsApprove, "approve", false, "Approve and execute")
	approvalsResolveCmd.Flags().BoolVar(&approvalsReject, "reject", false, "Reject without executing")
	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsShowCmd)
	approvalsCmd.AddCommand(approvalsResolveCmd)
}

func runApprovalsList(cmd *cobra.Command, args []string) {
	printHeader("⏳ Pending Approvals")

	eng, err := buildEngine()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	requester := ""
	if approvalsMine {
		requester = currentUser()
	}
	pending, err := eng.ledger.PendingApprovals(context.Background(), requester)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(pending) == 0 {
		fmt.Println("Nothing pending.")
		return
	}
	for _, rec := range pending {
		danger := ""
		if rec.Dangerous {
			danger = color.RedString(" [dangerous]")
		}
		fmt.Printf("%s  %s%s\n", rec.ID, rec.Tool, danger)
		fmt.Printf("    requested by %s at %s\n", rec.RequestedBy, rec.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func runApprovalsShow(cmd *cobra.Command, args []string) {
	printHeader("🔎 Execution Record")

	eng, err := buildEngine()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	rec, err := eng.ledger.GetRecord(context.Background(), args[0])
	if errors.Is(err, ledger.ErrExecutionNotFound) {
		fmt.Printf("No such execution: %s\n", args[0])
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ID:         %s\n", rec.ID)
	fmt.Printf("Tool:       %s\n", rec.Tool)
	fmt.Printf("Status:     %s\n", rec.Status)
	fmt.Printf("Dangerous:  %v\n", rec.Dangerous)
	fmt.Printf("Requested:  %s by %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.RequestedBy)
	if rec.ApprovedBy != "" {
		fmt.Printf("Resolved:   by %s\n", rec.ApprovedBy)
	}
	if len(rec.Params) > 0 {
		params, _ := json.MarshalIndent(rec.Params, "            ", "  ")
		fmt.Printf("Params:     %s\n", params)
	}
	if rec.Result != "" {
		fmt.Printf("Result:\n%s\n", rec.Result)
	}
	if rec.Error != "" {
		fmt.Printf("Error:      %s\n", rec.Error)
	}
	if rec.ValidationWarning != "" {
		fmt.Printf("Warning:    %s\n", rec.ValidationWarning)
	}

	if approvalsQR && rec.Status == ledger.StatusPending {
		target := resolveHint(eng.cfg)(rec.ID)
		qr, err := qrcode.New(target, qrcode.Medium)
		if err != nil {
			fmt.Printf("QR error: %v\n", err)
			return
		}
		fmt.Println()
		fmt.Println(qr.ToSmallString(false))
		fmt.Println(target)
	}
}

func runApprovalsResolve(cmd *cobra.Command, args []string) {
	if approvalsApprove == approvalsReject {
		fmt.Println("Error: exactly one of --approve or --reject is required")
		os.Exit(1)
	}
	printHeader("⚖️ Resolve Execution")

	eng, err := buildEngine()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	ctx := context.Background()
	executionID := args[0]

	rec, err := eng.ledger.GetRecord(ctx, executionID)
	if errors.Is(err, ledger.ErrExecutionNotFound) {
		fmt.Printf("No such execution: %s\n", executionID)
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// With the originating conversation at hand, resume the agent turn so
	// the model can react to the outcome. Otherwise just resolve.
	history, _ := eng.sessions.History(ctx, rec.ConversationID)
	if len(history) > 0 {
		res, err := eng.loop.ResumeAfterApproval(ctx, agent.ResumeRequest{
			ExecutionID:    executionID,
			Approved:       approvalsApprove,
			Approver:       currentUser(),
			ConversationID: rec.ConversationID,
			Transcript:     history,
		})
		if err != nil {
			printResolveError(err)
			os.Exit(1)
		}
		if err := eng.sessions.Replace(ctx, rec.ConversationID, res.Transcript); err != nil {
			fmt.Printf("Warning: conversation not saved: %v\n", err)
		}
		printTurnResult(res)
		return
	}

	out, err := eng.ledger.Resolve(ctx, executionID, currentUser(), approvalsApprove)
	if err != nil {
		printResolveError(err)
		os.Exit(1)
	}
	switch out.Status {
	case ledger.StatusRejected:
		fmt.Printf("Rejected %s (%s)\n", out.Tool, out.ExecutionID)
	case ledger.StatusFailed:
		fmt.Printf("%s Execution failed: %s\n", color.RedString("✗"), out.Error)
	default:
		fmt.Printf("%s %s executed\n", color.GreenString("✓"), out.Tool)
		if out.Result != "" {
			fmt.Println(out.Result)
		}
		if out.ValidationWarning != "" {
			fmt.Printf("warning: %s\n", out.ValidationWarning)
		}
	}
}

func printResolveError(err error) {
	if errors.Is(err, ledger.ErrInvalidState) {
		fmt.Printf("Execution is no longer pending: %v\n", err)
		return
	}
	fmt.Printf("Error: %v\n", err)
}
