package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show today's execution history",
	Run:   runAudit,
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "Maximum entries to show")
}

func runAudit(cmd *cobra.Command, args []string) {
	printHeader("📜 Audit History")

	eng, err := buildEngine()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	entries, err := eng.ledger.AuditHistory(context.Background(), currentUser(), auditLimit)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("No executions today.")
		return
	}
	for _, e := range entries {
		danger := " "
		if e.Dangerous {
			danger = color.RedString("!")
		}
		fmt.Printf("%s %s  %-10s %-28s %s\n",
			danger,
			e.Timestamp.Format("15:04:05"),
			e.Status,
			e.Tool,
			e.ExecutionID)
	}
}
