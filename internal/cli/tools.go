package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opsgate/opsgate/internal/catalog"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the operations the agent can execute",
	Run:   runTools,
}

func runTools(cmd *cobra.Command, args []string) {
	printHeader("🧰 Tool Catalog")

	cat := catalog.Default()
	group := ""
	for _, t := range cat.List() {
		if t.Group != group {
			group = t.Group
			fmt.Printf("\n%s\n", color.CyanString(group))
		}
		marker := "  "
		if t.Dangerous {
			marker = color.RedString("! ")
		}
		fmt.Printf("  %s%-28s %s\n", marker, t.Name, t.Description)
	}
	fmt.Println("\n" + color.RedString("!") + " requires human approval (unless auto-approved)")
}
