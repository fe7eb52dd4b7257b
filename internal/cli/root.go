// Package cli is the operator surface of opsgate.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/opsgate/opsgate/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"   ___              ____       _\n" +
		"  / _ \\ _ __  ___  / ___| __ _| |_ ___\n" +
		" | | | | '_ \\/ __|| |  _ / _` | __/ _ \\\n" +
		" | |_| | |_) \\__ \\| |_| | (_| | ||  __/\n" +
		"  \\___/| .__/|___/ \\____|\\__,_|\\__\\___|\n" +
		"       |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "opsgate",
	Short: "OpsGate - DevOps agent with human-in-the-loop execution",
	Long:  color.CyanString(logo) + "\nA tool-calling ops agent whose dangerous operations wait for a human.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ OpsGate Version")
		fmt.Printf("Version: %s\n", version)
	},
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(approvalsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(statusCmd)
}
