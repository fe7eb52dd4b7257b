package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/opsgate/opsgate/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run:   runStatus,
}

func runStatus(cmd *cobra.Command, args []string) {
	printHeader("📊 OpsGate Status")
	fmt.Printf("Version: %s\n", version)

	configPath, _ := config.ConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config:   ✓ Found (" + configPath + ")")
	} else {
		fmt.Println("Config:   ✗ Not found (defaults in effect)")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config:   ✗ Unreadable: %v\n", err)
		return
	}
	if cfg.Provider.APIKey != "" {
		fmt.Println("API Key:  ✓ Found")
	} else {
		fmt.Println("API Key:  ✗ Not found (set OPSGATE_API_KEY)")
	}
	fmt.Printf("Model:    %s (%s)\n", cfg.Provider.Model, cfg.Provider.APIBase)

	if _, err := exec.LookPath(cfg.Tools.KubectlPath); err == nil {
		fmt.Printf("kubectl:  ✓ %s\n", cfg.Tools.KubectlPath)
	} else {
		fmt.Printf("kubectl:  ✗ %s not on PATH\n", cfg.Tools.KubectlPath)
	}

	if eng, err := buildEngineFrom(cfg); err != nil {
		fmt.Printf("Store:    ✗ %v\n", err)
	} else {
		pendingNote := ""
		if pending, err := eng.ledger.PendingApprovals(context.Background(), ""); err == nil {
			pendingNote = fmt.Sprintf(" (%d pending approvals)", len(pending))
		}
		fmt.Printf("Store:    ✓ %s%s\n", cfg.Store.Backend, pendingNote)
		eng.Close()
	}

	if cfg.Approvals.NotifySlack {
		fmt.Println("Slack:    ✓ Enabled (" + cfg.Approvals.SlackChannel + ")")
	} else {
		fmt.Println("Slack:    ✗ Disabled")
	}
	if cfg.Audit.KafkaEnabled {
		fmt.Printf("Kafka:    ✓ %v → %s\n", cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic)
	} else {
		fmt.Println("Kafka:    ✗ Disabled")
	}
}
