// Package config loads and persists the runtime configuration.
// Priority: environment > file > defaults.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Provider  ProviderConfig  `json:"provider"`
	Store     StoreConfig     `json:"store"`
	Tools     ToolsConfig     `json:"tools"`
	Approvals ApprovalsConfig `json:"approvals"`
	Audit     AuditConfig     `json:"audit"`
}

// AgentConfig tunes the tool-calling loop.
type AgentConfig struct {
	SystemPrompt  string `json:"system_prompt,omitempty" envconfig:"SYSTEM_PROMPT"`
	MaxIterations int    `json:"max_iterations" envconfig:"MAX_ITERATIONS"`
	DefaultMode   string `json:"default_mode" envconfig:"DEFAULT_MODE"`
}

// ProviderConfig selects and authenticates the language model.
type ProviderConfig struct {
	APIKey      string  `json:"api_key" envconfig:"API_KEY"`
	APIBase     string  `json:"api_base" envconfig:"API_BASE"`
	Model       string  `json:"model" envconfig:"MODEL"`
	MaxTokens   int     `json:"max_tokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// StoreConfig selects the durable key-value backend.
type StoreConfig struct {
	Backend string `json:"backend" envconfig:"STORE_BACKEND"`
	Path    string `json:"path" envconfig:"STORE_PATH"`
}

// ToolsConfig configures the executors.
type ToolsConfig struct {
	KubectlPath        string `json:"kubectl_path" envconfig:"KUBECTL_PATH"`
	DefaultNamespace   string `json:"default_namespace" envconfig:"DEFAULT_NAMESPACE"`
	ExecTimeoutSeconds int    `json:"exec_timeout_seconds" envconfig:"EXEC_TIMEOUT_SECONDS"`
	PrometheusURL      string `json:"prometheus_url" envconfig:"PROMETHEUS_URL"`
	GitRepoPath        string `json:"git_repo_path" envconfig:"GIT_REPO_PATH"`
	AllowInstall       bool   `json:"allow_install" envconfig:"ALLOW_INSTALL"`
}

// ApprovalsConfig configures the pending-approval notification path.
type ApprovalsConfig struct {
	NotifySlack     bool   `json:"notify_slack" envconfig:"NOTIFY_SLACK"`
	SlackToken      string `json:"slack_token" envconfig:"SLACK_TOKEN"`
	SlackChannel    string `json:"slack_channel" envconfig:"SLACK_CHANNEL"`
	ApprovalURLBase string `json:"approval_url_base" envconfig:"APPROVAL_URL_BASE"`
}

// AuditConfig configures audit retention and the optional Kafka mirror.
type AuditConfig struct {
	KafkaEnabled  bool     `json:"kafka_enabled" envconfig:"KAFKA_ENABLED"`
	KafkaBrokers  []string `json:"kafka_brokers" envconfig:"KAFKA_BROKERS"`
	KafkaTopic    string   `json:"kafka_topic" envconfig:"KAFKA_TOPIC"`
	RetentionDays int      `json:"retention_days" envconfig:"AUDIT_RETENTION_DAYS"`
}

// ExecTimeout returns the executor timeout as a duration.
func (t ToolsConfig) ExecTimeout() time.Duration {
	if t.ExecTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(t.ExecTimeoutSeconds) * time.Second
}

// AuditTTL returns the audit retention as a duration.
func (a AuditConfig) AuditTTL() time.Duration {
	if a.RetentionDays <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(a.RetentionDays) * 24 * time.Hour
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxIterations: 5,
			DefaultMode:   "normal",
		},
		Provider: ProviderConfig{
			APIBase:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    "~/.opsgate/opsgate.db",
		},
		Tools: ToolsConfig{
			KubectlPath:        "kubectl",
			DefaultNamespace:   "default",
			ExecTimeoutSeconds: 60,
			GitRepoPath:        ".",
		},
		Audit: AuditConfig{
			KafkaBrokers:  []string{"localhost:9092"},
			KafkaTopic:    "opsgate.audit",
			RetentionDays: 30,
		},
	}
}
