package cli

import (
	"fmt"
	"strings"

	"github.com/opsgate/opsgate/internal/agent"
	"github.com/opsgate/opsgate/internal/catalog"
	"github.com/opsgate/opsgate/internal/config"
	"github.com/opsgate/opsgate/internal/executor"
	"github.com/opsgate/opsgate/internal/ledger"
	"github.com/opsgate/opsgate/internal/notify"
	"github.com/opsgate/opsgate/internal/provider"
	"github.com/opsgate/opsgate/internal/router"
	"github.com/opsgate/opsgate/internal/session"
	"github.com/opsgate/opsgate/internal/store"
	"github.com/opsgate/opsgate/internal/stream"
)

// engine wires the full stack from configuration. Every command builds one,
// uses it, and closes it.
type engine struct {
	cfg      *config.Config
	store    store.Store
	catalog  *catalog.Catalog
	ledger   *ledger.Ledger
	loop     *agent.Loop
	sessions *session.Store

	publisher stream.Publisher
}

func buildEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return buildEngineFrom(cfg)
}

func buildEngineFrom(cfg *config.Config) (*engine, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	cat := catalog.Default()
	k8s := executor.NewKubernetes(cfg.Tools.KubectlPath)
	rt := router.New(cat)
	rt.Register(catalog.GroupKubernetes, k8s)
	rt.Register(catalog.GroupSystem, executor.NewSystem(executor.SystemOptions{
		RepoPath:      cfg.Tools.GitRepoPath,
		PrometheusURL: cfg.Tools.PrometheusURL,
		AllowInstall:  cfg.Tools.AllowInstall,
	}))
	rt.Register(catalog.GroupSecurity, executor.NewSecurity(k8s))
	rt.Register(catalog.GroupInsights, executor.NewInsights(k8s))
	rt.Register(catalog.GroupPredictive, executor.NewPredictive(k8s))

	opts := ledger.Options{
		ExecTimeout: cfg.Tools.ExecTimeout(),
		AuditTTL:    cfg.Audit.AuditTTL(),
		ResolveHint: resolveHint(cfg),
	}
	if cfg.Approvals.NotifySlack && cfg.Approvals.SlackToken != "" {
		opts.Notifier = notify.NewSlackNotifier(cfg.Approvals.SlackToken, cfg.Approvals.SlackChannel)
	}
	var publisher stream.Publisher
	if cfg.Audit.KafkaEnabled {
		publisher = stream.NewKafkaPublisher(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic)
		opts.Publisher = publisher
	}

	led := ledger.New(st, rt, opts)
	prov := provider.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model)
	loop := agent.New(prov, cat, led, agent.Options{
		SystemPrompt:  cfg.Agent.SystemPrompt,
		Model:         cfg.Provider.Model,
		MaxTokens:     cfg.Provider.MaxTokens,
		Temperature:   cfg.Provider.Temperature,
		MaxIterations: cfg.Agent.MaxIterations,
	})

	return &engine{
		cfg:       cfg,
		store:     st,
		catalog:   cat,
		ledger:    led,
		loop:      loop,
		sessions:  session.New(st),
		publisher: publisher,
	}, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store.Backend == "memory" {
		return store.NewMemory(), nil
	}
	path, err := config.ExpandHome(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	st, err := store.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return st, nil
}

// resolveHint tells approvers how to act on a pending execution.
func resolveHint(cfg *config.Config) func(string) string {
	return func(id string) string {
		if base := cfg.Approvals.ApprovalURLBase; base != "" {
			return strings.TrimRight(base, "/") + "/" + id
		}
		return fmt.Sprintf("opsgate approvals resolve %s --approve", id)
	}
}

func (e *engine) Close() {
	if e.publisher != nil {
		e.publisher.Close()
	}
	if e.store != nil {
		e.store.Close()
	}
}
