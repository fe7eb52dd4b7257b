package executor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/opsgate/opsgate/internal/catalog"
)

// denyPatterns blocks run_command invocations that could take the host
// down no matter what was approved.
var denyPatterns = []string{
	`\brm\s+(-[rf]+\s+)*[/~]`,
	`\brm\s+-rf\b`,
	`\brm\s+\*`,
	`\bfind\b.*\b-delete\b`,
	`\bdd\b.*\bof=/dev/`,
	`\bmkfs\b`,
	`\bfdisk\b`,
	`>\s*/dev/`,
	`\bchmod\s+-R\s+777\b`,
	`\b:(){ :|:& };:\b`,
	`\bshutdown\b`,
	`\breboot\b`,
	`\bhalt\b`,
	`\binit\s+[0-6]\b`,
}

// installScripts are the only packages install_cli_tool will touch.
var installScripts = map[string]string{
	"kubectl":  `curl -LO "https://dl.k8s.io/release/$(curl -L -s https://dl.k8s.io/release/stable.txt)/bin/linux/amd64/kubectl" && sudo install -m 0755 kubectl /usr/local/bin/kubectl && rm kubectl`,
	"minikube": `curl -LO https://storage.googleapis.com/minikube/releases/latest/minikube-linux-amd64 && sudo install minikube-linux-amd64 /usr/local/bin/minikube && rm minikube-linux-amd64`,
	"helm":     `curl -fsSL https://raw.githubusercontent.com/helm/helm/main/scripts/get-helm-3 | bash`,
}

// SystemOptions configures the system capability group.
type SystemOptions struct {
	RepoPath      string
	PrometheusURL string
	AllowInstall  bool
}

// System covers docker, git, prometheus, and shell operations.
type System struct {
	repoPath     string
	promURL      string
	allowInstall bool
	deny         []*regexp.Regexp
	run          Runner
	lookPath     func(string) (string, error)
	httpClient   *http.Client
}

func NewSystem(opts SystemOptions) *System {
	deny := make([]*regexp.Regexp, 0, len(denyPatterns))
	for _, p := range denyPatterns {
		if re, err := regexp.Compile(p); err == nil {
			deny = append(deny, re)
		}
	}
	return &System{
		repoPath:     opts.RepoPath,
		promURL:      strings.TrimRight(opts.PrometheusURL, "/"),
		allowInstall: opts.AllowInstall,
		deny:         deny,
		run:          runCommand,
		lookPath:     exec.LookPath,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *System) Invoke(ctx context.Context, op string, params map[string]any) (string, error) {
	switch op {
	case "docker_ps":
		args := []string{"ps"}
		if catalog.GetBool(params, "all", false) {
			args = append(args, "-a")
		}
		return s.run(ctx, "docker", args...)

	case "docker_logs":
		id := catalog.GetString(params, "container_id", "")
		if id == "" {
			return "", fmt.Errorf("container_id is required")
		}
		tail := strconv.Itoa(catalog.GetInt(params, "tail", 100))
		return s.run(ctx, "docker", "logs", "--tail", tail, id)

	case "docker_inspect":
		id := catalog.GetString(params, "container_id", "")
		if id == "" {
			return "", fmt.Errorf("container_id is required")
		}
		return s.run(ctx, "docker", "inspect", id)

	case "git_status":
		return s.run(ctx, "git", "-C", s.repo(params), "status")

	case "git_log":
		n := strconv.Itoa(catalog.GetInt(params, "max_count", 10))
		return s.run(ctx, "git", "-C", s.repo(params), "log", "--oneline", "-n", n)

	case "git_diff":
		args := []string{"-C", s.repo(params), "diff"}
		if catalog.GetBool(params, "cached", false) {
			args = append(args, "--cached")
		}
		return s.run(ctx, "git", args...)

	case "prometheus_query":
		return s.prometheusQuery(ctx, catalog.GetString(params, "query", ""))

	case "run_command":
		return s.runShell(ctx, catalog.GetString(params, "command", ""))

	case "check_tool_installed":
		name := catalog.GetString(params, "tool_name", "")
		if name == "" {
			return "", fmt.Errorf("tool_name is required")
		}
		path, err := s.lookPath(name)
		if err != nil {
			return fmt.Sprintf("%s is not installed", name), nil
		}
		return fmt.Sprintf("%s is installed at %s", name, path), nil

	case "install_cli_tool":
		return s.installTool(ctx, catalog.GetString(params, "tool_name", ""))
	}
	return "", unsupported("system", op)
}

func (s *System) repo(params map[string]any) string {
	if p := catalog.GetString(params, "repo_path", ""); p != "" {
		return p
	}
	if s.repoPath != "" {
		return s.repoPath
	}
	return "."
}

func (s *System) prometheusQuery(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "", fmt.Errorf("query is required")
	}
	if s.promURL == "" {
		return "", fmt.Errorf("prometheus base URL is not configured")
	}
	endpoint := s.promURL + "/api/v1/query?query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build prometheus request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("prometheus query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read prometheus response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("prometheus returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

func (s *System) runShell(ctx context.Context, command string) (string, error) {
	if command == "" {
		return "", fmt.Errorf("command is required")
	}
	for _, re := range s.deny {
		if re.MatchString(command) {
			return "", fmt.Errorf("command rejected by safety policy: matches %q", re.String())
		}
	}
	return s.run(ctx, "sh", "-c", command)
}

func (s *System) installTool(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("tool_name is required")
	}
	script, ok := installScripts[name]
	if !ok {
		return "", fmt.Errorf("installation of %q is not supported (kubectl, minikube, helm)", name)
	}
	if !s.allowInstall {
		return "", fmt.Errorf("tool installation is disabled; enable tools.allow_install to use it")
	}
	if path, err := s.lookPath(name); err == nil {
		return fmt.Sprintf("%s already installed at %s", name, path), nil
	}
	out, err := s.run(ctx, "sh", "-c", script)
	if err != nil {
		return "", fmt.Errorf("install %s: %w", name, err)
	}
	return fmt.Sprintf("%s installed successfully\n%s", name, out), nil
}
