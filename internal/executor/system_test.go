package executor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestSystem(opts SystemOptions) (*System, *fakeRunner) {
	f := &fakeRunner{outputs: map[string]string{}}
	s := NewSystem(opts)
	s.run = f.run
	return s, f
}

func TestSystemCommandLines(t *testing.T) {
	cases := []struct {
		op     string
		params map[string]any
		want   string
	}{
		{"docker_ps", nil, "docker ps"},
		{"docker_ps", map[string]any{"all": true}, "docker ps -a"},
		{"docker_logs", map[string]any{"container_id": "web", "tail": float64(50)}, "docker logs --tail 50 web"},
		{"docker_inspect", map[string]any{"container_id": "web"}, "docker inspect web"},
		{"git_status", nil, "git -C /srv/repo status"},
		{"git_status", map[string]any{"repo_path": "/tmp/other"}, "git -C /tmp/other status"},
		{"git_log", map[string]any{"max_count": float64(5)}, "git -C /srv/repo log --oneline -n 5"},
		{"git_diff", map[string]any{"cached": true}, "git -C /srv/repo diff --cached"},
	}
	for _, c := range cases {
		t.Run(c.want, func(t *testing.T) {
			s, f := newTestSystem(SystemOptions{RepoPath: "/srv/repo"})
			if _, err := s.Invoke(context.Background(), c.op, c.params); err != nil {
				t.Fatalf("invoke: %v", err)
			}
			if len(f.calls) != 1 || f.calls[0] != c.want {
				t.Fatalf("command = %q, want %q", f.calls, c.want)
			}
		})
	}
}

func TestRunCommandDenyPatterns(t *testing.T) {
	s, f := newTestSystem(SystemOptions{})
	blocked := []string{
		"rm -rf /",
		"dd if=/dev/zero of=/dev/sda",
		"shutdown -h now",
		"find / -name x -delete",
	}
	for _, cmd := range blocked {
		if _, err := s.Invoke(context.Background(), "run_command", map[string]any{"command": cmd}); err == nil {
			t.Errorf("%q should have been rejected", cmd)
		}
	}
	if len(f.calls) != 0 {
		t.Fatalf("blocked commands must never run: %v", f.calls)
	}

	if _, err := s.Invoke(context.Background(), "run_command", map[string]any{"command": "uptime"}); err != nil {
		t.Fatalf("benign command rejected: %v", err)
	}
	if len(f.calls) != 1 || f.calls[0] != "sh -c uptime" {
		t.Fatalf("command = %q", f.calls)
	}
}

func TestPrometheusQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/query" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "up{job=\"api\"}" {
			t.Errorf("query = %q", got)
		}
		w.Write([]byte(`{"status":"success","data":{"result":[]}}`))
	}))
	defer srv.Close()

	s, _ := newTestSystem(SystemOptions{PrometheusURL: srv.URL})
	out, err := s.Invoke(context.Background(), "prometheus_query", map[string]any{"query": `up{job="api"}`})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(out, "success") {
		t.Fatalf("output = %q", out)
	}
}

func TestPrometheusQueryErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer srv.Close()

	s, _ := newTestSystem(SystemOptions{PrometheusURL: srv.URL})
	if _, err := s.Invoke(context.Background(), "prometheus_query", map[string]any{"query": "up"}); err == nil {
		t.Fatal("expected an error on a non-200 response")
	}

	unconfigured, _ := newTestSystem(SystemOptions{})
	if _, err := unconfigured.Invoke(context.Background(), "prometheus_query", map[string]any{"query": "up"}); err == nil {
		t.Fatal("expected an error without a base URL")
	}
}

func TestCheckToolInstalled(t *testing.T) {
	s, _ := newTestSystem(SystemOptions{})
	s.lookPath = func(name string) (string, error) {
		if name == "kubectl" {
			return "/usr/local/bin/kubectl", nil
		}
		return "", errors.New("not found")
	}

	out, err := s.Invoke(context.Background(), "check_tool_installed", map[string]any{"tool_name": "kubectl"})
	if err != nil || !strings.Contains(out, "/usr/local/bin/kubectl") {
		t.Fatalf("out = %q, err = %v", out, err)
	}
	out, err = s.Invoke(context.Background(), "check_tool_installed", map[string]any{"tool_name": "helm"})
	if err != nil || !strings.Contains(out, "not installed") {
		t.Fatalf("out = %q, err = %v", out, err)
	}
}

func TestInstallCliTool(t *testing.T) {
	s, f := newTestSystem(SystemOptions{AllowInstall: true})
	s.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	out, err := s.Invoke(context.Background(), "install_cli_tool", map[string]any{"tool_name": "minikube"})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if !strings.Contains(out, "installed successfully") {
		t.Fatalf("out = %q", out)
	}
	if len(f.calls) != 1 || !strings.Contains(f.calls[0], "minikube-linux-amd64") {
		t.Fatalf("calls = %v", f.calls)
	}

	// Unknown tools and disabled installs are both refused.
	if _, err := s.Invoke(context.Background(), "install_cli_tool", map[string]any{"tool_name": "netcat"}); err == nil {
		t.Fatal("non-whitelisted tool should be refused")
	}
	disabled, df := newTestSystem(SystemOptions{})
	if _, err := disabled.Invoke(context.Background(), "install_cli_tool", map[string]any{"tool_name": "helm"}); err == nil {
		t.Fatal("install should be refused when disabled")
	}
	if len(df.calls) != 0 {
		t.Fatalf("nothing should have run: %v", df.calls)
	}
}
