package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opsgate/opsgate/internal/catalog"
)

// Security runs read-only posture checks over the cluster.
type Security struct {
	k8s *Kubernetes
}

func NewSecurity(k8s *Kubernetes) *Security {
	return &Security{k8s: k8s}
}

func (s *Security) Invoke(ctx context.Context, op string, params map[string]any) (string, error) {
	if op != "run_security_scan" {
		return "", unsupported("security", op)
	}
	return s.scan(ctx, catalog.GetString(params, "namespace", ""))
}

func (s *Security) scan(ctx context.Context, namespace string) (string, error) {
	raw, err := s.k8s.podsJSON(ctx, namespace)
	if err != nil {
		return "", fmt.Errorf("list pods for scan: %w", err)
	}
	var pods podList
	if err := json.Unmarshal([]byte(raw), &pods); err != nil {
		return "", fmt.Errorf("decode pod list: %w", err)
	}

	var privileged, hostNetwork, noLimits, defaultNS []string
	for _, pod := range pods.Items {
		ref := pod.Metadata.Namespace + "/" + pod.Metadata.Name
		if pod.Spec.HostNetwork {
			hostNetwork = append(hostNetwork, ref)
		}
		if pod.Metadata.Namespace == "default" {
			defaultNS = append(defaultNS, ref)
		}
		for _, c := range pod.Spec.Containers {
			if c.SecurityContext != nil && c.SecurityContext.Privileged != nil && *c.SecurityContext.Privileged {
				privileged = append(privileged, ref+" ("+c.Name+")")
			}
			if len(c.Resources.Limits) == 0 {
				noLimits = append(noLimits, ref+" ("+c.Name+")")
			}
		}
	}

	var b strings.Builder
	scope := namespace
	if scope == "" {
		scope = "all namespaces"
	}
	fmt.Fprintf(&b, "Security scan of %s: %d pods checked\n", scope, len(pods.Items))
	writeFinding(&b, "CRITICAL", "privileged containers", privileged)
	writeFinding(&b, "HIGH", "pods on the host network", hostNetwork)
	writeFinding(&b, "MEDIUM", "containers without resource limits", noLimits)
	writeFinding(&b, "LOW", "workloads in the default namespace", defaultNS)
	if len(privileged)+len(hostNetwork)+len(noLimits)+len(defaultNS) == 0 {
		b.WriteString("No findings.\n")
	}
	return b.String(), nil
}

func writeFinding(b *strings.Builder, severity, what string, refs []string) {
	if len(refs) == 0 {
		return
	}
	fmt.Fprintf(b, "[%s] %d %s:\n", severity, len(refs), what)
	for _, r := range refs {
		fmt.Fprintf(b, "  - %s\n", r)
	}
}
