package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opsgate/opsgate/internal/catalog"
)

// logErrorMarkers flags log lines worth surfacing in an analysis summary.
var logErrorMarkers = []string{"error", "exception", "fatal", "panic", "traceback", "refused", "timeout"}

// Insights analyzes kubectl output and drives the self-healing operations.
// The mutating verbs delegate to the kubernetes executor.
type Insights struct {
	k8s *Kubernetes
}

func NewInsights(k8s *Kubernetes) *Insights {
	return &Insights{k8s: k8s}
}

func (i *Insights) Invoke(ctx context.Context, op string, params map[string]any) (string, error) {
	switch op {
	case "check_pod_health":
		pod, ns, err := podAndNamespace(params)
		if err != nil {
			return "", err
		}
		report, _, err := i.podHealth(ctx, ns, pod)
		return report, err

	case "analyze_error_logs":
		return i.analyzeErrorLogs(ctx, params)

	case "analyze_resource_efficiency":
		return i.analyzeResourceEfficiency(ctx, catalog.GetString(params, "namespace", "default"))

	case "auto_restart_pod":
		return i.autoRestartPod(ctx, params)

	case "auto_scale_if_needed":
		return i.autoScaleIfNeeded(ctx, params)
	}
	return "", unsupported("insights", op)
}

// podHealth reports on a single pod and says whether it needs intervention.
func (i *Insights) podHealth(ctx context.Context, namespace, pod string) (report string, healthy bool, err error) {
	raw, err := i.k8s.resourceJSON(ctx, "pod", pod, namespace)
	if err != nil {
		return "", false, fmt.Errorf("inspect pod %s/%s: %w", namespace, pod, err)
	}
	var info podInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return "", false, fmt.Errorf("decode pod %s/%s: %w", namespace, pod, err)
	}

	var problems []string
	if info.Status.Phase != "Running" && info.Status.Phase != "Succeeded" {
		problems = append(problems, fmt.Sprintf("phase is %s", info.Status.Phase))
	}
	restarts := 0
	for _, cs := range info.Status.ContainerStatuses {
		restarts += cs.RestartCount
		if !cs.Ready && info.Status.Phase == "Running" {
			problems = append(problems, fmt.Sprintf("container %s is not ready", cs.Name))
		}
		if cs.State.Waiting != nil && cs.State.Waiting.Reason != "" {
			problems = append(problems, fmt.Sprintf("container %s waiting: %s", cs.Name, cs.State.Waiting.Reason))
		}
	}
	if restarts > 5 {
		problems = append(problems, fmt.Sprintf("%d restarts across containers", restarts))
	}

	if len(problems) == 0 {
		return fmt.Sprintf("Pod %s/%s is healthy: phase %s, %d restarts", namespace, pod, info.Status.Phase, restarts), true, nil
	}
	return fmt.Sprintf("Pod %s/%s is unhealthy:\n  - %s", namespace, pod, strings.Join(problems, "\n  - ")), false, nil
}

func (i *Insights) analyzeErrorLogs(ctx context.Context, params map[string]any) (string, error) {
	pod, ns, err := podAndNamespace(params)
	if err != nil {
		return "", err
	}
	logs, err := i.k8s.Invoke(ctx, "kubectl_get_pod_logs", map[string]any{
		"namespace": ns, "pod_name": pod, "tail_lines": 200,
	})
	if err != nil {
		return "", err
	}

	var samples []string
	total := 0
	for _, line := range strings.Split(logs, "\n") {
		lower := strings.ToLower(line)
		for _, marker := range logErrorMarkers {
			if strings.Contains(lower, marker) {
				total++
				if len(samples) < 5 {
					samples = append(samples, strings.TrimSpace(line))
				}
				break
			}
		}
	}

	if total == 0 {
		return fmt.Sprintf("No error indicators in the last 200 log lines of %s/%s.", ns, pod), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d suspicious lines in the last 200 log lines of %s/%s. Samples:\n", total, ns, pod)
	for _, s := range samples {
		fmt.Fprintf(&b, "  %s\n", s)
	}
	return b.String(), nil
}

func (i *Insights) analyzeResourceEfficiency(ctx context.Context, namespace string) (string, error) {
	top, err := i.k8s.Invoke(ctx, "kubectl_top_pods", map[string]any{"namespace": namespace})
	if err != nil {
		return "", err
	}
	raw, err := i.k8s.podsJSON(ctx, namespace)
	if err != nil {
		return "", err
	}
	var pods podList
	if err := json.Unmarshal([]byte(raw), &pods); err != nil {
		return "", fmt.Errorf("decode pod list: %w", err)
	}

	var noRequests []string
	for _, pod := range pods.Items {
		for _, c := range pod.Spec.Containers {
			if len(c.Resources.Requests) == 0 {
				noRequests = append(noRequests, pod.Metadata.Name+" ("+c.Name+")")
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current usage in %s:\n%s\n", namespace, strings.TrimRight(top, "\n"))
	if len(noRequests) > 0 {
		fmt.Fprintf(&b, "\n%d containers have no resource requests set (the scheduler is flying blind):\n", len(noRequests))
		for _, r := range noRequests {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	} else {
		b.WriteString("\nAll containers declare resource requests.\n")
	}
	return b.String(), nil
}

func (i *Insights) autoRestartPod(ctx context.Context, params map[string]any) (string, error) {
	pod, ns, err := podAndNamespace(params)
	if err != nil {
		return "", err
	}
	report, healthy, err := i.podHealth(ctx, ns, pod)
	if err != nil {
		return "", err
	}
	if healthy {
		return report + "\nNo restart needed.", nil
	}
	if _, err := i.k8s.deletePod(ctx, ns, pod); err != nil {
		return "", fmt.Errorf("restart pod %s/%s: %w", ns, pod, err)
	}
	return fmt.Sprintf("%s\nDeleted %s/%s; its controller will recreate it.", report, ns, pod), nil
}

func (i *Insights) autoScaleIfNeeded(ctx context.Context, params map[string]any) (string, error) {
	name := catalog.GetString(params, "deployment", "")
	ns := catalog.GetString(params, "namespace", "")
	if name == "" || ns == "" {
		return "", fmt.Errorf("deployment and namespace are required")
	}
	maxReplicas := catalog.GetInt(params, "max_replicas", 10)

	raw, err := i.k8s.resourceJSON(ctx, "deployment", name, ns)
	if err != nil {
		return "", fmt.Errorf("inspect deployment %s/%s: %w", ns, name, err)
	}
	var dep deploymentInfo
	if err := json.Unmarshal([]byte(raw), &dep); err != nil {
		return "", fmt.Errorf("decode deployment %s/%s: %w", ns, name, err)
	}

	if dep.Status.ReadyReplicas >= dep.Spec.Replicas {
		return fmt.Sprintf("Deployment %s/%s is healthy (%d/%d ready); no scaling needed.",
			ns, name, dep.Status.ReadyReplicas, dep.Spec.Replicas), nil
	}
	if dep.Spec.Replicas >= maxReplicas {
		return fmt.Sprintf("Deployment %s/%s has unready pods (%d/%d) but is already at the %d replica cap.",
			ns, name, dep.Status.ReadyReplicas, dep.Spec.Replicas, maxReplicas), nil
	}

	target := dep.Spec.Replicas + 1
	if _, err := i.k8s.scale(ctx, ns, name, target); err != nil {
		return "", fmt.Errorf("scale deployment %s/%s: %w", ns, name, err)
	}
	return fmt.Sprintf("Deployment %s/%s only had %d/%d pods ready; scaled to %d replicas.",
		ns, name, dep.Status.ReadyReplicas, dep.Spec.Replicas, target), nil
}
