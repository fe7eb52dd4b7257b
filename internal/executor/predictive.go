package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/opsgate/opsgate/internal/catalog"
)

// Predictive runs trend heuristics over current kubectl output to warn
// about failures before they happen. All operations are read-only; the
// reports recommend actions but never take them.
type Predictive struct {
	k8s *Kubernetes
}

func NewPredictive(k8s *Kubernetes) *Predictive {
	return &Predictive{k8s: k8s}
}

func (p *Predictive) Invoke(ctx context.Context, op string, params map[string]any) (string, error) {
	switch op {
	case "predict_resource_exhaustion":
		return p.predictResourceExhaustion(ctx, params)

	case "suggest_preemptive_actions":
		return p.suggestPreemptiveActions(ctx, requireNamespace(params))

	case "identify_failure_patterns":
		return p.identifyFailurePatterns(ctx, requireNamespace(params))

	case "predict_scaling_needs":
		return p.predictScalingNeeds(ctx, params)
	}
	return "", unsupported("predictive", op)
}

func requireNamespace(params map[string]any) string {
	return catalog.GetString(params, "namespace", "default")
}

func (p *Predictive) predictResourceExhaustion(ctx context.Context, params map[string]any) (string, error) {
	pod, ns, err := podAndNamespace(params)
	if err != nil {
		return "", err
	}
	lookahead := catalog.GetInt(params, "lookahead_hours", 3)

	raw, err := p.k8s.resourceJSON(ctx, "pod", pod, ns)
	if err != nil {
		return "", fmt.Errorf("inspect pod %s/%s: %w", ns, pod, err)
	}
	var info podInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return "", fmt.Errorf("decode pod %s/%s: %w", ns, pod, err)
	}

	restarts := 0
	for _, cs := range info.Status.ContainerStatuses {
		restarts += cs.RestartCount
	}
	if restarts > 3 {
		urgency := "medium"
		if restarts > 10 {
			urgency = "high"
		}
		return fmt.Sprintf("WARNING (%s): pod %s/%s has restarted %d times and the trend points at failure within the next %d hours.\nRecommendation: check pod logs and resource limits.",
			urgency, ns, pod, restarts, lookahead), nil
	}

	if report := p.memoryPressure(ctx, ns, pod, &info, lookahead); report != "" {
		return report, nil
	}
	return fmt.Sprintf("Pod %s/%s looks stable: %d restarts, no memory pressure. No exhaustion predicted within %d hours.",
		ns, pod, restarts, lookahead), nil
}

// memoryPressure compares current usage from kubectl top against the
// pod's memory limit. Returns "" when usage is comfortable or when
// either number is unavailable.
func (p *Predictive) memoryPressure(ctx context.Context, ns, pod string, info *podInfo, lookahead int) string {
	limitMi := 0.0
	for _, c := range info.Spec.Containers {
		if v, ok := parseMemoryMi(c.Resources.Limits["memory"]); ok {
			limitMi += v
		}
	}
	if limitMi == 0 {
		return ""
	}

	top, err := p.k8s.Invoke(ctx, "kubectl_top_pods", map[string]any{"namespace": ns})
	if err != nil {
		return ""
	}
	usedMi, ok := topMemoryMi(top, pod)
	if !ok {
		return ""
	}

	ratio := usedMi / limitMi
	if ratio < 0.8 {
		return ""
	}
	return fmt.Sprintf("WARNING (medium): pod %s/%s is using %.0fMi of its %.0fMi memory limit (%.0f%%). At this rate it may hit the limit within %d hours.\nRecommendation: raise the memory limit or investigate a leak.",
		ns, pod, usedMi, limitMi, ratio*100, lookahead)
}

func (p *Predictive) suggestPreemptiveActions(ctx context.Context, namespace string) (string, error) {
	pods, err := p.listPods(ctx, namespace)
	if err != nil {
		return "", err
	}

	var suggestions []string
	for _, pod := range pods.Items {
		restarts := 0
		for _, cs := range pod.Status.ContainerStatuses {
			restarts += cs.RestartCount
			if cs.State.Waiting != nil && cs.State.Waiting.Reason != "" {
				suggestions = append(suggestions, fmt.Sprintf("%s: container %s is waiting (%s); inspect its events and image.",
					pod.Metadata.Name, cs.Name, cs.State.Waiting.Reason))
			}
		}
		if restarts > 3 {
			suggestions = append(suggestions, fmt.Sprintf("%s: %d restarts; check logs and resource limits before it degrades further.",
				pod.Metadata.Name, restarts))
		}
		for _, c := range pod.Spec.Containers {
			if len(c.Resources.Limits) == 0 {
				suggestions = append(suggestions, fmt.Sprintf("%s: container %s has no resource limits; set them to avoid noisy-neighbor evictions.",
					pod.Metadata.Name, c.Name))
			}
		}
	}

	if len(suggestions) == 0 {
		return fmt.Sprintf("No preemptive actions needed in %s. Pods look stable.", namespace), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d preemptive actions suggested for %s:\n", len(suggestions), namespace)
	for _, s := range suggestions {
		fmt.Fprintf(&b, "  - %s\n", s)
	}
	return b.String(), nil
}

func (p *Predictive) identifyFailurePatterns(ctx context.Context, namespace string) (string, error) {
	pods, err := p.listPods(ctx, namespace)
	if err != nil {
		return "", err
	}

	var frequent []string
	for _, pod := range pods.Items {
		restarts := 0
		for _, cs := range pod.Status.ContainerStatuses {
			restarts += cs.RestartCount
		}
		if restarts > 3 {
			severity := "medium"
			if restarts > 10 {
				severity = "high"
			}
			frequent = append(frequent, fmt.Sprintf("%s (%d restarts, %s)", pod.Metadata.Name, restarts, severity))
		}
	}

	if len(frequent) == 0 {
		return fmt.Sprintf("No concerning patterns detected in %s. System appears healthy.", namespace), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d pods with frequent restarts detected in %s:\n", len(frequent), namespace)
	for _, f := range frequent {
		fmt.Fprintf(&b, "  - %s\n", f)
	}
	b.WriteString("Investigate resource limits, liveness probes, and application stability.\n")
	return b.String(), nil
}

func (p *Predictive) predictScalingNeeds(ctx context.Context, params map[string]any) (string, error) {
	ns := catalog.GetString(params, "namespace", "")
	deployment := catalog.GetString(params, "deployment", "")
	current := catalog.GetInt(params, "current_replicas", -1)
	if ns == "" || deployment == "" || current < 0 {
		return "", fmt.Errorf("namespace, deployment, and current_replicas are required")
	}

	pods, err := p.listPods(ctx, ns)
	if err != nil {
		return "", err
	}
	if len(pods.Items) == 0 {
		return fmt.Sprintf("No pods found in %s; not enough data to predict scaling needs for %s.", ns, deployment), nil
	}

	unhealthy := 0
	for _, pod := range pods.Items {
		if podStressed(pod) {
			unhealthy++
		}
	}
	ratio := float64(unhealthy) / float64(len(pods.Items))

	switch {
	case ratio > 0.3:
		target := current + 2
		if target > 20 {
			target = 20
		}
		return fmt.Sprintf("Scale-up recommended for %s/%s: %.1f%% of pods in the namespace show issues. Consider going from %d to %d replicas.",
			ns, deployment, ratio*100, current, target), nil
	case ratio == 0 && current > 2:
		return fmt.Sprintf("Scale-down possible for %s/%s: all pods healthy, may be over-provisioned. Consider going from %d to %d replicas.",
			ns, deployment, current, current-1), nil
	}
	return fmt.Sprintf("No scaling needed for %s/%s: current replica count of %d appears optimal.", ns, deployment, current), nil
}

func podStressed(pod podInfo) bool {
	restarts := 0
	ready := true
	for _, cs := range pod.Status.ContainerStatuses {
		restarts += cs.RestartCount
		if !cs.Ready {
			ready = false
		}
	}
	return restarts > 2 || (pod.Status.Phase == "Running" && !ready)
}

func (p *Predictive) listPods(ctx context.Context, namespace string) (*podList, error) {
	raw, err := p.k8s.podsJSON(ctx, namespace)
	if err != nil {
		return nil, err
	}
	var pods podList
	if err := json.Unmarshal([]byte(raw), &pods); err != nil {
		return nil, fmt.Errorf("decode pod list: %w", err)
	}
	return &pods, nil
}

// parseMemoryMi converts a Kubernetes memory quantity to mebibytes.
// Only the units kubectl commonly prints are handled.
func parseMemoryMi(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	switch {
	case strings.HasSuffix(s, "Gi"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "Gi"), 64)
		return v * 1024, err == nil
	case strings.HasSuffix(s, "Mi"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "Mi"), 64)
		return v, err == nil
	case strings.HasSuffix(s, "Ki"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "Ki"), 64)
		return v / 1024, err == nil
	}
	v, err := strconv.ParseFloat(s, 64)
	return v / (1024 * 1024), err == nil
}

// topMemoryMi pulls one pod's memory column out of kubectl top output.
func topMemoryMi(top, pod string) (float64, bool) {
	for _, line := range strings.Split(top, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != pod {
			continue
		}
		return parseMemoryMi(fields[len(fields)-1])
	}
	return 0, false
}
