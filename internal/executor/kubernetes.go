package executor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/opsgate/opsgate/internal/catalog"
)

// Kubernetes shells out to kubectl for the cluster operations.
type Kubernetes struct {
	bin string
	run Runner
}

func NewKubernetes(bin string) *Kubernetes {
	if bin == "" {
		bin = "kubectl"
	}
	return &Kubernetes{bin: bin, run: runCommand}
}

func (k *Kubernetes) Invoke(ctx context.Context, op string, params map[string]any) (string, error) {
	switch op {
	case "kubectl_get_pods":
		args := []string{"get", "pods"}
		args = appendNamespace(args, catalog.GetString(params, "namespace", ""))
		if sel := catalog.GetString(params, "label_selector", ""); sel != "" {
			args = append(args, "-l", sel)
		}
		return k.run(ctx, k.bin, args...)

	case "kubectl_get_pod_logs":
		pod, ns, err := podAndNamespace(params)
		if err != nil {
			return "", err
		}
		args := []string{"logs", pod, "-n", ns,
			"--tail", strconv.Itoa(catalog.GetInt(params, "tail_lines", 100))}
		if c := catalog.GetString(params, "container", ""); c != "" {
			args = append(args, "-c", c)
		}
		return k.run(ctx, k.bin, args...)

	case "kubectl_describe_pod":
		pod, ns, err := podAndNamespace(params)
		if err != nil {
			return "", err
		}
		return k.run(ctx, k.bin, "describe", "pod", pod, "-n", ns)

	case "kubectl_get_deployments":
		args := appendNamespace([]string{"get", "deployments"}, catalog.GetString(params, "namespace", ""))
		return k.run(ctx, k.bin, args...)

	case "kubectl_scale_deployment":
		name := catalog.GetString(params, "deployment_name", "")
		ns := catalog.GetString(params, "namespace", "")
		if name == "" || ns == "" {
			return "", fmt.Errorf("deployment_name and namespace are required")
		}
		replicas := catalog.GetInt(params, "replicas", -1)
		if replicas < 0 {
			return "", fmt.Errorf("replicas is required")
		}
		return k.scale(ctx, ns, name, replicas)

	case "kubectl_delete_pod":
		pod, ns, err := podAndNamespace(params)
		if err != nil {
			return "", err
		}
		return k.deletePod(ctx, ns, pod)

	case "kubectl_get_events":
		args := []string{"get", "events", "--sort-by=.lastTimestamp"}
		args = appendNamespace(args, catalog.GetString(params, "namespace", ""))
		if name := catalog.GetString(params, "resource_name", ""); name != "" {
			args = append(args, "--field-selector", "involvedObject.name="+name)
		}
		return k.run(ctx, k.bin, args...)

	case "kubectl_top_pods":
		args := appendNamespace([]string{"top", "pods"}, catalog.GetString(params, "namespace", ""))
		return k.run(ctx, k.bin, args...)
	}
	return "", unsupported("kubernetes", op)
}

func (k *Kubernetes) scale(ctx context.Context, namespace, deployment string, replicas int) (string, error) {
	return k.run(ctx, k.bin, "scale", "deployment", deployment, "-n", namespace,
		fmt.Sprintf("--replicas=%d", replicas))
}

func (k *Kubernetes) deletePod(ctx context.Context, namespace, pod string) (string, error) {
	return k.run(ctx, k.bin, "delete", "pod", pod, "-n", namespace)
}

// resourceJSON fetches one resource as JSON for the analysis executors.
func (k *Kubernetes) resourceJSON(ctx context.Context, kind, name, namespace string) (string, error) {
	return k.run(ctx, k.bin, "get", kind, name, "-n", namespace, "-o", "json")
}

// podsJSON lists pods as JSON; an empty namespace means all namespaces.
func (k *Kubernetes) podsJSON(ctx context.Context, namespace string) (string, error) {
	args := appendNamespace([]string{"get", "pods"}, namespace)
	return k.run(ctx, k.bin, append(args, "-o", "json")...)
}

func appendNamespace(args []string, namespace string) []string {
	if namespace == "" {
		return append(args, "--all-namespaces")
	}
	return append(args, "-n", namespace)
}

func podAndNamespace(params map[string]any) (pod, namespace string, err error) {
	pod = catalog.GetString(params, "pod_name", "")
	namespace = catalog.GetString(params, "namespace", "")
	if pod == "" || namespace == "" {
		return "", "", fmt.Errorf("pod_name and namespace are required")
	}
	return pod, namespace, nil
}
