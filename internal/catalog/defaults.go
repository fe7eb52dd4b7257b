package catalog

import "fmt"

// Default returns the standard operations catalog. Danger classification is
// declared per tool here: mutating verbs (delete, scale, restart) and the
// generic command runner are dangerous; read-only and installer tools are
// safe regardless of what their names contain.
func Default() *Catalog {
	c := New()
	for _, t := range defaultTools() {
		if err := c.Register(t); err != nil {
			panic(fmt.Sprintf("catalog: %v", err))
		}
	}
	return c
}

func defaultTools() []Tool {
	return []Tool{
		// Kubernetes operations.
		{
			Name:        "kubectl_get_pods",
			Description: "List pods in a namespace or across all namespaces. Returns pod names, status, restarts, and age.",
			Group:       GroupKubernetes,
			Parameters: objectSchema(map[string]any{
				"namespace":      strProp("Kubernetes namespace (all namespaces if not provided)"),
				"label_selector": strProp("Label selector to filter pods (e.g. 'app=backend')"),
			}),
		},
		{
			Name:        "kubectl_get_pod_logs",
			Description: "Get logs from a specific pod. Can tail the last N lines.",
			Group:       GroupKubernetes,
			Parameters: objectSchema(map[string]any{
				"namespace":  strProp("Kubernetes namespace"),
				"pod_name":   strProp("Name of the pod"),
				"container":  strProp("Container name (optional if the pod has a single container)"),
				"tail_lines": intProp("Number of lines to return from the end (default: 100)"),
			}, "namespace", "pod_name"),
		},
		{
			Name:        "kubectl_describe_pod",
			Description: "Get detailed information about a pod including events, conditions, and containers.",
			Group:       GroupKubernetes,
			Parameters: objectSchema(map[string]any{
				"namespace": strProp("Kubernetes namespace"),
				"pod_name":  strProp("Name of the pod"),
			}, "namespace", "pod_name"),
		},
		{
			Name:        "kubectl_get_deployments",
			Description: "List deployments in a namespace.",
			Group:       GroupKubernetes,
			Parameters: objectSchema(map[string]any{
				"namespace": strProp("Kubernetes namespace (all namespaces if not provided)"),
			}),
		},
		{
			Name:        "kubectl_scale_deployment",
			Description: "DANGEROUS: Scale a deployment to the specified number of replicas.",
			Group:       GroupKubernetes,
			Dangerous:   true,
			Parameters: objectSchema(map[string]any{
				"namespace":       strProp("Kubernetes namespace"),
				"deployment_name": strProp("Deployment to scale"),
				"replicas":        intProp("Target replica count"),
			}, "namespace", "deployment_name", "replicas"),
		},
		{
			Name:        "kubectl_delete_pod",
			Description: "DANGEROUS: Delete a pod (it will be recreated by its controller).",
			Group:       GroupKubernetes,
			Dangerous:   true,
			Parameters: objectSchema(map[string]any{
				"namespace": strProp("Kubernetes namespace"),
				"pod_name":  strProp("Name of the pod"),
			}, "namespace", "pod_name"),
		},
		{
			Name:        "kubectl_get_events",
			Description: "Get recent Kubernetes events, useful for debugging.",
			Group:       GroupKubernetes,
			Parameters: objectSchema(map[string]any{
				"namespace":     strProp("Kubernetes namespace (all namespaces if not provided)"),
				"resource_name": strProp("Filter events for a specific resource"),
			}),
		},
		{
			Name:        "kubectl_top_pods",
			Description: "Get current CPU and memory usage of pods.",
			Group:       GroupKubernetes,
			Parameters: objectSchema(map[string]any{
				"namespace": strProp("Kubernetes namespace (all namespaces if not provided)"),
			}),
		},

		// Cluster insights and self-healing.
		{
			Name:        "check_pod_health",
			Description: "Check whether a pod is healthy: running, ready, no recent crashes.",
			Group:       GroupInsights,
			Parameters: objectSchema(map[string]any{
				"namespace": strProp("Kubernetes namespace"),
				"pod_name":  strProp("Name of the pod"),
			}, "namespace", "pod_name"),
		},
		{
			Name:        "analyze_error_logs",
			Description: "Analyze pod logs for errors and summarize the findings.",
			Group:       GroupInsights,
			Parameters: objectSchema(map[string]any{
				"namespace": strProp("Kubernetes namespace"),
				"pod_name":  strProp("Name of the pod"),
			}, "namespace", "pod_name"),
		},
		{
			Name:        "analyze_resource_efficiency",
			Description: "Analyze resource usage for pods in a namespace and flag over- or under-provisioned workloads.",
			Group:       GroupInsights,
			Parameters: objectSchema(map[string]any{
				"namespace": strProp("Namespace to analyze (default: default)"),
			}),
		},
		{
			Name:        "auto_restart_pod",
			Description: "DANGEROUS: Restart a failed pod by deleting it so its controller recreates it.",
			Group:       GroupInsights,
			Dangerous:   true,
			Parameters: objectSchema(map[string]any{
				"namespace": strProp("Kubernetes namespace"),
				"pod_name":  strProp("Name of the pod"),
			}, "namespace", "pod_name"),
		},
		{
			Name:        "auto_scale_if_needed",
			Description: "DANGEROUS: Add a replica to a deployment when pods are not ready, up to a maximum.",
			Group:       GroupInsights,
			Dangerous:   true,
			Parameters: objectSchema(map[string]any{
				"namespace":    strProp("Kubernetes namespace"),
				"deployment":   strProp("Deployment to check"),
				"max_replicas": intProp("Maximum replicas to scale to (default: 10)"),
			}, "namespace", "deployment"),
		},

		// Predictive analysis. All read-only.
		{
			Name:        "predict_resource_exhaustion",
			Description: "Predict whether a pod is heading toward resource exhaustion based on restarts and memory pressure.",
			Group:       GroupPredictive,
			Parameters: objectSchema(map[string]any{
				"namespace":       strProp("Kubernetes namespace"),
				"pod_name":        strProp("Name of the pod"),
				"lookahead_hours": intProp("How far ahead to project (default: 3)"),
			}, "namespace", "pod_name"),
		},
		{
			Name:        "suggest_preemptive_actions",
			Description: "Analyze all pods in a namespace and suggest actions to take before failures occur.",
			Group:       GroupPredictive,
			Parameters: objectSchema(map[string]any{
				"namespace": strProp("Namespace to analyze"),
			}, "namespace"),
		},
		{
			Name:        "identify_failure_patterns",
			Description: "Look for recurring failure patterns across pods in a namespace, such as frequent restarts.",
			Group:       GroupPredictive,
			Parameters: objectSchema(map[string]any{
				"namespace": strProp("Namespace to analyze"),
			}, "namespace"),
		},
		{
			Name:        "predict_scaling_needs",
			Description: "Predict whether a deployment will need scaling based on the health of pods in its namespace.",
			Group:       GroupPredictive,
			Parameters: objectSchema(map[string]any{
				"namespace":        strProp("Kubernetes namespace"),
				"deployment":       strProp("Deployment to assess"),
				"current_replicas": intProp("Current replica count of the deployment"),
			}, "namespace", "deployment", "current_replicas"),
		},

		// Docker, git, monitoring, shell.
		{
			Name:        "docker_ps",
			Description: "List running containers.",
			Group:       GroupSystem,
			Parameters: objectSchema(map[string]any{
				"all": boolProp("Show all containers, including stopped ones"),
			}),
		},
		{
			Name:        "docker_logs",
			Description: "Get logs from a container.",
			Group:       GroupSystem,
			Parameters: objectSchema(map[string]any{
				"container_id": strProp("Container ID or name"),
				"tail":         intProp("Number of lines (default: 100)"),
			}, "container_id"),
		},
		{
			Name:        "docker_inspect",
			Description: "Get detailed information about a container.",
			Group:       GroupSystem,
			Parameters: objectSchema(map[string]any{
				"container_id": strProp("Container ID or name"),
			}, "container_id"),
		},
		{
			Name:        "git_status",
			Description: "Get git repository status.",
			Group:       GroupSystem,
			Parameters: objectSchema(map[string]any{
				"repo_path": strProp("Path to the repository (defaults to the configured repo)"),
			}),
		},
		{
			Name:        "git_log",
			Description: "Get recent commit history.",
			Group:       GroupSystem,
			Parameters: objectSchema(map[string]any{
				"repo_path": strProp("Path to the repository"),
				"max_count": intProp("Number of commits (default: 10)"),
			}),
		},
		{
			Name:        "git_diff",
			Description: "Show changes in the working directory.",
			Group:       GroupSystem,
			Parameters: objectSchema(map[string]any{
				"repo_path": strProp("Path to the repository"),
				"cached":    boolProp("Show staged changes instead"),
			}),
		},
		{
			Name:        "prometheus_query",
			Description: "Execute a Prometheus instant query.",
			Group:       GroupSystem,
			Parameters: objectSchema(map[string]any{
				"query": strProp("PromQL query (e.g. 'up', 'rate(http_requests_total[5m])')"),
			}, "query"),
		},
		{
			Name:        "run_command",
			Description: "DANGEROUS: Execute a shell command and return its output.",
			Group:       GroupSystem,
			Dangerous:   true,
			Parameters: objectSchema(map[string]any{
				"command": strProp("The shell command to execute"),
			}, "command"),
		},
		{
			Name:        "check_tool_installed",
			Description: "Check whether a CLI tool is installed and resolvable on PATH.",
			Group:       GroupSystem,
			Parameters: objectSchema(map[string]any{
				"tool_name": strProp("Name of the binary to look up"),
			}, "tool_name"),
		},
		{
			Name:        "install_cli_tool",
			Description: "Install a whitelisted CLI tool (kubectl, minikube, helm).",
			Group:       GroupSystem,
			Parameters: objectSchema(map[string]any{
				"tool_name": strProp("Tool to install: kubectl, minikube, or helm"),
			}, "tool_name"),
		},

		// Security.
		{
			Name:        "run_security_scan",
			Description: "Run read-only security checks over pods: privileged containers, host networking, missing resource limits, default-namespace workloads.",
			Group:       GroupSecurity,
			Parameters: objectSchema(map[string]any{
				"namespace": strProp("Namespace to scan (all namespaces if not provided)"),
			}),
		},
	}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func strProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func intProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func boolProp(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}
