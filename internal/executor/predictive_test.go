package executor

import (
	"context"
	"strings"
	"testing"
)

const restartingPodsJSON = `{
  "items": [
    {"metadata": {"name": "web-1", "namespace": "prod"},
     "spec": {"containers": [{"name": "app", "resources": {"limits": {"memory": "256Mi"}}}]},
     "status": {"phase": "Running",
       "containerStatuses": [{"name": "app", "ready": true, "restartCount": 12}]}},
    {"metadata": {"name": "web-2", "namespace": "prod"},
     "spec": {"containers": [{"name": "app", "resources": {"limits": {"memory": "256Mi"}}}]},
     "status": {"phase": "Running",
       "containerStatuses": [{"name": "app", "ready": true, "restartCount": 0}]}}
  ]
}`

const calmPodsJSON = `{
  "items": [
    {"metadata": {"name": "web-1", "namespace": "prod"},
     "spec": {"containers": [{"name": "app", "resources": {"limits": {"memory": "256Mi"}}}]},
     "status": {"phase": "Running",
       "containerStatuses": [{"name": "app", "ready": true, "restartCount": 0}]}},
    {"metadata": {"name": "web-2", "namespace": "prod"},
     "spec": {"containers": [{"name": "app", "resources": {"limits": {"memory": "256Mi"}}}]},
     "status": {"phase": "Running",
       "containerStatuses": [{"name": "app", "ready": true, "restartCount": 0}]}}
  ]
}`

func newTestPredictive() (*Predictive, *fakeRunner) {
	k, f := newTestKubernetes()
	return NewPredictive(k), f
}

func TestPredictResourceExhaustionRestarts(t *testing.T) {
	p, f := newTestPredictive()
	f.outputs["kubectl get pod web-1 -n prod -o json"] = `{
	  "metadata": {"name": "web-1", "namespace": "prod"},
	  "spec": {"containers": [{"name": "app"}]},
	  "status": {"phase": "Running",
	    "containerStatuses": [{"name": "app", "ready": true, "restartCount": 12}]}}`

	out, err := p.Invoke(context.Background(), "predict_resource_exhaustion",
		map[string]any{"namespace": "prod", "pod_name": "web-1"})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for _, want := range []string{"WARNING (high)", "restarted 12 times", "next 3 hours"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestPredictResourceExhaustionMemoryPressure(t *testing.T) {
	p, f := newTestPredictive()
	f.outputs["kubectl get pod web-1 -n prod -o json"] = `{
	  "metadata": {"name": "web-1", "namespace": "prod"},
	  "spec": {"containers": [{"name": "app", "resources": {"limits": {"memory": "256Mi"}}}]},
	  "status": {"phase": "Running",
	    "containerStatuses": [{"name": "app", "ready": true, "restartCount": 0}]}}`
	f.outputs["kubectl top pods -n prod"] = "NAME   CPU(cores)   MEMORY(bytes)\nweb-1   15m   230Mi\nweb-2   10m   40Mi"

	out, err := p.Invoke(context.Background(), "predict_resource_exhaustion",
		map[string]any{"namespace": "prod", "pod_name": "web-1", "lookahead_hours": float64(6)})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for _, want := range []string{"230Mi of its 256Mi memory limit", "90%", "6 hours"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestPredictResourceExhaustionStablePod(t *testing.T) {
	p, f := newTestPredictive()
	f.outputs["kubectl get pod web-2 -n prod -o json"] = healthyPodJSON
	f.outputs["kubectl top pods -n prod"] = "web-2   10m   40Mi"

	out, err := p.Invoke(context.Background(), "predict_resource_exhaustion",
		map[string]any{"namespace": "prod", "pod_name": "web-2"})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !strings.Contains(out, "No exhaustion predicted") {
		t.Fatalf("report:\n%s", out)
	}
}

func TestSuggestPreemptiveActions(t *testing.T) {
	p, f := newTestPredictive()
	f.outputs["kubectl get pods -n prod -o json"] = `{
	  "items": [
	    {"metadata": {"name": "web-1", "namespace": "prod"},
	     "spec": {"containers": [{"name": "app"}]},
	     "status": {"phase": "Running",
	       "containerStatuses": [{"name": "app", "ready": false, "restartCount": 5,
	         "state": {"waiting": {"reason": "CrashLoopBackOff"}}}]}}
	  ]
	}`

	out, err := p.Invoke(context.Background(), "suggest_preemptive_actions",
		map[string]any{"namespace": "prod"})
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	for _, want := range []string{"CrashLoopBackOff", "5 restarts", "no resource limits"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestSuggestPreemptiveActionsNothingToDo(t *testing.T) {
	p, f := newTestPredictive()
	f.outputs["kubectl get pods -n prod -o json"] = calmPodsJSON

	out, err := p.Invoke(context.Background(), "suggest_preemptive_actions",
		map[string]any{"namespace": "prod"})
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if !strings.Contains(out, "No preemptive actions needed") {
		t.Fatalf("report:\n%s", out)
	}
}

func TestIdentifyFailurePatterns(t *testing.T) {
	p, f := newTestPredictive()
	f.outputs["kubectl get pods -n prod -o json"] = restartingPodsJSON

	out, err := p.Invoke(context.Background(), "identify_failure_patterns",
		map[string]any{"namespace": "prod"})
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	for _, want := range []string{"1 pods with frequent restarts", "web-1 (12 restarts, high)", "liveness probes"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestIdentifyFailurePatternsHealthy(t *testing.T) {
	p, f := newTestPredictive()
	f.outputs["kubectl get pods -n prod -o json"] = calmPodsJSON

	out, err := p.Invoke(context.Background(), "identify_failure_patterns",
		map[string]any{"namespace": "prod"})
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if !strings.Contains(out, "No concerning patterns detected") {
		t.Fatalf("report:\n%s", out)
	}
}

func TestPredictScalingNeedsScaleUp(t *testing.T) {
	p, f := newTestPredictive()
	f.outputs["kubectl get pods -n prod -o json"] = restartingPodsJSON

	out, err := p.Invoke(context.Background(), "predict_scaling_needs",
		map[string]any{"namespace": "prod", "deployment": "web", "current_replicas": float64(2)})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !strings.Contains(out, "Scale-up recommended") || !strings.Contains(out, "from 2 to 4 replicas") {
		t.Fatalf("report:\n%s", out)
	}
}

func TestPredictScalingNeedsScaleDown(t *testing.T) {
	p, f := newTestPredictive()
	f.outputs["kubectl get pods -n prod -o json"] = calmPodsJSON

	out, err := p.Invoke(context.Background(), "predict_scaling_needs",
		map[string]any{"namespace": "prod", "deployment": "web", "current_replicas": float64(5)})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !strings.Contains(out, "Scale-down possible") || !strings.Contains(out, "from 5 to 4 replicas") {
		t.Fatalf("report:\n%s", out)
	}
}

func TestPredictScalingNeedsOptimal(t *testing.T) {
	p, f := newTestPredictive()
	f.outputs["kubectl get pods -n prod -o json"] = calmPodsJSON

	out, err := p.Invoke(context.Background(), "predict_scaling_needs",
		map[string]any{"namespace": "prod", "deployment": "web", "current_replicas": float64(2)})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !strings.Contains(out, "appears optimal") {
		t.Fatalf("report:\n%s", out)
	}
}

func TestPredictScalingNeedsMissingParams(t *testing.T) {
	p, _ := newTestPredictive()
	if _, err := p.Invoke(context.Background(), "predict_scaling_needs",
		map[string]any{"namespace": "prod"}); err == nil {
		t.Fatal("expected error for missing deployment and current_replicas")
	}
}
