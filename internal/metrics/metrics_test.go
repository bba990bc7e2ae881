package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}

	if m.registry == nil {
		t.Error("Registry is nil")
	}

	if m.TasksTotal == nil {
		t.Error("TasksTotal is nil")
	}
	if m.TaskDuration == nil {
		t.Error("TaskDuration is nil")
	}
	if m.ApprovalsTotal == nil {
		t.Error("ApprovalsTotal is nil")
	}
	if m.ToolInvocationsTotal == nil {
		t.Error("ToolInvocationsTotal is nil")
	}
	if m.ModelCallsTotal == nil {
		t.Error("ModelCallsTotal is nil")
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()

	// Record some sample metrics so they appear in output
	m.BatchesTotal.Inc()
	m.TasksTotal.WithLabelValues("tool", "success").Inc()
	m.TaskDuration.WithLabelValues("tool").Observe(0.2)
	m.TasksInFlight.Set(1)
	m.TaskPanicsTotal.Inc()
	m.ApprovalsTotal.WithLabelValues("scrape_website", "approved").Inc()
	m.ToolInvocationsTotal.WithLabelValues("scrape_website", "success").Inc()
	m.ToolDuration.WithLabelValues("scrape_website").Observe(0.1)
	m.ModelCallsTotal.WithLabelValues("gpt-4o", "error").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	m.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()

	expectedMetrics := []string{
		"taskgate_batches_total",
		"taskgate_tasks_total",
		"taskgate_task_duration_seconds",
		"taskgate_tasks_in_flight",
		"taskgate_task_panics_total",
		"taskgate_approvals_total",
		"taskgate_tool_invocations_total",
		"taskgate_tool_duration_seconds",
		"taskgate_model_calls_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Metrics output missing: %s", metric)
		}
	}
}

func TestMetricsRegistryIsolation(t *testing.T) {
	// Each instance owns its registry, so creating two must not panic on duplicate registration.
	a := NewMetrics()
	b := NewMetrics()

	a.BatchesTotal.Inc()

	families, err := b.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "taskgate_batches_total" && f.GetMetric()[0].GetCounter().GetValue() != 0 {
			t.Error("metrics leaked between registries")
		}
	}
}
