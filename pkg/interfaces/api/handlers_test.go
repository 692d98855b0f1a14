package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/vsinha/freshplan/pkg/infrastructure/storage"
)

const directScenario = `{
  "name": "direct",
  "run": {"start": "2025-01-06", "end": "2025-01-09", "window_days": 4, "overlap_days": 0, "time_limit": "30s", "relative_gap": 0},
  "nodes": [
    {"id": "MFG", "role": "manufacturing", "production_rate": 100},
    {"id": "SPOKE", "role": "spoke"}
  ],
  "legs": [{"origin": "MFG", "destination": "SPOKE", "transit_days": 1, "cost_per_unit": 0.5}],
  "products": [{"id": "BREAD", "ambient_shelf_life": 5, "frozen_shelf_life": 60, "thawed_shelf_life": 5}],
  "shifts": [{"weekdays": ["mon", "tue", "wed", "thu", "fri"], "fixed": true, "fixed_hours": 8,
    "max_overtime_hours": 2, "regular_rate": 20, "overtime_rate": 30}],
  "costs": {"production_per_unit": 1, "shortage_per_unit": 10},
  "demand": [
    {"node": "SPOKE", "product": "BREAD", "date": "2025-01-07", "quantity": 100},
    {"node": "SPOKE", "product": "BREAD", "date": "2025-01-08", "quantity": 100}
  ]
}`

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store, err := storage.Open(context.Background(), "mem://", "plans")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	app := fiber.New()
	SetupRoutes(app, NewDeps(store, nil))
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	var body map[string]interface{}
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(data, &body); err != nil {
			t.Fatalf("body is not JSON: %v\n%s", err, data)
		}
	}
	return resp.StatusCode, body
}

func postPlan(t *testing.T, app *fiber.App, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return do(t, app, req)
}

func TestHealthCheck(t *testing.T) {
	status, body := do(t, newTestApp(t), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if status != http.StatusOK || body["status"] != "UP" {
		t.Errorf("Expected 200 UP, got %d %v", status, body)
	}
}

func TestPlanHandler_PlansStoresAndRecordsEvents(t *testing.T) {
	app := newTestApp(t)

	status, body := postPlan(t, app, directScenario)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", status, body)
	}
	runID, _ := body["run_id"].(string)
	if runID == "" {
		t.Fatalf("Expected a run id, got %v", body)
	}
	if rate, _ := body["fill_rate"].(float64); rate < 0.999 {
		t.Errorf("Expected fill rate 1, got %v", body["fill_rate"])
	}
	if _, ok := body["manifest"]; !ok {
		t.Error("Expected a manifest for the stored plan")
	}

	status, stored := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/plans/"+runID, nil))
	if status != http.StatusOK {
		t.Fatalf("Expected stored plan, got %d", status)
	}
	if result, _ := stored["result"].(map[string]interface{}); result["run_id"] != runID {
		t.Errorf("Expected stored plan of run %s, got %v", runID, stored["result"])
	}

	status, evs := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/plans/"+runID+"/events", nil))
	if status != http.StatusOK {
		t.Fatalf("Expected events, got %d", status)
	}
	list, _ := evs["events"].([]interface{})
	if len(list) < 3 {
		t.Fatalf("Expected run and window events, got %d", len(list))
	}
	first, _ := list[0].(map[string]interface{})
	if first["type"] != "run.started" {
		t.Errorf("Expected run.started first, got %v", first["type"])
	}
}

func TestPlanHandler_Errors(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed JSON", `{"name": `, "Invalid JSON format"},
		{"unknown role", strings.Replace(directScenario, `"role": "spoke"`, `"role": "depot"`, 1), "data validation failed"},
		{"bad date", strings.Replace(directScenario, `"start": "2025-01-06"`, `"start": "06/01/2025"`, 1), "data validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := postPlan(t, app, tt.body)
			if status != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d: %v", status, body)
			}
			errBody, _ := body["error"].(map[string]interface{})
			if msg, _ := errBody["message"].(string); !strings.Contains(msg, tt.want) {
				t.Errorf("Expected message containing %q, got %q", tt.want, msg)
			}
		})
	}
}

func TestGetPlanHandler_NotFound(t *testing.T) {
	status, _ := do(t, newTestApp(t), httptest.NewRequest(http.MethodGet, "/api/v1/plans/missing", nil))
	if status != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	if status, body := postPlan(t, app, directScenario); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", status, body)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), `freshplan_runs_total{status=`) {
		t.Errorf("Expected a counted run in metrics, got:\n%s", data)
	}
}
