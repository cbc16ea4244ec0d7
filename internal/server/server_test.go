package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kairon/backend"
	"kairon/internal/server"
	"kairon/internal/testutil"
)

type apiTest struct {
	t   *testing.T
	app *testutil.TestApp
	srv *httptest.Server
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()
	ta := testutil.NewApp(t)
	srv := httptest.NewServer(server.New(ta.App))
	t.Cleanup(srv.Close)
	return &apiTest{t: t, app: ta, srv: srv}
}

func (a *apiTest) do(method, path, body string) (*http.Response, string) {
	a.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, r)
	if err != nil {
		a.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func (a *apiTest) mustStatus(method, path, body string, want int) string {
	a.t.Helper()
	resp, out := a.do(method, path, body)
	if resp.StatusCode != want {
		a.t.Fatalf("%s %s = %d, want %d: %s", method, path, resp.StatusCode, want, out)
	}
	return out
}

func (a *apiTest) createTask(title string, due time.Time) backend.Task {
	a.t.Helper()
	body := `{"title":"` + title + `","priority":"high","dueDateTime":"` + due.Format(time.RFC3339) + `","tags":["work"]}`
	var t backend.Task
	if err := json.Unmarshal([]byte(a.mustStatus(http.MethodPost, "/api/tasks", body, http.StatusCreated)), &t); err != nil {
		a.t.Fatal(err)
	}
	return t
}

// TestTaskLifecycle verifies create, get, update, complete over HTTP
func TestTaskLifecycle(t *testing.T) {
	api := newAPITest(t)
	task := api.createTask("Write report", testutil.Reference.Add(4*time.Hour))
	if task.ID == 0 || task.Category != "Other" {
		t.Fatalf("created = %+v", task)
	}

	out := api.mustStatus(http.MethodGet, "/api/tasks/1", "", http.StatusOK)
	testutil.AssertContains(t, out, `"title":"Write report"`)

	out = api.mustStatus(http.MethodPatch, "/api/tasks/1", `{"notes":"draft first"}`, http.StatusOK)
	testutil.AssertContains(t, out, `"notes":"draft first"`)

	out = api.mustStatus(http.MethodPost, "/api/tasks/1/complete", "", http.StatusOK)
	testutil.AssertContains(t, out, `"status":"completed"`)

	api.mustStatus(http.MethodPatch, "/api/tasks/1", `{"notes":"late edit"}`, http.StatusBadRequest)
}

// TestCreateValidation verifies ValidationError maps to 400 with the field
func TestCreateValidation(t *testing.T) {
	api := newAPITest(t)
	out := api.mustStatus(http.MethodPost, "/api/tasks", `{"title":"  "}`, http.StatusBadRequest)
	testutil.AssertContains(t, out, `"field":"title"`)

	api.mustStatus(http.MethodPost, "/api/tasks", `{"title":`, http.StatusBadRequest)
	api.mustStatus(http.MethodPost, "/api/tasks", `{"bogus":1}`, http.StatusBadRequest)
}

// TestDeleteNeedsConfirm verifies 428 without ?confirm=true
func TestDeleteNeedsConfirm(t *testing.T) {
	api := newAPITest(t)
	api.createTask("Temp", testutil.Reference.Add(time.Hour))

	api.mustStatus(http.MethodDelete, "/api/tasks/1", "", http.StatusPreconditionRequired)
	api.mustStatus(http.MethodDelete, "/api/tasks/1?confirm=true", "", http.StatusNoContent)
	api.mustStatus(http.MethodDelete, "/api/tasks/1?confirm=true", "", http.StatusNotFound)
	api.mustStatus(http.MethodGet, "/api/tasks/abc", "", http.StatusBadRequest)
}

// TestListFilters verifies query parameters narrow the list
func TestListFilters(t *testing.T) {
	api := newAPITest(t)
	api.createTask("Buy milk", testutil.Reference.Add(time.Hour))
	api.createTask("Plan trip", testutil.Reference.Add(10*24*time.Hour))

	var tasks []backend.Task
	_ = json.Unmarshal([]byte(api.mustStatus(http.MethodGet, "/api/tasks?search=milk", "", http.StatusOK)), &tasks)
	if len(tasks) != 1 || tasks[0].Title != "Buy milk" {
		t.Errorf("search = %+v", tasks)
	}

	_ = json.Unmarshal([]byte(api.mustStatus(http.MethodGet, "/api/tasks?window=today", "", http.StatusOK)), &tasks)
	if len(tasks) != 1 {
		t.Errorf("window=today = %d tasks", len(tasks))
	}

	out := api.mustStatus(http.MethodGet, "/api/tasks?tag=none", "", http.StatusOK)
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("empty result = %q, want []", out)
	}
}

// TestReorder verifies manual order is returned after reorder
func TestReorder(t *testing.T) {
	api := newAPITest(t)
	api.createTask("A", testutil.Reference.Add(time.Hour))
	api.createTask("B", testutil.Reference.Add(2*time.Hour))

	var tasks []backend.Task
	out := api.mustStatus(http.MethodPost, "/api/tasks/reorder", `{"ids":[2,1]}`, http.StatusOK)
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 || tasks[0].Title != "B" {
		t.Errorf("order = %+v", tasks)
	}
}

// TestSettingsAndInterests verifies the non-task resources
func TestSettingsAndInterests(t *testing.T) {
	api := newAPITest(t)

	out := api.mustStatus(http.MethodPut, "/api/settings", `{"themeColor":"blue","location":"Lagos"}`, http.StatusOK)
	testutil.AssertContains(t, out, `"themeColor":"blue"`)
	api.mustStatus(http.MethodPut, "/api/settings", `{"theme":"neon"}`, http.StatusBadRequest)

	api.mustStatus(http.MethodPost, "/api/interests", `{"title":"Running","description":"5k"}`, http.StatusCreated)
	out = api.mustStatus(http.MethodGet, "/api/interests", "", http.StatusOK)
	testutil.AssertContains(t, out, "Running")
	api.mustStatus(http.MethodDelete, "/api/interests/1", "", http.StatusPreconditionRequired)
	api.mustStatus(http.MethodDelete, "/api/interests/1?confirm=true", "", http.StatusNoContent)
}

// TestReadOnlyViews verifies today, analytics, calendar, export and widgets
func TestReadOnlyViews(t *testing.T) {
	api := newAPITest(t)
	api.createTask("Standup", testutil.Reference.Add(time.Hour))

	out := api.mustStatus(http.MethodGet, "/api/today", "", http.StatusOK)
	testutil.AssertContains(t, out, `"greeting":"Good Morning"`)

	out = api.mustStatus(http.MethodGet, "/api/analytics", "", http.StatusOK)
	testutil.AssertContains(t, out, `"total":1`)

	out = api.mustStatus(http.MethodGet, "/api/calendar?month=2026-03", "", http.StatusOK)
	testutil.AssertContains(t, out, "Standup")
	api.mustStatus(http.MethodGet, "/api/calendar?month=March", "", http.StatusBadRequest)

	resp, body := api.do(http.MethodGet, "/api/export.ics", "")
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	testutil.AssertContains(t, resp.Header.Get("Content-Disposition"), "kairon.ics")
	testutil.AssertContains(t, body, "BEGIN:VCALENDAR")

	out = api.mustStatus(http.MethodGet, "/api/widgets/weather", "", http.StatusOK)
	testutil.AssertContains(t, out, `"text":"N/A"`)
	api.mustStatus(http.MethodGet, "/api/notifications", "", http.StatusOK)
}

// TestMetricsEndpoint verifies operations and requests are exported
func TestMetricsEndpoint(t *testing.T) {
	api := newAPITest(t)
	api.createTask("Counted", testutil.Reference.Add(time.Hour))

	out := api.mustStatus(http.MethodGet, "/metrics", "", http.StatusOK)
	testutil.AssertContains(t, out, `kairon_task_operations_total{op="create",result="ok"} 1`)
	testutil.AssertContains(t, out, `route="/api/tasks/"`)
	testutil.AssertContains(t, out, "kairon_tasks_total 1")
}
