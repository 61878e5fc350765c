package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LeventeLantos/bulk-messaging/internal/model"
	"github.com/LeventeLantos/bulk-messaging/internal/service"
)

type fakeService struct {
	// capture args
	gotSchedule   service.ScheduleRequest
	gotCancelID   string
	gotRecipients []model.Recipient
	gotTemplate   string

	// behavior
	job     model.Job
	jobs    []model.ScheduledView
	report  service.SendReport
	logs    []model.ActivityEntry
	status  service.Status
	err     error
	sendErr error
}

var _ Service = (*fakeService)(nil)

func (f *fakeService) Schedule(ctx context.Context, req service.ScheduleRequest) (model.Job, error) {
	f.gotSchedule = req
	return f.job, f.err
}

func (f *fakeService) Cancel(ctx context.Context, id string) error {
	f.gotCancelID = id
	return f.err
}

func (f *fakeService) ListScheduled(ctx context.Context) ([]model.ScheduledView, error) {
	return f.jobs, f.err
}

func (f *fakeService) SendNow(ctx context.Context, recipients []model.Recipient, template string) (service.SendReport, error) {
	f.gotRecipients = recipients
	f.gotTemplate = template
	return f.report, f.sendErr
}

func (f *fakeService) Logs() []model.ActivityEntry { return f.logs }

func (f *fakeService) Status(ctx context.Context) (service.Status, error) {
	return f.status, f.err
}

func serve(t *testing.T, svc Service, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	Router(NewHandler(svc)).ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode json: %v body=%q", err, rr.Body.String())
	}
	return m
}

func TestHealth(t *testing.T) {
	rr := serve(t, &fakeService{}, http.MethodGet, "/v1/health", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected Content-Type application/json, got %q", ct)
	}

	body := decodeJSON(t, rr)
	if v, ok := body["ok"].(bool); !ok || !v {
		t.Fatalf("expected {ok:true}, got %v", body)
	}
}

func TestSchedule_Created(t *testing.T) {
	at := time.Date(2025, 6, 20, 17, 30, 0, 0, time.UTC)
	fs := &fakeService{job: model.Job{ID: "1750413600000-abcd1234", ScheduledAt: at}}

	rr := serve(t, fs, http.MethodPost, "/api/schedule", `{
		"recipients": [{"name": "Akshay", "number": "919800000001"}],
		"messageTemplate": "Hi {name}",
		"scheduledTime": "2025-06-20T23:00",
		"timezone": "Asia/Kolkata"
	}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%q", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	if body["jobId"] != "1750413600000-abcd1234" {
		t.Fatalf("unexpected jobId: %v", body)
	}
	if body["scheduledTime"] != "2025-06-20T17:30:00Z" {
		t.Fatalf("unexpected scheduledTime: %v", body["scheduledTime"])
	}

	got := fs.gotSchedule
	if got.Template != "Hi {name}" || got.ScheduledTime != "2025-06-20T23:00" || got.Timezone != "Asia/Kolkata" {
		t.Fatalf("unexpected request passed to service: %+v", got)
	}
	if len(got.Recipients) != 1 || got.Recipients[0].Number != "919800000001" {
		t.Fatalf("unexpected recipients: %+v", got.Recipients)
	}
}

func TestSchedule_ValidationIs400(t *testing.T) {
	fs := &fakeService{err: &service.ValidationError{Field: "scheduledTime", Msg: "scheduled time must be in the future"}}

	rr := serve(t, fs, http.MethodPost, "/api/schedule", `{"recipients":[]}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%q", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	if body["success"] != false || body["field"] != "scheduledTime" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["error"] != "scheduled time must be in the future" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}
}

func TestSchedule_MalformedJSONIs400(t *testing.T) {
	rr := serve(t, &fakeService{}, http.MethodPost, "/api/schedule", `{not json`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestListScheduled(t *testing.T) {
	fs := &fakeService{jobs: []model.ScheduledView{
		{ID: "a", RecipientCount: 2, MessagePreview: "Hi", Status: model.Scheduled},
	}}

	rr := serve(t, fs, http.MethodGet, "/api/scheduled", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	jobs, ok := body["jobs"].([]any)
	if !ok || len(jobs) != 1 {
		t.Fatalf("expected one job, got %v", body)
	}
	job := jobs[0].(map[string]any)
	if job["id"] != "a" || job["recipientCount"] != float64(2) || job["status"] != "scheduled" {
		t.Fatalf("unexpected job: %v", job)
	}
}

func TestCancelScheduled(t *testing.T) {
	fs := &fakeService{}

	rr := serve(t, fs, http.MethodDelete, "/api/scheduled/job-42", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if fs.gotCancelID != "job-42" {
		t.Fatalf("expected id job-42, got %q", fs.gotCancelID)
	}
}

func TestCancelScheduled_NotFound(t *testing.T) {
	fs := &fakeService{err: service.ErrNotFound}

	rr := serve(t, fs, http.MethodDelete, "/api/scheduled/missing", "")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestSendNow(t *testing.T) {
	fs := &fakeService{report: service.SendReport{
		Results: []model.SendResult{
			{Name: "A", Number: "1", Status: model.ResultSuccess, MessageID: "m1"},
			{Name: "B", Number: "2", Status: model.ResultError, Error: "boom"},
		},
		Summary: model.Summary{Total: 2, Success: 1, Failed: 1},
	}}

	rr := serve(t, fs, http.MethodPost, "/api/send",
		`{"recipients":[{"name":"A","number":"1"},{"name":"B","number":"2"}],"messageTemplate":"Hey {name}"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if fs.gotTemplate != "Hey {name}" || len(fs.gotRecipients) != 2 {
		t.Fatalf("unexpected args: %q %+v", fs.gotTemplate, fs.gotRecipients)
	}

	body := decodeJSON(t, rr)
	summary := body["summary"].(map[string]any)
	if summary["total"] != float64(2) || summary["success"] != float64(1) || summary["failed"] != float64(1) {
		t.Fatalf("unexpected summary: %v", summary)
	}
	results := body["results"].([]any)
	if second := results[1].(map[string]any); second["status"] != "error" || second["error"] != "boom" {
		t.Fatalf("unexpected second result: %v", second)
	}
}

func TestSendNow_TransportUnavailableIs503(t *testing.T) {
	fs := &fakeService{sendErr: service.ErrTransportUnavailable}

	rr := serve(t, fs, http.MethodPost, "/api/send", `{"recipients":[{"number":"1"}],"messageTemplate":"x"}`)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestSchedule_ShuttingDownIs503(t *testing.T) {
	fs := &fakeService{err: service.ErrStopped}

	rr := serve(t, fs, http.MethodPost, "/api/schedule", `{"recipients":[{"number":"1"}],"messageTemplate":"x","scheduledTime":"2030-01-01T00:00"}`)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestLogs(t *testing.T) {
	ts := time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC)
	fs := &fakeService{logs: []model.ActivityEntry{{Timestamp: ts, Message: "Restored 1 scheduled job(s)"}}}

	rr := serve(t, fs, http.MethodGet, "/api/logs", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	logs := body["logs"].([]any)
	if len(logs) != 1 {
		t.Fatalf("expected one log entry, got %v", logs)
	}
	entry := logs[0].(map[string]any)
	if entry["message"] != "Restored 1 scheduled job(s)" || entry["timestamp"] != "2025-06-20T10:00:00Z" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestStatus(t *testing.T) {
	fs := &fakeService{status: service.Status{Connected: true, Pending: 3, Armed: 3}}

	rr := serve(t, fs, http.MethodGet, "/api/status", "")

	body := decodeJSON(t, rr)
	if body["connected"] != true || body["pending"] != float64(3) {
		t.Fatalf("unexpected status: %v", body)
	}
}

func TestUnexpectedErrorIs500(t *testing.T) {
	fs := &fakeService{err: errors.New("db down")}

	rr := serve(t, fs, http.MethodGet, "/api/scheduled", "")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d body=%q", rr.Code, rr.Body.String())
	}
	if body := decodeJSON(t, rr); body["error"] != "db down" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRequestLogger_PassesThroughAndCapturesStatus(t *testing.T) {
	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	if body := rr.Body.String(); body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

func TestUnknownMethodIs405(t *testing.T) {
	rr := serve(t, &fakeService{}, http.MethodPut, "/api/schedule", "")

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
