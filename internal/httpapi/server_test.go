package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/echodl/echo-downloader/internal/config"
	"github.com/echodl/echo-downloader/internal/download"
	"github.com/echodl/echo-downloader/internal/model"
	"github.com/echodl/echo-downloader/internal/platform"
	"github.com/echodl/echo-downloader/internal/preview"
	"github.com/echodl/echo-downloader/internal/store"
)

// idleRunner keeps every started job alive until its context is cancelled,
// so submitted jobs sit in Running for the duration of a test.
type idleRunner struct{}

func (idleRunner) Start(ctx context.Context, name string, args ...string) (platform.Handle, error) {
	h := &idleHandle{lines: make(chan string), result: make(chan error, 1)}
	go func() {
		<-ctx.Done()
		close(h.lines)
		h.result <- errors.New("signal: terminated")
	}()
	return h, nil
}

type idleHandle struct {
	lines  chan string
	result chan error
}

func (h *idleHandle) Lines() <-chan string { return h.lines }
func (h *idleHandle) Wait() error          { return <-h.result }

type stubPreviewer struct {
	result preview.Result
	err    error
}

func (p stubPreviewer) Lookup(_ context.Context, _ string) (preview.Result, error) {
	return p.result, p.err
}

func newTestServer(t *testing.T, p Previewer) (Server, *download.Manager) {
	t.Helper()
	settings := config.Defaults()
	settings.DownloadsDir = t.TempDir()
	settings.MaxQueueLen = 2

	st := store.New(settings.HistorySize)
	m := download.NewManager(settings, st, idleRunner{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	if p == nil {
		p = stubPreviewer{}
	}
	return Server{Manager: m, Preview: p}, m
}

func doRequest(t *testing.T, srv Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return m
}

func TestSubmit_Accepted(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodPost, "/download",
		`{"url": "https://example.com/watch?v=a", "format": "audio"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, expected 202 (body %q)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if id, _ := body["job_id"].(string); id == "" {
		t.Errorf("response missing job_id: %v", body)
	}
}

func TestSubmit_InvalidRequest(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"bad url", `{"url": "ftp://example.com/x", "format": "video"}`},
		{"bad format", `{"url": "https://example.com/x", "format": "flac"}`},
		{"malformed json", `{not json`},
	}
	for _, test := range tests {
		rec := doRequest(t, srv, http.MethodPost, "/download", test.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, expected 400", test.name, rec.Code)
		}
	}
}

func TestSubmit_QueueFull(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	// MaxParallel 3 running plus MaxQueueLen 2 queued fill the system
	for i := 0; i < 5; i++ {
		rec := doRequest(t, srv, http.MethodPost, "/download",
			`{"url": "https://example.com/watch?v=a", "format": "video"}`)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("submit %d: status = %d, expected 202", i, rec.Code)
		}
	}

	rec := doRequest(t, srv, http.MethodPost, "/download",
		`{"url": "https://example.com/watch?v=overflow", "format": "video"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, expected 503 when the queue is full", rec.Code)
	}
}

func TestStatus_ReturnsJob(t *testing.T) {
	srv, m := newTestServer(t, nil)

	id, err := m.Submit("https://example.com/watch?v=a", "video")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/status/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["id"] != id {
		t.Errorf("id = %v, expected %s", body["id"], id)
	}
	if body["source_url"] != "https://example.com/watch?v=a" {
		t.Errorf("source_url = %v", body["source_url"])
	}
	if _, ok := body["progress_percent"]; !ok {
		t.Errorf("response missing progress_percent: %v", body)
	}
}

func TestStatus_UnknownJob(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/status/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, expected 404", rec.Code)
	}
}

func TestListJobs(t *testing.T) {
	srv, m := newTestServer(t, nil)

	first, _ := m.Submit("https://example.com/watch?v=1", "video")
	second, _ := m.Submit("https://example.com/watch?v=2", "audio")

	rec := doRequest(t, srv, http.MethodGet, "/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	var jobs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, expected 2", len(jobs))
	}
	if jobs[0]["id"] != first || jobs[1]["id"] != second {
		t.Errorf("jobs not in submission order: %v, %v", jobs[0]["id"], jobs[1]["id"])
	}
}

func TestCancel(t *testing.T) {
	srv, m := newTestServer(t, nil)

	id, _ := m.Submit("https://example.com/watch?v=a", "video")

	rec := doRequest(t, srv, http.MethodPost, "/cancel/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["cancel_requested"] != true {
		t.Errorf("cancel_requested = %v, expected true", body["cancel_requested"])
	}
}

func TestCancel_UnknownJob(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodPost, "/cancel/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, expected 404", rec.Code)
	}
}

func TestPreview(t *testing.T) {
	srv, _ := newTestServer(t, stubPreviewer{
		result: preview.Result{Title: "A Video", ThumbnailURL: "https://img.example.com/t.jpg"},
	})

	rec := doRequest(t, srv, http.MethodGet, "/preview?url=https%3A%2F%2Fexample.com%2Fwatch%3Fv%3Da", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["title"] != "A Video" {
		t.Errorf("title = %v, expected %q", body["title"], "A Video")
	}
}

func TestPreview_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"timeout", model.ErrPreviewTimeout, http.StatusRequestTimeout},
		{"unavailable", model.ErrPreviewUnavailable, http.StatusBadGateway},
		{"bad url", model.ErrInvalidRequest, http.StatusBadRequest},
	}
	for _, test := range tests {
		srv, _ := newTestServer(t, stubPreviewer{err: test.err})
		rec := doRequest(t, srv, http.MethodGet, "/preview?url=x", "")
		if rec.Code != test.expected {
			t.Errorf("%s: status = %d, expected %d", test.name, rec.Code, test.expected)
		}
	}
}

func TestOpenFolder_NotCompleted(t *testing.T) {
	srv, m := newTestServer(t, nil)

	id, _ := m.Submit("https://example.com/watch?v=a", "video")

	rec := doRequest(t, srv, http.MethodPost, "/open_folder/"+id, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, expected 409 for a job without output", rec.Code)
	}
}

func TestOpenFolder_UnknownJob(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodPost, "/open_folder/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, expected 404", rec.Code)
	}
}

func TestMode_Toggle(t *testing.T) {
	srv, m := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodPost, "/mode", `{"queue": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["queue_mode"] != true {
		t.Errorf("queue_mode = %v, expected true", body["queue_mode"])
	}
	if !m.QueueMode() {
		t.Error("manager should be in queue mode")
	}

	rec = doRequest(t, srv, http.MethodGet, "/mode", "")
	if body := decodeBody(t, rec); body["queue_mode"] != true {
		t.Errorf("GET /mode queue_mode = %v, expected true", body["queue_mode"])
	}
}

func TestHistory_Empty(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	var entries []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len(entries) = %d, expected 0", len(entries))
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, expected 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, expected %q", rec.Body.String(), "ok")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodOptions, "/download", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, expected 204", rec.Code)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, expected *", origin)
	}
}
