package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/activity-import/internal/analysis"
	"github.com/JonMunkholm/activity-import/internal/audit"
	"github.com/JonMunkholm/activity-import/internal/cache"
	"github.com/JonMunkholm/activity-import/internal/config"
	"github.com/JonMunkholm/activity-import/internal/core"
)

// fakeService is an httptest stand-in for the analysis service that counts
// requests per route.
type fakeService struct {
	mu   sync.Mutex
	hits map[string]int
	srv  *httptest.Server
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{hits: make(map[string]int)}

	mux := http.NewServeMux()
	reply := func(route, body string) {
		mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.hits[route]++
			f.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, body)
		})
	}
	reply("POST /api/v1/import/preview",
		`{"total_rows":2,"valid_rows":2,"invalid_rows":0,"columns_found":["Activity Key"],"columns_missing":[],"rows":[]}`)
	reply("POST /api/v1/import/activities",
		`{"total_rows":2,"imported":1,"failed":1,"import_batch_id":"b1","success":true,
		  "errors":[{"row":3,"errors":"Unknown unit"}]}`)
	reply("GET /api/v1/import/batches",
		`[{"id":"b1","file_name":"fuel.csv","uploaded_at":"2026-07-01T10:00:00Z","status":"partial","total_rows":2,"successful_rows":1,"failed_rows":1}]`)
	reply("GET /api/v1/import/batches/{id}/activities",
		`{"activity_count":1,"activities":[{"id":"a1","activity_key":"diesel","description":"Fleet","quantity":10,"unit":"l","scope":1,"category_code":"1.2"}]}`)
	reply("DELETE /api/v1/organization/activities", `{"deleted_activities":7,"deleted_emissions":7}`)
	mux.HandleFunc("GET /api/v1/import/template", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="scope_3.xlsx"`)
		io.WriteString(w, "PK")
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) count(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[route]
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Import: config.ImportConfig{
			MaxFileSize: 1 << 20, BatchListLimit: 20, MaxConcurrent: 2,
			MaxWaitTime: time.Second, SessionTTL: time.Hour, DefaultMode: "standard",
		},
		Cache: config.CacheConfig{TTL: time.Minute},
	}
}

type testServer struct {
	*Server
	svc *fakeService
}

func newTestServer(t *testing.T, cfg *config.Config, lister AuditLister) *testServer {
	t.Helper()
	svc := newFakeService(t)
	client, err := analysis.New(svc.srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("analysis.New() error = %v", err)
	}
	s := NewServer(cfg, Deps{
		Backend:  client,
		Cache:    cache.New(cfg.Cache.TTL),
		Gate:     core.NewRequestGate(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		AuditLog: lister,
	})
	return &testServer{Server: s, svc: svc}
}

// do sends a request carrying the session cookie, if any, and records the
// cookie the server hands out.
func (ts *testServer) do(t *testing.T, cookie *http.Cookie, req *http.Request) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	return rec, cookie
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func fileRequest(t *testing.T, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import/file", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	rec, _ := ts.do(t, nil, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}
}

func TestSession_CookieReused(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	rec, cookie := ts.do(t, nil, httptest.NewRequest(http.MethodGet, "/api/import/state", nil))
	if rec.Code != http.StatusOK || cookie == nil {
		t.Fatalf("first request = %d, cookie %v", rec.Code, cookie)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie is not HttpOnly")
	}
	if got := decodeState(t, rec)["state"]; got != string(core.StateUpload) {
		t.Errorf("state = %v", got)
	}

	rec, _ = ts.do(t, cookie, httptest.NewRequest(http.MethodGet, "/api/import/state", nil))
	if len(rec.Result().Cookies()) != 0 {
		t.Error("known session got a new cookie")
	}
	if ts.sessions.len() != 1 {
		t.Errorf("sessions = %d, want 1", ts.sessions.len())
	}
}

func TestStandardImportFlow(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	rec, cookie := ts.do(t, nil, jsonRequest(http.MethodPost, "/api/import/context",
		`{"period_id":"p1","sites":[{"id":"s1","name":"Plant"}]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("context = %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = ts.do(t, cookie, jsonRequest(http.MethodPost, "/api/import/site", `{"site_id":"s1"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("site = %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = ts.do(t, cookie, fileRequest(t, "fuel.csv", []byte("Activity Key,Quantity\ndiesel,10\n")))
	if rec.Code != http.StatusOK {
		t.Fatalf("file = %d %s", rec.Code, rec.Body.String())
	}
	state := decodeState(t, rec)
	if state["state"] != string(core.StatePreview) || state["can_commit"] != true {
		t.Fatalf("after preview: %v", state)
	}

	// Two reads, one backend call.
	for i := 0; i < 2; i++ {
		rec, _ = ts.do(t, cookie, httptest.NewRequest(http.MethodGet, "/api/batches", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("batches = %d %s", rec.Code, rec.Body.String())
		}
	}
	if n := ts.svc.count("GET /api/v1/import/batches"); n != 1 {
		t.Errorf("batch list fetched %d times, want 1", n)
	}

	rec, _ = ts.do(t, cookie, httptest.NewRequest(http.MethodPost, "/api/import/commit", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("commit = %d %s", rec.Code, rec.Body.String())
	}
	if state := decodeState(t, rec); state["state"] != string(core.StateResult) {
		t.Fatalf("after commit: %v", state)
	}

	// The commit invalidated the cached list.
	ts.do(t, cookie, httptest.NewRequest(http.MethodGet, "/api/batches", nil))
	if n := ts.svc.count("GET /api/v1/import/batches"); n != 2 {
		t.Errorf("batch list fetched %d times after commit, want 2", n)
	}

	rec, _ = ts.do(t, cookie, httptest.NewRequest(http.MethodGet, "/api/import/errors.csv", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `3,,,,,,"Unknown unit"`) {
		t.Errorf("errors.csv = %d %q", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "import_errors_") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rec, _ = ts.do(t, cookie, httptest.NewRequest(http.MethodPost, "/api/import/reset", nil))
	if state := decodeState(t, rec); state["state"] != string(core.StateUpload) || state["site_id"] != "s1" {
		t.Errorf("after reset: %v", state)
	}
}

func TestSelectFile_Rejections(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	_, cookie := ts.do(t, nil, jsonRequest(http.MethodPost, "/api/import/context", `{"period_id":"p1"}`))

	rec, _ := ts.do(t, cookie, fileRequest(t, "scan.pdf", []byte("%PDF")))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "VAL001") {
		t.Errorf("pdf = %d %s", rec.Code, rec.Body.String())
	}

	big := bytes.Repeat([]byte("a"), int(testConfig().Import.MaxFileSize)+10)
	rec, _ = ts.do(t, cookie, fileRequest(t, "big.csv", big))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("big file = %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = ts.do(t, cookie, httptest.NewRequest(http.MethodPost, "/api/import/commit", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("commit in upload = %d", rec.Code)
	}

	if n := ts.svc.count("POST /api/v1/import/preview"); n != 0 {
		t.Errorf("preview requests = %d, want 0", n)
	}

	// The banner stays on the workflow for the next render.
	rec, _ = ts.do(t, cookie, httptest.NewRequest(http.MethodGet, "/api/import/state", nil))
	if decodeState(t, rec)["error"] == nil {
		t.Error("error banner not kept")
	}
}

func TestSelectFile_NeedsPeriod(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	rec, _ := ts.do(t, nil, fileRequest(t, "fuel.csv", []byte("x")))
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "PRE001") {
		t.Errorf("no period = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSetMode(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	rec, cookie := ts.do(t, nil, jsonRequest(http.MethodPost, "/api/import/mode", `{"mode":"unified"}`))
	if rec.Code != http.StatusOK || decodeState(t, rec)["mode"] != "unified" {
		t.Fatalf("mode = %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = ts.do(t, cookie, jsonRequest(http.MethodPost, "/api/import/mode", `{"mode":"magic"}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown mode = %d", rec.Code)
	}

	rec, _ = ts.do(t, cookie, jsonRequest(http.MethodPost, "/api/import/mode", `{`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d", rec.Code)
	}
}

func TestBatchDetailAndExport(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	rec, cookie := ts.do(t, nil, httptest.NewRequest(http.MethodGet, "/api/batches/b1/export", nil))
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "LED002") {
		t.Errorf("export before expand = %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = ts.do(t, cookie, httptest.NewRequest(http.MethodGet, "/api/batches/b1/activities", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"batch_id":"b1"`) {
		t.Fatalf("activities = %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = ts.do(t, cookie, httptest.NewRequest(http.MethodGet, "/api/batches/b1/export", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `diesel,"Fleet",10,l,1,1.2`) {
		t.Errorf("export = %d %q", rec.Code, rec.Body.String())
	}

	rec, _ = ts.do(t, cookie, httptest.NewRequest(http.MethodDelete, "/api/batches/b1/activities", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("collapse = %d", rec.Code)
	}
	rec, _ = ts.do(t, cookie, httptest.NewRequest(http.MethodGet, "/api/batches/b1/export", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("export after collapse = %d", rec.Code)
	}
}

func TestDeleteOrganization_RequiresTypedToken(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	for _, body := range []string{"", `{"confirmed":false}`, `{"confirmed":true}`, `{"confirmed":true,"typed":"delete"}`} {
		rec, _ := ts.do(t, nil, jsonRequest(http.MethodDelete, "/api/organization/activities", body))
		if rec.Code != http.StatusPreconditionFailed {
			t.Errorf("body %q: status = %d, want 412", body, rec.Code)
		}
	}
	if n := ts.svc.count("DELETE /api/v1/organization/activities"); n != 0 {
		t.Fatalf("unconfirmed wipe reached the service %d times", n)
	}

	rec, _ := ts.do(t, nil, jsonRequest(http.MethodDelete, "/api/organization/activities",
		`{"confirmed":true,"typed":"DELETE"}`))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"deleted_activities":7`) {
		t.Errorf("wipe = %d %s", rec.Code, rec.Body.String())
	}
}

func TestDownloadTemplate(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	rec, _ := ts.do(t, nil, httptest.NewRequest(http.MethodGet, "/api/import/template/3", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "PK" {
		t.Fatalf("template = %d %q", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "scope_3.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rec, _ = ts.do(t, nil, httptest.NewRequest(http.MethodGet, "/api/import/template/7", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad scope = %d", rec.Code)
	}
}

type fakeLister struct {
	got audit.ListOptions
}

func (f *fakeLister) List(_ context.Context, opts audit.ListOptions) ([]core.AuditEntry, error) {
	f.got = opts
	return []core.AuditEntry{{ID: "e1", Action: core.ActionImportCommit}}, nil
}

func TestAuditLog(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	rec, _ := ts.do(t, nil, httptest.NewRequest(http.MethodGet, "/api/audit-log", nil))
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "AUD001") {
		t.Errorf("disabled audit log = %d %s", rec.Code, rec.Body.String())
	}

	lister := &fakeLister{}
	ts = newTestServer(t, testConfig(), lister)
	rec, _ = ts.do(t, nil, httptest.NewRequest(http.MethodGet,
		"/api/audit-log?action=batch_delete&limit=5&since=2026-01-02T00:00:00Z", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"e1"`) {
		t.Fatalf("audit log = %d %s", rec.Code, rec.Body.String())
	}
	if lister.got.Action != core.ActionBatchDelete || lister.got.Limit != 5 || lister.got.Since.IsZero() {
		t.Errorf("options = %+v", lister.got)
	}

	rec, _ = ts.do(t, nil, httptest.NewRequest(http.MethodGet, "/api/audit-log?since=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad since = %d", rec.Code)
	}
}

func TestUploadRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 1}
	ts := newTestServer(t, cfg, nil)

	_, cookie := ts.do(t, nil, jsonRequest(http.MethodPost, "/api/import/context", `{"period_id":"p1"}`))
	ts.do(t, cookie, fileRequest(t, "fuel.csv", []byte("x")))
	rec, _ := ts.do(t, cookie, fileRequest(t, "fuel.csv", []byte("x")))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second upload = %d, want 429", rec.Code)
	}

	// Other endpoints use the general limit.
	rec, _ = ts.do(t, cookie, httptest.NewRequest(http.MethodGet, "/api/import/state", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("state = %d", rec.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}
	ts := newTestServer(t, cfg, nil)

	rec, _ := ts.do(t, nil, httptest.NewRequest(http.MethodGet, "/api/import/state", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/import/state", nil)
	req.Header.Set("X-API-Key", "k1")
	rec, _ = ts.do(t, nil, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid key = %d", rec.Code)
	}

	rec, _ = ts.do(t, nil, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz behind auth = %d", rec.Code)
	}
}

func TestHTMXRendersFragments(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/import/state", nil)
	req.Header.Set("HX-Request", "true")
	rec, cookie := ts.do(t, nil, req)
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") ||
		!strings.Contains(rec.Body.String(), `data-state="upload"`) {
		t.Errorf("state fragment = %q", rec.Body.String())
	}

	req = jsonRequest(http.MethodPost, "/api/import/mode", `{"mode":"magic"}`)
	req.Header.Set("HX-Request", "true")
	rec, _ = ts.do(t, cookie, req)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), `class="alert alert-error"`) {
		t.Errorf("error fragment = %d %q", rec.Code, rec.Body.String())
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st := newSessionStore(time.Minute, func(shared *core.StaticState) (*core.Workflow, error) {
		return core.NewWorkflow(core.Options{Backend: &analysis.Client{}, Shared: shared})
	})
	st.now = func() time.Time { return now }

	a, err := st.create()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := st.create()

	now = now.Add(45 * time.Second)
	if _, ok := st.get(a.id); !ok {
		t.Fatal("session expired early")
	}

	now = now.Add(45 * time.Second)
	if removed := st.sweep(); removed != 1 {
		t.Errorf("sweep() removed %d, want 1", removed)
	}
	if _, ok := st.get(b.id); ok {
		t.Error("idle session still live")
	}
	if _, ok := st.get(a.id); !ok {
		t.Error("touched session expired")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrBusy, http.StatusConflict},
		{core.ErrStale, http.StatusConflict},
		{&core.ConflictError{}, http.StatusConflict},
		{core.ErrNotConfirmed, http.StatusPreconditionFailed},
		{core.ErrNoErrors, http.StatusNotFound},
		{core.ErrTooManyRequests, http.StatusServiceUnavailable},
		{&core.ValidationError{Reason: "empty file"}, http.StatusBadRequest},
		{&core.PreconditionError{Reason: "no sheets selected"}, http.StatusUnprocessableEntity},
		{&core.CommitError{Err: &analysis.APIError{StatusCode: 400}}, http.StatusUnprocessableEntity},
		{&core.LedgerError{Err: &analysis.APIError{StatusCode: 404}}, http.StatusNotFound},
		{&core.LedgerError{Err: &analysis.APIError{StatusCode: 500}}, http.StatusBadGateway},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRespondError_BackendMessageVerbatim(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	err := &core.AnalysisError{
		Mode: core.ModeUnified,
		Err:  &analysis.APIError{Op: "unified preview", StatusCode: 422, Message: "AI column mapping timeout: sheet 'Fuel' exceeded 60s"},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/import/file", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	ts.fail(rec, req, err)

	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if body.Message != "AI column mapping timeout: sheet 'Fuel' exceeded 60s" || body.Code != "ANL001" {
		t.Errorf("body = %+v", body)
	}
}
