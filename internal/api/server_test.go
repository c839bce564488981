package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/splinegest/internal/cache"
	"github.com/dgallion1/splinegest/internal/config"
	"github.com/dgallion1/splinegest/internal/pathstore"
	"github.com/dgallion1/splinegest/internal/pipeline"
)

const testKey = "test-key"

const sceneDoc = `<?xml version="1.0" encoding="utf-8"?>
<COLLADA version="1.4.1">
  <asset><contributor><authoring_tool>CINEMA4D 21.207 COLLADA Exporter</authoring_tool></contributor></asset>
  <library_geometries>
    <geometry id="ID3">
      <mesh>
        <source><float_array count="6">0 0 0 3 4 0</float_array></source>
        <linestrips count="1"><p>0 1</p></linestrips>
      </mesh>
    </geometry>
    <geometry id="ID5">
      <mesh>
        <source><float_array count="6">1 1 1 2 2 2</float_array></source>
        <linestrips count="1"><p>0 1</p></linestrips>
      </mesh>
    </geometry>
  </library_geometries>
  <library_visual_scenes>
    <visual_scene id="ID1">
      <node name="Road"><instance_geometry url="#ID3"/></node>
    </visual_scene>
  </library_visual_scenes>
</COLLADA>`

func testConfig() config.Config {
	return config.Config{
		SplinegestAPIKey:   testKey,
		CacheTTL:           time.Hour,
		WorkerCount:        1,
		MaxQueueSize:       10,
		MaxConcurrentStore: 2,
		MaxUploadBytes:     1 << 20,
		JobTTL:             time.Hour,
		StatsWindow:        time.Hour,
		DefaultUnitScale:   1,
	}
}

func newTestServer(t *testing.T, ps *pathstore.Client) (*Server, *pipeline.Orchestrator) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()
	orch := pipeline.NewOrchestrator(cfg, cache.NewMemoryCache(), ps, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return NewServer(orch, log, cfg), orch
}

func do(t *testing.T, srv http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func upload(t *testing.T, srv http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("user_id", "u1")
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	io.WriteString(fw, content)
	mw.Close()
	return do(t, srv, http.MethodPost, "/api/imports", &buf, mw.FormDataContentType())
}

func waitForJob(t *testing.T, orch *pipeline.Orchestrator, id string) pipeline.JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job := orch.GetJob(id); job != nil {
			if snap := job.Snapshot(); snap.Status.Terminal() {
				return snap
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return pipeline.JobSnapshot{}
}

func TestHealth_NoAuth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + testKey},
		{"wrong key", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/stats/imports", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestParse_Success(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := do(t, srv, http.MethodPost, "/api/parse?scale=2", strings.NewReader(sceneDoc), "application/xml")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["supported"] != true || out["tool"] != "c4d" {
		t.Errorf("unexpected response %+v", out)
	}
	splines := out["splines"].([]any)
	if len(splines) != 2 {
		t.Fatalf("expected 2 splines, got %d", len(splines))
	}
	first := splines[0].(map[string]any)
	if first["name"] != "Road" || first["length"] != 10.0 {
		t.Errorf("unexpected first spline %+v", first)
	}
	second := splines[1].(map[string]any)
	if second["name"] != nil {
		t.Errorf("expected unnamed second spline, got %+v", second)
	}
	pt := first["points"].([]any)[1].([]any)
	if pt[0] != 6.0 || pt[1] != 8.0 {
		t.Errorf("expected scaled point [6 8 0], got %v", pt)
	}
}

func TestParse_Outcomes(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	tests := []struct {
		name     string
		target   string
		body     string
		wantCode int
	}{
		{"unsupported tool", "/api/parse", strings.Replace(sceneDoc, "CINEMA4D", "Blender", 1), http.StatusOK},
		{"invalid root", "/api/parse", "<scene/>", http.StatusUnprocessableEntity},
		{"missing asset", "/api/parse", "<COLLADA><library_geometries/></COLLADA>", http.StatusUnprocessableEntity},
		{"malformed xml", "/api/parse", "<COLLADA>", http.StatusBadRequest},
		{"bad scale", "/api/parse?scale=big", sceneDoc, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, tt.target, strings.NewReader(tt.body), "application/xml")
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
		})
	}

	rec := do(t, srv, http.MethodPost, "/api/parse", strings.NewReader(strings.Replace(sceneDoc, "CINEMA4D", "Blender", 1)), "")
	out := decode(t, rec)
	if out["supported"] != false || len(out["splines"].([]any)) != 0 {
		t.Errorf("expected unsupported with empty splines, got %+v", out)
	}
}

func TestImport_EndToEnd(t *testing.T) {
	srv, orch := newTestServer(t, nil)

	rec := upload(t, srv, "scene.dae", sceneDoc)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	jobID := decode(t, rec)["job_id"].(string)

	snap := waitForJob(t, orch, jobID)
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %q (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Title != "scene" {
		t.Errorf("expected title from filename, got %q", snap.Title)
	}

	rec = do(t, srv, http.MethodGet, "/api/imports/"+jobID+"/status", nil, "")
	if out := decode(t, rec); out["status"] != "completed" || out["tool"] != "c4d" {
		t.Errorf("unexpected status response %+v", out)
	}

	rec = do(t, srv, http.MethodGet, "/api/imports/"+jobID+"/splines?scale=0", nil, "")
	out := decode(t, rec)
	if out["scale"] != 0.0001 {
		t.Errorf("expected clamped scale, got %v", out["scale"])
	}
	if n := len(out["splines"].([]any)); n != 2 {
		t.Errorf("expected 2 splines, got %d", n)
	}

	rec = do(t, srv, http.MethodGet, "/api/imports/"+jobID+"/splines/1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if out := decode(t, rec); out["id"] != "ID5" || out["index"] != 1.0 {
		t.Errorf("unexpected spline %+v", out)
	}

	for _, idx := range []string{"2", "-1"} {
		rec = do(t, srv, http.MethodGet, "/api/imports/"+jobID+"/splines/"+idx, nil, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("index %s: expected 404, got %d", idx, rec.Code)
		}
	}
	rec = do(t, srv, http.MethodGet, "/api/imports/"+jobID+"/splines/x", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric index, got %d", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/api/imports/"+jobID+"/report", nil, "")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected html content type, got %q", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "<table>") || !strings.Contains(body, "Road") {
		t.Errorf("unexpected report %s", body)
	}

	rec = do(t, srv, http.MethodGet, "/api/imports/"+jobID+"/gltf", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for gltf, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "model/gltf-binary" {
		t.Errorf("expected glb content type, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "scene.glb") {
		t.Errorf("expected scene.glb attachment, got %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("glTF")) {
		t.Error("expected binary glTF body")
	}
}

func TestMetrics_NoAuth(t *testing.T) {
	srv, orch := newTestServer(t, nil)
	rec := upload(t, srv, "scene.dae", sceneDoc)
	waitForJob(t, orch, decode(t, rec)["job_id"].(string))

	// The import counter is bumped after the job turns terminal.
	var body string
	for deadline := time.Now().Add(2 * time.Second); time.Now().Before(deadline); time.Sleep(5 * time.Millisecond) {
		rec = httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body = rec.Body.String()
		if strings.Contains(body, `splinegest_imports_total{status="completed"}`) {
			break
		}
	}
	for _, want := range []string{
		`splinegest_imports_total{status="completed"}`,
		`route="/api/imports"`,
		"splinegest_import_duration_seconds_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestParse_NonFiniteVerticesRejected(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	body := strings.Replace(sceneDoc, "0 0 0 3 4 0", "NaN 0 0 3 4 Inf", 1)
	rec := do(t, srv, http.MethodPost, "/api/parse", strings.NewReader(body), "application/xml")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if out := decode(t, rec); out["error"] == nil {
		t.Errorf("expected an error body, got %+v", out)
	}
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]any{"v": math.NaN()})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if out := decode(t, rec); out["error"] != "failed to encode response" {
		t.Errorf("unexpected body %+v", out)
	}
}

func TestImport_FailedJobHasNoSplines(t *testing.T) {
	srv, orch := newTestServer(t, nil)
	rec := upload(t, srv, "broken.dae", "<scene/>")
	jobID := decode(t, rec)["job_id"].(string)
	waitForJob(t, orch, jobID)

	rec = do(t, srv, http.MethodGet, "/api/imports/"+jobID+"/splines", nil, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestImport_Validation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := upload(t, srv, "scene.obj", sceneDoc)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported extension, got %d", rec.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "scene.dae")
	io.WriteString(fw, sceneDoc)
	mw.Close()
	rec = do(t, srv, http.MethodPost, "/api/imports", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without user_id, got %d", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/api/imports/nope/status", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestBatchImport(t *testing.T) {
	srv, orch := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("user_id", "u1")
	for _, name := range []string{"a.dae", "b.txt"} {
		fw, _ := mw.CreateFormFile("files", name)
		io.WriteString(fw, sceneDoc)
	}
	mw.Close()

	rec := do(t, srv, http.MethodPost, "/api/imports/batch", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	jobs := decode(t, rec)["jobs"].([]any)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(jobs))
	}
	accepted := jobs[0].(map[string]any)
	if accepted["filename"] != "a.dae" || accepted["job_id"] == nil {
		t.Errorf("unexpected first entry %+v", accepted)
	}
	if rejected := jobs[1].(map[string]any); rejected["error"] == nil {
		t.Errorf("expected error for b.txt, got %+v", rejected)
	}
	waitForJob(t, orch, accepted["job_id"].(string))
}

func TestImportStats(t *testing.T) {
	srv, orch := newTestServer(t, nil)
	jobID := decode(t, upload(t, srv, "scene.dae", sceneDoc))["job_id"].(string)
	waitForJob(t, orch, jobID)

	// The sample is recorded just after the final status is set.
	deadline := time.Now().Add(2 * time.Second)
	for orch.Stats().Count == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	rec := do(t, srv, http.MethodGet, "/api/stats/imports", nil, "")
	stats := decode(t, rec)["stats"].(map[string]any)
	if stats["count"] != 1.0 {
		t.Errorf("expected one recorded import, got %+v", stats)
	}
}

func TestStored_PersistenceDisabled(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/api/splines?user_id=u1", nil, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

// fakePathstore is a tiny in-memory stand-in for the pathstore HTTP API.
type fakePathstore struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakePathstore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/*"):
		io.WriteString(w, `{"nodes":[
			{"key_path":"memory.users.u1.splines.d1.meta","value":{"content_hash":"h1"}},
			{"key_path":"memory.users.u1.splines.d1.geometries.0000-id3","value":{}}
		]}`)
	case r.Method == http.MethodGet:
		io.WriteString(w, `{"key_path":"memory.users.u1.splines.d1.meta","value":{"content_hash":"h1"}}`)
	case r.Method == http.MethodDelete:
		f.deleted = append(f.deleted, r.URL.Path+"?"+r.URL.RawQuery)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func TestStored_ListAndDelete(t *testing.T) {
	fake := &fakePathstore{}
	ps := httptest.NewServer(fake)
	defer ps.Close()
	srv, _ := newTestServer(t, pathstore.NewClient(ps.URL, "k"))

	rec := do(t, srv, http.MethodGet, "/api/splines?user_id=u1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	imports := decode(t, rec)["imports"].([]any)
	if len(imports) != 1 || imports[0].(map[string]any)["doc_id"] != "d1" {
		t.Errorf("expected only the d1 meta node, got %+v", imports)
	}

	rec = do(t, srv, http.MethodDelete, "/api/splines/d1?user_id=u1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if out := decode(t, rec); out["hash_index_deleted"] != true {
		t.Errorf("expected hash index removal, got %+v", out)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	want := []string{
		"/kv/memory/users/u1/splines/d1?children=true",
		"/kv/memory/users/u1/splines/by_hash/h1/d1?",
	}
	if len(fake.deleted) != len(want) {
		t.Fatalf("expected deletes %v, got %v", want, fake.deleted)
	}
	for i := range want {
		if fake.deleted[i] != want[i] {
			t.Errorf("delete %d: expected %q, got %q", i, want[i], fake.deleted[i])
		}
	}
}

func TestStored_RequiresUserID(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/api/splines", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
