package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/coursemd/internal/classify"
	"github.com/dgallion1/coursemd/internal/config"
	"github.com/dgallion1/coursemd/internal/convert"
	"github.com/dgallion1/coursemd/internal/llm"
	"github.com/dgallion1/coursemd/internal/pipeline"
	"github.com/dgallion1/coursemd/internal/store"
)

const testKey = "secret"

type testEnv struct {
	srv  *httptest.Server
	orch *pipeline.Orchestrator
}

func newTestEnv(t *testing.T, stats *llm.Stats) *testEnv {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	cfg := config.Config{
		APIKey:         testKey,
		LLMProvider:    config.ProviderAnthropic,
		AnthropicModel: "test-model",
		WorkerCount:    1,
		MaxQueueSize:   10,
		MaxUploadBytes: 1 << 20,
		JobTTL:         time.Hour,
	}

	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	cls, err := classify.New(classify.DefaultRules())
	if err != nil {
		t.Fatalf("classify.New: %v", err)
	}
	orch := pipeline.NewOrchestrator(cfg, convert.New(cls, nil, convert.Options{}, log), st, log)
	orch.Start(context.Background())

	srv := httptest.NewServer(NewServer(orch, st, stats, log, cfg))
	t.Cleanup(func() {
		srv.Close()
		orch.Stop()
		_ = st.Close()
	})
	return &testEnv{srv: srv, orch: orch}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func (e *testEnv) waitForJob(t *testing.T, jobID string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		body := decode(t, e.do(t, http.MethodGet, "/api/convert/"+jobID+"/status", nil, ""))
		if pipeline.JobStatus(body["status"].(string)).Terminal() {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return nil
}

func multipartBody(t *testing.T, field string, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHealth_NoAuth(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := http.Get(env.srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if body := decode(t, resp); body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestAuth_Rejected(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, header := range []string{"", "Bearer wrong", "Basic " + testKey} {
		req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/documents", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401 for %q, got %d", header, resp.StatusCode)
		}
	}
}

func TestConvertText_Lifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	payload := `{"title":"Course","text":"Introduction\nWelcome.\nChapter 1\n1.1 Setup\n• install\n"}`
	resp := env.do(t, http.MethodPost, "/api/convert/text", strings.NewReader(payload), "application/json")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	acc := decode(t, resp)
	jobID, docID := acc["job_id"].(string), acc["doc_id"].(string)
	if acc["poll_url"] != "/api/convert/"+jobID+"/status" {
		t.Errorf("unexpected poll url %v", acc["poll_url"])
	}

	status := env.waitForJob(t, jobID)
	if status["status"] != string(pipeline.StatusCompleted) {
		t.Fatalf("expected completed, got %v", status)
	}

	md := env.do(t, http.MethodGet, "/api/documents/"+docID+"/markdown", nil, "")
	if ct := md.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("expected markdown content type, got %q", ct)
	}
	mdBody, _ := io.ReadAll(md.Body)
	for _, want := range []string{"# Introduction", "<!-- pagebreak -->\n# Chapter 1", "### 1.1 Setup", "- install"} {
		if !strings.Contains(string(mdBody), want) {
			t.Errorf("expected markdown to contain %q, got:\n%s", want, mdBody)
		}
	}

	page := env.do(t, http.MethodGet, "/api/documents/"+docID+"/html", nil, "")
	pageBody, _ := io.ReadAll(page.Body)
	if !strings.Contains(string(pageBody), "<title>Course</title>") {
		t.Errorf("expected titled HTML page, got:\n%s", pageBody)
	}

	meta := decode(t, env.do(t, http.MethodGet, "/api/documents/"+docID, nil, ""))
	if meta["title"] != "Course" {
		t.Errorf("expected title Course, got %v", meta["title"])
	}
	if _, ok := meta["markdown"]; ok {
		t.Error("expected metadata response without markdown body")
	}
	if rep, ok := meta["report"].(map[string]any); !ok || rep["headings"].(float64) != 3 {
		t.Errorf("expected report with 3 headings, got %v", meta["report"])
	}

	list := decode(t, env.do(t, http.MethodGet, "/api/documents?limit=10", nil, ""))
	if list["total"].(float64) != 1 {
		t.Errorf("expected 1 document, got %v", list["total"])
	}

	if resp := env.do(t, http.MethodDelete, "/api/documents/"+docID, nil, ""); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 on delete, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodDelete, "/api/documents/"+docID, nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/documents/"+docID, nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestConvertText_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, body := range []string{`{"text":"   "}`, `not json`} {
		resp := env.do(t, http.MethodPost, "/api/convert/text", strings.NewReader(body), "application/json")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400 for %q, got %d", body, resp.StatusCode)
		}
	}
}

func TestConvert_FileUploadAndDuplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	content := "Overview\nSome text.\n"

	body, ct := multipartBody(t, "file", map[string]string{"notes.txt": content}, map[string]string{"title": "Notes"})
	first := decode(t, env.do(t, http.MethodPost, "/api/convert", body, ct))
	if s := env.waitForJob(t, first["job_id"].(string)); s["status"] != string(pipeline.StatusCompleted) {
		t.Fatalf("expected completed, got %v", s)
	}

	body, ct = multipartBody(t, "file", map[string]string{"copy.txt": content}, nil)
	second := decode(t, env.do(t, http.MethodPost, "/api/convert", body, ct))
	s := env.waitForJob(t, second["job_id"].(string))
	if s["status"] != string(pipeline.StatusDupSkipped) {
		t.Fatalf("expected duplicate_skipped, got %v", s)
	}
	if s["duplicate_of"] != first["doc_id"] {
		t.Errorf("expected duplicate of %v, got %v", first["doc_id"], s["duplicate_of"])
	}

	body, ct = multipartBody(t, "file", map[string]string{"again.txt": content}, map[string]string{"force": "true"})
	forced := decode(t, env.do(t, http.MethodPost, "/api/convert", body, ct))
	if s := env.waitForJob(t, forced["job_id"].(string)); s["status"] != string(pipeline.StatusCompleted) {
		t.Errorf("expected forced conversion to complete, got %v", s)
	}
}

func TestConvert_UnsupportedType(t *testing.T) {
	env := newTestEnv(t, nil)
	body, ct := multipartBody(t, "file", map[string]string{"deck.pptx": "x"}, nil)
	resp := env.do(t, http.MethodPost, "/api/convert", body, ct)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBatchConvert(t *testing.T) {
	env := newTestEnv(t, nil)
	body, ct := multipartBody(t, "files", map[string]string{
		"a.txt": "Preface\none",
		"b.md":  "# Appendix\n\ntwo",
		"c.exe": "nope",
	}, nil)
	resp := env.do(t, http.MethodPost, "/api/convert/batch", body, ct)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	out := decode(t, resp)
	jobs := out["jobs"].([]any)
	if len(jobs) != 3 {
		t.Fatalf("expected 3 results, got %d", len(jobs))
	}
	queued, rejected := 0, 0
	for _, j := range jobs {
		m := j.(map[string]any)
		if _, ok := m["error"]; ok {
			rejected++
			continue
		}
		queued++
		env.waitForJob(t, m["job_id"].(string))
	}
	if queued != 2 || rejected != 1 {
		t.Errorf("expected 2 queued and 1 rejected, got %d and %d", queued, rejected)
	}
}

func TestConvertStatus_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodGet, "/api/convert/nope/status", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestLLMStats(t *testing.T) {
	env := newTestEnv(t, nil)
	if resp := env.do(t, http.MethodGet, "/api/stats/llm", nil, ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without stats, got %d", resp.StatusCode)
	}

	stats := llm.NewStats(time.Hour)
	stats.Record(20*time.Millisecond, nil)
	env = newTestEnv(t, stats)
	resp := env.do(t, http.MethodGet, "/api/stats/llm", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["model"] != "test-model" {
		t.Errorf("expected model test-model, got %v", body["model"])
	}
	if s := body["stats"].(map[string]any); s["ok"].(float64) != 1 {
		t.Errorf("expected 1 ok call, got %v", s["ok"])
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"notes.txt":           "notes.txt",
		"../../etc/passwd":    "passwd",
		`C:\Users\me\doc.pdf`: "doc.pdf",
		"a..b.md":             "a_b.md",
		"":                    "unnamed",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}
