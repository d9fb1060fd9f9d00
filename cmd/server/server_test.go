package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yosbelms/mdize"
)

func newTestServer(t *testing.T, mutate func(*mdize.Config), apiKey string) *httptest.Server {
	t.Helper()
	cfg := mdize.DefaultConfig()
	cfg.DisableCache = true
	cfg.DetectLanguage = false
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := mdize.New(cfg)
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	srv := httptest.NewServer(newRouter(newHandler(e, cfg.MaxFileSize), apiKey, "https://app.example.com"))
	t.Cleanup(func() {
		srv.Close()
		e.Close()
	})
	return srv
}

func writeTemp(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Basic endpoints
// ---------------------------------------------------------------------------

func TestHealthAndFormats(t *testing.T) {
	srv := newTestServer(t, nil, "")

	resp := get(t, srv.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	resp = get(t, srv.URL+"/formats")
	var body struct {
		Formats []string `json:"formats"`
	}
	decode(t, resp, &body)
	if len(body.Formats) == 0 {
		t.Fatal("no formats listed")
	}
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t, nil, "")

	resp := get(t, srv.URL+"/health")
	if id := resp.Header.Get("X-Request-ID"); len(id) != 36 {
		t.Errorf("generated request id = %q, want a UUID", id)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "client-42")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if id := resp2.Header.Get("X-Request-ID"); id != "client-42" {
		t.Errorf("propagated request id = %q, want client-42", id)
	}
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, nil, "secret")

	if resp := get(t, srv.URL+"/formats"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/health"); resp.StatusCode != http.StatusOK {
		t.Errorf("health should skip auth, status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/formats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil, "")

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/convert", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /convert
// ---------------------------------------------------------------------------

func TestConvertPath(t *testing.T) {
	srv := newTestServer(t, nil, "")
	path := writeTemp(t, "parts.csv", "Part,Qty\nBolt,4\n")

	resp := postJSON(t, srv.URL+"/convert", map[string]any{"path": path, "metadata": map[string]string{"k": "v"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res mdize.Result
	decode(t, resp, &res)
	if res.Markdown != "| Part | Qty |\n| --- | --- |\n| Bolt | 4 |" {
		t.Errorf("Markdown = %q", res.Markdown)
	}
	if res.Metadata["k"] != "v" {
		t.Errorf("Metadata = %v", res.Metadata)
	}
}

func TestConvertUpload(t *testing.T) {
	srv := newTestServer(t, nil, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "../../etc/notes.md")
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprint(fw, "# Notes\n\nUploaded body")
	mw.WriteField("force", "true")
	mw.Close()

	resp, err := http.Post(srv.URL+"/convert", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res mdize.Result
	decode(t, resp, &res)
	if res.Filename != "notes.md" || res.Title != "Notes" {
		t.Errorf("filename/title = %q/%q", res.Filename, res.Title)
	}
	if res.Markdown != "# Notes\n\nUploaded body" {
		t.Errorf("Markdown = %q", res.Markdown)
	}
}

type failingCloser struct {
	bytes.Buffer
	closeErr error
}

func (f *failingCloser) Close() error { return f.closeErr }

func TestSaveUpload(t *testing.T) {
	errDisk := errors.New("disk full")
	tests := []struct {
		name     string
		closeErr error
		wantErr  bool
	}{
		{"ok", nil, false},
		{"close fails", errDisk, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := &failingCloser{closeErr: tt.closeErr}
			err := saveUpload(dst, strings.NewReader("payload"))
			if tt.wantErr {
				if !errors.Is(err, errDisk) {
					t.Errorf("err = %v, want %v", err, errDisk)
				}
				return
			}
			if err != nil {
				t.Fatalf("saveUpload: %v", err)
			}
			if dst.String() != "payload" {
				t.Errorf("written = %q", dst.String())
			}
		})
	}
}

func TestConvertUploadMissingFile(t *testing.T) {
	srv := newTestServer(t, nil, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("force", "true")
	mw.Close()

	resp, err := http.Post(srv.URL+"/convert", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestConvertStatusCodes(t *testing.T) {
	srv := newTestServer(t, func(c *mdize.Config) { c.MaxFileSize = 32 }, "")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing path", map[string]any{}, http.StatusBadRequest},
		{"not a file", map[string]any{"path": t.TempDir()}, http.StatusBadRequest},
		{"nonexistent", map[string]any{"path": "/definitely/not/here.pdf"}, http.StatusBadRequest},
		{"unsupported", map[string]any{"path": writeTemp(t, "a.xyz", "x")}, http.StatusUnsupportedMediaType},
		{"corrupt", map[string]any{"path": writeTemp(t, "a.pptx", "not a zip")}, http.StatusUnprocessableEntity},
		{"too large", map[string]any{"path": writeTemp(t, "big.txt", strings.Repeat("x", 33))}, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/convert", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			var body map[string]string
			decode(t, resp, &body)
			if body["error"] == "" {
				t.Error("expected error message")
			}
		})
	}

	resp, err := http.Post(srv.URL+"/convert", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed JSON: status = %d, want 400", resp.StatusCode)
	}
}

// ---------------------------------------------------------------------------
// Documents without a cache
// ---------------------------------------------------------------------------

func TestDocumentsWithoutCache(t *testing.T) {
	srv := newTestServer(t, nil, "")

	if resp := get(t, srv.URL+"/documents/5"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get: status = %d, want 404", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/documents/abc"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", resp.StatusCode)
	}

	resp := get(t, srv.URL+"/documents")
	var body struct {
		Documents []mdize.Document `json:"documents"`
	}
	decode(t, resp, &body)
	if body.Documents == nil || len(body.Documents) != 0 {
		t.Errorf("documents = %v, want empty list", body.Documents)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", mdize.ErrUnsupportedFormat), http.StatusUnsupportedMediaType},
		{fmt.Errorf("%w: x", mdize.ErrConversionFailed), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: %w", mdize.ErrConversionFailed, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{fmt.Errorf("%w: 9", mdize.ErrDocumentNotFound), http.StatusNotFound},
		{mdize.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{mdize.ErrStoreClosed, http.StatusServiceUnavailable},
		{fmt.Errorf("reading file: %w", os.ErrNotExist), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MDIZE_DB_PATH":            "/data/cache.db",
		"MDIZE_DISABLE_CACHE":      "true",
		"MDIZE_MAX_FILE_SIZE":      "1024",
		"MDIZE_TIMEOUT":            "45s",
		"MDIZE_LANGUAGES":          "en, de ,fr",
		"MDIZE_LLAMAPARSE_API_KEY": "llx-key",
	}
	cfg := mdize.DefaultConfig()
	if err := applyEnv(&cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.DBPath != "/data/cache.db" || !cfg.DisableCache || cfg.MaxFileSize != 1024 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if strings.Join(cfg.Languages, ",") != "en,de,fr" {
		t.Errorf("Languages = %v", cfg.Languages)
	}
	if cfg.LlamaParse == nil || cfg.LlamaParse.APIKey != "llx-key" {
		t.Errorf("LlamaParse = %+v", cfg.LlamaParse)
	}

	bad := map[string]string{"MDIZE_TIMEOUT": "soon"}
	cfg = mdize.DefaultConfig()
	if err := applyEnv(&cfg, func(k string) string { return bad[k] }); err == nil {
		t.Error("expected error for malformed duration")
	}
}
