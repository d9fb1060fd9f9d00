package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yosbelms/mdize"
)

// defaultMaxUpload bounds multipart uploads when the engine has no size limit.
const defaultMaxUpload = 256 << 20

type handler struct {
	engine    mdize.Engine
	maxUpload int64
}

func newHandler(e mdize.Engine, maxUpload int64) *handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &handler{engine: e, maxUpload: maxUpload}
}

// newRouter wires the API routes behind the middleware chain:
// recovery -> cors -> auth -> request id -> logging -> routes.
func newRouter(h *handler, apiKey, corsOrigins string) http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(corsMiddleware(corsOrigins))
	r.Use(authMiddleware(apiKey))
	r.Use(middleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(logMiddleware)

	r.Post("/convert", h.handleConvert)
	r.Post("/update", h.handleUpdate)
	r.Post("/update-all", h.handleUpdateAll)
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.handleListDocuments)
		r.Get("/{id}", h.handleGetDocument)
		r.Get("/{id}/markdown", h.handleGetMarkdown)
		r.Delete("/{id}", h.handleDeleteDocument)
	})
	r.Get("/formats", h.handleFormats)
	r.Get("/stats", h.handleStats)
	r.Get("/health", h.handleHealth)
	return r
}

// POST /convert
// Accepts multipart file upload or JSON with file path.
func (h *handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.convertUpload(ctx, w, r)
		return
	}

	var req struct {
		Path     string            `json:"path"`
		Force    bool              `json:"force"`
		Metadata map[string]string `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Validate that path is a real file (prevents directory traversal probing).
	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	var opts []mdize.ConvertOption
	if req.Force {
		opts = append(opts, mdize.WithForce())
	}
	if len(req.Metadata) > 0 {
		opts = append(opts, mdize.WithMetadata(req.Metadata))
	}

	res, err := h.engine.Convert(ctx, absPath, opts...)
	if err != nil {
		h.writeEngineError(w, r, "conversion failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) convertUpload(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	// Sanitise filename to prevent path traversal.
	safeName := filepath.Base(header.Filename)
	if safeName == "." || safeName == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	tmpDir, err := os.MkdirTemp("", "mdize-upload-")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process file")
		slog.Error("creating temp dir", "error", err)
		return
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, safeName)
	dst, err := os.Create(tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process file")
		slog.Error("creating temp file", "error", err)
		return
	}
	if err := saveUpload(dst, file); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save file")
		slog.Error("saving uploaded file", "error", err)
		return
	}

	opts := []mdize.ConvertOption{mdize.WithUpload(), mdize.WithFilename(safeName)}
	if force, _ := strconv.ParseBool(r.FormValue("force")); force {
		opts = append(opts, mdize.WithForce())
	}

	res, err := h.engine.Convert(ctx, tmpPath, opts...)
	if err != nil {
		h.writeEngineError(w, r, "conversion failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// saveUpload copies src into dst and closes dst, reporting a failed close.
func saveUpload(dst io.WriteCloser, src io.Reader) error {
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copying upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("closing upload: %w", err)
	}
	return nil
}

// POST /update
func (h *handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	changed, err := h.engine.Update(ctx, req.Path)
	if err != nil {
		h.writeEngineError(w, r, "update failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":    req.Path,
		"changed": changed,
	})
}

// POST /update-all
func (h *handler) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	results, err := h.engine.UpdateAll(ctx)
	if err != nil {
		h.writeEngineError(w, r, "update-all failed", err)
		return
	}

	type item struct {
		mdize.UpdateResult
		Error string `json:"error,omitempty"`
	}
	out := make([]item, len(results))
	for i, res := range results {
		out[i] = item{UpdateResult: res}
		if res.Error != nil {
			out[i].Error = res.Error.Error()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

// GET /documents/{id}
func (h *handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	res, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, r, "failed to load document", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /documents/{id}/markdown
func (h *handler) handleGetMarkdown(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	res, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, r, "failed to load document", err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, res.Markdown)
}

// DELETE /documents/{id}
func (h *handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Delete(r.Context(), id); err != nil {
		h.writeEngineError(w, r, "delete failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		h.writeEngineError(w, r, "failed to list documents", err)
		return
	}
	if docs == nil {
		docs = []mdize.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
	})
}

// GET /formats
func (h *handler) handleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"formats": h.engine.Formats()})
}

// GET /stats
func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		h.writeEngineError(w, r, "failed to read stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func documentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return 0, false
	}
	return id, true
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, mdize.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, mdize.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, mdize.ErrConversionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, mdize.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, mdize.ErrStoreClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, os.ErrNotExist):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeEngineError responds with the mapped status. Client errors carry the
// error text; server errors are only logged.
func (h *handler) writeEngineError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	slog.Error(msg, "error", err, "status", status, "request_id", requestIDFrom(r.Context()))
	if status >= 500 && status != http.StatusGatewayTimeout && status != http.StatusServiceUnavailable {
		writeError(w, status, msg)
		return
	}
	writeError(w, status, msg+": "+err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
