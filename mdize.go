// Package mdize converts documents into Markdown. PDF pages and scanned
// images go through a geometric layout pass that rebuilds tables, headings
// and lists from word positions; office, web and text formats are mapped
// structurally. Results are cached in SQLite keyed by file path and content
// hash.
package mdize

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yosbelms/mdize/parser"
	"github.com/yosbelms/mdize/store"
)

// Engine is the main entry point for document conversion.
type Engine interface {
	// Convert turns a file into Markdown. Unchanged files are served from
	// the cache unless WithForce is given.
	Convert(ctx context.Context, path string, opts ...ConvertOption) (*Result, error)

	// Update re-checks a converted file by hash and reconverts it if it changed.
	Update(ctx context.Context, path string) (bool, error)

	// UpdateAll checks every cached document for changes.
	UpdateAll(ctx context.Context) ([]UpdateResult, error)

	// Get returns a cached conversion by ID.
	Get(ctx context.Context, id int64) (*Result, error)

	// ListDocuments returns all cached documents without their Markdown.
	ListDocuments(ctx context.Context) ([]Document, error)

	// Delete removes a cached conversion.
	Delete(ctx context.Context, id int64) error

	// Stats summarises the cache.
	Stats(ctx context.Context) (*store.Stats, error)

	// Formats lists the file extensions a parser is registered for.
	Formats() []string

	// Close cleanly shuts down the engine.
	Close() error
}

// Result is the outcome of a conversion.
type Result struct {
	ID        int64             `json:"id,omitempty"`
	Path      string            `json:"path"`
	Filename  string            `json:"filename"`
	Format    string            `json:"format"`
	Title     string            `json:"title,omitempty"`
	Markdown  string            `json:"markdown"`
	Language  string            `json:"language,omitempty"`
	PageCount int               `json:"page_count,omitempty"`
	Method    string            `json:"method"`
	Cached    bool              `json:"cached"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Document represents a cached conversion without its Markdown.
type Document struct {
	ID          int64             `json:"id"`
	Path        string            `json:"path"`
	Filename    string            `json:"filename"`
	Format      string            `json:"format"`
	ContentHash string            `json:"content_hash"`
	Method      string            `json:"method"`
	Status      string            `json:"status"`
	Title       string            `json:"title,omitempty"`
	Language    string            `json:"language,omitempty"`
	PageCount   int               `json:"page_count"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// UpdateResult reports the outcome of a document update check.
type UpdateResult struct {
	DocumentID int64  `json:"document_id"`
	Path       string `json:"path"`
	Changed    bool   `json:"changed"`
	Error      error  `json:"-"`
}

// ConvertOption configures a single conversion.
type ConvertOption func(*convertOptions)

type convertOptions struct {
	force    bool
	upload   bool
	format   string
	filename string
	metadata map[string]string
}

// WithForce reconverts even if the cached hash matches.
func WithForce() ConvertOption {
	return func(o *convertOptions) { o.force = true }
}

// WithFormat overrides the format derived from the file extension.
func WithFormat(format string) ConvertOption {
	return func(o *convertOptions) { o.format = format }
}

// WithFilename records a display name other than the path's base name,
// e.g. the client-side name of an upload.
func WithFilename(name string) ConvertOption {
	return func(o *convertOptions) { o.filename = name }
}

// WithUpload marks path as a transient copy of client-supplied content.
// The conversion is cached under its content hash and filename instead of
// the path, so repeated uploads of the same file hit the cache.
func WithUpload() ConvertOption {
	return func(o *convertOptions) { o.upload = true }
}

// uploadScheme prefixes the cache keys of uploaded documents.
const uploadScheme = "upload://"

func uploadKey(hash, filename string) string {
	return uploadScheme + hash + "/" + filename
}

func isUploadKey(path string) bool {
	return strings.HasPrefix(path, uploadScheme)
}

// WithMetadata attaches custom metadata to the converted document. Keys
// override parser metadata of the same name.
func WithMetadata(metadata map[string]string) ConvertOption {
	return func(o *convertOptions) { o.metadata = metadata }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg      Config
	store    *store.Store // nil when the cache is disabled
	parsers  *parser.Registry
	detector *languageDetector // nil when detection is disabled
	closed   atomic.Bool
}

// New creates an engine with the given configuration.
func New(cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &engine{
		cfg:     cfg,
		parsers: parser.NewRegistry(cfg.parserOptions()),
	}
	if cfg.LlamaParse != nil {
		e.parsers.SetLlamaParse(parser.LlamaParseConfig{
			APIKey:  cfg.LlamaParse.APIKey,
			BaseURL: cfg.LlamaParse.BaseURL,
		})
	}
	if cfg.DetectLanguage {
		d, err := newLanguageDetector(cfg.Languages)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		e.detector = d
	}

	if !cfg.DisableCache {
		s, err := store.New(cfg.resolveDBPath())
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		e.store = s
	}
	return e, nil
}

// Convert runs a file through its parser and caches the result.
func (e *engine) Convert(ctx context.Context, path string, opts ...ConvertOption) (*Result, error) {
	if e.closed.Load() {
		return nil, ErrStoreClosed
	}
	options := &convertOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedFormat, absPath)
	}
	if e.cfg.MaxFileSize > 0 && info.Size() > e.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, info.Size(), e.cfg.MaxFileSize)
	}

	format := options.format
	if format == "" {
		format = parser.FormatFromPath(absPath)
	}
	p, err := e.parsers.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}

	filename := options.filename
	if filename == "" {
		filename = filepath.Base(absPath)
	}
	key := absPath
	if options.upload {
		key = uploadKey(hash, filename)
	}

	// Serve unchanged documents from the cache
	var docID int64
	if e.store != nil {
		if !options.force {
			existing, err := e.store.GetDocumentByPath(ctx, key)
			if err == nil && existing.ContentHash == hash && existing.Status == store.StatusReady {
				slog.Info("convert: cache hit", "file", filename, "doc_id", existing.ID)
				res := resultFromStore(existing)
				res.Cached = true
				return res, nil
			}
		}
		docID, err = e.store.UpsertDocument(ctx, store.Document{
			Path:        key,
			Filename:    filename,
			Format:      format,
			ContentHash: hash,
			Status:      store.StatusProcessing,
		})
		if err != nil {
			return nil, storeErr(fmt.Errorf("upserting document: %w", err))
		}
	}

	slog.Info("convert: parsing document", "file", filename, "format", format, "doc_id", docID)
	start := time.Now()

	parseCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		parseCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	parsed, err := p.Parse(parseCtx, absPath)
	if err != nil {
		if e.store != nil {
			if serr := e.store.UpdateDocumentStatus(context.WithoutCancel(ctx), docID, store.StatusError); serr != nil {
				slog.Debug("convert: recording failed status", "doc_id", docID, "error", serr)
			}
		}
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	res := &Result{
		ID:        docID,
		Path:      key,
		Filename:  filename,
		Format:    format,
		Title:     parsed.Title,
		Markdown:  parsed.Markdown,
		PageCount: parsed.PageCount,
		Method:    parsed.Method,
		Metadata:  mergeMetadata(parsed.Metadata, options.metadata),
	}
	if e.detector != nil {
		res.Language = e.detector.Detect(res.Markdown)
	}

	slog.Info("convert: parsing complete",
		"file", filename, "method", res.Method, "pages", res.PageCount,
		"language", res.Language, "bytes", len(res.Markdown),
		"elapsed", time.Since(start).Round(time.Millisecond))

	if e.store != nil {
		var metadataJSON string
		if len(res.Metadata) > 0 {
			data, _ := json.Marshal(res.Metadata)
			metadataJSON = string(data)
		}
		if _, err := e.store.UpsertDocument(ctx, store.Document{
			Path:        key,
			Filename:    filename,
			Format:      format,
			ContentHash: hash,
			Method:      res.Method,
			Status:      store.StatusReady,
			Title:       res.Title,
			Language:    res.Language,
			PageCount:   res.PageCount,
			Markdown:    res.Markdown,
			Metadata:    metadataJSON,
		}); err != nil {
			return nil, storeErr(fmt.Errorf("saving conversion: %w", err))
		}
	}
	return res, nil
}

// Update checks if a document has changed and reconverts it if needed.
// Uploaded documents have no source file and never change.
func (e *engine) Update(ctx context.Context, path string) (bool, error) {
	if e.store == nil {
		return false, fmt.Errorf("%w: cache disabled", ErrDocumentNotFound)
	}
	if isUploadKey(path) {
		if _, err := e.store.GetDocumentByPath(ctx, path); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
			}
			return false, storeErr(err)
		}
		return false, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolving path: %w", err)
	}

	doc, err := e.store.GetDocumentByPath(ctx, absPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("%w: %s", ErrDocumentNotFound, absPath)
		}
		return false, storeErr(err)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return false, fmt.Errorf("hashing file: %w", err)
	}
	if hash == doc.ContentHash && doc.Status == store.StatusReady {
		return false, nil
	}

	opts := []ConvertOption{WithForce(), WithFormat(doc.Format), WithFilename(doc.Filename)}
	if doc.Metadata != "" {
		var meta map[string]string
		if json.Unmarshal([]byte(doc.Metadata), &meta) == nil {
			opts = append(opts, WithMetadata(meta))
		}
	}
	if _, err := e.Convert(ctx, absPath, opts...); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateAll checks all documents for changes. Uploads are skipped.
func (e *engine) UpdateAll(ctx context.Context) ([]UpdateResult, error) {
	docs, err := e.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]UpdateResult, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if isUploadKey(doc.Path) {
			continue
		}
		changed, err := e.Update(ctx, doc.Path)
		results = append(results, UpdateResult{
			DocumentID: doc.ID,
			Path:       doc.Path,
			Changed:    changed,
			Error:      err,
		})
	}
	return results, nil
}

// Get returns a cached conversion.
func (e *engine) Get(ctx context.Context, id int64) (*Result, error) {
	if e.store == nil {
		return nil, fmt.Errorf("%w: %d", ErrDocumentNotFound, id)
	}
	doc, err := e.store.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrDocumentNotFound, id)
		}
		return nil, storeErr(err)
	}
	res := resultFromStore(doc)
	res.Cached = true
	return res, nil
}

// ListDocuments returns all cached documents.
func (e *engine) ListDocuments(ctx context.Context) ([]Document, error) {
	if e.store == nil {
		if e.closed.Load() {
			return nil, ErrStoreClosed
		}
		return nil, nil
	}
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, storeErr(err)
	}

	result := make([]Document, len(docs))
	for i, d := range docs {
		result[i] = Document{
			ID:          d.ID,
			Path:        d.Path,
			Filename:    d.Filename,
			Format:      d.Format,
			ContentHash: d.ContentHash,
			Method:      d.Method,
			Status:      d.Status,
			Title:       d.Title,
			Language:    d.Language,
			PageCount:   d.PageCount,
			CreatedAt:   d.CreatedAt,
			UpdatedAt:   d.UpdatedAt,
		}
		if d.Metadata != "" {
			_ = json.Unmarshal([]byte(d.Metadata), &result[i].Metadata)
		}
	}
	return result, nil
}

// Delete removes a cached conversion.
func (e *engine) Delete(ctx context.Context, id int64) error {
	if e.store == nil {
		return fmt.Errorf("%w: %d", ErrDocumentNotFound, id)
	}
	if err := e.store.DeleteDocument(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", ErrDocumentNotFound, id)
		}
		return storeErr(err)
	}
	slog.Info("convert: document deleted", "doc_id", id)
	return nil
}

// Stats summarises the cache. A disabled cache reports zero documents.
func (e *engine) Stats(ctx context.Context) (*store.Stats, error) {
	if e.store == nil {
		return &store.Stats{ByFormat: map[string]int{}}, nil
	}
	stats, err := e.store.Stats(ctx)
	return stats, storeErr(err)
}

func (e *engine) Formats() []string {
	return e.parsers.Formats()
}

// Close shuts down the engine.
func (e *engine) Close() error {
	if e.closed.Swap(true) || e.store == nil {
		return nil
	}
	return e.store.Close()
}

func resultFromStore(d *store.Document) *Result {
	res := &Result{
		ID:        d.ID,
		Path:      d.Path,
		Filename:  d.Filename,
		Format:    d.Format,
		Title:     d.Title,
		Markdown:  d.Markdown,
		Language:  d.Language,
		PageCount: d.PageCount,
		Method:    d.Method,
	}
	if d.Metadata != "" {
		_ = json.Unmarshal([]byte(d.Metadata), &res.Metadata)
	}
	return res
}

func mergeMetadata(parsed, custom map[string]string) map[string]string {
	if len(parsed) == 0 && len(custom) == 0 {
		return nil
	}
	out := make(map[string]string, len(parsed)+len(custom))
	for k, v := range parsed {
		out[k] = v
	}
	for k, v := range custom {
		out[k] = v
	}
	return out
}

// storeErr maps store.ErrClosed to ErrStoreClosed.
func storeErr(err error) error {
	if errors.Is(err, store.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrStoreClosed, err)
	}
	return err
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
