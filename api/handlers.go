package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DeafMist/blog-factory/internal/blogscript"
	"github.com/DeafMist/blog-factory/internal/config"
	"github.com/DeafMist/blog-factory/internal/elasticsearch"
	"github.com/DeafMist/blog-factory/internal/images"
	"github.com/DeafMist/blog-factory/internal/metrics"
	"github.com/DeafMist/blog-factory/internal/models"
	"github.com/DeafMist/blog-factory/internal/processing"
	"github.com/DeafMist/blog-factory/internal/render"
)

type postStore interface {
	Health(ctx context.Context) error
	SearchPosts(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
}

type imageResolver interface {
	Resolve(ctx context.Context, query string, opts images.Options) *images.Image
	ResolveMultiple(ctx context.Context, query string, limit int, opts images.Options) []images.Image
	ResolveBatch(ctx context.Context, queries []string, opts images.Options) map[string]*images.Image
	PrefetchDocument(ctx context.Context, doc *blogscript.Document, opts images.Options) map[string]*images.Image
}

type cacheClearer interface {
	ClearCaches()
}

type server struct {
	log       *slog.Logger
	cfg       *config.API
	posts     postStore
	images    imageResolver
	caches    cacheClearer
	renderer  *render.Renderer
	metrics   *metrics.Metrics
	imageOpts images.Options
}

type errorResponse struct {
	Error  string             `json:"error"`
	Issues []blogscript.Issue `json:"issues,omitempty"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.posts.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readBody reads at most MaxBodyBytes of the request body.
func (s *server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: fmt.Sprintf("body exceeds %d bytes", tooBig.Limit)})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "read body: " + err.Error()})
		return nil, false
	}
	return body, true
}

// document reads and validates the request body. Schema failures are
// answered with 422 and the issue list.
func (s *server) document(w http.ResponseWriter, r *http.Request) (*blogscript.Document, bool) {
	body, ok := s.readBody(w, r)
	if !ok {
		return nil, false
	}
	doc, err := blogscript.Validate(body)
	if err != nil {
		var se *blogscript.SchemaError
		if errors.As(err, &se) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Issues: se.Issues})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return nil, false
	}
	return doc, true
}

func (s *server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	res := blogscript.SafeValidate(body)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func (s *server) handleRender(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.document(w, r)
	if !ok {
		return
	}
	mdx := s.renderer.Render(doc)

	if r.URL.Query().Get("format") == "mdx" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, mdx)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":   processing.BuildPostID(doc.Meta),
		"slug": processing.Slugify(doc.Meta.Title),
		"mdx":  mdx,
	})
}

type analysis struct {
	Metrics processing.Metrics `json:"metrics"`
	Quality processing.Quality `json:"quality"`
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.document(w, r)
	if !ok {
		return
	}
	mdx := s.renderer.Render(doc)
	m, err := processing.Measure(doc, mdx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, analysis{Metrics: m, Quality: processing.Assess(doc, mdx)})
}

// imageOptions overlays query parameters on the configured defaults.
func (s *server) imageOptions(r *http.Request) (images.Options, error) {
	q := r.URL.Query()
	opts := s.imageOpts

	if raw := q.Get("sources"); raw != "" {
		opts.Sources = nil
		for _, name := range parseCSV(raw) {
			src, ok := images.ParseSource(name)
			if !ok {
				return opts, fmt.Errorf("unknown image source %q", name)
			}
			opts.Sources = append(opts.Sources, src)
		}
	}
	if raw := q.Get("preferred"); raw != "" {
		src, ok := images.ParseSource(raw)
		if !ok {
			return opts, fmt.Errorf("unknown image source %q", raw)
		}
		opts.Preferred = src
	}
	if v := strings.TrimSpace(q.Get("article")); v != "" {
		opts.ArticleURL = v
	}
	if v := strings.TrimSpace(q.Get("lang")); v != "" {
		opts.Language = v
	}
	if v := strings.TrimSpace(q.Get("orientation")); v != "" {
		opts.Orientation = v
	}
	return opts, nil
}

func (s *server) handleImage(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "q is required"})
		return
	}
	opts, err := s.imageOptions(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if limit := clampInt(r.URL.Query().Get("limit"), 1, 20); limit > 1 {
		writeJSON(w, http.StatusOK, map[string]any{"images": s.images.ResolveMultiple(ctx, query, limit, opts)})
		return
	}

	img := s.images.Resolve(ctx, query, opts)
	if img == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no image found"})
		return
	}
	writeJSON(w, http.StatusOK, img)
}

type batchRequest struct {
	Queries []string `json:"queries"`
}

func (s *server) handleImageBatch(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "decode request: " + err.Error()})
		return
	}
	if len(req.Queries) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "queries is required"})
		return
	}
	if len(req.Queries) > s.cfg.MaxBatch {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("at most %d queries per batch", s.cfg.MaxBatch)})
		return
	}
	opts, err := s.imageOptions(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 55*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, map[string]any{"images": s.images.ResolveBatch(ctx, req.Queries, opts)})
}

func (s *server) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.document(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 55*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, map[string]any{"images": s.images.PrefetchDocument(ctx, doc, s.imageOpts)})
}

func (s *server) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	if s.caches != nil {
		s.caches.ClearCaches()
	}
	s.log.Info("image caches cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	params := elasticsearch.SearchParams{
		Query:  strings.TrimSpace(q.Get("q")),
		Tags:   parseCSV(q.Get("tags")),
		Author: strings.TrimSpace(q.Get("author")),
		Draft:  parseBool(q.Get("draft")),
		From:   clampInt(q.Get("from"), 0, 10_000),
		Size:   clampInt(q.Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage),
		Sort:   strings.TrimSpace(q.Get("sort")),
		Start:  parseTime(q.Get("start")),
		End:    parseTime(q.Get("end")),
	}

	result, err := s.posts.SearchPosts(ctx, params)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	post, err := s.posts.GetPost(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, elasticsearch.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// parseTime accepts RFC 3339 timestamps and bare dates.
func parseTime(raw string) *time.Time {
	ts := processing.ParseTimestamp(raw)
	if ts.IsZero() {
		return nil
	}
	return &ts
}

func parseBool(raw string) *bool {
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &b
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
