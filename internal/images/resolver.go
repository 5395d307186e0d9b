package images

import (
	"context"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/DeafMist/blog-factory/internal/batch"
)

// Options steer a resolution.
type Options struct {
	// Sources is the waterfall order; empty means DefaultSources.
	Sources []Source
	// Preferred is tried before Sources unless it is empty or SourceAuto.
	Preferred Source
	// ArticleURL, when set, puts the page's own image first.
	ArticleURL string
	// ThumbSize and Language are passed to the encyclopedia provider.
	ThumbSize int
	Language  string
	// SafeSearchOff disables filtering in general web search.
	SafeSearchOff bool
	// Orientation and StockSize are passed to the stock provider.
	Orientation string
	StockSize   string
}

// withDefaults fills unset fields. Only a nil Sources takes DefaultSources;
// an explicitly empty list leaves the waterfall to its ddg, pexels fallback.
func (o Options) withDefaults() Options {
	if o.Sources == nil {
		o.Sources = DefaultSources
	}
	if o.ThumbSize <= 0 {
		o.ThumbSize = 400
	}
	if o.Language == "" {
		o.Language = "en"
	}
	return o
}

// Recorder observes provider lookups.
type Recorder interface {
	ObserveLookup(source string, found bool, err error, took time.Duration)
}

// Resolver runs the provider waterfall. It is safe for concurrent use as
// long as its providers are.
type Resolver struct {
	providers map[Source]Provider
	log       *slog.Logger
	recorder  Recorder
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRecorder reports every provider lookup to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) { r.recorder = rec }
}

// NewResolver creates a resolver over providers, keyed by their Source.
// Sources without a provider are skipped during resolution.
func NewResolver(log *slog.Logger, providers []Provider, opts ...Option) *Resolver {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Resolver{
		providers: make(map[Source]Provider, len(providers)),
		log:       log,
	}
	for _, p := range providers {
		r.providers[p.Source()] = p
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Order returns the sources Resolve would try for query: the article page
// first when ArticleURL is set, then Preferred, then Sources. Duplicates
// and SourceAuto are dropped, and the encyclopedia is only consulted for
// queries that look like entities. If nothing remains the order is
// ddg, pexels.
func Order(query string, opts Options) []Source {
	opts = opts.withDefaults()
	var order []Source
	if opts.ArticleURL != "" {
		order = append(order, SourceOG)
	}
	if opts.Preferred != "" && opts.Preferred != SourceAuto && !slices.Contains(order, opts.Preferred) {
		order = append(order, opts.Preferred)
	}
	entity := LooksLikeEntity(query)
	for _, s := range opts.Sources {
		if s == SourceAuto || slices.Contains(order, s) {
			continue
		}
		if s == SourceWikipedia && !entity {
			continue
		}
		order = append(order, s)
	}
	if len(order) == 0 {
		order = []Source{SourceDDG, SourcePexels}
	}
	return order
}

// Resolve returns the first image with a URL from the waterfall, or nil.
func (r *Resolver) Resolve(ctx context.Context, query string, opts Options) *Image {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	opts = opts.withDefaults()
	for _, src := range Order(query, opts) {
		if ctx.Err() != nil {
			return nil
		}
		if img := r.lookup(ctx, src, query, opts); img != nil {
			return img
		}
	}
	return nil
}

// lookup asks one provider; errors are logged and count as a miss.
func (r *Resolver) lookup(ctx context.Context, src Source, query string, opts Options) *Image {
	p, ok := r.providers[src]
	if !ok {
		r.log.Debug("no provider for source", slog.String("source", string(src)))
		return nil
	}

	start := time.Now()
	img, err := p.Lookup(ctx, query, opts)
	found := err == nil && img != nil && img.URL != ""
	if r.recorder != nil {
		r.recorder.ObserveLookup(string(src), found, err, time.Since(start))
	}
	if err != nil {
		r.log.Warn("image provider failed", slog.String("source", string(src)), slog.String("query", query), slog.Any("err", err))
		return nil
	}
	if !found {
		return nil
	}
	return img
}

// ResolveAll asks every source at once and returns each hit in source
// order. The article page, when given, is consulted first.
func (r *Resolver) ResolveAll(ctx context.Context, query string, opts Options) []Image {
	opts = opts.withDefaults()
	var out []Image
	if opts.ArticleURL != "" && !slices.Contains(opts.Sources, SourceOG) {
		if img := r.lookup(ctx, SourceOG, query, opts); img != nil {
			out = append(out, *img)
		}
	}

	sources := slices.DeleteFunc(slices.Clone(opts.Sources), func(s Source) bool { return s == SourceAuto })
	entity := LooksLikeEntity(query)
	found := batch.Run(ctx, sources, len(sources), func(ctx context.Context, src Source) *Image {
		if src == SourceWikipedia && !entity {
			return nil
		}
		return r.lookup(ctx, src, query, opts)
	})
	for _, img := range found {
		if img != nil {
			out = append(out, *img)
		}
	}
	return out
}

// ResolveMultiple gathers up to limit images for a gallery: web search
// supplies about 60% and stock photos fill the rest.
func (r *Resolver) ResolveMultiple(ctx context.Context, query string, limit int, opts Options) []Image {
	if limit <= 0 {
		limit = 5
	}
	opts = opts.withDefaults()
	out := r.search(ctx, SourceDDG, query, int(math.Ceil(float64(limit)*0.6)), opts)
	if len(out) < limit {
		out = append(out, r.search(ctx, SourcePexels, query, limit-len(out), opts)...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *Resolver) search(ctx context.Context, src Source, query string, limit int, opts Options) []Image {
	s, ok := r.providers[src].(Searcher)
	if !ok {
		return nil
	}
	found, err := s.Search(ctx, query, limit, opts)
	if err != nil {
		r.log.Warn("image search failed", slog.String("source", string(src)), slog.String("query", query), slog.Any("err", err))
		return nil
	}
	return found
}

// ResolvePerson favours the encyclopedia and falls back to web search.
func (r *Resolver) ResolvePerson(ctx context.Context, name string, opts Options) *Image {
	opts.Sources = []Source{SourceWikipedia, SourceDDG}
	opts.Preferred = SourceWikipedia
	return r.Resolve(ctx, name, opts)
}

// ResolveArticle uses the article's own image, then searches for
// fallbackQuery on the web and stock sources.
func (r *Resolver) ResolveArticle(ctx context.Context, articleURL, fallbackQuery string, opts Options) *Image {
	opts = opts.withDefaults()
	opts.ArticleURL = articleURL
	if img := r.lookup(ctx, SourceOG, fallbackQuery, opts); img != nil {
		return img
	}
	if strings.TrimSpace(fallbackQuery) == "" {
		return nil
	}
	opts.ArticleURL = ""
	opts.Sources = []Source{SourceDDG, SourcePexels}
	return r.Resolve(ctx, fallbackQuery, opts)
}

// HasImage reports whether any source has an image for query.
func (r *Resolver) HasImage(ctx context.Context, query string, opts Options) bool {
	return r.Resolve(ctx, query, opts) != nil
}

// ResolveBatch resolves queries five at a time.
func (r *Resolver) ResolveBatch(ctx context.Context, queries []string, opts Options) map[string]*Image {
	return batch.Map(ctx, queries, batch.DefaultWindow, func(ctx context.Context, q string) *Image {
		return r.Resolve(ctx, q, opts)
	})
}
