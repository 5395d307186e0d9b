package images

import (
	"context"

	"github.com/DeafMist/blog-factory/internal/providers/ddg"
	"github.com/DeafMist/blog-factory/internal/providers/ogmeta"
	"github.com/DeafMist/blog-factory/internal/providers/pexels"
	"github.com/DeafMist/blog-factory/internal/providers/wikimedia"
)

// Provider finds at most one image for a query. A nil image with a nil
// error is a miss.
type Provider interface {
	Source() Source
	Lookup(ctx context.Context, query string, opts Options) (*Image, error)
}

// Searcher is implemented by providers that can return several results.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, opts Options) ([]Image, error)
}

type entityLookup interface {
	Lookup(ctx context.Context, name string, opts wikimedia.Options) *wikimedia.Image
}

type imageSearch interface {
	Search(ctx context.Context, query string, opts ddg.SearchOptions) []ddg.Image
}

type pageParser interface {
	Parse(ctx context.Context, rawURL string) *ogmeta.Data
}

type stockSearch interface {
	Search(ctx context.Context, query string, opts pexels.SearchOptions) []pexels.Image
}

// Wikipedia adapts the Wikimedia client.
func Wikipedia(c entityLookup) Provider { return wikipediaProvider{c} }

// DuckDuckGo adapts the DuckDuckGo client.
func DuckDuckGo(c imageSearch) Provider { return ddgProvider{c} }

// OpenGraph adapts the page metadata client. It looks at Options.ArticleURL
// and ignores the query.
func OpenGraph(c pageParser) Provider { return ogProvider{c} }

// Pexels adapts the stock photo client.
func Pexels(c stockSearch) Provider { return pexelsProvider{c} }

type wikipediaProvider struct{ c entityLookup }

func (wikipediaProvider) Source() Source { return SourceWikipedia }

func (p wikipediaProvider) Lookup(ctx context.Context, query string, opts Options) (*Image, error) {
	return FromEntity(p.c.Lookup(ctx, query, wikimedia.Options{
		ThumbSize: opts.ThumbSize,
		Language:  opts.Language,
	})), nil
}

type ddgProvider struct{ c imageSearch }

func (ddgProvider) Source() Source { return SourceDDG }

func (p ddgProvider) Lookup(ctx context.Context, query string, opts Options) (*Image, error) {
	found, err := p.Search(ctx, query, 1, opts)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

func (p ddgProvider) Search(ctx context.Context, query string, limit int, opts Options) ([]Image, error) {
	hits := p.c.Search(ctx, query, ddg.SearchOptions{Limit: limit, SafeSearchOff: opts.SafeSearchOff})
	out := make([]Image, 0, len(hits))
	for _, h := range hits {
		out = append(out, *FromSearch(h))
	}
	return out, nil
}

type ogProvider struct{ c pageParser }

func (ogProvider) Source() Source { return SourceOG }

func (p ogProvider) Lookup(ctx context.Context, _ string, opts Options) (*Image, error) {
	if opts.ArticleURL == "" {
		return nil, nil
	}
	return FromPage(p.c.Parse(ctx, opts.ArticleURL)), nil
}

type pexelsProvider struct{ c stockSearch }

func (pexelsProvider) Source() Source { return SourcePexels }

func (p pexelsProvider) Lookup(ctx context.Context, query string, opts Options) (*Image, error) {
	found, err := p.Search(ctx, query, 1, opts)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

func (p pexelsProvider) Search(ctx context.Context, query string, limit int, opts Options) ([]Image, error) {
	hits := p.c.Search(ctx, query, pexels.SearchOptions{
		Limit:       limit,
		Orientation: stockOrientation(opts.Orientation),
		Size:        opts.StockSize,
	})
	out := make([]Image, 0, len(hits))
	for _, h := range hits {
		out = append(out, *FromStock(h))
	}
	return out, nil
}

// stockOrientation maps document orientations onto the stock API's names.
func stockOrientation(o string) string {
	if o == "squarish" {
		return "square"
	}
	return o
}
