package images

import (
	"log/slog"

	"github.com/DeafMist/blog-factory/internal/cache"
	"github.com/DeafMist/blog-factory/internal/config"
	"github.com/DeafMist/blog-factory/internal/httpx"
	"github.com/DeafMist/blog-factory/internal/providers/ddg"
	"github.com/DeafMist/blog-factory/internal/providers/ogmeta"
	"github.com/DeafMist/blog-factory/internal/providers/pexels"
	"github.com/DeafMist/blog-factory/internal/providers/wikimedia"
)

// Clients are the concrete provider clients behind a Resolver.
type Clients struct {
	Wikimedia *wikimedia.Client
	Search    *ddg.Client
	Pages     *ogmeta.Client
	Stock     *pexels.Client
}

// NewClients builds every provider client from cfg. Each provider gets
// its own transport so that rate limits apply per provider.
func NewClients(cfg config.Images, log *slog.Logger) *Clients {
	transport := func() *httpx.Client {
		return httpx.New(
			httpx.WithUserAgent(cfg.UserAgent),
			httpx.WithTimeout(cfg.ProviderTimeout),
			httpx.WithRateLimit(cfg.RateLimit),
		)
	}
	capacity := cache.WithCapacity(cfg.CacheCapacity)

	return &Clients{
		Wikimedia: wikimedia.New(transport(), cache.New[*wikimedia.Image](cfg.WikipediaTTL, capacity), log, wikimedia.Endpoints{}),
		Search:    ddg.New(transport(), cache.New[[]ddg.Image](cfg.SearchTTL, capacity), log),
		Pages:     ogmeta.New(transport(), cache.New[*ogmeta.Data](cfg.PageTTL, capacity), log, ogmeta.WithTimeout(cfg.PageTimeout)),
		Stock:     pexels.New(transport(), cfg.PexelsAPIKey, cache.New[[]pexels.Image](cfg.StockTTL, capacity), log),
	}
}

// Providers adapts the clients. The stock provider is left out when no
// API key is configured.
func (c *Clients) Providers() []Provider {
	out := []Provider{Wikipedia(c.Wikimedia), DuckDuckGo(c.Search), OpenGraph(c.Pages)}
	if c.Stock.Available() {
		out = append(out, Pexels(c.Stock))
	}
	return out
}

// ClearCaches empties every provider cache.
func (c *Clients) ClearCaches() {
	c.Wikimedia.ClearCache()
	c.Search.ClearCache()
	c.Pages.ClearCache()
	c.Stock.ClearCache()
}

// OptionsFromConfig maps configuration onto resolution defaults. Unknown
// source names were already rejected by config.LoadImages.
func OptionsFromConfig(cfg config.Images) Options {
	opts := Options{
		ThumbSize:     cfg.ThumbSize,
		Language:      cfg.Language,
		SafeSearchOff: cfg.SafeSearchOff,
	}
	for _, name := range cfg.Sources {
		if s, ok := ParseSource(name); ok {
			opts.Sources = append(opts.Sources, s)
		}
	}
	return opts
}

// NewFromConfig wires clients and a resolver over them.
func NewFromConfig(cfg config.Images, log *slog.Logger, opts ...Option) (*Resolver, *Clients) {
	clients := NewClients(cfg, log)
	return NewResolver(log, clients.Providers(), opts...), clients
}
