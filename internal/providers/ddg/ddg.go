// Package ddg searches DuckDuckGo images. The endpoint is unofficial: a
// search page is scraped for a verification token (vqd) that the JSON
// image endpoint requires.
package ddg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/DeafMist/blog-factory/internal/cache"
	"github.com/DeafMist/blog-factory/internal/httpx"
)

// Default endpoints.
const (
	DefaultPageURL   = "https://duckduckgo.com/"
	DefaultSearchURL = "https://duckduckgo.com/i.js"
)

// DefaultTTL is how long result lists are cached.
const DefaultTTL = 30 * time.Minute

const (
	defaultLimit = 5
	browserUA    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Image is one search hit.
type Image struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Title        string `json:"title"`
	Source       string `json:"source"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// SearchOptions tune a search. The zero value returns five safe results.
type SearchOptions struct {
	Limit         int
	SafeSearchOff bool
}

var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`vqd=["']?([^"'&]+)`),
	regexp.MustCompile(`vqd%3D([^&"']+)`),
	regexp.MustCompile(`vqd=(\d+-\d+-\d+)`),
	regexp.MustCompile(`"vqd":"([^"]+)"`),
}

// VerificationToken extracts the vqd token from a search page, trying each
// known embedding in turn.
func VerificationToken(page string) (string, bool) {
	for _, re := range tokenPatterns {
		if m := re.FindStringSubmatch(page); m != nil && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}

// Client runs image searches.
type Client struct {
	http      *httpx.Client
	pageURL   string
	searchURL string
	cache     *cache.Cache[[]Image]
	log       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoints points the client at other token page and search URLs.
func WithEndpoints(pageURL, searchURL string) Option {
	return func(c *Client) {
		c.pageURL = pageURL
		c.searchURL = searchURL
	}
}

// New creates a client. Nil arguments get working defaults.
func New(hc *httpx.Client, c *cache.Cache[[]Image], log *slog.Logger, opts ...Option) *Client {
	if hc == nil {
		hc = httpx.New()
	}
	if c == nil {
		c = cache.New[[]Image](DefaultTTL)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	client := &Client{
		http:      hc,
		pageURL:   DefaultPageURL,
		searchURL: DefaultSearchURL,
		cache:     c,
		log:       log.With(slog.String("provider", "ddg")),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func cacheKey(query string, safe bool) string {
	mode := "safe"
	if !safe {
		mode = "unsafe"
	}
	return mode + ":" + strings.ToLower(strings.TrimSpace(query))
}

// Search returns up to opts.Limit images for query. Results without both an
// image and a thumbnail URL are dropped. Failures are logged and yield an
// empty result; only successful searches are cached.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) []Image {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	safe := !opts.SafeSearchOff

	key := cacheKey(query, safe)
	if images, ok := c.cache.Get(key); ok {
		return head(images, limit)
	}

	token, err := c.token(ctx, query)
	if err != nil {
		c.log.Warn("fetch verification token", slog.String("query", query), slog.Any("err", err))
		return nil
	}
	if token == "" {
		c.log.Warn("no verification token in search page", slog.String("query", query))
		return nil
	}

	images, err := c.search(ctx, query, token, safe)
	if err != nil {
		c.log.Warn("image search failed", slog.String("query", query), slog.Any("err", err))
		return nil
	}

	c.cache.Set(key, images)
	return head(images, limit)
}

// First returns the top result or nil.
func (c *Client) First(ctx context.Context, query string, safeSearchOff bool) *Image {
	images := c.Search(ctx, query, SearchOptions{Limit: 1, SafeSearchOff: safeSearchOff})
	if len(images) == 0 {
		return nil
	}
	return &images[0]
}

// ClearCache drops every cached search.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// CacheSize returns the number of cached searches.
func (c *Client) CacheSize() int {
	return c.cache.Len()
}

func pageParams(query string) map[string]string {
	return map[string]string{"q": query, "iar": "images", "iax": "images", "ia": "images"}
}

func (c *Client) token(ctx context.Context, query string) (string, error) {
	req, err := c.http.Request(ctx)
	if err != nil {
		return "", err
	}
	resp, err := req.
		SetHeader("User-Agent", browserUA).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.5").
		SetQueryParams(pageParams(query)).
		Get(c.pageURL)
	if err != nil {
		return "", fmt.Errorf("request search page: %w", err)
	}
	if err := httpx.CheckStatus(resp); err != nil {
		return "", err
	}
	token, _ := VerificationToken(resp.String())
	return token, nil
}

type searchResponse struct {
	Results []struct {
		Image     string `json:"image"`
		Thumbnail string `json:"thumbnail"`
		Title     string `json:"title"`
		Source    string `json:"source"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"results"`
}

func (c *Client) search(ctx context.Context, query, token string, safe bool) ([]Image, error) {
	p := "1"
	if !safe {
		p = "-1"
	}
	req, err := c.http.Request(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := req.
		SetHeader("User-Agent", browserUA).
		SetHeader("Accept", "application/json, text/javascript, */*; q=0.01").
		SetHeader("Accept-Language", "en-US,en;q=0.5").
		SetHeader("Referer", c.pageURL+"?q="+strings.ReplaceAll(query, " ", "%20")+"&iar=images&iax=images&ia=images").
		SetQueryParams(map[string]string{
			"l":   "us-en",
			"o":   "json",
			"q":   query,
			"vqd": token,
			"f":   ",,,,,",
			"p":   p,
		}).
		Get(c.searchURL)
	if err != nil {
		return nil, fmt.Errorf("request images: %w", err)
	}
	if err := httpx.CheckStatus(resp); err != nil {
		return nil, err
	}

	var data searchResponse
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}

	images := make([]Image, 0, len(data.Results))
	for _, r := range data.Results {
		if r.Image == "" || r.Thumbnail == "" {
			continue
		}
		images = append(images, Image{
			URL:          r.Image,
			ThumbnailURL: r.Thumbnail,
			Title:        r.Title,
			Source:       r.Source,
			Width:        r.Width,
			Height:       r.Height,
		})
	}
	return images, nil
}

func head(images []Image, n int) []Image {
	if len(images) <= n {
		return images
	}
	return images[:n]
}
