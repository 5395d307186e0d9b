// Package pexels searches stock photography on Pexels. Every call needs an
// API key; without one the client is disabled and returns nothing.
package pexels

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

	"github.com/DeafMist/blog-factory/internal/cache"
	"github.com/DeafMist/blog-factory/internal/httpx"
)

// DefaultBaseURL is the Pexels API root.
const DefaultBaseURL = "https://api.pexels.com/v1"

// DefaultTTL is how long search results are cached.
const DefaultTTL = time.Hour

const (
	defaultLimit  = 5
	maxLimit      = 80
	defaultLocale = "en-US"
	platformURL   = "https://www.pexels.com"
)

// Size tiers select which rendition becomes the image URL.
const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

// Image is a stock photo.
type Image struct {
	URL             string `json:"url"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographerUrl"`
	Source          string `json:"source"`
	Alt             string `json:"alt"`
	ID              string `json:"id"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	AvgColor        string `json:"avgColor,omitempty"`
}

// SearchOptions filter a search. Orientation is landscape, portrait or
// square; Size is one of the size tiers.
type SearchOptions struct {
	Limit       int
	Orientation string
	Size        string
	Color       string
	Locale      string
	Page        int
}

// Client talks to the Pexels API.
type Client struct {
	http    *httpx.Client
	apiKey  string
	baseURL string
	cache   *cache.Cache[[]Image]
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// New creates a client. An empty apiKey disables it.
func New(hc *httpx.Client, apiKey string, c *cache.Cache[[]Image], log *slog.Logger, opts ...Option) *Client {
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
		http:    hc,
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
		cache:   c,
		log:     log.With(slog.String("provider", "pexels")),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

func clampLimit(n int) int {
	if n <= 0 {
		n = defaultLimit
	}
	return min(n, maxLimit)
}

func cacheKey(query string, opts SearchOptions) string {
	orientation, color := opts.Orientation, opts.Color
	if orientation == "" {
		orientation = "all"
	}
	if color == "" {
		color = "any"
	}
	return strings.ToLower(strings.TrimSpace(query)) + ":" + orientation + ":" + color + ":" + opts.Size +
		":" + opts.Locale + ":" + strconv.Itoa(opts.Page) + ":" + strconv.Itoa(opts.Limit)
}

// Search finds photos for query. Failures are logged and yield an empty
// result.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) []Image {
	if !c.Available() {
		c.log.Warn("PEXELS_API_KEY not set, stock image search disabled")
		return nil
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	limit := clampLimit(opts.Limit)
	opts.Limit = limit
	if opts.Size == "" {
		opts.Size = SizeMedium
	}
	if opts.Locale == "" {
		opts.Locale = defaultLocale
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}

	key := cacheKey(query, opts)
	if images, ok := c.cache.Get(key); ok {
		return images
	}

	params := map[string]string{
		"query":    query,
		"per_page": strconv.Itoa(limit),
		"page":     strconv.Itoa(opts.Page),
		"locale":   opts.Locale,
	}
	if opts.Orientation != "" {
		params["orientation"] = opts.Orientation
	}
	if opts.Color != "" {
		params["color"] = opts.Color
	}

	var resp searchResponse
	if err := c.get(ctx, "/search", params, &resp); err != nil {
		c.logFailure("search", err, slog.String("query", query))
		return nil
	}

	images := make([]Image, 0, len(resp.Photos))
	for _, p := range resp.Photos {
		images = append(images, p.image(opts.Size))
	}
	c.cache.Set(key, images)
	return images
}

// First returns the top result or nil.
func (c *Client) First(ctx context.Context, query, orientation string) *Image {
	images := c.Search(ctx, query, SearchOptions{Limit: 1, Orientation: orientation})
	if len(images) == 0 {
		return nil
	}
	return &images[0]
}

// PhotoByID fetches a single photo at the medium tier.
func (c *Client) PhotoByID(ctx context.Context, id string) *Image {
	if !c.Available() {
		c.log.Warn("PEXELS_API_KEY not set")
		return nil
	}
	var p photo
	if err := c.get(ctx, "/photos/"+id, nil, &p); err != nil {
		c.logFailure("photo", err, slog.String("id", id))
		return nil
	}
	img := p.image(SizeMedium)
	return &img
}

// Curated lists featured photos.
func (c *Client) Curated(ctx context.Context, limit, page int) []Image {
	if !c.Available() {
		c.log.Warn("PEXELS_API_KEY not set")
		return nil
	}
	if page <= 0 {
		page = 1
	}
	var resp searchResponse
	err := c.get(ctx, "/curated", map[string]string{
		"per_page": strconv.Itoa(clampLimit(limit)),
		"page":     strconv.Itoa(page),
	}, &resp)
	if err != nil {
		c.logFailure("curated", err)
		return nil
	}
	images := make([]Image, 0, len(resp.Photos))
	for _, p := range resp.Photos {
		images = append(images, p.image(SizeMedium))
	}
	return images
}

// ClearCache drops every cached search.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// Attribution is the plain credit line for img.
func Attribution(img *Image) string {
	return "Photo by " + img.Photographer + " on Pexels"
}

// AttributionHTML is the credit line with photographer and platform links.
func AttributionHTML(img *Image) string {
	return `Photo by <a href="` + img.PhotographerURL + `" target="_blank" rel="noopener noreferrer">` + img.Photographer +
		`</a> on <a href="` + platformURL + `" target="_blank" rel="noopener noreferrer">Pexels</a>`
}

type photo struct {
	ID              int64  `json:"id"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographer_url"`
	AvgColor        string `json:"avg_color"`
	Alt             string `json:"alt"`
	Src             struct {
		Large2x string `json:"large2x"`
		Large   string `json:"large"`
		Medium  string `json:"medium"`
		Small   string `json:"small"`
	} `json:"src"`
}

type searchResponse struct {
	Photos []photo `json:"photos"`
}

func (p photo) image(size string) Image {
	img := Image{
		Photographer:    p.Photographer,
		PhotographerURL: p.PhotographerURL,
		Source:          "pexels",
		Alt:             p.Alt,
		ID:              strconv.FormatInt(p.ID, 10),
		Width:           p.Width,
		Height:          p.Height,
		AvgColor:        p.AvgColor,
	}
	switch size {
	case SizeLarge:
		img.URL = p.Src.Large2x
		if img.URL == "" {
			img.URL = p.Src.Large
		}
		img.ThumbnailURL = p.Src.Medium
	case SizeSmall:
		img.URL, img.ThumbnailURL = p.Src.Medium, p.Src.Small
	default:
		img.URL, img.ThumbnailURL = p.Src.Large, p.Src.Medium
	}
	if img.Alt == "" {
		img.Alt = "Photo by " + p.Photographer
	}
	return img
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	req, err := c.http.Request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.
		SetHeader("Authorization", c.apiKey).
		SetQueryParams(params).
		Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	if err := httpx.CheckStatus(resp); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) logFailure(op string, err error, attrs ...any) {
	attrs = append(attrs, slog.String("op", op), slog.Any("err", err))
	var se *httpx.StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusUnauthorized:
			c.log.Error("invalid Pexels API key", attrs...)
			return
		case http.StatusTooManyRequests:
			c.log.Warn("Pexels API rate limit exceeded", attrs...)
			return
		}
	}
	c.log.Warn("Pexels API request failed", attrs...)
}

