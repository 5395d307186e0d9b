// Package ogmeta reads Open Graph, Twitter card and standard meta tags from
// web pages, chiefly to find an article's lead image.
package ogmeta

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"

	"github.com/DeafMist/blog-factory/internal/batch"
	"github.com/DeafMist/blog-factory/internal/cache"
	"github.com/DeafMist/blog-factory/internal/httpx"
)

// DefaultTTL is how long parsed pages, including failures, are cached.
const DefaultTTL = time.Hour

// DefaultTimeout bounds a single page fetch.
const DefaultTimeout = 10 * time.Second

const crawlerUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

// Data is the metadata of one page. Image is the first image found;
// AdditionalImages holds the rest in discovery order.
type Data struct {
	Title            string   `json:"title,omitempty"`
	Description      string   `json:"description,omitempty"`
	Image            string   `json:"image,omitempty"`
	SiteName         string   `json:"siteName,omitempty"`
	URL              string   `json:"url"`
	Type             string   `json:"type,omitempty"`
	AdditionalImages []string `json:"additionalImages,omitempty"`
	ImageAlt         string   `json:"imageAlt,omitempty"`
	PublishedTime    string   `json:"publishedTime,omitempty"`
	Author           string   `json:"author,omitempty"`
}

// Client fetches and parses pages.
type Client struct {
	http    *httpx.Client
	cache   *cache.Cache[*Data]
	log     *slog.Logger
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout replaces DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a client. Nil arguments get working defaults.
func New(hc *httpx.Client, c *cache.Cache[*Data], log *slog.Logger, opts ...Option) *Client {
	if hc == nil {
		hc = httpx.New()
	}
	if c == nil {
		c = cache.New[*Data](DefaultTTL)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	client := &Client{
		http:    hc,
		cache:   c,
		log:     log.With(slog.String("provider", "ogmeta")),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Normalize trims rawURL and assumes https when no scheme is given.
func Normalize(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	if u != "" && !strings.HasPrefix(u, "http") {
		u = "https://" + u
	}
	return u
}

// Parse fetches rawURL and extracts its metadata. It returns nil when the
// page cannot be fetched, answers with a non-2xx status or is not HTML.
// Failed fetches are cached; non-HTML answers are not.
func (c *Client) Parse(ctx context.Context, rawURL string) *Data {
	target := Normalize(rawURL)
	if target == "" {
		return nil
	}
	if data, ok := c.cache.Get(target); ok {
		return data
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, cacheable, err := c.fetch(ctx, target)
	if err != nil {
		c.log.Warn("parse page metadata", slog.String("url", target), slog.Any("err", err))
	}
	if cacheable {
		c.cache.Set(target, data)
	}
	return data
}

// ParseBatch parses urls five at a time.
func (c *Client) ParseBatch(ctx context.Context, urls []string) map[string]*Data {
	return batch.Map(ctx, urls, batch.DefaultWindow, c.Parse)
}

// HasImage reports whether the page at rawURL declares an image.
func (c *Client) HasImage(ctx context.Context, rawURL string) bool {
	data := c.Parse(ctx, rawURL)
	return data != nil && data.Image != ""
}

// ClearCache drops every cached page.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// CacheSize returns the number of cached pages.
func (c *Client) CacheSize() int {
	return c.cache.Len()
}

func (c *Client) fetch(ctx context.Context, target string) (*Data, bool, error) {
	req, err := c.http.Request(ctx)
	if err != nil {
		return nil, true, err
	}
	resp, err := req.
		SetHeader("User-Agent", crawlerUA).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.5").
		Get(target)
	if err != nil {
		return nil, true, fmt.Errorf("fetch: %w", err)
	}
	if err := httpx.CheckStatus(resp); err != nil {
		return nil, true, err
	}

	body := resp.Body()
	contentType := resp.Header().Get("Content-Type")
	if !isHTML(contentType, body) {
		return nil, false, fmt.Errorf("non-HTML content type %q", contentType)
	}

	doc, err := goquery.NewDocumentFromReader(decode(body, contentType))
	if err != nil {
		return nil, true, fmt.Errorf("parse html: %w", err)
	}
	return extract(doc, httpx.FinalURL(resp)), true, nil
}

// isHTML trusts the Content-Type header when present and sniffs the body
// otherwise.
func isHTML(contentType string, body []byte) bool {
	if contentType != "" {
		ct := strings.ToLower(contentType)
		return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
	}
	return mimetype.Detect(body).Is("text/html")
}

// decode converts body to UTF-8. A charset declared in the header wins;
// otherwise a confident statistical guess is used before falling back to
// the meta prescan of charset.NewReader.
func decode(body []byte, contentType string) io.Reader {
	label := contentType
	if _, params, err := mime.ParseMediaType(contentType); err != nil || params["charset"] == "" {
		if res, err := chardet.NewHtmlDetector().DetectBest(body); err == nil && res.Confidence >= 80 {
			label = "text/html; charset=" + strings.ToLower(res.Charset)
		}
	}
	r, err := charset.NewReader(bytes.NewReader(body), label)
	if err != nil {
		return bytes.NewReader(body)
	}
	return r
}

type metaTags struct {
	property map[string]string
	name     map[string]string
}

func collectMeta(doc *goquery.Document) metaTags {
	tags := metaTags{property: map[string]string{}, name: map[string]string{}}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		if p := strings.ToLower(s.AttrOr("property", "")); p != "" {
			if _, seen := tags.property[p]; !seen {
				tags.property[p] = content
			}
		}
		if n := strings.ToLower(s.AttrOr("name", "")); n != "" {
			if _, seen := tags.name[n]; !seen {
				tags.name[n] = content
			}
		}
	})
	return tags
}

// prop looks a key up as a property attribute, then as a name attribute;
// Twitter cards are commonly published with either.
func (m metaTags) prop(keys ...string) string {
	for _, k := range keys {
		if v := m.property[k]; v != "" {
			return v
		}
		if v := m.name[k]; v != "" {
			return v
		}
	}
	return ""
}

func (m metaTags) named(key string) string {
	return m.name[key]
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func extract(doc *goquery.Document, finalURL string) *Data {
	m := collectMeta(doc)

	title := strings.TrimSpace(doc.Find("title").First().Text())
	canonical := ""
	doc.Find("link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(s.AttrOr("rel", ""), "canonical") {
			canonical = strings.TrimSpace(s.AttrOr("href", ""))
			return canonical == ""
		}
		return true
	})

	images := collectImages(m, finalURL)
	data := &Data{
		Title:         firstOf(m.prop("og:title"), m.prop("twitter:title"), title),
		Description:   firstOf(m.prop("og:description"), m.prop("twitter:description"), m.named("description")),
		SiteName:      firstOf(m.prop("og:site_name"), m.named("application-name")),
		URL:           firstOf(m.prop("og:url"), canonical, finalURL),
		Type:          m.prop("og:type"),
		ImageAlt:      firstOf(m.prop("og:image:alt"), m.prop("twitter:image:alt")),
		PublishedTime: firstOf(m.prop("article:published_time"), m.named("datepublished")),
		Author:        firstOf(m.prop("article:author"), m.named("author")),
	}
	if len(images) > 0 {
		data.Image = images[0]
		data.AdditionalImages = images[1:]
	}
	if len(data.AdditionalImages) == 0 {
		data.AdditionalImages = nil
	}
	return data
}

func collectImages(m metaTags, base string) []string {
	var images []string
	seen := map[string]bool{}
	for _, candidate := range []string{
		m.prop("og:image"),
		m.prop("twitter:image", "twitter:image:src"),
		m.prop("og:image:url"),
	} {
		if candidate == "" {
			continue
		}
		resolved := Resolve(candidate, base)
		if resolved == "" || seen[resolved] {
			continue
		}
		seen[resolved] = true
		images = append(images, resolved)
	}
	return images
}

// Resolve makes ref absolute against base. Protocol-relative references
// take the scheme of base.
func Resolve(ref, base string) string {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case strings.HasPrefix(ref, "//"):
		if strings.HasPrefix(base, "https") {
			return "https:" + ref
		}
		return "http:" + ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
