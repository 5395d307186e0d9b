// Package wikimedia finds images of people, organisations and other
// entities through Wikipedia page images, Wikidata's image claim (P18)
// and Wikimedia Commons file metadata.
package wikimedia

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/DeafMist/blog-factory/internal/batch"
	"github.com/DeafMist/blog-factory/internal/cache"
	"github.com/DeafMist/blog-factory/internal/httpx"
)

// Endpoints. WikipediaAPI contains a {lang} placeholder.
const (
	DefaultWikipediaAPI = "https://{lang}.wikipedia.org/w/api.php"
	DefaultWikidataAPI  = "https://www.wikidata.org/w/api.php"
	DefaultCommonsAPI   = "https://commons.wikimedia.org/w/api.php"
	DefaultFilePathBase = "https://commons.wikimedia.org/wiki/Special:FilePath/"
)

// DefaultTTL is how long lookups, including misses, are cached.
const DefaultTTL = time.Hour

const (
	defaultThumbSize = 400
	defaultLicense   = "CC BY-SA"
	commonsCredit    = "Wikimedia Commons"
)

// Image origins.
const (
	SourceWikipedia = "wikipedia"
	SourceWikidata  = "wikidata"
)

// Image is an entity image with its licensing data.
type Image struct {
	ImageURL         string `json:"imageUrl,omitempty"`
	ThumbnailURL     string `json:"thumbnailUrl,omitempty"`
	Attribution      string `json:"attribution"`
	Source           string `json:"source"`
	License          string `json:"license"`
	EntityName       string `json:"entityName"`
	ArtistName       string `json:"artistName,omitempty"`
	ImageDescription string `json:"imageDescription,omitempty"`
}

// Options tune a lookup.
type Options struct {
	ThumbSize int
	Language  string // "en" or "ko"
}

func (o Options) withDefaults() Options {
	if o.ThumbSize <= 0 {
		o.ThumbSize = defaultThumbSize
	}
	if o.Language == "" {
		o.Language = "en"
	}
	return o
}

// Endpoints locates the three APIs and the Commons file path redirector.
type Endpoints struct {
	Wikipedia string
	Wikidata  string
	Commons   string
	FilePath  string
}

// DefaultEndpoints are the public Wikimedia APIs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Wikipedia: DefaultWikipediaAPI,
		Wikidata:  DefaultWikidataAPI,
		Commons:   DefaultCommonsAPI,
		FilePath:  DefaultFilePathBase,
	}
}

// Client resolves entity images. It is safe for concurrent use.
type Client struct {
	http      *httpx.Client
	endpoints Endpoints
	cache     *cache.Cache[*Image]
	log       *slog.Logger
	strip     *bluemonday.Policy
}

// New creates a client. Nil arguments get working defaults.
func New(hc *httpx.Client, c *cache.Cache[*Image], log *slog.Logger, endpoints Endpoints) *Client {
	if hc == nil {
		hc = httpx.New()
	}
	if c == nil {
		c = cache.New[*Image](DefaultTTL)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	def := DefaultEndpoints()
	if endpoints.Wikipedia == "" {
		endpoints.Wikipedia = def.Wikipedia
	}
	if endpoints.Wikidata == "" {
		endpoints.Wikidata = def.Wikidata
	}
	if endpoints.Commons == "" {
		endpoints.Commons = def.Commons
	}
	if endpoints.FilePath == "" {
		endpoints.FilePath = def.FilePath
	}
	return &Client{
		http:      hc,
		endpoints: endpoints,
		cache:     c,
		log:       log.With(slog.String("provider", "wikimedia")),
		strip:     bluemonday.StrictPolicy(),
	}
}

func cacheKey(name, lang string) string {
	return lang + ":" + strings.ToLower(strings.TrimSpace(name))
}

// Lookup finds an image for name. It tries the page image of the article in
// the preferred language, then the English article for other languages,
// then the Wikidata image claim. Misses and network failures return nil and
// are cached like hits.
func (c *Client) Lookup(ctx context.Context, name string, opts Options) *Image {
	opts = opts.withDefaults()
	key := cacheKey(name, opts.Language)
	if img, ok := c.cache.Get(key); ok {
		return img
	}

	img := c.fromWikipedia(ctx, name, opts.Language, opts.ThumbSize)
	if img == nil && opts.Language != "en" {
		img = c.fromWikipedia(ctx, name, "en", opts.ThumbSize)
	}
	if img == nil {
		img = c.fromWikidata(ctx, name, opts.Language, opts.ThumbSize)
	}

	c.cache.Set(key, img)
	return img
}

// LookupBatch looks names up five at a time.
func (c *Client) LookupBatch(ctx context.Context, names []string, opts Options) map[string]*Image {
	return batch.Map(ctx, names, batch.DefaultWindow, func(ctx context.Context, name string) *Image {
		return c.Lookup(ctx, name, opts)
	})
}

// ClearCache drops every cached lookup.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

type sized struct {
	Source string `json:"source"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type pageImagesResponse struct {
	Query struct {
		Pages map[string]struct {
			Title     string `json:"title"`
			PageImage string `json:"pageimage"`
			Thumbnail *sized `json:"thumbnail"`
			Original  *sized `json:"original"`
		} `json:"pages"`
	} `json:"query"`
}

func (c *Client) fromWikipedia(ctx context.Context, name, lang string, thumbSize int) *Image {
	endpoint := strings.ReplaceAll(c.endpoints.Wikipedia, "{lang}", lang)
	var resp pageImagesResponse
	err := c.getJSON(ctx, endpoint, map[string]string{
		"action":      "query",
		"titles":      name,
		"prop":        "pageimages",
		"piprop":      "original|thumbnail",
		"pithumbsize": strconv.Itoa(thumbSize),
		"format":      "json",
		"origin":      "*",
	}, &resp)
	if err != nil {
		c.log.Warn("wikipedia page image lookup failed", slog.String("entity", name), slog.String("lang", lang), slog.Any("err", err))
		return nil
	}

	keys := sortedKeys(resp.Query.Pages)
	if len(keys) == 0 {
		return nil
	}
	page := resp.Query.Pages[keys[0]]
	if page.PageImage == "" {
		return nil
	}
	entity := page.Title
	if entity == "" {
		entity = name
	}

	if info := c.commonsInfo(ctx, page.PageImage, thumbSize); info != nil {
		return info.image(SourceWikipedia, entity)
	}

	img := &Image{
		Attribution: commonsCredit,
		Source:      SourceWikipedia,
		License:     defaultLicense,
		EntityName:  entity,
	}
	if page.Original != nil {
		img.ImageURL = page.Original.Source
	}
	if page.Thumbnail != nil {
		img.ThumbnailURL = page.Thumbnail.Source
	}
	return img
}

type searchResponse struct {
	Search []struct {
		ID string `json:"id"`
	} `json:"search"`
}

type entitiesResponse struct {
	Entities map[string]struct {
		Claims struct {
			P18 []struct {
				Mainsnak struct {
					Datavalue struct {
						Value json.RawMessage `json:"value"`
					} `json:"datavalue"`
				} `json:"mainsnak"`
			} `json:"P18"`
		} `json:"claims"`
		Labels map[string]struct {
			Value string `json:"value"`
		} `json:"labels"`
	} `json:"entities"`
}

func (c *Client) fromWikidata(ctx context.Context, name, lang string, thumbSize int) *Image {
	var search searchResponse
	err := c.getJSON(ctx, c.endpoints.Wikidata, map[string]string{
		"action":   "wbsearchentities",
		"search":   name,
		"language": lang,
		"format":   "json",
		"origin":   "*",
	}, &search)
	if err != nil {
		c.log.Warn("wikidata search failed", slog.String("entity", name), slog.Any("err", err))
		return nil
	}
	if len(search.Search) == 0 || search.Search[0].ID == "" {
		return nil
	}
	id := search.Search[0].ID

	var entities entitiesResponse
	err = c.getJSON(ctx, c.endpoints.Wikidata, map[string]string{
		"action": "wbgetentities",
		"ids":    id,
		"props":  "claims|labels",
		"format": "json",
		"origin": "*",
	}, &entities)
	if err != nil {
		c.log.Warn("wikidata entity fetch failed", slog.String("id", id), slog.Any("err", err))
		return nil
	}
	entity, ok := entities.Entities[id]
	if !ok || len(entity.Claims.P18) == 0 {
		return nil
	}
	var filename string
	if err := json.Unmarshal(entity.Claims.P18[0].Mainsnak.Datavalue.Value, &filename); err != nil || filename == "" {
		return nil
	}

	label := name
	if l := entity.Labels[lang].Value; l != "" {
		label = l
	} else if l := entity.Labels["en"].Value; l != "" {
		label = l
	}

	if info := c.commonsInfo(ctx, filename, thumbSize); info != nil {
		return info.image(SourceWikidata, label)
	}
	return &Image{
		ImageURL:     c.filePathURL(filename, 0),
		ThumbnailURL: c.filePathURL(filename, thumbSize),
		Attribution:  commonsCredit,
		Source:       SourceWikidata,
		License:      defaultLicense,
		EntityName:   label,
	}
}

type imageInfoResponse struct {
	Query struct {
		Pages map[string]struct {
			ImageInfo []struct {
				URL         string `json:"url"`
				ThumbURL    string `json:"thumburl"`
				ExtMetadata map[string]struct {
					Value json.RawMessage `json:"value"`
				} `json:"extmetadata"`
			} `json:"imageinfo"`
		} `json:"pages"`
	} `json:"query"`
}

type commonsFile struct {
	url, thumbURL, artist, license, description string
}

func (f *commonsFile) image(source, entity string) *Image {
	return &Image{
		ImageURL:         f.url,
		ThumbnailURL:     f.thumbURL,
		Attribution:      f.artist + " / " + commonsCredit,
		Source:           source,
		License:          f.license,
		EntityName:       entity,
		ArtistName:       f.artist,
		ImageDescription: f.description,
	}
}

func (c *Client) commonsInfo(ctx context.Context, filename string, thumbSize int) *commonsFile {
	var resp imageInfoResponse
	err := c.getJSON(ctx, c.endpoints.Commons, map[string]string{
		"action":     "query",
		"titles":     "File:" + filename,
		"prop":       "imageinfo",
		"iiprop":     "extmetadata|url",
		"iiurlwidth": strconv.Itoa(thumbSize),
		"format":     "json",
		"origin":     "*",
	}, &resp)
	if err != nil {
		c.log.Warn("commons metadata lookup failed", slog.String("file", filename), slog.Any("err", err))
		return nil
	}
	keys := sortedKeys(resp.Query.Pages)
	if len(keys) == 0 {
		return nil
	}
	infos := resp.Query.Pages[keys[0]].ImageInfo
	if len(infos) == 0 {
		return nil
	}
	info := infos[0]

	meta := func(name string) string {
		field, ok := info.ExtMetadata[name]
		if !ok {
			return ""
		}
		var s string
		if json.Unmarshal(field.Value, &s) != nil {
			return ""
		}
		return s
	}

	f := &commonsFile{
		url:         info.URL,
		thumbURL:    info.ThumbURL,
		artist:      c.stripHTML(meta("Artist")),
		license:     meta("LicenseShortName"),
		description: c.stripHTML(meta("ImageDescription")),
	}
	if f.url == "" {
		f.url = c.filePathURL(filename, 0)
	}
	if f.thumbURL == "" {
		f.thumbURL = c.filePathURL(filename, thumbSize)
	}
	if f.artist == "" {
		f.artist = "Unknown"
	}
	if f.license == "" {
		f.license = defaultLicense
	}
	return f
}

func (c *Client) stripHTML(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(c.strip.Sanitize(s)))
}

// filePathURL builds a Special:FilePath link; width 0 means full size.
func (c *Client) filePathURL(filename string, width int) string {
	u := c.endpoints.FilePath + encodeURIComponent(strings.ReplaceAll(filename, " ", "_"))
	if width > 0 {
		u += "?width=" + strconv.Itoa(width)
	}
	return u
}

// encodeURIComponent escapes like JavaScript's function of the same name.
func encodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	return strings.NewReplacer(
		"+", "%20",
		"%21", "!",
		"%27", "'",
		"%28", "(",
		"%29", ")",
		"%2A", "*",
	).Replace(escaped)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params map[string]string, out any) error {
	req, err := c.http.Request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.SetQueryParams(params).Get(endpoint)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	if err := httpx.CheckStatus(resp); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
