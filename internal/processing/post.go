package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/DeafMist/blog-factory/internal/blogscript"
	"github.com/DeafMist/blog-factory/internal/models"
)

// PostOptions tune the derived index fields.
type PostOptions struct {
	KeywordLimit     int
	KeywordMinLength int
	ExcerptWords     int
	// Now stamps IndexedAt and stands in for an unparseable pubDatetime.
	Now time.Time
}

// BuildPost derives the indexed record for a rendered document.
func BuildPost(doc *blogscript.Document, mdx string, images []models.Image, opts PostOptions) (models.Post, error) {
	source, err := json.Marshal(doc)
	if err != nil {
		return models.Post{}, fmt.Errorf("encode document: %w", err)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	if opts.ExcerptWords <= 0 {
		opts.ExcerptWords = 30
	}

	text := PlainText(doc)
	published := ParseTimestamp(doc.Meta.PubDatetime)
	if published.IsZero() {
		published = opts.Now
	}

	var urls []string
	for _, ref := range doc.References {
		urls = append(urls, ref.URL)
	}
	for _, u := range ExtractURLs(text) {
		if !slices.Contains(urls, u) {
			urls = append(urls, u)
		}
	}

	keywords := ExtractKeywords(doc.Meta.Title+" "+text, opts.KeywordLimit, opts.KeywordMinLength)

	excerpt := doc.Meta.Description
	if excerpt == "" {
		excerpt = Excerpt(text, opts.ExcerptWords)
	}

	return models.Post{
		ID:          BuildPostID(doc.Meta),
		Slug:        Slugify(doc.Meta.Title),
		Title:       doc.Meta.Title,
		Description: doc.Meta.Description,
		Author:      doc.Meta.Author,
		Tags:        doc.Meta.Tags,
		Draft:       doc.Meta.Draft,
		PublishedAt: published,
		IndexedAt:   opts.Now,
		Excerpt:     excerpt,
		Text:        text,
		Keywords:    keywords,
		URLs:        urls,
		BeatTypes:   beatTypes(doc),
		Images:      images,
		MDX:         mdx,
		Source:      string(source),
		Score:       Assess(doc, mdx).Score,
	}, nil
}

// ContentHash identifies a rendering. Identical output hashes equal.
func ContentHash(mdx string) string {
	s := sha1.Sum([]byte(mdx))
	return hex.EncodeToString(s[:])
}

// ParseTimestamp accepts RFC 3339 with or without fractional seconds, a
// space-separated date time and a bare date. It returns the zero time when
// none match.
func ParseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		time.DateOnly,
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func beatTypes(doc *blogscript.Document) []string {
	seen := make(map[string]struct{})
	for _, b := range doc.Beats {
		seen[b.BeatType()] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
