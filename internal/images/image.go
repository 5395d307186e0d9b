// Package images resolves a text query to a single image by trying several
// providers in order, and resolves every image referenced by a BlogScript
// document ahead of rendering.
package images

import (
	"regexp"
	"strings"

	"github.com/DeafMist/blog-factory/internal/providers/ddg"
	"github.com/DeafMist/blog-factory/internal/providers/ogmeta"
	"github.com/DeafMist/blog-factory/internal/providers/pexels"
	"github.com/DeafMist/blog-factory/internal/providers/wikimedia"
)

// Source names an image provider.
type Source string

const (
	SourceWikipedia Source = "wikipedia"
	SourceDDG       Source = "ddg"
	SourceOG        Source = "og"
	SourcePexels    Source = "pexels"
	// SourceURL marks images given directly by URL; no provider is involved.
	SourceURL Source = "url"
	// SourceAuto only has meaning as Options.Preferred and is otherwise
	// ignored.
	SourceAuto Source = "auto"
)

// DefaultSources is the waterfall used when Options.Sources is empty.
var DefaultSources = []Source{SourceWikipedia, SourceDDG, SourcePexels}

// ParseSource maps a name to a Source.
func ParseSource(name string) (Source, bool) {
	switch s := Source(strings.ToLower(strings.TrimSpace(name))); s {
	case SourceWikipedia, SourceDDG, SourceOG, SourcePexels, SourceAuto:
		return s, true
	}
	return "", false
}

// Image is the provider-independent result of a lookup.
type Image struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Attribution  string `json:"attribution"`
	Source       Source `json:"source"`
	Title        string `json:"title,omitempty"`
	Alt          string `json:"alt,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}

// FromEntity adapts a Wikimedia result. Results without a thumbnail are
// treated as misses.
func FromEntity(e *wikimedia.Image) *Image {
	if e == nil || e.ThumbnailURL == "" {
		return nil
	}
	img := &Image{
		URL:          firstNonEmpty(e.ImageURL, e.ThumbnailURL),
		ThumbnailURL: firstNonEmpty(e.ThumbnailURL, e.ImageURL),
		Attribution:  wikimedia.PlainAttribution(e),
		Source:       SourceWikipedia,
		Title:        e.EntityName,
		Alt:          firstNonEmpty(e.ImageDescription, e.EntityName),
	}
	return img
}

// FromSearch adapts a DuckDuckGo hit.
func FromSearch(d ddg.Image) *Image {
	return &Image{
		URL:          d.URL,
		ThumbnailURL: d.ThumbnailURL,
		Attribution:  "Image from " + firstNonEmpty(d.Source, "DuckDuckGo"),
		Source:       SourceDDG,
		Title:        d.Title,
		Alt:          firstNonEmpty(d.Title, "Image"),
		Width:        d.Width,
		Height:       d.Height,
	}
}

// FromPage adapts page metadata; pages without an image are misses.
func FromPage(d *ogmeta.Data) *Image {
	if d == nil || d.Image == "" {
		return nil
	}
	attribution := "Article image"
	if d.SiteName != "" {
		attribution = "Image from " + d.SiteName
	}
	return &Image{
		URL:          d.Image,
		ThumbnailURL: d.Image,
		Attribution:  attribution,
		Source:       SourceOG,
		Title:        d.Title,
		Alt:          firstNonEmpty(d.ImageAlt, d.Title, "Article image"),
	}
}

// FromStock adapts a Pexels photo.
func FromStock(p pexels.Image) *Image {
	return &Image{
		URL:          p.URL,
		ThumbnailURL: p.ThumbnailURL,
		Attribution:  pexels.Attribution(&p),
		Source:       SourcePexels,
		Title:        p.Alt,
		Alt:          p.Alt,
		Width:        p.Width,
		Height:       p.Height,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var (
	personPattern      = regexp.MustCompile(`^[A-Z][a-z]+ [A-Z][a-z]+$`)
	companyPattern     = regexp.MustCompile(`(?i)\b(Inc\.?|Corp\.?|Ltd\.?|LLC|GmbH|Co\.?|Company|Corporation|Group)$`)
	techCompanyPattern = regexp.MustCompile(`(?i)^(Apple|Google|Microsoft|Amazon|Meta|Facebook|Netflix|Tesla|Samsung|Sony|Intel|AMD|NVIDIA|IBM)$`)
	knownPersonPattern = regexp.MustCompile(`(?i)(Elon Musk|Tim Cook|Satya Nadella|Mark Zuckerberg|Jeff Bezos|Bill Gates|Steve Jobs)`)
	capitalizedWord    = regexp.MustCompile(`^[A-Z][a-z]*$`)
	acronymWord        = regexp.MustCompile(`^[A-Z]+$`)
	singleNamePattern  = regexp.MustCompile(`^[A-Z][a-z]+$`)
)

// LooksLikeEntity guesses whether query names a person, company or place
// that is likely to have an encyclopedia article.
func LooksLikeEntity(query string) bool {
	q := strings.TrimSpace(query)
	switch {
	case knownPersonPattern.MatchString(q),
		techCompanyPattern.MatchString(q),
		companyPattern.MatchString(q),
		personPattern.MatchString(q),
		singleNamePattern.MatchString(q):
		return true
	}

	words := strings.Fields(q)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		if !capitalizedWord.MatchString(w) && !acronymWord.MatchString(w) {
			return false
		}
	}
	return true
}
