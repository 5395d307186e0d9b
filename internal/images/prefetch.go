package images

import (
	"context"
	"fmt"

	"github.com/DeafMist/blog-factory/internal/batch"
	"github.com/DeafMist/blog-factory/internal/blogscript"
)

// SourceRef is an image source found in a document, located by the same
// path syntax validation issues use.
type SourceRef struct {
	Path   string
	Source blogscript.ImageSource
}

// Collect lists every image source in doc: meta.ogImage, the hero, image
// beats and profile images, in document order.
func Collect(doc *blogscript.Document) []SourceRef {
	var refs []SourceRef
	add := func(path string, src blogscript.ImageSource) {
		if src != nil {
			refs = append(refs, SourceRef{Path: path, Source: src})
		}
	}

	add("meta.ogImage", doc.Meta.OGImage)
	if doc.Hero != nil {
		add("hero.source", doc.Hero.Source)
	}
	for i, b := range doc.Beats {
		switch b := b.(type) {
		case blogscript.ImageBeat:
			add(fmt.Sprintf("beats[%d].source", i), b.Source)
		case blogscript.ProfileBeat:
			add(fmt.Sprintf("beats[%d].image", i), b.Image)
		}
	}
	return refs
}

// key identifies sources that resolve to the same image.
func key(src blogscript.ImageSource) string {
	switch s := src.(type) {
	case blogscript.URLSource:
		return "url:" + s.URL
	case blogscript.WikipediaSource:
		return "wikipedia:" + s.Lang + ":" + s.Entity
	case blogscript.SearchSource:
		return "ddg:" + s.Query
	case blogscript.StockSource:
		return "unsplash:" + s.Orientation + ":" + s.Query
	default:
		return ""
	}
}

// ResolveSource resolves a single document image source. URL sources are
// answered locally.
func (r *Resolver) ResolveSource(ctx context.Context, src blogscript.ImageSource, opts Options) *Image {
	switch s := src.(type) {
	case blogscript.URLSource:
		return &Image{
			URL:          s.URL,
			ThumbnailURL: s.URL,
			Source:       SourceURL,
			Alt:          s.Alt,
		}
	case blogscript.WikipediaSource:
		opts.Sources = []Source{SourceWikipedia}
		opts.Preferred = SourceWikipedia
		opts.Language = s.Lang
		return r.Resolve(ctx, s.Entity, opts)
	case blogscript.SearchSource:
		opts.Sources = []Source{SourceDDG, SourceWikipedia}
		opts.Preferred = ""
		return r.Resolve(ctx, s.Query, opts)
	case blogscript.StockSource:
		opts.Sources = []Source{SourcePexels}
		opts.Preferred = ""
		opts.Orientation = s.Orientation
		return r.Resolve(ctx, s.Query, opts)
	default:
		return nil
	}
}

// PrefetchDocument resolves every image source of doc, five at a time,
// and returns the results keyed by path. Identical sources are resolved
// once. Paths whose source found nothing map to nil.
func (r *Resolver) PrefetchDocument(ctx context.Context, doc *blogscript.Document, opts Options) map[string]*Image {
	refs := Collect(doc)
	if len(refs) == 0 {
		return map[string]*Image{}
	}

	var unique []blogscript.ImageSource
	index := make(map[string]int)
	for _, ref := range refs {
		k := key(ref.Source)
		if _, ok := index[k]; ok {
			continue
		}
		index[k] = len(unique)
		unique = append(unique, ref.Source)
	}

	found := batch.Run(ctx, unique, batch.DefaultWindow, func(ctx context.Context, src blogscript.ImageSource) *Image {
		return r.ResolveSource(ctx, src, opts)
	})

	out := make(map[string]*Image, len(refs))
	for _, ref := range refs {
		out[ref.Path] = found[index[key(ref.Source)]]
	}
	return out
}
