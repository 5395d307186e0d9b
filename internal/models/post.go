package models

import "time"

// Post is a rendered BlogScript document as stored in Elasticsearch.
type Post struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Tags        []string  `json:"tags"`
	Draft       bool      `json:"draft"`
	PublishedAt time.Time `json:"publishedAt"`
	IndexedAt   time.Time `json:"indexedAt"`
	Excerpt     string    `json:"excerpt"`
	Text        string    `json:"text"`
	Keywords    []string  `json:"keywords"`
	URLs        []string  `json:"urls"`
	BeatTypes   []string  `json:"beatTypes"`
	Images      []Image   `json:"images,omitempty"`
	MDX         string    `json:"mdx"`
	Source      string    `json:"source"` // validated document JSON
	Score       float64   `json:"qualityScore"`
}

// Image is an image resolved for a document before publishing, located by
// its path in the document.
type Image struct {
	Path        string `json:"path"`
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Provider    string `json:"provider"`
	Attribution string `json:"attribution,omitempty"`
}
