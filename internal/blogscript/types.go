// Package blogscript defines the BlogScript document model: a versioned
// post description made of an ordered list of typed beats.
package blogscript

import "encoding/json"

// Version is the only accepted value of the $blogscript.version tag.
const Version = "1.0"

// DefaultAuthor is applied when meta.author is missing.
const DefaultAuthor = "Blog Factory"

// Document is a validated BlogScript post.
type Document struct {
	BlogScript VersionTag  `json:"$blogscript"`
	Meta       Meta        `json:"meta"`
	Hero       *ImageBeat  `json:"hero,omitempty"`
	Beats      []Beat      `json:"beats"`
	References []Reference `json:"references,omitempty"`
}

// VersionTag carries the schema version.
type VersionTag struct {
	Version string `json:"version"`
}

// Meta holds the frontmatter fields of a post.
type Meta struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	PubDatetime string      `json:"pubDatetime"`
	Tags        []string    `json:"tags"`
	Author      string      `json:"author"`
	Draft       bool        `json:"draft"`
	OGImage     ImageSource `json:"ogImage,omitempty"`
}

// Reference is an external link listed at the end of a post.
type Reference struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Beat type tags.
const (
	TypeText     = "text"
	TypeHeading  = "heading"
	TypeImage    = "image"
	TypeQuote    = "quote"
	TypeCallout  = "callout"
	TypeStat     = "stat"
	TypeStatGrid = "stat-grid"
	TypeTable    = "table"
	TypeTimeline = "timeline"
	TypeProfile  = "profile"
	TypeDivider  = "divider"
	TypeSpacer   = "spacer"
)

// Beat is one content unit of a document. The set of implementations is
// closed: only the types in this package satisfy it.
type Beat interface {
	BeatType() string
	beat()
}

// TextBeat is a markdown paragraph block.
type TextBeat struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// HeadingBeat is a section heading (h2-h4).
type HeadingBeat struct {
	Type  string `json:"type"`
	Level string `json:"level"`
	Text  string `json:"text"`
}

// ImageBeat is an image whose URL is resolved at build time from Source.
type ImageBeat struct {
	Type    string      `json:"type"`
	Source  ImageSource `json:"source"`
	Size    string      `json:"size"`
	Caption string      `json:"caption,omitempty"`
	Alt     string      `json:"alt,omitempty"`
	Float   string      `json:"float,omitempty"`
}

// QuoteBeat is a pull quote.
type QuoteBeat struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Author  string `json:"author,omitempty"`
	Source  string `json:"source,omitempty"`
	Variant string `json:"variant"`
}

// CalloutBeat is a highlighted box with markdown content.
type CalloutBeat struct {
	Type    string `json:"type"`
	Variant string `json:"variant"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Stat is a single labelled figure. It is shared by StatBeat and the
// entries of a StatGridBeat.
type Stat struct {
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Trend       string `json:"trend,omitempty"`
}

// StatBeat is a standalone stat card.
type StatBeat struct {
	Type string `json:"type"`
	Stat
}

// StatGridBeat lays out up to six stats in a responsive grid.
type StatGridBeat struct {
	Type    string `json:"type"`
	Columns string `json:"columns"`
	Stats   []Stat `json:"stats"`
}

// Cell is a table cell: either a string or a boolean.
type Cell = any

// TableBeat is a comparison table. Rows are not checked against the
// header count.
type TableBeat struct {
	Type    string   `json:"type"`
	Title   string   `json:"title,omitempty"`
	Headers []string `json:"headers"`
	Rows    [][]Cell `json:"rows"`
}

// TimelineItem is one entry of a TimelineBeat.
type TimelineItem struct {
	Date        string `json:"date"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

// TimelineBeat is an ordered list of dated events.
type TimelineBeat struct {
	Type  string         `json:"type"`
	Items []TimelineItem `json:"items"`
}

// ProfileStat is a label/value pair shown on a profile card.
type ProfileStat struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ProfileBeat is a person or organisation card.
type ProfileBeat struct {
	Type        string        `json:"type"`
	Name        string        `json:"name"`
	Role        string        `json:"role,omitempty"`
	Description string        `json:"description,omitempty"`
	Image       ImageSource   `json:"image,omitempty"`
	Stats       []ProfileStat `json:"stats,omitempty"`
}

// MarshalJSON keeps an empty, present stats list as [] so that it
// survives another round of validation.
func (b ProfileBeat) MarshalJSON() ([]byte, error) {
	type plain ProfileBeat
	if b.Stats == nil || len(b.Stats) > 0 {
		return json.Marshal(plain(b))
	}
	return json.Marshal(struct {
		plain
		Stats []ProfileStat `json:"stats"`
	}{plain(b), b.Stats})
}

// DividerBeat is a horizontal rule.
type DividerBeat struct {
	Type string `json:"type"`
}

// SpacerBeat is vertical whitespace.
type SpacerBeat struct {
	Type string `json:"type"`
	Size string `json:"size"`
}

func (TextBeat) BeatType() string     { return TypeText }
func (HeadingBeat) BeatType() string  { return TypeHeading }
func (ImageBeat) BeatType() string    { return TypeImage }
func (QuoteBeat) BeatType() string    { return TypeQuote }
func (CalloutBeat) BeatType() string  { return TypeCallout }
func (StatBeat) BeatType() string     { return TypeStat }
func (StatGridBeat) BeatType() string { return TypeStatGrid }
func (TableBeat) BeatType() string    { return TypeTable }
func (TimelineBeat) BeatType() string { return TypeTimeline }
func (ProfileBeat) BeatType() string  { return TypeProfile }
func (DividerBeat) BeatType() string  { return TypeDivider }
func (SpacerBeat) BeatType() string   { return TypeSpacer }

func (TextBeat) beat()     {}
func (HeadingBeat) beat()  {}
func (ImageBeat) beat()    {}
func (QuoteBeat) beat()    {}
func (CalloutBeat) beat()  {}
func (StatBeat) beat()     {}
func (StatGridBeat) beat() {}
func (TableBeat) beat()    {}
func (TimelineBeat) beat() {}
func (ProfileBeat) beat()  {}
func (DividerBeat) beat()  {}
func (SpacerBeat) beat()   {}

// Image source kinds.
const (
	KindURL       = "url"
	KindWikipedia = "wikipedia"
	KindDDG       = "ddg"
	KindUnsplash  = "unsplash"
)

// ImageSource tells the build where to find an image. Implementations are
// URLSource, WikipediaSource, SearchSource and StockSource.
type ImageSource interface {
	SourceKind() string
	imageSource()
}

// URLSource points at a known image URL.
type URLSource struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
	Alt  string `json:"alt,omitempty"`
}

// WikipediaSource looks an entity up on Wikipedia/Wikidata.
type WikipediaSource struct {
	Kind   string `json:"kind"`
	Entity string `json:"entity"`
	Lang   string `json:"lang"`
}

// SearchSource runs a general web image search.
type SearchSource struct {
	Kind  string `json:"kind"`
	Query string `json:"query"`
}

// StockSource searches stock photography.
type StockSource struct {
	Kind        string `json:"kind"`
	Query       string `json:"query"`
	Orientation string `json:"orientation,omitempty"`
}

func (URLSource) SourceKind() string       { return KindURL }
func (WikipediaSource) SourceKind() string { return KindWikipedia }
func (SearchSource) SourceKind() string    { return KindDDG }
func (StockSource) SourceKind() string     { return KindUnsplash }

func (URLSource) imageSource()       {}
func (WikipediaSource) imageSource() {}
func (SearchSource) imageSource()    {}
func (StockSource) imageSource()     {}
