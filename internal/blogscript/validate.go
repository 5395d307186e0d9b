package blogscript

import (
	"encoding/json"
	"fmt"
)

var (
	beatTypes = []string{
		TypeText, TypeHeading, TypeImage, TypeQuote, TypeCallout,
		TypeStat, TypeStatGrid, TypeTable, TypeTimeline, TypeProfile,
		TypeDivider, TypeSpacer,
	}
	sourceKinds = []string{KindURL, KindWikipedia, KindDDG, KindUnsplash}

	headingLevels    = []string{"h2", "h3", "h4"}
	imageSizes       = []string{"small", "medium", "large", "hero", "full"}
	imageFloats      = []string{"left", "right", "none"}
	languages        = []string{"en", "ko"}
	orientations     = []string{"landscape", "portrait", "squarish"}
	quoteVariants    = []string{"default", "accent", "minimal", "card"}
	calloutVariants  = []string{"info", "warning", "success", "tip", "danger"}
	trends           = []string{"up", "down", "neutral"}
	gridColumns      = []string{"2", "3", "4"}
	timelineStatuses = []string{"completed", "current", "upcoming"}
	spacerSizes      = []string{"small", "medium", "large"}
)

// Result is the outcome of SafeValidate.
type Result struct {
	Success bool      `json:"success"`
	Data    *Document `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
	Issues  []Issue   `json:"issues,omitempty"`
}

// Validate parses raw JSON into a Document, applying defaults. Any
// violation is reported as a *SchemaError listing every issue found.
func Validate(raw []byte) (*Document, error) {
	var probe json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &SchemaError{Issues: []Issue{{Code: CodeInvalidJSON, Message: fmt.Sprintf("invalid JSON: %v", err)}}}
	}

	c := &checker{}
	doc := c.document(probe)
	if err := c.err(); err != nil {
		return nil, err
	}
	return doc, nil
}

// ValidateValue validates an already decoded value, such as a document read
// from YAML.
func ValidateValue(v any) (*Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return Validate(raw)
}

// SafeValidate is Validate for callers that must not fail on bad input.
func SafeValidate(raw []byte) Result {
	doc, err := Validate(raw)
	if err != nil {
		res := Result{Error: err.Error()}
		if se, ok := err.(*SchemaError); ok {
			res.Issues = se.Issues
		}
		return res
	}
	return Result{Success: true, Data: doc}
}

func (c *checker) document(raw json.RawMessage) *Document {
	root := c.object("", raw)
	if root == nil {
		return nil
	}
	root.strict("$blogscript", "meta", "hero", "beats", "references")

	doc := &Document{}
	if v, ok := root.raw("$blogscript"); ok {
		if tag := c.object("$blogscript", v); tag != nil {
			doc.BlogScript.Version = c.version(tag)
		}
	} else {
		c.add("$blogscript", CodeInvalidType, "required")
	}

	if v, ok := root.raw("meta"); ok {
		doc.Meta = c.meta("meta", v)
	} else {
		c.add("meta", CodeInvalidType, "required")
	}

	if v, ok := root.raw("hero"); ok {
		if hero := c.imageBeat("hero", v); hero != nil {
			doc.Hero = hero
		}
	}

	items := root.array("beats", 1, 0, false)
	doc.Beats = make([]Beat, 0, len(items))
	for i, item := range items {
		if b := c.beat(indexPath("beats", i), item); b != nil {
			doc.Beats = append(doc.Beats, b)
		}
	}

	for i, item := range root.array("references", 0, 0, true) {
		if ref, ok := c.reference(indexPath("references", i), item); ok {
			doc.References = append(doc.References, ref)
		}
	}
	return doc
}

func (c *checker) version(tag *object) string {
	v := tag.str("version", strRule{})
	if tag.has("version") && v != Version {
		if raw, _ := tag.raw("version"); jsonKind(raw) == "string" {
			c.add("$blogscript.version", CodeInvalidLiteral, "invalid literal value, expected %q", Version)
		}
	}
	return v
}

// meta is lenient about unknown keys: they are dropped.
func (c *checker) meta(path string, raw json.RawMessage) Meta {
	o := c.object(path, raw)
	if o == nil {
		return Meta{}
	}
	m := Meta{
		Title:       o.str("title", strRule{min: 1}),
		Description: o.str("description", strRule{min: 1, max: 160}),
		PubDatetime: o.str("pubDatetime", strRule{}),
		Tags:        o.strings("tags", 1, 10),
		Author:      o.str("author", strRule{optional: true}),
		Draft:       o.boolean("draft", false),
	}
	if !o.has("author") {
		m.Author = DefaultAuthor
	}
	if v, ok := o.raw("ogImage"); ok {
		m.OGImage = c.imageSource(joinPath(path, "ogImage"), v)
	}
	return m
}

func (c *checker) reference(path string, raw json.RawMessage) (Reference, bool) {
	o := c.object(path, raw)
	if o == nil {
		return Reference{}, false
	}
	o.strict("url", "title", "description")
	return Reference{
		URL:         o.str("url", strRule{url: true}),
		Title:       o.str("title", strRule{min: 1}),
		Description: o.str("description", strRule{optional: true}),
	}, true
}

func (c *checker) imageSource(path string, raw json.RawMessage) ImageSource {
	o := c.object(path, raw)
	if o == nil {
		return nil
	}
	kind, ok := o.discriminator("kind", sourceKinds)
	if !ok {
		return nil
	}
	switch kind {
	case KindURL:
		o.strict("kind", "url", "alt")
		return URLSource{
			Kind: kind,
			URL:  o.str("url", strRule{url: true}),
			Alt:  o.str("alt", strRule{optional: true}),
		}
	case KindWikipedia:
		o.strict("kind", "entity", "lang")
		return WikipediaSource{
			Kind:   kind,
			Entity: o.str("entity", strRule{min: 1}),
			Lang:   o.enum("lang", languages, "en", false),
		}
	case KindDDG:
		o.strict("kind", "query")
		return SearchSource{
			Kind:  kind,
			Query: o.str("query", strRule{min: 1}),
		}
	default:
		o.strict("kind", "query", "orientation")
		return StockSource{
			Kind:        kind,
			Query:       o.str("query", strRule{min: 1}),
			Orientation: o.enum("orientation", orientations, "", true),
		}
	}
}

func (c *checker) beat(path string, raw json.RawMessage) Beat {
	o := c.object(path, raw)
	if o == nil {
		return nil
	}
	typ, ok := o.discriminator("type", beatTypes)
	if !ok {
		return nil
	}

	switch typ {
	case TypeText:
		o.strict("type", "content")
		return TextBeat{Type: typ, Content: o.str("content", strRule{min: 1})}

	case TypeHeading:
		o.strict("type", "level", "text")
		return HeadingBeat{
			Type:  typ,
			Level: o.enum("level", headingLevels, "", false),
			Text:  o.str("text", strRule{min: 1}),
		}

	case TypeImage:
		if b := c.imageBeatFields(o); b != nil {
			return *b
		}
		return nil

	case TypeQuote:
		o.strict("type", "text", "author", "source", "variant")
		return QuoteBeat{
			Type:    typ,
			Text:    o.str("text", strRule{min: 1}),
			Author:  o.str("author", strRule{optional: true}),
			Source:  o.str("source", strRule{optional: true}),
			Variant: o.enum("variant", quoteVariants, "default", false),
		}

	case TypeCallout:
		o.strict("type", "variant", "title", "content")
		return CalloutBeat{
			Type:    typ,
			Variant: o.enum("variant", calloutVariants, "", false),
			Title:   o.str("title", strRule{optional: true}),
			Content: o.str("content", strRule{min: 1}),
		}

	case TypeStat:
		o.strict("type", "label", "value", "description", "trend")
		return StatBeat{Type: typ, Stat: statFields(o)}

	case TypeStatGrid:
		o.strict("type", "columns", "stats")
		grid := StatGridBeat{
			Type:    typ,
			Columns: o.enum("columns", gridColumns, "3", false),
		}
		for i, item := range o.array("stats", 1, 6, false) {
			so := c.object(indexPath(joinPath(path, "stats"), i), item)
			if so == nil {
				continue
			}
			so.strict("label", "value", "description", "trend")
			grid.Stats = append(grid.Stats, statFields(so))
		}
		return grid

	case TypeTable:
		o.strict("type", "title", "headers", "rows")
		return TableBeat{
			Type:    typ,
			Title:   o.str("title", strRule{optional: true}),
			Headers: o.strings("headers", 2, 0),
			Rows:    c.rows(joinPath(path, "rows"), o),
		}

	case TypeTimeline:
		o.strict("type", "items")
		tl := TimelineBeat{Type: typ}
		for i, item := range o.array("items", 1, 0, false) {
			io := c.object(indexPath(joinPath(path, "items"), i), item)
			if io == nil {
				continue
			}
			tl.Items = append(tl.Items, TimelineItem{
				Date:        io.str("date", strRule{min: 1}),
				Title:       io.str("title", strRule{min: 1}),
				Description: io.str("description", strRule{optional: true}),
				Status:      io.enum("status", timelineStatuses, "", true),
			})
		}
		return tl

	case TypeProfile:
		o.strict("type", "name", "role", "description", "image", "stats")
		p := ProfileBeat{
			Type:        typ,
			Name:        o.str("name", strRule{min: 1}),
			Role:        o.str("role", strRule{optional: true}),
			Description: o.str("description", strRule{optional: true}),
		}
		if v, ok := o.raw("image"); ok {
			p.Image = c.imageSource(joinPath(path, "image"), v)
		}
		stats := o.array("stats", 0, 0, true)
		if stats != nil {
			p.Stats = make([]ProfileStat, 0, len(stats))
		}
		for i, item := range stats {
			so := c.object(indexPath(joinPath(path, "stats"), i), item)
			if so == nil {
				continue
			}
			p.Stats = append(p.Stats, ProfileStat{
				Label: so.str("label", strRule{}),
				Value: so.str("value", strRule{}),
			})
		}
		return p

	case TypeDivider:
		o.strict("type")
		return DividerBeat{Type: typ}

	default:
		o.strict("type", "size")
		return SpacerBeat{Type: typ, Size: o.enum("size", spacerSizes, "medium", false)}
	}
}

func (c *checker) imageBeat(path string, raw json.RawMessage) *ImageBeat {
	o := c.object(path, raw)
	if o == nil {
		return nil
	}
	if _, ok := o.discriminator("type", []string{TypeImage}); !ok {
		return nil
	}
	return c.imageBeatFields(o)
}

func (c *checker) imageBeatFields(o *object) *ImageBeat {
	o.strict("type", "source", "size", "caption", "alt", "float")
	b := &ImageBeat{
		Type:    TypeImage,
		Size:    o.enum("size", imageSizes, "large", false),
		Caption: o.str("caption", strRule{optional: true}),
		Alt:     o.str("alt", strRule{optional: true}),
		Float:   o.enum("float", imageFloats, "", true),
	}
	if v, ok := o.raw("source"); ok {
		b.Source = c.imageSource(joinPath(o.path, "source"), v)
	} else {
		c.add(joinPath(o.path, "source"), CodeInvalidType, "required")
	}
	return b
}

func statFields(o *object) Stat {
	return Stat{
		Label:       o.str("label", strRule{min: 1}),
		Value:       o.str("value", strRule{min: 1}),
		Description: o.str("description", strRule{optional: true}),
		Trend:       o.enum("trend", trends, "", true),
	}
}

// rows accepts string and boolean cells only. Row width is not compared
// with the header count.
func (c *checker) rows(path string, o *object) [][]Cell {
	items := o.array("rows", 1, 0, false)
	if items == nil {
		return nil
	}
	rows := make([][]Cell, 0, len(items))
	for i, item := range items {
		rowPath := indexPath(path, i)
		cells := c.array(rowPath, item, 0, 0)
		row := make([]Cell, 0, len(cells))
		for j, cell := range cells {
			cellPath := indexPath(rowPath, j)
			switch jsonKind(cell) {
			case "string":
				if s, ok := c.decodeString(cellPath, cell); ok {
					row = append(row, s)
				}
			case "boolean":
				var b bool
				_ = json.Unmarshal(cell, &b)
				row = append(row, b)
			default:
				c.add(cellPath, CodeInvalidType, "expected string or boolean, received %s", jsonKind(cell))
			}
		}
		rows = append(rows, row)
	}
	return rows
}
