// Package render turns a validated BlogScript document into MDX. Output is
// a pure function of the document.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/DeafMist/blog-factory/internal/blogscript"
)

// ReferencesHeading titles the trailing reference list.
const ReferencesHeading = "## 참고 자료"

var imports = []string{
	`import StatCard from "@/components/widgets/StatCard.astro";`,
	`import ComparisonTable from "@/components/widgets/ComparisonTable.astro";`,
	`import HighlightBox from "@/components/widgets/HighlightBox.astro";`,
	`import QuoteBox from "@/components/widgets/QuoteBox.astro";`,
	`import TimelineItem from "@/components/widgets/TimelineItem.astro";`,
	`import ProfileCard from "@/components/widgets/ProfileCard.astro";`,
	`import SmartImage from "@/components/widgets/SmartImage.astro";`,
}

var spacerHeights = map[string]string{"small": "4", "medium": "8", "large": "12"}

// Renderer converts documents to MDX.
type Renderer struct {
	log *slog.Logger
}

// New creates a renderer. A nil logger discards warnings.
func New(log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Renderer{log: log}
}

// Render renders doc with a renderer that discards warnings.
func Render(doc *blogscript.Document) string {
	return New(nil).Render(doc)
}

// Render produces the MDX text for doc: frontmatter, the widget imports,
// the optional hero, each beat in order and the optional references.
func (r *Renderer) Render(doc *blogscript.Document) string {
	meta := doc.Meta
	lines := []string{
		"---",
		`title: "` + meta.Title + `"`,
		"pubDatetime: " + meta.PubDatetime,
		"tags: [" + strings.Join(meta.Tags, ", ") + "]",
		`description: "` + meta.Description + `"`,
		"author: " + meta.Author,
	}
	if meta.Draft {
		lines = append(lines, "draft: true")
	}
	lines = append(lines, "---", "")
	lines = append(lines, imports...)
	lines = append(lines, "")

	if doc.Hero != nil {
		lines = append(lines, image(*doc.Hero), "")
	}

	for _, b := range doc.Beats {
		lines = append(lines, r.beat(b))
	}

	if len(doc.References) > 0 {
		lines = append(lines, "---", "", ReferencesHeading, "")
		for _, ref := range doc.References {
			line := "- [" + ref.Title + "](" + ref.URL + ")"
			if ref.Description != "" {
				line += " - " + ref.Description
			}
			lines = append(lines, line)
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

func (r *Renderer) beat(b blogscript.Beat) string {
	switch b := b.(type) {
	case blogscript.TextBeat:
		return b.Content + "\n"
	case blogscript.HeadingBeat:
		return heading(b)
	case blogscript.ImageBeat:
		return image(b)
	case blogscript.QuoteBeat:
		return quote(b)
	case blogscript.CalloutBeat:
		return callout(b)
	case blogscript.StatBeat:
		return statCard(b.Stat) + "\n"
	case blogscript.StatGridBeat:
		return statGrid(b)
	case blogscript.TableBeat:
		return table(b)
	case blogscript.TimelineBeat:
		return timeline(b)
	case blogscript.ProfileBeat:
		return profile(b)
	case blogscript.DividerBeat:
		return "---\n"
	case blogscript.SpacerBeat:
		return `<div class="h-` + spacerHeights[b.Size] + `"></div>` + "\n"
	default:
		r.log.Warn("unknown beat type, skipping", slog.String("type", fmt.Sprintf("%T", b)))
		return ""
	}
}

// attr renders ` name="value"`, or nothing when value is empty.
func attr(name, value string) string {
	if value == "" {
		return ""
	}
	return " " + name + `="` + value + `"`
}

func heading(b blogscript.HeadingBeat) string {
	prefix := "####"
	switch b.Level {
	case "h2":
		prefix = "##"
	case "h3":
		prefix = "###"
	}
	return prefix + " " + b.Text + "\n"
}

// SourceAttrs renders the SmartImage attributes that locate an image.
func SourceAttrs(src blogscript.ImageSource) string {
	switch s := src.(type) {
	case blogscript.URLSource:
		return `url="` + s.URL + `"`
	case blogscript.WikipediaSource:
		return `query="` + s.Entity + `" sources={["wikipedia"]} lang="` + s.Lang + `"`
	case blogscript.SearchSource:
		return `query="` + s.Query + `" sources={["ddg", "wikipedia"]}`
	case blogscript.StockSource:
		return `query="` + s.Query + `" sources={["unsplash"]}` + attr("orientation", s.Orientation)
	default:
		return ""
	}
}

func image(b blogscript.ImageBeat) string {
	size := b.Size
	if size == "" {
		size = "large"
	}
	float := ""
	if b.Float != "" && b.Float != "none" {
		float = ` class="float-` + b.Float + `"`
	}
	return "<SmartImage\n  " + SourceAttrs(b.Source) + "\n" +
		`  size="` + size + `"` + attr("caption", b.Caption) + attr("alt", b.Alt) + float + "\n" +
		"/>\n"
}

func quote(b blogscript.QuoteBeat) string {
	variant := ""
	if b.Variant != "default" {
		variant = attr("variant", b.Variant)
	}
	text := strings.ReplaceAll(b.Text, `"`, `\"`)
	return "<QuoteBox\n" +
		`  quote="` + text + `"` + attr("author", b.Author) + attr("source", b.Source) + variant + "\n" +
		"/>\n"
}

func callout(b blogscript.CalloutBeat) string {
	return `<HighlightBox type="` + b.Variant + `"` + attr("title", b.Title) + ">\n\n" +
		b.Content + "\n\n" +
		"</HighlightBox>\n"
}

func statCard(s blogscript.Stat) string {
	return "  <StatCard\n" +
		`    label="` + s.Label + `"` + "\n" +
		`    value="` + s.Value + `"` + attr("description", s.Description) + attr("trend", s.Trend) + "\n" +
		"  />"
}

func statGrid(b blogscript.StatGridBeat) string {
	cards := make([]string, 0, len(b.Stats))
	for _, s := range b.Stats {
		cards = append(cards, statCard(s))
	}
	return `<div class="grid grid-cols-1 md:grid-cols-` + b.Columns + ` gap-4 my-8">` + "\n" +
		strings.Join(cards, "\n") + "\n" +
		"</div>\n"
}

func table(b blogscript.TableBeat) string {
	return "<ComparisonTable" + attr("title", b.Title) + "\n" +
		"  headers={" + compactJSON(b.Headers) + "}\n" +
		"  rows={" + compactJSON(b.Rows) + "}\n" +
		"/>\n"
}

func timeline(b blogscript.TimelineBeat) string {
	items := make([]string, 0, len(b.Items))
	for _, item := range b.Items {
		items = append(items, "  <TimelineItem\n"+
			`    date="`+item.Date+`"`+"\n"+
			`    title="`+item.Title+`"`+attr("description", item.Description)+attr("status", item.Status)+"\n"+
			"  />")
	}
	return `<div class="my-8 space-y-4">` + "\n" +
		strings.Join(items, "\n") + "\n" +
		"</div>\n"
}

// ImageQuery is the lookup text a profile card hands to the client side
// image loader. Only entity and search sources carry one.
func ImageQuery(src blogscript.ImageSource) string {
	switch s := src.(type) {
	case blogscript.WikipediaSource:
		return s.Entity
	case blogscript.SearchSource:
		return s.Query
	default:
		return ""
	}
}

func profile(b blogscript.ProfileBeat) string {
	stats := ""
	if b.Stats != nil {
		stats = " stats={" + compactJSON(b.Stats) + "}"
	}
	return "<ProfileCard\n" +
		`  name="` + b.Name + `"` + attr("role", b.Role) + attr("description", b.Description) +
		attr("imageQuery", ImageQuery(b.Image)) + stats + "\n" +
		"/>\n"
}

// compactJSON encodes v without HTML escaping and with U+2028 and U+2029
// left raw. The values passed here are plain strings, booleans and records
// of them, so encoding cannot fail.
func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "[]"
	}
	return unescapeSeparators(strings.TrimSuffix(buf.String(), "\n"))
}

// unescapeSeparators turns the \u2028 and \u2029 escapes written by
// encoding/json back into the runes. Escaped backslashes are copied as
// pairs so a literal "\\u2028" in the input survives.
func unescapeSeparators(s string) string {
	if !strings.Contains(s, `\u202`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch rest := s[i+1:]; {
		case strings.HasPrefix(rest, "u2028"):
			b.WriteRune('\u2028')
			i += 5
		case strings.HasPrefix(rest, "u2029"):
			b.WriteRune('\u2029')
			i += 5
		default:
			b.WriteByte(s[i])
			b.WriteByte(s[i+1])
			i++
		}
	}
	return b.String()
}
