package processing

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/DeafMist/blog-factory/internal/blogscript"
)

var (
	componentPattern = regexp.MustCompile(`<[A-Z]\w+`)
	importPattern    = regexp.MustCompile(`(?m)^import .+ from .+;$`)
)

// Widget beats are the structured components beyond text and media.
var widgetTypes = map[string]bool{
	blogscript.TypeStatGrid: true,
	blogscript.TypeTable:    true,
	blogscript.TypeTimeline: true,
	blogscript.TypeProfile:  true,
}

// Metrics are size and shape figures for a document and its MDX output.
type Metrics struct {
	JSONSize         int            `json:"jsonSize"`
	BeatCount        int            `json:"beatCount"`
	BeatTypes        map[string]int `json:"beatTypes"`
	ImageCount       int            `json:"imageCount"`
	WidgetCount      int            `json:"widgetCount"`
	MDXSize          int            `json:"mdxSize"`
	LineCount        int            `json:"lineCount"`
	ComponentCount   int            `json:"componentCount"`
	Imports          []string       `json:"imports"`
	CompressionRatio float64        `json:"compressionRatio"`
	AverageBeatSize  int            `json:"averageBeatSize"`
}

// Measure computes Metrics. Sizes are in bytes.
func Measure(doc *blogscript.Document, mdx string) (Metrics, error) {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return Metrics{}, fmt.Errorf("encode document: %w", err)
	}

	m := Metrics{
		JSONSize:       len(encoded),
		BeatCount:      len(doc.Beats),
		BeatTypes:      make(map[string]int),
		MDXSize:        len(mdx),
		LineCount:      strings.Count(mdx, "\n") + 1,
		ComponentCount: len(componentPattern.FindAllString(mdx, -1)),
		Imports:        importPattern.FindAllString(mdx, -1),
	}
	for _, b := range doc.Beats {
		t := b.BeatType()
		m.BeatTypes[t]++
		if t == blogscript.TypeImage {
			m.ImageCount++
		}
		if widgetTypes[t] {
			m.WidgetCount++
		}
	}
	if m.MDXSize > 0 {
		m.CompressionRatio = math.Round(float64(m.JSONSize)/float64(m.MDXSize)*100) / 100
	}
	if m.BeatCount > 0 {
		m.AverageBeatSize = int(math.Round(float64(m.MDXSize) / float64(m.BeatCount)))
	}
	return m, nil
}

// Check is one named pass/fail quality check.
type Check struct {
	Group  string `json:"group"`
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// SEO bounds.
const (
	TitleMin       = 10
	TitleMax       = 70
	DescriptionMin = 50
	DescriptionMax = 160
	TagsMin        = 3
	TagsMax        = 10
)

// Quality is the outcome of the quality checks. Score is the percentage
// of checks passed, rounded to one decimal.
type Quality struct {
	Checks            []Check `json:"checks"`
	TitleLength       int     `json:"titleLength"`
	DescriptionLength int     `json:"descriptionLength"`
	TagCount          int     `json:"tagCount"`
	Score             float64 `json:"score"`
}

// Failed lists the checks that did not pass.
func (q Quality) Failed() []Check {
	var out []Check
	for _, c := range q.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Assess runs the schema, content, rendering and SEO checks.
func Assess(doc *blogscript.Document, mdx string) Quality {
	hasBeat := func(match func(string) bool) bool {
		for _, b := range doc.Beats {
			if match(b.BeatType()) {
				return true
			}
		}
		return false
	}
	is := func(t string) func(string) bool {
		return func(s string) bool { return s == t }
	}

	q := Quality{
		TitleLength:       utf8.RuneCountInString(doc.Meta.Title),
		DescriptionLength: utf8.RuneCountInString(doc.Meta.Description),
		TagCount:          len(doc.Meta.Tags),
	}
	add := func(group, name string, passed bool) {
		q.Checks = append(q.Checks, Check{Group: group, Name: name, Passed: passed})
	}

	add("schema", "hasValidMeta", doc.Meta.Title != "" && doc.Meta.Description != "")
	add("schema", "hasHero", doc.Hero != nil)
	add("schema", "hasBeats", len(doc.Beats) > 0)
	add("schema", "hasReferences", len(doc.References) > 0)

	add("content", "hasHeadings", hasBeat(is(blogscript.TypeHeading)))
	add("content", "hasImages", hasBeat(is(blogscript.TypeImage)))
	add("content", "hasWidgets", hasBeat(func(t string) bool { return widgetTypes[t] }))
	add("content", "hasCallouts", hasBeat(is(blogscript.TypeCallout)))

	add("rendering", "hasFrontmatter", strings.HasPrefix(mdx, "---"))
	add("rendering", "hasImports", strings.Contains(mdx, "import "))
	add("rendering", "hasComponents", componentPattern.MatchString(mdx))
	add("rendering", "noEmptyLines", !strings.Contains(mdx, "\n\n\n\n"))

	add("seo", "titleOK", q.TitleLength >= TitleMin && q.TitleLength <= TitleMax)
	add("seo", "descriptionOK", q.DescriptionLength >= DescriptionMin && q.DescriptionLength <= DescriptionMax)
	add("seo", "tagsOK", q.TagCount >= TagsMin && q.TagCount <= TagsMax)

	passed := len(q.Checks) - len(q.Failed())
	q.Score = math.Round(float64(passed)/float64(len(q.Checks))*1000) / 10
	return q
}
