package render_test

import (
	"strings"
	"testing"

	"github.com/DeafMist/blog-factory/internal/blogscript"
	"github.com/DeafMist/blog-factory/internal/render"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const header = `---
title: "Quarterly chip market"
pubDatetime: 2025-01-01T00:00:00+09:00
tags: [a, b, c]
description: "A short look at how the memory market moved over the last quarter and why."
author: Blog Factory
---

import StatCard from "@/components/widgets/StatCard.astro";
import ComparisonTable from "@/components/widgets/ComparisonTable.astro";
import HighlightBox from "@/components/widgets/HighlightBox.astro";
import QuoteBox from "@/components/widgets/QuoteBox.astro";
import TimelineItem from "@/components/widgets/TimelineItem.astro";
import ProfileCard from "@/components/widgets/ProfileCard.astro";
import SmartImage from "@/components/widgets/SmartImage.astro";
`

func document(beats ...blogscript.Beat) *blogscript.Document {
	return &blogscript.Document{
		BlogScript: blogscript.VersionTag{Version: blogscript.Version},
		Meta: blogscript.Meta{
			Title:       "Quarterly chip market",
			Description: "A short look at how the memory market moved over the last quarter and why.",
			PubDatetime: "2025-01-01T00:00:00+09:00",
			Tags:        []string{"a", "b", "c"},
			Author:      blogscript.DefaultAuthor,
		},
		Beats: beats,
	}
}

func requireText(t *testing.T, want, got string) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rendered output mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderMinimalDocument(t *testing.T) {
	raw := `{
		"$blogscript": {"version": "1.0"},
		"meta": {
			"title": "Quarterly chip market",
			"description": "A short look at how the memory market moved over the last quarter and why.",
			"pubDatetime": "2025-01-01T00:00:00+09:00",
			"tags": ["a", "b", "c"]
		},
		"beats": [{"type": "divider"}]
	}`
	doc, err := blogscript.Validate([]byte(raw))
	require.NoError(t, err)

	got := render.Render(doc)
	requireText(t, header+"\n---\n", got)
	require.NotContains(t, got, render.ReferencesHeading)
}

func TestRenderIsDeterministic(t *testing.T) {
	doc := document(
		blogscript.TableBeat{Type: "table", Headers: []string{"a", "b"}, Rows: [][]blogscript.Cell{{"x", true}}},
		blogscript.TextBeat{Type: "text", Content: "hello"},
	)
	require.Equal(t, render.Render(doc), render.Render(doc))
}

func TestRenderDraftAndReferences(t *testing.T) {
	doc := document(blogscript.TextBeat{Type: "text", Content: "Body"})
	doc.Meta.Draft = true
	doc.References = []blogscript.Reference{
		{URL: "https://a.example", Title: "A"},
		{URL: "https://b.example", Title: "B", Description: "second"},
	}

	got := render.Render(doc)
	require.Contains(t, got, "author: Blog Factory\ndraft: true\n---\n")
	require.True(t, strings.HasSuffix(got, "Body\n\n---\n\n## 참고 자료\n\n- [A](https://a.example)\n- [B](https://b.example) - second\n"))
}

func TestRenderHero(t *testing.T) {
	doc := document(blogscript.DividerBeat{Type: "divider"})
	doc.Hero = &blogscript.ImageBeat{
		Type:   "image",
		Source: blogscript.StockSource{Kind: "unsplash", Query: "server room", Orientation: "landscape"},
		Size:   "hero",
	}

	want := header + "\n" +
		"<SmartImage\n" +
		`  query="server room" sources={["unsplash"]} orientation="landscape"` + "\n" +
		`  size="hero"` + "\n" +
		"/>\n" +
		"\n\n" +
		"---\n"
	requireText(t, want, render.Render(doc))
}

func TestRenderBeats(t *testing.T) {
	tests := []struct {
		name string
		beat blogscript.Beat
		want string
	}{
		{
			name: "text",
			beat: blogscript.TextBeat{Type: "text", Content: "Some **markdown**"},
			want: "Some **markdown**\n",
		},
		{
			name: "h2",
			beat: blogscript.HeadingBeat{Type: "heading", Level: "h2", Text: "Intro"},
			want: "## Intro\n",
		},
		{
			name: "h4",
			beat: blogscript.HeadingBeat{Type: "heading", Level: "h4", Text: "Detail"},
			want: "#### Detail\n",
		},
		{
			name: "image with float",
			beat: blogscript.ImageBeat{
				Type:    "image",
				Source:  blogscript.WikipediaSource{Kind: "wikipedia", Entity: "Nvidia", Lang: "en"},
				Size:    "medium",
				Caption: "HQ",
				Alt:     "Building",
				Float:   "left",
			},
			want: "<SmartImage\n" +
				`  query="Nvidia" sources={["wikipedia"]} lang="en"` + "\n" +
				`  size="medium" caption="HQ" alt="Building" class="float-left"` + "\n" +
				"/>\n",
		},
		{
			name: "image float none",
			beat: blogscript.ImageBeat{
				Type:   "image",
				Source: blogscript.URLSource{Kind: "url", URL: "https://x.example/a.png"},
				Size:   "small",
				Float:  "none",
			},
			want: "<SmartImage\n  url=\"https://x.example/a.png\"\n  size=\"small\"\n/>\n",
		},
		{
			name: "image from search",
			beat: blogscript.ImageBeat{
				Type:   "image",
				Source: blogscript.SearchSource{Kind: "ddg", Query: "gpu"},
				Size:   "large",
			},
			want: "<SmartImage\n  query=\"gpu\" sources={[\"ddg\", \"wikipedia\"]}\n  size=\"large\"\n/>\n",
		},
		{
			name: "quote escapes double quotes",
			beat: blogscript.QuoteBeat{Type: "quote", Text: `He said "go"`, Author: "Rob", Variant: "default"},
			want: "<QuoteBox\n  quote=\"He said \\\"go\\\"\" author=\"Rob\"\n/>\n",
		},
		{
			name: "quote variant",
			beat: blogscript.QuoteBeat{Type: "quote", Text: "x", Source: "Blog", Variant: "card"},
			want: "<QuoteBox\n  quote=\"x\" source=\"Blog\" variant=\"card\"\n/>\n",
		},
		{
			name: "callout",
			beat: blogscript.CalloutBeat{Type: "callout", Variant: "warning", Title: "Heads up", Content: "Prices vary"},
			want: "<HighlightBox type=\"warning\" title=\"Heads up\">\n\nPrices vary\n\n</HighlightBox>\n",
		},
		{
			name: "stat",
			beat: blogscript.StatBeat{Type: "stat", Stat: blogscript.Stat{Label: "Share", Value: "80%", Trend: "up"}},
			want: "  <StatCard\n    label=\"Share\"\n    value=\"80%\" trend=\"up\"\n  />\n",
		},
		{
			name: "stat grid",
			beat: blogscript.StatGridBeat{Type: "stat-grid", Columns: "2", Stats: []blogscript.Stat{
				{Label: "A", Value: "1", Description: "first"},
				{Label: "B", Value: "2"},
			}},
			want: "<div class=\"grid grid-cols-1 md:grid-cols-2 gap-4 my-8\">\n" +
				"  <StatCard\n    label=\"A\"\n    value=\"1\" description=\"first\"\n  />\n" +
				"  <StatCard\n    label=\"B\"\n    value=\"2\"\n  />\n" +
				"</div>\n",
		},
		{
			name: "table",
			beat: blogscript.TableBeat{
				Type:    "table",
				Title:   "Specs",
				Headers: []string{"Chip", "<HBM>"},
				Rows:    [][]blogscript.Cell{{"H100", true}, {"A100", "80 & more"}},
			},
			want: "<ComparisonTable title=\"Specs\"\n" +
				"  headers={[\"Chip\",\"<HBM>\"]}\n" +
				"  rows={[[\"H100\",true],[\"A100\",\"80 & more\"]]}\n" +
				"/>\n",
		},
		{
			name: "timeline",
			beat: blogscript.TimelineBeat{Type: "timeline", Items: []blogscript.TimelineItem{
				{Date: "2023", Title: "Tape-out", Status: "completed"},
				{Date: "2024", Title: "Launch", Description: "GA"},
			}},
			want: "<div class=\"my-8 space-y-4\">\n" +
				"  <TimelineItem\n    date=\"2023\"\n    title=\"Tape-out\" status=\"completed\"\n  />\n" +
				"  <TimelineItem\n    date=\"2024\"\n    title=\"Launch\" description=\"GA\"\n  />\n" +
				"</div>\n",
		},
		{
			name: "profile",
			beat: blogscript.ProfileBeat{
				Type:  "profile",
				Name:  "Lisa Su",
				Role:  "CEO",
				Image: blogscript.WikipediaSource{Kind: "wikipedia", Entity: "Lisa Su", Lang: "en"},
				Stats: []blogscript.ProfileStat{{Label: "Since", Value: "2014"}},
			},
			want: "<ProfileCard\n" +
				`  name="Lisa Su" role="CEO" imageQuery="Lisa Su" stats={[{"label":"Since","value":"2014"}]}` + "\n" +
				"/>\n",
		},
		{
			name: "profile with url image has no query",
			beat: blogscript.ProfileBeat{
				Type:  "profile",
				Name:  "Acme",
				Image: blogscript.URLSource{Kind: "url", URL: "https://x.example/logo.png"},
			},
			want: "<ProfileCard\n  name=\"Acme\"\n/>\n",
		},
		{
			name: "profile with empty stats",
			beat: blogscript.ProfileBeat{Type: "profile", Name: "Acme", Stats: []blogscript.ProfileStat{}},
			want: "<ProfileCard\n  name=\"Acme\" stats={[]}\n/>\n",
		},
		{
			name: "table keeps line separators raw",
			beat: blogscript.TableBeat{
				Type:    "table",
				Headers: []string{"a", "b"},
				Rows:    [][]blogscript.Cell{{"x\u2028y", `back\u2029slash`}},
			},
			want: "<ComparisonTable\n" +
				"  headers={[\"a\",\"b\"]}\n" +
				"  rows={[[\"x\u2028y\",\"back\\\\u2029slash\"]]}\n" +
				"/>\n",
		},
		{
			name: "divider",
			beat: blogscript.DividerBeat{Type: "divider"},
			want: "---\n",
		},
		{
			name: "spacer small",
			beat: blogscript.SpacerBeat{Type: "spacer", Size: "small"},
			want: "<div class=\"h-4\"></div>\n",
		},
		{
			name: "spacer large",
			beat: blogscript.SpacerBeat{Type: "spacer", Size: "large"},
			want: "<div class=\"h-12\"></div>\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render.Render(document(tt.beat))
			requireText(t, header+"\n"+tt.want, got)
		})
	}
}

func TestRenderSkipsUnknownBeat(t *testing.T) {
	doc := document(nil, blogscript.DividerBeat{Type: "divider"})
	requireText(t, header+"\n\n---\n", render.New(nil).Render(doc))
}

func TestSourceAttrs(t *testing.T) {
	require.Equal(t, `query="cats" sources={["unsplash"]}`, render.SourceAttrs(blogscript.StockSource{Kind: "unsplash", Query: "cats"}))
	require.Equal(t, "", render.SourceAttrs(nil))
}
