package blogscript_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/DeafMist/blog-factory/internal/blogscript"
	"github.com/stretchr/testify/require"
)

const minimalDoc = `{
	"$blogscript": {"version": "1.0"},
	"meta": {
		"title": "Quarterly chip market",
		"description": "A short look at how the memory market moved over the last quarter and why.",
		"pubDatetime": "2025-01-01T00:00:00+09:00",
		"tags": ["a", "b", "c"]
	},
	"beats": [{"type": "divider"}]
}`

// withBeats returns minimalDoc with its beats array replaced.
func withBeats(t *testing.T, beats string) []byte {
	t.Helper()
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(minimalDoc), &doc))
	doc["beats"] = json.RawMessage(beats)
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return out
}

func schemaError(t *testing.T, err error) *blogscript.SchemaError {
	t.Helper()
	var se *blogscript.SchemaError
	require.ErrorAs(t, err, &se)
	return se
}

func hasIssue(se *blogscript.SchemaError, path, code string) bool {
	for _, issue := range se.Issues {
		if issue.Path == path && issue.Code == code {
			return true
		}
	}
	return false
}

func TestValidateMinimalDocument(t *testing.T) {
	doc, err := blogscript.Validate([]byte(minimalDoc))
	require.NoError(t, err)

	require.Equal(t, "1.0", doc.BlogScript.Version)
	require.Equal(t, blogscript.DefaultAuthor, doc.Meta.Author)
	require.False(t, doc.Meta.Draft)
	require.Nil(t, doc.Hero)
	require.Empty(t, doc.References)
	require.Equal(t, []blogscript.Beat{blogscript.DividerBeat{Type: "divider"}}, doc.Beats)
}

func TestValidateAppliesDefaults(t *testing.T) {
	raw := withBeats(t, `[
		{"type": "image", "source": {"kind": "wikipedia", "entity": "Nvidia"}},
		{"type": "quote", "text": "Stay hungry"},
		{"type": "stat-grid", "stats": [{"label": "Revenue", "value": "$10B"}]},
		{"type": "spacer"}
	]`)

	doc, err := blogscript.Validate(raw)
	require.NoError(t, err)
	require.Len(t, doc.Beats, 4)

	img := doc.Beats[0].(blogscript.ImageBeat)
	require.Equal(t, "large", img.Size)
	require.Equal(t, blogscript.WikipediaSource{Kind: "wikipedia", Entity: "Nvidia", Lang: "en"}, img.Source)

	require.Equal(t, "default", doc.Beats[1].(blogscript.QuoteBeat).Variant)
	require.Equal(t, "3", doc.Beats[2].(blogscript.StatGridBeat).Columns)
	require.Equal(t, "medium", doc.Beats[3].(blogscript.SpacerBeat).Size)
}

func TestValidateIsIdempotent(t *testing.T) {
	raw := []byte(`{
		"$blogscript": {"version": "1.0"},
		"meta": {
			"title": "GPU roadmap",
			"description": "What changes next year",
			"pubDatetime": "2025-03-01",
			"tags": ["gpu"],
			"draft": true,
			"ogImage": {"kind": "url", "url": "https://example.com/og.png"}
		},
		"hero": {"type": "image", "source": {"kind": "unsplash", "query": "datacenter", "orientation": "landscape"}, "size": "hero"},
		"beats": [
			{"type": "heading", "level": "h2", "text": "Intro"},
			{"type": "text", "content": "Hello **world**"},
			{"type": "callout", "variant": "tip", "title": "Note", "content": "Read on"},
			{"type": "stat", "label": "Share", "value": "80%", "trend": "up"},
			{"type": "table", "headers": ["Name", "Ships"], "rows": [["A100", true], ["H100", "soon"]]},
			{"type": "timeline", "items": [{"date": "2024", "title": "Launch", "status": "completed"}]},
			{"type": "profile", "name": "Jensen Huang", "role": "CEO", "image": {"kind": "ddg", "query": "Jensen Huang"}, "stats": [{"label": "Founded", "value": "1993"}]},
			{"type": "divider"}
		],
		"references": [{"url": "https://example.com/report", "title": "Report"}]
	}`)

	first, err := blogscript.Validate(raw)
	require.NoError(t, err)

	encoded, err := json.Marshal(first)
	require.NoError(t, err)

	second, err := blogscript.Validate(encoded)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestValidateVersion(t *testing.T) {
	raw := strings.Replace(minimalDoc, `"version": "1.0"`, `"version": "2.0"`, 1)

	_, err := blogscript.Validate([]byte(raw))
	require.Error(t, err)
	require.ErrorIs(t, err, blogscript.ErrUnsupportedVersion)
	require.True(t, hasIssue(schemaError(t, err), "$blogscript.version", blogscript.CodeInvalidLiteral))

	missing := strings.Replace(minimalDoc, `"$blogscript": {"version": "1.0"},`, "", 1)
	_, err = blogscript.Validate([]byte(missing))
	require.Error(t, err)
	require.False(t, errors.Is(err, blogscript.ErrUnsupportedVersion))
	require.True(t, hasIssue(schemaError(t, err), "$blogscript", blogscript.CodeInvalidType))
}

func TestValidateRejectsInvalidJSON(t *testing.T) {
	_, err := blogscript.Validate([]byte(`{"meta":`))
	se := schemaError(t, err)
	require.Len(t, se.Issues, 1)
	require.Equal(t, blogscript.CodeInvalidJSON, se.Issues[0].Code)
	require.Empty(t, se.Issues[0].Path)
}

func TestValidateIssues(t *testing.T) {
	tests := []struct {
		name  string
		beats string
		path  string
		code  string
	}{
		{name: "empty beats", beats: `[]`, path: "beats", code: blogscript.CodeTooSmall},
		{name: "unknown beat type", beats: `[{"type": "video"}]`, path: "beats[0].type", code: blogscript.CodeInvalidDiscriminator},
		{name: "heading level", beats: `[{"type": "divider"}, {"type": "divider"}, {"type": "heading", "level": "h5", "text": "x"}]`, path: "beats[2].level", code: blogscript.CodeInvalidEnum},
		{name: "unknown key in beat", beats: `[{"type": "text", "content": "x", "color": "red"}]`, path: "beats[0]", code: blogscript.CodeUnrecognizedKeys},
		{name: "empty text", beats: `[{"type": "text", "content": ""}]`, path: "beats[0].content", code: blogscript.CodeTooSmall},
		{name: "callout needs variant", beats: `[{"type": "callout", "content": "x"}]`, path: "beats[0].variant", code: blogscript.CodeInvalidType},
		{name: "too many stats", beats: `[{"type": "stat-grid", "stats": [` + strings.Repeat(`{"label":"l","value":"v"},`, 6) + `{"label":"l","value":"v"}]}]`, path: "beats[0].stats", code: blogscript.CodeTooBig},
		{name: "stat entry is strict", beats: `[{"type": "stat-grid", "stats": [{"type": "stat", "label": "l", "value": "v"}]}]`, path: "beats[0].stats[0]", code: blogscript.CodeUnrecognizedKeys},
		{name: "one header", beats: `[{"type": "table", "headers": ["a"], "rows": [["x"]]}]`, path: "beats[0].headers", code: blogscript.CodeTooSmall},
		{name: "numeric cell", beats: `[{"type": "table", "headers": ["a", "b"], "rows": [["x", 3]]}]`, path: "beats[0].rows[0][1]", code: blogscript.CodeInvalidType},
		{name: "image source url", beats: `[{"type": "image", "source": {"kind": "url", "url": "not a url"}}]`, path: "beats[0].source.url", code: blogscript.CodeInvalidString},
		{name: "image source kind", beats: `[{"type": "image", "source": {"kind": "flickr", "query": "x"}}]`, path: "beats[0].source.kind", code: blogscript.CodeInvalidDiscriminator},
		{name: "image source language", beats: `[{"type": "image", "source": {"kind": "wikipedia", "entity": "x", "lang": "fr"}}]`, path: "beats[0].source.lang", code: blogscript.CodeInvalidEnum},
		{name: "missing image source", beats: `[{"type": "image"}]`, path: "beats[0].source", code: blogscript.CodeInvalidType},
		{name: "null is not absent", beats: `[{"type": "quote", "text": "x", "author": null}]`, path: "beats[0].author", code: blogscript.CodeInvalidType},
		{name: "empty timeline", beats: `[{"type": "timeline", "items": []}]`, path: "beats[0].items", code: blogscript.CodeTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := blogscript.Validate(withBeats(t, tt.beats))
			require.Error(t, err)
			se := schemaError(t, err)
			require.Truef(t, hasIssue(se, tt.path, tt.code), "issues: %v", se.Issues)
		})
	}
}

func TestValidateMetaBounds(t *testing.T) {
	long := strings.Repeat("x", 161)
	raw := strings.Replace(minimalDoc, `"tags": ["a", "b", "c"]`, `"tags": [], "description": "`+long+`"`, 1)
	raw = strings.Replace(raw, `"description": "A short look at how the memory market moved over the last quarter and why.",`, "", 1)

	_, err := blogscript.Validate([]byte(raw))
	se := schemaError(t, err)
	require.True(t, hasIssue(se, "meta.tags", blogscript.CodeTooSmall))
	require.True(t, hasIssue(se, "meta.description", blogscript.CodeTooBig))
	require.Contains(t, err.Error(), "meta.tags")
}

func TestValidateLenientRecordsDropUnknownKeys(t *testing.T) {
	raw := strings.Replace(minimalDoc, `"tags": ["a", "b", "c"]`, `"tags": ["a"], "series": "chips"`, 1)
	raw = strings.Replace(raw, `[{"type": "divider"}]`, `[{"type": "timeline", "items": [{"date": "2024", "title": "t", "icon": "star"}]}]`, 1)

	doc, err := blogscript.Validate([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, []blogscript.TimelineItem{{Date: "2024", Title: "t"}}, doc.Beats[0].(blogscript.TimelineBeat).Items)
}

func TestValidateRootIsStrict(t *testing.T) {
	raw := strings.Replace(minimalDoc, `"beats":`, `"extra": 1, "beats":`, 1)
	_, err := blogscript.Validate([]byte(raw))
	require.True(t, hasIssue(schemaError(t, err), "", blogscript.CodeUnrecognizedKeys))
}

func TestValidateReferencesAreStrict(t *testing.T) {
	raw := strings.Replace(minimalDoc, `"beats":`, `"references": [{"url": "https://a.example", "title": "A", "rank": 1}], "beats":`, 1)
	_, err := blogscript.Validate([]byte(raw))
	require.True(t, hasIssue(schemaError(t, err), "references[0]", blogscript.CodeUnrecognizedKeys))
}

func TestSafeValidate(t *testing.T) {
	ok := blogscript.SafeValidate([]byte(minimalDoc))
	require.True(t, ok.Success)
	require.NotNil(t, ok.Data)
	require.Empty(t, ok.Error)

	bad := blogscript.SafeValidate(withBeats(t, `[]`))
	require.False(t, bad.Success)
	require.Nil(t, bad.Data)
	require.Contains(t, bad.Error, "beats")
	require.NotEmpty(t, bad.Issues)
}

func TestValidateValue(t *testing.T) {
	value := map[string]any{
		"$blogscript": map[string]any{"version": "1.0"},
		"meta": map[string]any{
			"title":       "From YAML",
			"description": "Decoded elsewhere",
			"pubDatetime": "2025-01-01",
			"tags":        []any{"yaml"},
		},
		"beats": []any{map[string]any{"type": "text", "content": "hi"}},
	}

	doc, err := blogscript.ValidateValue(value)
	require.NoError(t, err)
	require.Equal(t, blogscript.TextBeat{Type: "text", Content: "hi"}, doc.Beats[0])
}

func TestValidateKeepsEmptyProfileStats(t *testing.T) {
	raw := withBeats(t, `[{"type": "profile", "name": "Acme", "stats": []}, {"type": "profile", "name": "Solo"}]`)

	first, err := blogscript.Validate(raw)
	require.NoError(t, err)
	require.NotNil(t, first.Beats[0].(blogscript.ProfileBeat).Stats)
	require.Empty(t, first.Beats[0].(blogscript.ProfileBeat).Stats)
	require.Nil(t, first.Beats[1].(blogscript.ProfileBeat).Stats)

	encoded, err := json.Marshal(first)
	require.NoError(t, err)
	require.Contains(t, string(encoded), `"name":"Acme","stats":[]`)
	require.NotContains(t, string(encoded), `"name":"Solo","stats"`)

	second, err := blogscript.Validate(encoded)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
