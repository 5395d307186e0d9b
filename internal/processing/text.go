// Package processing derives index fields and pipeline reports from
// validated BlogScript documents.
package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/DeafMist/blog-factory/internal/blogscript"
)

var urlRegex = regexp.MustCompile(`https?://[^\s)\]]+`)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	slugUnsafe  = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "to": {}, "in": {}, "for": {},
	"and": {}, "of": {}, "on": {}, "is": {}, "are": {}, "with": {},
	"그리고": {}, "하지만": {}, "그러나": {}, "또한": {}, "이번": {}, "있는": {},
	"있다": {}, "한다": {}, "것이다": {}, "위해": {}, "대한": {}, "통해": {},
}

// ExtractURLs extracts all HTTP(S) URLs from the input text.
func ExtractURLs(input string) []string {
	if input == "" {
		return nil
	}
	matches := urlRegex.FindAllString(input, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var urls []string
	for _, url := range matches {
		if _, ok := seen[url]; !ok {
			seen[url] = struct{}{}
			urls = append(urls, url)
		}
	}
	return urls
}

// RemoveURLs removes all URLs from the input text.
func RemoveURLs(input string) string {
	return urlRegex.ReplaceAllString(input, " ")
}

// CleanText strips HTML entities, punctuation, squeezes whitespace, and removes URLs.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = RemoveURLs(decoded)
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.TrimSpace(decoded)
}

// ExtractKeywords returns the most frequent words that are not stop-words.
func ExtractKeywords(text string, limit, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	type kv struct {
		word  string
		count int
	}

	pairs := make([]kv, 0, len(freq))
	for word, count := range freq {
		pairs = append(pairs, kv{word: word, count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].word < pairs[j].word
		}
		return pairs[i].count > pairs[j].count
	})

	n := limit
	if n <= 0 || n > len(pairs) {
		n = len(pairs)
	}

	keywords := make([]string, 0, n)
	for i := 0; i < n; i++ {
		keywords = append(keywords, pairs[i].word)
	}
	return keywords
}

// BuildPostID hashes the fields that identify a post: the same title and
// publication time always give the same ID, so re-publishing overwrites.
func BuildPostID(meta blogscript.Meta) string {
	s := sha1.Sum([]byte(meta.Title + "|" + meta.PubDatetime))
	return hex.EncodeToString(s[:])
}

// Slugify makes a URL path segment from a title. Letters of any script
// are kept.
func Slugify(title string) string {
	slug := slugUnsafe.ReplaceAllString(strings.ToLower(html.UnescapeString(title)), "-")
	return strings.Trim(slug, "-")
}

// PlainText gathers the readable prose of a document: headings, text,
// quotes, callouts, table titles, timeline entries and profiles, one block
// per line.
func PlainText(doc *blogscript.Document) string {
	var parts []string
	add := func(values ...string) {
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				parts = append(parts, v)
			}
		}
	}

	for _, b := range doc.Beats {
		switch b := b.(type) {
		case blogscript.TextBeat:
			add(b.Content)
		case blogscript.HeadingBeat:
			add(b.Text)
		case blogscript.QuoteBeat:
			add(b.Text)
		case blogscript.CalloutBeat:
			add(b.Title, b.Content)
		case blogscript.ImageBeat:
			add(b.Caption)
		case blogscript.TableBeat:
			add(b.Title)
		case blogscript.TimelineBeat:
			for _, item := range b.Items {
				add(item.Title, item.Description)
			}
		case blogscript.ProfileBeat:
			add(b.Name, b.Role, b.Description)
		}
	}
	return strings.Join(parts, "\n")
}

// Excerpt returns the first sentence of text, cut to maxWords words with
// an ellipsis when longer. Returns empty string if text is empty.
func Excerpt(text string, maxWords int) string {
	if text == "" {
		return ""
	}

	withoutURLs := RemoveURLs(text)

	var first string
	if end := strings.IndexAny(withoutURLs, ".!?\n"); end > 0 {
		first = strings.TrimSpace(withoutURLs[:end])
	} else {
		first = withoutURLs
	}

	words := strings.Fields(first)
	if len(words) == 0 {
		return ""
	}
	if maxWords > 0 && len(words) > maxWords {
		return strings.Join(words[:maxWords], " ") + "..."
	}
	return strings.Join(words, " ")
}
