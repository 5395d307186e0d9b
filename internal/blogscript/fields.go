package blogscript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
)

// checker accumulates issues while walking a raw JSON document.
type checker struct {
	issues []Issue
}

func (c *checker) add(path, code, format string, args ...any) {
	c.issues = append(c.issues, Issue{Path: path, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) err() error {
	if len(c.issues) == 0 {
		return nil
	}
	return &SchemaError{Issues: c.issues}
}

// jsonKind names the JSON type of a raw value the way issues report it.
func jsonKind(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "undefined"
	}
	switch trimmed[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

// object is a JSON object under validation.
type object struct {
	c      *checker
	path   string
	fields map[string]json.RawMessage
}

// object decodes raw as a JSON object. It records an issue and returns nil
// when raw holds any other type.
func (c *checker) object(path string, raw json.RawMessage) *object {
	if kind := jsonKind(raw); kind != "object" {
		c.add(path, CodeInvalidType, "expected object, received %s", kind)
		return nil
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		c.add(path, CodeInvalidType, "expected object: %v", err)
		return nil
	}
	return &object{c: c, path: path, fields: fields}
}

// strict rejects keys outside allowed.
func (o *object) strict(allowed ...string) {
	var unknown []string
	for key := range o.fields {
		if !slices.Contains(allowed, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return
	}
	sort.Strings(unknown)
	o.c.add(o.path, CodeUnrecognizedKeys, "unrecognized key(s) in object: %s", quoteList(unknown))
}

func (o *object) has(key string) bool {
	_, ok := o.fields[key]
	return ok
}

func (o *object) raw(key string) (json.RawMessage, bool) {
	raw, ok := o.fields[key]
	return raw, ok
}

type strRule struct {
	optional bool
	min      int
	max      int // 0 means unbounded
	url      bool
}

func (o *object) str(key string, rule strRule) string {
	path := joinPath(o.path, key)
	raw, ok := o.fields[key]
	if !ok {
		if !rule.optional {
			o.c.add(path, CodeInvalidType, "required")
		}
		return ""
	}
	s, ok := o.c.decodeString(path, raw)
	if !ok {
		return ""
	}
	n := utf16Len(s)
	if n < rule.min {
		o.c.add(path, CodeTooSmall, "string must contain at least %d character(s)", rule.min)
		return ""
	}
	if rule.max > 0 && n > rule.max {
		o.c.add(path, CodeTooBig, "string must contain at most %d character(s)", rule.max)
		return ""
	}
	if rule.url && !validURL(s) {
		o.c.add(path, CodeInvalidString, "invalid url")
		return ""
	}
	return s
}

func (c *checker) decodeString(path string, raw json.RawMessage) (string, bool) {
	if kind := jsonKind(raw); kind != "string" {
		c.add(path, CodeInvalidType, "expected string, received %s", kind)
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		c.add(path, CodeInvalidType, "expected string: %v", err)
		return "", false
	}
	return s, true
}

// enum reads a closed-set string. A missing key yields def when def is set,
// "" when optional, and an issue otherwise.
func (o *object) enum(key string, values []string, def string, optional bool) string {
	path := joinPath(o.path, key)
	raw, ok := o.fields[key]
	if !ok {
		if def == "" && !optional {
			o.c.add(path, CodeInvalidType, "required")
		}
		return def
	}
	s, ok := o.c.decodeString(path, raw)
	if !ok {
		return def
	}
	if !slices.Contains(values, s) {
		o.c.add(path, CodeInvalidEnum, "invalid enum value. Expected %s, received '%s'", quoteList(values), s)
		return def
	}
	return s
}

func (o *object) boolean(key string, def bool) bool {
	path := joinPath(o.path, key)
	raw, ok := o.fields[key]
	if !ok {
		return def
	}
	if kind := jsonKind(raw); kind != "boolean" {
		o.c.add(path, CodeInvalidType, "expected boolean, received %s", kind)
		return def
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		o.c.add(path, CodeInvalidType, "expected boolean: %v", err)
		return def
	}
	return b
}

// array reads a JSON array with length bounds; max 0 means unbounded.
func (o *object) array(key string, min, max int, optional bool) []json.RawMessage {
	path := joinPath(o.path, key)
	raw, ok := o.fields[key]
	if !ok {
		if !optional {
			o.c.add(path, CodeInvalidType, "required")
		}
		return nil
	}
	return o.c.array(path, raw, min, max)
}

func (c *checker) array(path string, raw json.RawMessage, min, max int) []json.RawMessage {
	if kind := jsonKind(raw); kind != "array" {
		c.add(path, CodeInvalidType, "expected array, received %s", kind)
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		c.add(path, CodeInvalidType, "expected array: %v", err)
		return nil
	}
	if len(items) < min {
		c.add(path, CodeTooSmall, "array must contain at least %d element(s)", min)
	}
	if max > 0 && len(items) > max {
		c.add(path, CodeTooBig, "array must contain at most %d element(s)", max)
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items
}

func (o *object) strings(key string, min, max int) []string {
	path := joinPath(o.path, key)
	items := o.array(key, min, max, false)
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		if s, ok := o.c.decodeString(indexPath(path, i), item); ok {
			out = append(out, s)
		}
	}
	return out
}

// discriminator reads the tag that selects a union variant.
func (o *object) discriminator(key string, values []string) (string, bool) {
	path := joinPath(o.path, key)
	raw, ok := o.fields[key]
	if !ok {
		o.c.add(path, CodeInvalidDiscriminator, "invalid discriminator value. Expected %s", quoteList(values))
		return "", false
	}
	var s string
	if jsonKind(raw) != "string" || json.Unmarshal(raw, &s) != nil || !slices.Contains(values, s) {
		o.c.add(path, CodeInvalidDiscriminator, "invalid discriminator value. Expected %s", quoteList(values))
		return "", false
	}
	return s, true
}

func validURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Scheme == "" {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}

// utf16Len counts string length in UTF-16 code units so that bounds agree
// with the editors and clients producing documents.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
