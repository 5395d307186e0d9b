package blogscript

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedVersion matches (via errors.Is) a SchemaError whose
// $blogscript.version tag is not Version.
var ErrUnsupportedVersion = errors.New("unsupported blogscript version")

// Issue codes.
const (
	CodeInvalidJSON          = "invalid_json"
	CodeInvalidType          = "invalid_type"
	CodeInvalidLiteral       = "invalid_literal"
	CodeInvalidEnum          = "invalid_enum_value"
	CodeInvalidDiscriminator = "invalid_union_discriminator"
	CodeUnrecognizedKeys     = "unrecognized_keys"
	CodeTooSmall             = "too_small"
	CodeTooBig               = "too_big"
	CodeInvalidString        = "invalid_string"
)

// Issue is a single validation failure located by a field path such as
// "beats[2].level". The root object has an empty path.
type Issue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// SchemaError reports every issue found while validating a document.
type SchemaError struct {
	Issues []Issue
}

func (e *SchemaError) Error() string {
	if len(e.Issues) == 0 {
		return "blogscript: invalid document"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.String())
	}
	return "blogscript: " + strings.Join(parts, "; ")
}

// Is reports whether the error carries a version mismatch.
func (e *SchemaError) Is(target error) bool {
	if target != ErrUnsupportedVersion {
		return false
	}
	for _, issue := range e.Issues {
		if issue.Code == CodeInvalidLiteral && issue.Path == "$blogscript.version" {
			return true
		}
	}
	return false
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("'%s'", v)
	}
	return strings.Join(quoted, " | ")
}
