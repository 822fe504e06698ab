package pipeline

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// Highlight placeholders use Unicode Private Use Area characters.
// These are guaranteed to not conflict with any standard characters
// and pass through Goldmark and the sanitizer unchanged.
// Post-processing converts these to <mark> tags after sanitization.
const (
	MarkStartPlaceholder = "\uE000" // U+E000: Private Use Area start
	MarkEndPlaceholder   = "\uE001" // U+E001: Private Use Area end

	uriStartPlaceholder = "\uE002" // wraps the index of a protected data URI
	uriEndPlaceholder   = "\uE003"
)

// Precompiled regex patterns for performance.
var (
	// Line ending normalization
	crlfOrCR = regexp.MustCompile(`\r\n?`)

	// Highlight syntax ==text==
	highlightPattern = regexp.MustCompile(`==(.*?)==`)

	// Embedded payloads; base64 padding would otherwise read as highlight markers.
	dataURIPattern = regexp.MustCompile(`data:[^\s)"'<>]+`)

	protectedURIPattern = regexp.MustCompile(`\x{E002}\d+\x{E003}`)
)

// MarkdownPreprocessor defines the contract for markdown preprocessing.
type MarkdownPreprocessor interface {
	PreprocessMarkdown(ctx context.Context, content string) string
}

// CommonMarkPreprocessor applies transformations before CommonMark conversion.
type CommonMarkPreprocessor struct{}

// PreprocessMarkdown normalizes line endings and converts ==highlight== syntax.
// Data URIs are left byte-identical.
func (p *CommonMarkPreprocessor) PreprocessMarkdown(ctx context.Context, content string) string {
	if ctx.Err() != nil {
		return content
	}

	content = normalizeLineEndings(content)
	protected, uris := protectDataURIs(content)
	return restoreDataURIs(convertHighlights(protected), uris)
}

// normalizeLineEndings converts \r\n and \r to \n.
func normalizeLineEndings(content string) string {
	return crlfOrCR.ReplaceAllString(content, "\n")
}

// protectDataURIs swaps every data URI for an indexed placeholder.
func protectDataURIs(content string) (string, []string) {
	var uris []string
	out := dataURIPattern.ReplaceAllStringFunc(content, func(uri string) string {
		uris = append(uris, uri)
		return uriStartPlaceholder + strconv.Itoa(len(uris)-1) + uriEndPlaceholder
	})
	return out, uris
}

func restoreDataURIs(content string, uris []string) string {
	if len(uris) == 0 {
		return content
	}
	return protectedURIPattern.ReplaceAllStringFunc(content, func(token string) string {
		idx, err := strconv.Atoi(strings.Trim(token, uriStartPlaceholder+uriEndPlaceholder))
		if err != nil || idx < 0 || idx >= len(uris) {
			return token
		}
		return uris[idx]
	})
}

// convertHighlights transforms ==text== to placeholder markers.
// The placeholders are converted to <mark> tags after sanitization
// via ConvertMarkPlaceholders.
func convertHighlights(content string) string {
	return highlightPattern.ReplaceAllString(content, MarkStartPlaceholder+"$1"+MarkEndPlaceholder)
}

// ConvertMarkPlaceholders converts placeholder markers to <mark> tags.
// Called after sanitization so the marks survive the policy untouched.
func ConvertMarkPlaceholders(content string) string {
	return strings.ReplaceAll(
		strings.ReplaceAll(content, MarkStartPlaceholder, "<mark>"),
		MarkEndPlaceholder, "</mark>",
	)
}
