package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// ErrHTMLConversion indicates HTML conversion failed.
var ErrHTMLConversion = errors.New("HTML conversion failed")

// DefaultTitle is used when the caller gives no document title.
const DefaultTitle = "Document"

// highlightStyle names the chroma style for code blocks.
const highlightStyle = "github"

// htmlTemplate wraps Goldmark's fragment output in a complete HTML5 document.
const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>
%s</style>
</head>
<body>
<article>
%s
</article>
</body>
</html>`

// baseCSS keeps the page readable without external resources.
const baseCSS = `body { margin: 0 auto; max-width: 48rem; padding: 1.5rem; font-family: system-ui, sans-serif; line-height: 1.6; color: #1f2328; }
img { max-width: 100%; height: auto; }
pre { overflow-x: auto; padding: 0.75rem; border-radius: 6px; }
code { font-family: ui-monospace, monospace; font-size: 0.9em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: 0.25rem 0.75rem; }
blockquote { margin-left: 0; padding-left: 1rem; border-left: 4px solid #d0d7de; color: #59636e; }
mark { background: #fff8c5; }
`

// classPattern limits class attributes to the names chroma and goldmark emit.
var classPattern = regexp.MustCompile(`^[\w\- ]+$`)

// stylesheet is built once; chroma styles are immutable. "</" is escaped so
// the CSS cannot close its <style> element.
var stylesheet = sync.OnceValue(func() string {
	var buf strings.Builder
	buf.WriteString(baseCSS)
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, styles.Get(highlightStyle)); err != nil {
		return baseCSS
	}
	return strings.ReplaceAll(buf.String(), "</", `<\/`)
})

// HTMLExporter abstracts Markdown to standalone HTML conversion.
type HTMLExporter interface {
	Export(ctx context.Context, markdown, title string) (string, error)
}

// Exporter renders Markdown into one self-contained HTML page.
// It is safe for concurrent use.
type Exporter struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	pre    MarkdownPreprocessor
}

// NewExporter creates an Exporter with GFM extensions, syntax highlighting
// and a sanitizer that keeps data URI images.
func NewExporter() *Exporter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(
				highlighting.WithStyle(highlightStyle),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			// Raw <img> markup carries embedded images; bluemonday cleans the rest.
			gmhtml.WithUnsafe(),
		),
	)
	return &Exporter{
		md:     md,
		policy: newPolicy(),
		pre:    &CommonMarkPreprocessor{},
	}
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataURIImages()
	p.AllowAttrs("class").Matching(classPattern).OnElements("pre", "code", "span", "div")
	p.AllowAttrs("tabindex").OnElements("pre")
	p.AllowElements("mark")
	return p
}

// Export converts Markdown content to a standalone HTML5 document.
// Supports context cancellation via goroutine + select pattern since
// Goldmark doesn't natively support context.
func (e *Exporter) Export(ctx context.Context, markdown, title string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}

	type result struct {
		html string
		err  error
	}

	done := make(chan result, 1)

	go func() {
		content := e.pre.PreprocessMarkdown(ctx, markdown)

		var buf bytes.Buffer
		if err := e.md.Convert([]byte(content), &buf); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrHTMLConversion, err)}
			return
		}

		body := ConvertMarkPlaceholders(e.policy.Sanitize(buf.String()))
		done <- result{html: fmt.Sprintf(htmlTemplate, html.EscapeString(title), stylesheet(), body)}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.html, r.err
	}
}
