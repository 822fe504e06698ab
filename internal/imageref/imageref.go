// Package imageref locates every image reference in a parsed Markdown
// document and applies data URIs back to it.
//
// A Reference is one of two closed variants: *StructuredImage for Markdown
// image syntax and *MarkupImage for the src attribute of an HTML <img> tag in
// raw HTML. Each reference owns exactly one mutation site, so references can be
// applied concurrently.
package imageref

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/util"

	"github.com/alnah/go-mdarchive/internal/datauri"
	"github.com/alnah/go-mdarchive/internal/markdown"
)

// ErrAlreadyApplied is returned when a reference is applied twice.
var ErrAlreadyApplied = errors.New("image reference already applied")

// Kind names a Reference variant.
type Kind int

const (
	KindStructured Kind = iota + 1
	KindMarkup
)

// String returns the kind name used in logs and reports.
func (k Kind) String() string {
	switch k {
	case KindStructured:
		return "image"
	case KindMarkup:
		return "html"
	default:
		return "unknown"
	}
}

// Reference is a located, rewritable image URL.
type Reference interface {
	// URL returns the image URL as written in the document.
	URL() string
	// Offset returns the source offset of the reference; it orders references.
	Offset() int
	// Kind reports the variant.
	Kind() Kind
	// Apply replaces the URL with uri.
	Apply(uri datauri.DataURI) error

	sealed()
}

// Compile-time interface implementation checks.
var (
	_ Reference = (*StructuredImage)(nil)
	_ Reference = (*MarkupImage)(nil)
)

// StructuredImage is a Markdown image node. Only its destination is ever changed.
type StructuredImage struct {
	node   *ast.Image
	url    string
	offset int
	alt    string
}

// URL implements Reference. Backslash escapes are resolved.
func (r *StructuredImage) URL() string { return r.url }

// Offset implements Reference.
func (r *StructuredImage) Offset() int { return r.offset }

// Kind implements Reference.
func (*StructuredImage) Kind() Kind { return KindStructured }

// Alt returns the image's alternative text.
func (r *StructuredImage) Alt() string { return r.alt }

// Apply implements Reference.
func (r *StructuredImage) Apply(uri datauri.DataURI) error {
	if _, err := datauri.Parse(uri.String()); err != nil {
		return err
	}
	r.node.Destination = []byte(uri)
	return nil
}

func (*StructuredImage) sealed() {}

// MarkupImage is the src value of the first <img> tag in a raw HTML node.
type MarkupImage struct {
	markup     *markdown.Markup
	url        string
	start, end int // src value range in markup.Value()

	mu      sync.Mutex
	applied bool
}

// URL implements Reference.
func (r *MarkupImage) URL() string { return r.url }

// Offset implements Reference.
func (r *MarkupImage) Offset() int { return r.markup.Offset() + r.start }

// Kind implements Reference.
func (*MarkupImage) Kind() Kind { return KindMarkup }

// Apply implements Reference. It replaces only the matched src value.
func (r *MarkupImage) Apply(uri datauri.DataURI) error {
	if _, err := datauri.Parse(uri.String()); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applied {
		return ErrAlreadyApplied
	}
	if err := r.markup.Replace(r.start, r.end, uri.String()); err != nil {
		return fmt.Errorf("rewriting <img> src: %w", err)
	}
	r.applied = true
	return nil
}

func (*MarkupImage) sealed() {}

// imgTag matches an <img> tag and captures its double-quoted src value.
var imgTag = regexp.MustCompile(`<img [^>]*src="([^"]+)"[^>]*>`)

// Scan collects every image reference in doc, in document order.
// Only the first <img> of each raw HTML node is collected.
func Scan(doc *markdown.Document) []Reference {
	var refs []Reference

	_ = ast.Walk(doc.Root(), func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		img, ok := n.(*ast.Image)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		offset, _ := doc.ImageOffset(img)
		refs = append(refs, &StructuredImage{
			node:   img,
			url:    string(util.UnescapePunctuations(img.Destination)),
			offset: offset,
			alt:    altText(img, doc.Source()),
		})
		return ast.WalkContinue, nil
	})

	_ = ast.Walk(doc.Root(), func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		m, ok := doc.Markup(n)
		if !ok {
			return ast.WalkContinue, nil
		}
		if ref := scanMarkup(m); ref != nil {
			refs = append(refs, ref)
		}
		return ast.WalkContinue, nil
	})

	slices.SortStableFunc(refs, func(a, b Reference) int {
		return a.Offset() - b.Offset()
	})
	return refs
}

func scanMarkup(m *markdown.Markup) *MarkupImage {
	value := m.Value()
	loc := imgTag.FindStringSubmatchIndex(value)
	if loc == nil {
		return nil
	}
	return &MarkupImage{
		markup: m,
		url:    value[loc[2]:loc[3]],
		start:  loc[2],
		end:    loc[3],
	}
}

// altText flattens the image's inline children to plain text.
func altText(img *ast.Image, source []byte) string {
	var b []byte
	_ = ast.Walk(img, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b = append(b, t.Segment.Value(source)...)
			if t.SoftLineBreak() || t.HardLineBreak() {
				b = append(b, ' ')
			}
		case *ast.String:
			b = append(b, t.Value...)
		case *ast.CodeSpan:
			for c := t.FirstChild(); c != nil; c = c.NextSibling() {
				if txt, ok := c.(*ast.Text); ok {
					b = append(b, txt.Segment.Value(source)...)
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return string(b)
}
