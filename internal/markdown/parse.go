package markdown

import (
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Document is a parsed Markdown source and the positions needed to write it back.
//
// The tree may be mutated concurrently as long as each goroutine touches a
// distinct *ast.Image or *Markup.
type Document struct {
	source []byte
	root   ast.Node
	images map[*ast.Image]*imageSite
	markup map[ast.Node]*Markup
}

// imageSite locates an image in the source.
type imageSite struct {
	start       int // '!' of the opener
	labelEnd    int // closing ']'
	end         int // end of the destination tail, exclusive
	destination []byte
	gaps        []span // container prefixes inside a multi-line tail
}

// span is a byte range [start, end) of the source.
type span struct {
	start, end int
}

// markdownParser is shared; goldmark parsers keep per-parse state in the context.
var markdownParser = sync.OnceValue(func() parser.Parser {
	inlines := parser.DefaultInlineParsers()
	for i, v := range inlines {
		if v.Value == parser.NewLinkParser() {
			inlines[i] = util.Prioritized(&imageTailParser{inner: parser.NewLinkParser()}, v.Priority)
		}
	}

	p := parser.NewParser(
		parser.WithBlockParsers(parser.DefaultBlockParsers()...),
		parser.WithInlineParsers(inlines...),
		parser.WithParagraphTransformers(parser.DefaultParagraphTransformers()...),
	)
	// Extensions register their parsers on p.
	goldmark.New(goldmark.WithParser(p), goldmark.WithExtensions(extension.GFM))
	return p
})

// Parse parses source as GitHub Flavored Markdown. Parsing never fails:
// malformed constructs become text, as in any CommonMark parser.
func Parse(source []byte) *Document {
	pc := parser.NewContext()
	root := markdownParser().Parse(text.NewReader(source), parser.WithContext(pc))

	doc := &Document{
		source: source,
		root:   root,
		images: make(map[*ast.Image]*imageSite),
		markup: make(map[ast.Node]*Markup),
	}
	for img, site := range recordedImages(pc) {
		site.destination = append([]byte(nil), img.Destination...)
		doc.images[img] = site
	}

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if m := newMarkup(n, source); m != nil {
			doc.markup[n] = m
		}
		return ast.WalkContinue, nil
	})

	return doc
}

// Source returns the original Markdown bytes.
func (d *Document) Source() []byte {
	return d.source
}

// Root returns the document node.
func (d *Document) Root() ast.Node {
	return d.root
}

// Markup returns the patchable view of a raw HTML node (*ast.HTMLBlock or *ast.RawHTML).
func (d *Document) Markup(n ast.Node) (*Markup, bool) {
	m, ok := d.markup[n]
	return m, ok
}

// ImageOffset returns the source offset where img starts.
func (d *Document) ImageOffset(img *ast.Image) (int, bool) {
	site, ok := d.images[img]
	if !ok {
		return 0, false
	}
	return site.start, true
}
