package markdown

import (
	"bytes"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var (
	openersKey = parser.NewContextKey()
	imagesKey  = parser.NewContextKey()
)

// imageTailParser wraps goldmark's link parser and records where each image
// starts and where its destination tail ("(...)", "[ref]", "[]" or nothing)
// lies in the source. goldmark keeps only the resolved destination.
//
// It mirrors the link parser's label stack: every accepted "[" or "![" pushes
// an opener, every consumed "]" pops the most recent one.
type imageTailParser struct {
	inner parser.InlineParser
}

var (
	_ parser.InlineParser = (*imageTailParser)(nil)
	_ parser.CloseBlocker = (*imageTailParser)(nil)
)

func (p *imageTailParser) Trigger() []byte {
	return p.inner.Trigger()
}

func (p *imageTailParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, segment := block.PeekLine()
	beforeLine, before := block.Position()

	node := p.inner.Parse(parent, block, pc)
	if len(line) == 0 {
		return node
	}

	switch line[0] {
	case '!', '[':
		if node != nil {
			pushOpener(pc, segment.Start)
		}
	case ']':
		afterLine, after := block.Position()
		if node == nil && afterLine == beforeLine && after.Start == before.Start {
			return nil // no open label, "]" stays text
		}
		start, ok := popOpener(pc)
		if img, isImage := node.(*ast.Image); isImage && ok {
			site := &imageSite{start: start, labelEnd: segment.Start, end: after.Start}
			if bytes.IndexByte(block.Source()[site.labelEnd:site.end], '\n') >= 0 {
				site.gaps = lineGaps(parent, site.labelEnd, site.end)
			}
			images(pc)[img] = site
		}
	}
	return node
}

func (p *imageTailParser) CloseBlock(parent ast.Node, block text.Reader, pc parser.Context) {
	if cb, ok := p.inner.(parser.CloseBlocker); ok {
		cb.CloseBlock(parent, block, pc)
	}
	pc.Set(openersKey, nil)
}

// lineGaps returns the parts of [from, to) outside the lines of the block
// holding parent: container markers such as "> " or list indentation that
// the inline parser skipped between lines.
func lineGaps(parent ast.Node, from, to int) []span {
	var lines *text.Segments
	for n := parent; n != nil; n = n.Parent() {
		if n.Type() == ast.TypeBlock {
			lines = n.Lines()
			break
		}
	}
	if lines == nil || lines.Len() == 0 {
		return nil
	}

	var gaps []span
	pos := from
	for i := 0; i < lines.Len() && pos < to; i++ {
		seg := lines.At(i)
		if seg.Stop <= pos {
			continue
		}
		if seg.Start > pos {
			gaps = append(gaps, span{start: pos, end: min(seg.Start, to)})
		}
		pos = max(pos, seg.Stop)
	}
	if pos < to {
		gaps = append(gaps, span{start: pos, end: to})
	}
	return gaps
}

func pushOpener(pc parser.Context, start int) {
	stack, _ := pc.Get(openersKey).([]int)
	pc.Set(openersKey, append(stack, start))
}

func popOpener(pc parser.Context) (int, bool) {
	stack, _ := pc.Get(openersKey).([]int)
	if len(stack) == 0 {
		return 0, false
	}
	start := stack[len(stack)-1]
	pc.Set(openersKey, stack[:len(stack)-1])
	return start, true
}

func images(pc parser.Context) map[*ast.Image]*imageSite {
	m, ok := pc.Get(imagesKey).(map[*ast.Image]*imageSite)
	if !ok {
		m = make(map[*ast.Image]*imageSite)
		pc.Set(imagesKey, m)
	}
	return m
}

func recordedImages(pc parser.Context) map[*ast.Image]*imageSite {
	m, _ := pc.Get(imagesKey).(map[*ast.Image]*imageSite)
	return m
}
