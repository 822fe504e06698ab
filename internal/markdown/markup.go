package markdown

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Sentinel errors for markup patches.
var (
	ErrAlreadyPatched = errors.New("markup already patched")
	ErrPatchRange     = errors.New("markup patch out of range")
)

// Markup is the text of one raw HTML node (*ast.HTMLBlock or *ast.RawHTML)
// together with the source segments it was read from. A Markup accepts a
// single patch, expressed in offsets of Value.
type Markup struct {
	node     ast.Node
	offset   int
	spans    []valueSpan
	original string

	mu    sync.Mutex
	value string
	edit  *Edit
}

func newMarkup(n ast.Node, source []byte) *Markup {
	var segs []text.Segment
	switch node := n.(type) {
	case *ast.HTMLBlock:
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			segs = append(segs, lines.At(i))
		}
		if node.HasClosure() {
			segs = append(segs, node.ClosureLine)
		}
	case *ast.RawHTML:
		for i := 0; i < node.Segments.Len(); i++ {
			segs = append(segs, node.Segments.At(i))
		}
	default:
		return nil
	}

	if len(segs) == 0 {
		return nil
	}

	var b strings.Builder
	spans := make([]valueSpan, 0, len(segs))
	for i := range segs {
		seg := segs[i]
		// Padding spaces and forced newlines appear in the value but not in the source.
		from := b.Len() + seg.Padding
		spans = append(spans, valueSpan{from: from, to: from + seg.Stop - seg.Start, source: seg.Start})
		b.Write(seg.Value(source))
	}
	return &Markup{node: n, offset: segs[0].Start, spans: spans, original: b.String(), value: b.String()}
}

// valueSpan maps value[from:to] to source[source:source+to-from].
type valueSpan struct {
	from, to int
	source   int
}

// Node returns the underlying AST node.
func (m *Markup) Node() ast.Node {
	return m.node
}

// Value returns the node's text, including any applied patch.
func (m *Markup) Value() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// Offset returns the source offset of the node's first byte.
func (m *Markup) Offset() int {
	return m.offset
}

// Replace substitutes Value()[start:end] with replacement. The range must lie
// within a single source line of the node. Only one patch is accepted.
func (m *Markup) Replace(start, end int, replacement string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.edit != nil {
		return ErrAlreadyPatched
	}
	if start < 0 || end < start || end > len(m.original) {
		return fmt.Errorf("%w: [%d,%d) of %d bytes", ErrPatchRange, start, end, len(m.original))
	}

	srcStart, srcEnd, err := m.sourceRange(start, end)
	if err != nil {
		return err
	}

	m.edit = &Edit{Start: srcStart, End: srcEnd, Replacement: []byte(replacement)}
	m.value = m.original[:start] + replacement + m.original[end:]
	return nil
}

// sourceRange maps a value range to source offsets.
func (m *Markup) sourceRange(start, end int) (int, int, error) {
	for _, sp := range m.spans {
		if start >= sp.from && end <= sp.to {
			return sp.source + start - sp.from, sp.source + end - sp.from, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: [%d,%d) spans several source lines", ErrPatchRange, start, end)
}

// pendingEdit returns the source edit of the applied patch, if any.
func (m *Markup) pendingEdit() (Edit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.edit == nil {
		return Edit{}, false
	}
	return *m.edit, true
}
