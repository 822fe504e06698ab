package markdown

import (
	"bytes"
	"fmt"
)

// Serialize writes the document back to Markdown. Only changed image
// destinations and patched markup differ from the source.
//
// An inline image keeps its syntax and only the destination token changes.
// Reference-style images ("![a][ref]", "![a][]", "![a]") become inline images
// carrying the new destination and the definition's title, since the shared
// definition may serve other references.
func Serialize(doc *Document) ([]byte, error) {
	var edits []Edit

	for img, site := range doc.images {
		if bytes.Equal(img.Destination, site.destination) {
			continue
		}
		e, err := imageEdit(doc.source, site, img.Destination, img.Title)
		if err != nil {
			return nil, err
		}
		edits = append(edits, e)
	}

	for _, m := range doc.markup {
		if e, ok := m.pendingEdit(); ok {
			edits = append(edits, e)
		}
	}

	out, err := ApplyEdits(doc.source, edits)
	if err != nil {
		return nil, fmt.Errorf("serializing markdown: %w", err)
	}
	return out, nil
}

func imageEdit(source []byte, site *imageSite, destination, title []byte) (Edit, error) {
	tailStart := site.labelEnd + 1
	tail := maskGaps(source[tailStart:site.end], tailStart, site.gaps)

	if len(tail) > 0 && tail[0] == '(' {
		start, end, ok := inlineDestination(tail)
		if !ok {
			return Edit{}, fmt.Errorf("image at offset %d: cannot locate destination", site.start)
		}
		return Edit{
			Start:       tailStart + start,
			End:         tailStart + end,
			Replacement: []byte(formatDestination(string(destination))),
		}, nil
	}

	inline := "(" + formatDestination(string(destination))
	if len(title) > 0 {
		inline += " " + formatTitle(title)
	}
	inline += ")"
	return Edit{Start: tailStart, End: site.end, Replacement: []byte(inline)}, nil
}

// maskGaps returns tail with the container prefixes in gaps blanked, so a
// destination on a continuation line is found where the parser saw it.
// base is the source offset of tail[0].
func maskGaps(tail []byte, base int, gaps []span) []byte {
	if len(gaps) == 0 {
		return tail
	}
	masked := append([]byte(nil), tail...)
	for _, g := range gaps {
		for i := max(g.start-base, 0); i < min(g.end-base, len(masked)); i++ {
			if masked[i] != '\n' {
				masked[i] = ' '
			}
		}
	}
	return masked
}
