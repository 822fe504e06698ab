package markdown

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// ErrOverlappingEdits is returned when two edits touch the same bytes.
var ErrOverlappingEdits = errors.New("overlapping edits")

// Edit replaces source[Start:End] with Replacement. End is exclusive;
// Start == End inserts.
type Edit struct {
	Start       int
	End         int
	Replacement []byte
}

// ApplyEdits applies non-overlapping edits expressed in offsets of the
// original source. Edits are applied back to front so earlier offsets stay valid.
func ApplyEdits(source []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return source, nil
	}

	sorted := slices.Clone(edits)
	slices.SortFunc(sorted, func(a, b Edit) int {
		if a.Start == b.Start {
			return cmp.Compare(b.End, a.End)
		}
		return cmp.Compare(b.Start, a.Start)
	})

	for i, e := range sorted {
		if e.Start < 0 || e.End < e.Start || e.End > len(source) {
			return nil, fmt.Errorf("invalid edit [%d,%d) for %d bytes", e.Start, e.End, len(source))
		}
		if i > 0 && e.End > sorted[i-1].Start {
			return nil, fmt.Errorf("%w: [%d,%d) and [%d,%d)", ErrOverlappingEdits,
				e.Start, e.End, sorted[i-1].Start, sorted[i-1].End)
		}
	}

	grow := 0
	for _, e := range sorted {
		grow += len(e.Replacement) - (e.End - e.Start)
	}

	out := make([]byte, 0, len(source)+max(grow, 0))
	// Walk front to back over the descending list.
	prev := 0
	for i := len(sorted) - 1; i >= 0; i-- {
		e := sorted[i]
		out = append(out, source[prev:e.Start]...)
		out = append(out, e.Replacement...)
		prev = e.End
	}
	out = append(out, source[prev:]...)
	return out, nil
}
