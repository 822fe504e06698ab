package embed

import (
	"fmt"
	"time"

	"github.com/alnah/go-mdarchive/internal/imageref"
)

// Status is the final state of one image reference.
type Status int

const (
	// StatusPending means the reference was never processed.
	StatusPending Status = iota
	// StatusEmbedded means the image bytes were embedded.
	StatusEmbedded
	// StatusFallback means the placeholder was embedded instead.
	StatusFallback
	// StatusFailed means the reference was left unchanged. Under
	// PolicyPropagate the run failed with it; under PolicyFallback only the
	// rewrite itself failed and the run went on.
	StatusFailed
	// StatusSkipped means the run had already failed or been canceled.
	StatusSkipped
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusEmbedded:
		return "embedded"
	case StatusFallback:
		return "fallback"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome describes what happened to one reference.
type Outcome struct {
	URL         string
	Kind        imageref.Kind
	Status      Status
	Err         error // cause of a fallback or failure
	Bytes       int   // fetched payload size
	ContentType string
	Duration    time.Duration
}

// Report lists one Outcome per reference, in scan order.
type Report struct {
	Outcomes []Outcome
}

// Count returns how many outcomes have status s.
func (r *Report) Count(s Status) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// ImageError is a failure of one image under PolicyPropagate.
type ImageError struct {
	URL string
	Err error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("embedding image %s: %v", e.URL, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}
