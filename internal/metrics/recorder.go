package metrics

import "time"

// ResultLabel enumerates per-image outcomes.
type ResultLabel string

const (
	ResultEmbedded ResultLabel = "embedded"
	ResultFallback ResultLabel = "fallback"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder receives embedding observations. Implementations must be safe for
// concurrent use: images are processed in parallel.
type Recorder interface {
	// ObserveImageDuration records the fetch-and-encode time of one image.
	ObserveImageDuration(kind string, d time.Duration)
	// IncImageResult counts one image outcome.
	IncImageResult(kind string, result ResultLabel)
	// AddEmbeddedBytes counts payload bytes fetched for embedded images.
	AddEmbeddedBytes(n int)
	// ObserveDocumentDuration records one whole archive run.
	ObserveDocumentDuration(d time.Duration, success bool)
	// SetInFlight reports the number of images currently being processed.
	SetInFlight(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveImageDuration(string, time.Duration)  {}
func (NoopRecorder) IncImageResult(string, ResultLabel)          {}
func (NoopRecorder) AddEmbeddedBytes(int)                        {}
func (NoopRecorder) ObserveDocumentDuration(time.Duration, bool) {}
func (NoopRecorder) SetInFlight(int)                             {}

var _ Recorder = NoopRecorder{}
