package mdarchive

import (
	"time"

	"github.com/alnah/go-mdarchive/internal/datauri"
	"github.com/alnah/go-mdarchive/internal/embed"
	"github.com/alnah/go-mdarchive/internal/fetch"
	"github.com/alnah/go-mdarchive/internal/hostenv"
	"github.com/alnah/go-mdarchive/internal/imageref"
	"github.com/alnah/go-mdarchive/internal/metrics"
)

// FailurePolicy decides what happens when one image cannot be embedded.
type FailurePolicy = embed.FailurePolicy

// Failure policies.
const (
	// PolicyFallback embeds the placeholder image and keeps going.
	PolicyFallback = embed.PolicyFallback
	// PolicyPropagate fails the whole document on the first image failure.
	PolicyPropagate = embed.PolicyPropagate
)

// ParsePolicy converts "fallback" or "propagate" to a FailurePolicy.
func ParsePolicy(s string) (FailurePolicy, error) {
	return embed.ParsePolicy(s)
}

// RuntimeMode selects how image bytes become data URIs.
type RuntimeMode = hostenv.Mode

// Runtime modes.
const (
	// ModeAuto picks browser mode under js/wasm and server mode elsewhere.
	ModeAuto = hostenv.ModeAuto
	// ModeServer base64-encodes image bytes in process.
	ModeServer = hostenv.ModeServer
	// ModeBrowser hands image bytes to a FileReader.
	ModeBrowser = hostenv.ModeBrowser
)

// ParseMode converts "auto", "server" or "browser" to a RuntimeMode.
func ParseMode(s string) (RuntimeMode, error) {
	return hostenv.ParseMode(s)
}

// ByteSource fetches image bytes and their declared content type.
// Implement it to serve images from a cache or a custom transport.
type ByteSource = fetch.ByteSource

// Payload is the result of a ByteSource fetch.
type Payload = fetch.Payload

// FileReader is the asynchronous reader used in browser mode.
type FileReader = datauri.FileReader

// ReadEvent is the completion event a FileReader dispatches to its listeners.
type ReadEvent = datauri.ReadEvent

// Listener receives FileReader events.
type Listener = datauri.Listener

// MetricsRecorder receives per-image and per-document measurements.
type MetricsRecorder = metrics.Recorder

// ImageStatus is the final state of one image reference.
type ImageStatus = embed.Status

// Image statuses reported in Result.Images.
const (
	StatusEmbedded = embed.StatusEmbedded
	StatusFallback = embed.StatusFallback
	StatusFailed   = embed.StatusFailed
	StatusSkipped  = embed.StatusSkipped
)

// ImageKind tells Markdown image syntax apart from raw <img> markup.
type ImageKind = imageref.Kind

// Image kinds.
const (
	KindImage = imageref.KindStructured
	KindHTML  = imageref.KindMarkup
)

// Input contains the document to archive and per-document options.
type Input struct {
	Markdown string // required
	// BaseDir resolves relative image paths and file:// URLs. Local images
	// are only read when it is set, and never from outside it.
	BaseDir string
	// HTML also renders the archived document as a standalone HTML page.
	HTML bool
	// Title of the HTML page; ignored unless HTML is set.
	Title string
}

// ImageReport describes what happened to one image reference.
type ImageReport struct {
	URL         string
	Kind        ImageKind
	Status      ImageStatus
	Err         error // why the image fell back or failed
	Bytes       int
	ContentType string
	Duration    time.Duration
}

// Result contains the archived document.
type Result struct {
	Markdown string
	HTML     string        // empty unless Input.HTML was set
	Images   []ImageReport // one per reference, in document order
	// ExternalImages lists image sources the HTML page still loads from
	// elsewhere. Always empty unless Input.HTML was set.
	ExternalImages []string
}

// Fallbacks returns the images that were replaced by the placeholder.
func (r *Result) Fallbacks() []ImageReport {
	if r == nil {
		return nil
	}
	var out []ImageReport
	for _, img := range r.Images {
		if img.Status == StatusFallback {
			out = append(out, img)
		}
	}
	return out
}

func toImageReports(report *embed.Report) []ImageReport {
	if report == nil {
		return nil
	}
	out := make([]ImageReport, len(report.Outcomes))
	for i, o := range report.Outcomes {
		out[i] = ImageReport{
			URL:         o.URL,
			Kind:        o.Kind,
			Status:      o.Status,
			Err:         o.Err,
			Bytes:       o.Bytes,
			ContentType: o.ContentType,
			Duration:    o.Duration,
		}
	}
	return out
}
