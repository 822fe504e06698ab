package mdarchive

import (
	"errors"

	"github.com/alnah/go-mdarchive/internal/browser"
	"github.com/alnah/go-mdarchive/internal/datauri"
	"github.com/alnah/go-mdarchive/internal/embed"
	"github.com/alnah/go-mdarchive/internal/fetch"
	"github.com/alnah/go-mdarchive/internal/hostenv"
	"github.com/alnah/go-mdarchive/internal/pipeline"
)

// Sentinel errors for library operations.
var (
	ErrClosed = errors.New("archiver is closed")

	// Option validation errors.
	ErrInvalidPolicy       = embed.ErrInvalidPolicy
	ErrInvalidMode         = hostenv.ErrInvalidMode
	ErrInvalidConcurrency  = errors.New("invalid concurrency")
	ErrInvalidFallback     = errors.New("invalid fallback image")
	ErrInvalidTimeout      = errors.New("invalid timeout")
	ErrInvalidMaxImageSize = errors.New("invalid maximum image size")

	// Image fetch errors. Match with errors.Is against the error returned
	// under PolicyPropagate or against ImageReport.Err.
	ErrTransport   = fetch.ErrTransport
	ErrStatus      = fetch.ErrStatus
	ErrContentType = fetch.ErrContentType
	ErrBodyRead    = fetch.ErrBodyRead
	ErrOutsideRoot = fetch.ErrOutsideRoot

	// Encoding errors.
	ErrInvalidDataURI = datauri.ErrInvalid
	ErrEncoding       = datauri.ErrEncoding

	// Browser errors (WithChrome).
	ErrBrowserConnect = browser.ErrBrowserConnect
	ErrPageCreate     = browser.ErrPageCreate

	// Export errors.
	ErrHTMLConversion = pipeline.ErrHTMLConversion
)

// ImageError reports the image that failed a PolicyPropagate run.
type ImageError = embed.ImageError

// IsImageFailure reports whether err was caused by an image that could not
// be fetched or encoded, as opposed to cancellation or a document error.
func IsImageFailure(err error) bool {
	return embed.IsImageFailure(err)
}
