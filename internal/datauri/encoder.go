package datauri

import (
	"context"
	"fmt"

	"github.com/alnah/go-mdarchive/internal/hostenv"
)

// Compile-time interface implementation checks.
var (
	_ Encoder = Base64Encoder{}
	_ Encoder = (*ReaderEncoder)(nil)
)

// Encoder converts image bytes and their content type into a DataURI.
type Encoder interface {
	Encode(ctx context.Context, data []byte, contentType string) (DataURI, error)
}

// NewEncoder selects the encoding strategy for mode.
// Browser-like hosts use a ReaderEncoder backed by readers; a nil factory
// falls back to the platform default. Every other mode encodes directly.
func NewEncoder(mode hostenv.Mode, readers ReaderFactory) Encoder {
	if hostenv.Resolve(mode) != hostenv.ModeBrowser {
		return Base64Encoder{}
	}
	if readers == nil {
		readers = DefaultReaderFactory
	}
	return &ReaderEncoder{NewReader: readers}
}

// Base64Encoder is the server-like strategy: base64 the buffer and compose the URI.
type Base64Encoder struct{}

// Encode implements Encoder.
func (Base64Encoder) Encode(ctx context.Context, data []byte, contentType string) (DataURI, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return Compose(contentType, data), nil
}

// ReaderEncoder is the browser-like strategy. Each call obtains a fresh
// FileReader, listens for its single completion event and deregisters the
// listener on every exit path.
type ReaderEncoder struct {
	NewReader ReaderFactory
}

// Encode implements Encoder.
func (e *ReaderEncoder) Encode(ctx context.Context, data []byte, contentType string) (DataURI, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	reader := e.NewReader()

	events := make(chan ReadEvent, 1)
	remove := reader.AddListener(func(ev ReadEvent) {
		select {
		case events <- ev:
		default: // only the first event counts
		}
	})
	defer remove()

	reader.ReadAsDataURL(ctx, data, contentType)

	select {
	case <-ctx.Done():
		reader.Abort()
		return "", ctx.Err()
	case ev := <-events:
		if err := ctx.Err(); err != nil {
			// Cancellation wins over a racing completion.
			reader.Abort()
			return "", err
		}
		if ev.Err != nil {
			return "", fmt.Errorf("%w: %w", ErrEncoding, ev.Err)
		}
		if ev.Result == "" {
			return "", fmt.Errorf("%w: reader returned an empty result", ErrEncoding)
		}
		uri, err := Parse(ev.Result)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrEncoding, err)
		}
		return uri, nil
	}
}
