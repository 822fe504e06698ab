package fetch

import (
	"context"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// genericTypes are declared types that say nothing about the payload.
var genericTypes = map[string]bool{
	"application/octet-stream": true,
	"binary/octet-stream":      true,
	"application/unknown":      true,
}

// SniffingSource replaces generic declared content types with the type
// detected from the payload. Specific declared types are kept as-is.
type SniffingSource struct {
	Next ByteSource
}

// NewSniffingSource wraps next.
func NewSniffingSource(next ByteSource) *SniffingSource {
	return &SniffingSource{Next: next}
}

// Fetch implements ByteSource.
func (s *SniffingSource) Fetch(ctx context.Context, url string) (*Payload, error) {
	p, err := s.Next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if !IsGeneric(p.ContentType) {
		return p, nil
	}

	detected := mimetype.Detect(p.Data)
	if detected.Is("application/octet-stream") {
		return p, nil
	}
	return &Payload{Data: p.Data, ContentType: detected.String()}, nil
}

// IsGeneric reports whether contentType carries no usable media information.
func IsGeneric(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return genericTypes[mediaType]
}
