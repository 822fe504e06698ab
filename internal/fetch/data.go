package fetch

import (
	"context"
	"errors"

	"github.com/alnah/go-mdarchive/internal/datauri"
)

// DataSource resolves data: URLs without any I/O, so embedding an already
// embedded document is a no-op.
type DataSource struct{}

// Fetch implements ByteSource.
func (DataSource) Fetch(ctx context.Context, url string) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindTransport, URL: url, Err: err}
	}

	data, contentType, err := datauri.Decode(url)
	if err != nil {
		return nil, &Error{Kind: KindBodyRead, URL: url, Err: err}
	}
	if contentType == "" {
		return nil, &Error{Kind: KindContentType, URL: url, Err: errors.New("data URL declares no media type")}
	}
	return &Payload{Data: data, ContentType: contentType}, nil
}
