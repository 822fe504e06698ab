// Package fetch retrieves image bytes and their declared content type by URL.
//
// Every failure is an *Error whose Kind names one of four diagnosable causes:
// transport, response status, missing content type, or body read.
package fetch

import (
	"context"
	"strings"
)

// ByteSource fetches the bytes behind a URL.
type ByteSource interface {
	Fetch(ctx context.Context, url string) (*Payload, error)
}

// Payload is a successfully fetched resource.
type Payload struct {
	Data        []byte
	ContentType string
}

// Compile-time interface implementation checks.
var (
	_ ByteSource = (*HTTPSource)(nil)
	_ ByteSource = DataSource{}
	_ ByteSource = (*Router)(nil)
	_ ByteSource = (*SniffingSource)(nil)
)

// Router dispatches data: URLs to Data, local references to Files (when set)
// and everything else to Default.
type Router struct {
	Data    ByteSource
	Files   ByteSource
	Default ByteSource
}

// NewRouter returns a Router resolving data: URLs locally and the rest with def.
func NewRouter(def ByteSource) *Router {
	return &Router{Data: DataSource{}, Default: def}
}

// Fetch implements ByteSource.
func (r *Router) Fetch(ctx context.Context, url string) (*Payload, error) {
	switch {
	case r.Data != nil && hasScheme(url, "data"):
		return r.Data.Fetch(ctx, url)
	case r.Files != nil && IsLocalReference(url):
		return r.Files.Fetch(ctx, url)
	default:
		return r.Default.Fetch(ctx, url)
	}
}

// hasScheme reports whether url starts with scheme followed by ':' (case-insensitive).
func hasScheme(url, scheme string) bool {
	return len(url) > len(scheme) && url[len(scheme)] == ':' && strings.EqualFold(url[:len(scheme)], scheme)
}
