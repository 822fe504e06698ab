package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Defaults for HTTPSource.
const (
	DefaultMaxBytes = 32 << 20 // 32 MiB
	DefaultTimeout  = 30 * time.Second

	// drainLimit bounds how much of a rejected body is read before closing,
	// enough for the transport to reuse the connection on small error pages.
	drainLimit = 64 << 10
)

// HTTPSource fetches images over HTTP(S).
type HTTPSource struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithClient sets the HTTP client. The client's own timeout applies.
func WithClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithUserAgent sets the User-Agent request header.
func WithUserAgent(ua string) HTTPOption {
	return func(s *HTTPSource) {
		s.userAgent = ua
	}
}

// WithMaxBytes caps the accepted body size. Non-positive values keep the default.
func WithMaxBytes(n int64) HTTPOption {
	return func(s *HTTPSource) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// NewHTTPSource returns an HTTPSource. Without WithClient it uses a client over a
// clone of http.DefaultTransport (proxy environment respected) with DefaultTimeout.
func NewHTTPSource(opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = NewClient(DefaultTimeout)
	}
	return s
}

// NewClient returns an http.Client over a cloned default transport.
func NewClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Fetch implements ByteSource.
func (s *HTTPSource) Fetch(ctx context.Context, url string) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, URL: url, Err: err}
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		return nil, &Error{Kind: KindStatus, URL: url, StatusCode: resp.StatusCode}
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		drain(resp.Body)
		return nil, &Error{Kind: KindContentType, URL: url}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, &Error{Kind: KindBodyRead, URL: url, Err: err}
	}
	if int64(len(data)) > s.maxBytes {
		drain(resp.Body)
		return nil, &Error{Kind: KindBodyRead, URL: url, Err: fmt.Errorf("body exceeds %d bytes", s.maxBytes)}
	}

	return &Payload{Data: data, ContentType: contentType}, nil
}

// drain consumes what is left of a rejected body so the connection is
// released back to the pool.
func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, drainLimit))
}
