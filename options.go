package mdarchive

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/alnah/go-mdarchive/internal/datauri"
	"github.com/alnah/go-mdarchive/internal/embed"
	"github.com/alnah/go-mdarchive/internal/fetch"
	"github.com/alnah/go-mdarchive/internal/hostenv"
	"github.com/alnah/go-mdarchive/internal/metrics"
	"github.com/alnah/go-mdarchive/internal/pipeline"
)

// Default settings.
const (
	DefaultTimeout      = fetch.DefaultTimeout
	DefaultMaxImageSize = fetch.DefaultMaxBytes
)

// DefaultFallbackImage is the placeholder embedded for images that fail
// under PolicyFallback.
const DefaultFallbackImage = embed.DefaultFallbackURI

// Option configures an Archiver.
type Option func(*config)

type config struct {
	policy       embed.FailurePolicy
	mode         hostenv.Mode
	concurrency  int
	client       *http.Client
	timeout      time.Duration
	userAgent    string
	maxImageSize int64
	source       fetch.ByteSource
	readers      datauri.ReaderFactory
	fallback     string
	sniff        bool
	logger       *slog.Logger
	recorder     metrics.Recorder
	chrome       bool
	chromeBin    string
	exporter     pipeline.HTMLExporter
}

func defaultConfig() config {
	return config{
		policy:       embed.PolicyFallback,
		mode:         hostenv.ModeAuto,
		timeout:      DefaultTimeout,
		maxImageSize: DefaultMaxImageSize,
	}
}

// WithFailurePolicy sets how image failures are handled (default PolicyFallback).
func WithFailurePolicy(p FailurePolicy) Option {
	return func(c *config) {
		c.policy = p
	}
}

// WithRuntimeMode selects the encoding strategy (default ModeAuto).
// The mode is resolved once, when the Archiver is created.
func WithRuntimeMode(m RuntimeMode) Option {
	return func(c *config) {
		c.mode = m
	}
}

// WithConcurrency caps how many images of one document are processed at once.
// Zero, the default, starts every image immediately.
func WithConcurrency(n int) Option {
	return func(c *config) {
		c.concurrency = n
	}
}

// WithHTTPClient sets the client used to download images.
// WithTimeout is ignored when a client is given.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.client = client
	}
}

// WithTimeout bounds each image download (default 30s). Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header of image requests.
func WithUserAgent(ua string) Option {
	return func(c *config) {
		c.userAgent = ua
	}
}

// WithMaxImageSize caps the size of one image in bytes (default 32 MiB).
// Zero keeps the default.
func WithMaxImageSize(n int64) Option {
	return func(c *config) {
		c.maxImageSize = n
	}
}

// WithByteSource replaces the HTTP image source. data: URLs and, when
// Input.BaseDir is set, local paths are still resolved internally.
func WithByteSource(src ByteSource) Option {
	return func(c *config) {
		c.source = src
	}
}

// WithFileReader sets the FileReader factory used in browser mode.
// Each image gets a fresh reader.
func WithFileReader(factory func() FileReader) Option {
	return func(c *config) {
		c.readers = factory
	}
}

// WithFallbackImage replaces the placeholder embedded for failed images.
// It must be a data: URI.
func WithFallbackImage(uri string) Option {
	return func(c *config) {
		c.fallback = uri
	}
}

// WithContentSniffing detects the real image type when a server declares a
// generic one such as application/octet-stream.
func WithContentSniffing(enabled bool) Option {
	return func(c *config) {
		c.sniff = enabled
	}
}

// WithLogger sets the structured logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics sets the recorder for image and document measurements.
func WithMetrics(r MetricsRecorder) Option {
	return func(c *config) {
		c.recorder = r
	}
}

// WithChrome encodes images with the FileReader of a headless Chrome in
// browser mode. bin may be empty to use ROD_BROWSER_BIN or a managed download.
// The browser starts on first use and is released by Close.
func WithChrome(bin string) Option {
	return func(c *config) {
		c.chrome = true
		c.chromeBin = bin
	}
}

// NewPrometheusRecorder registers the archiver metrics on reg and returns a
// recorder for WithMetrics. A nil reg uses a private registry.
func NewPrometheusRecorder(reg *prom.Registry) MetricsRecorder {
	return metrics.NewPrometheusRecorder(reg)
}

// validate checks option values. Called by NewArchiver after all options ran.
func (c *config) validate() error {
	if !c.policy.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPolicy, int(c.policy))
	}
	if !c.mode.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(c.mode))
	}
	if c.concurrency < 0 {
		return fmt.Errorf("%w: %d (must be zero or more)", ErrInvalidConcurrency, c.concurrency)
	}
	if c.timeout < 0 {
		return fmt.Errorf("%w: %v (must be zero or more)", ErrInvalidTimeout, c.timeout)
	}
	if c.maxImageSize == 0 {
		c.maxImageSize = DefaultMaxImageSize
	}
	if c.maxImageSize < 0 {
		return fmt.Errorf("%w: %d (must be zero or more)", ErrInvalidMaxImageSize, c.maxImageSize)
	}
	if c.fallback != "" {
		if _, err := datauri.Parse(c.fallback); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFallback, err)
		}
	}
	return nil
}
