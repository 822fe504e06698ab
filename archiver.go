package mdarchive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alnah/go-mdarchive/internal/browser"
	"github.com/alnah/go-mdarchive/internal/datauri"
	"github.com/alnah/go-mdarchive/internal/embed"
	"github.com/alnah/go-mdarchive/internal/fetch"
	"github.com/alnah/go-mdarchive/internal/hostenv"
	"github.com/alnah/go-mdarchive/internal/imageref"
	"github.com/alnah/go-mdarchive/internal/markdown"
	"github.com/alnah/go-mdarchive/internal/metrics"
	"github.com/alnah/go-mdarchive/internal/pipeline"
)

// Compile-time interface implementation checks.
var (
	_ fetch.ByteSource      = (*fetch.HTTPSource)(nil)
	_ fetch.ByteSource      = (*fetch.Router)(nil)
	_ fetch.ByteSource      = (*fetch.SniffingSource)(nil)
	_ datauri.Encoder       = datauri.Base64Encoder{}
	_ datauri.Encoder       = (*datauri.ReaderEncoder)(nil)
	_ datauri.FileReader    = (*browser.Reader)(nil)
	_ pipeline.HTMLExporter = (*pipeline.Exporter)(nil)
	_ metrics.Recorder      = (*metrics.PrometheusRecorder)(nil)
)

// Archiver rewrites Markdown documents so every image is embedded as a data URI.
// Create with NewArchiver, archive with Archive or ArchiveDocument, and Close
// when done. An Archiver is safe for concurrent use.
type Archiver struct {
	cfg      config
	mode     hostenv.Mode
	remote   fetch.ByteSource
	encoder  datauri.Encoder
	fallback datauri.DataURI
	exporter pipeline.HTMLExporter
	session  *browser.Session
	logger   *slog.Logger
	recorder metrics.Recorder

	mu     sync.RWMutex
	closed bool
}

// NewArchiver creates an Archiver. Options are validated here; the runtime
// mode is resolved once and fixes the encoding strategy for the Archiver's life.
func NewArchiver(opts ...Option) (*Archiver, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	a := &Archiver{
		cfg:      cfg,
		mode:     hostenv.Resolve(cfg.mode),
		fallback: embed.DefaultFallback,
		exporter: cfg.exporter,
		logger:   cfg.logger,
		recorder: cfg.recorder,
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	if a.recorder == nil {
		a.recorder = metrics.NoopRecorder{}
	}
	if cfg.fallback != "" {
		a.fallback = datauri.DataURI(cfg.fallback)
	}
	if a.exporter == nil {
		a.exporter = pipeline.NewExporter()
	}

	a.remote = cfg.source
	if a.remote == nil {
		client := cfg.client
		if client == nil {
			client = fetch.NewClient(cfg.timeout)
		}
		a.remote = fetch.NewHTTPSource(
			fetch.WithClient(client),
			fetch.WithUserAgent(cfg.userAgent),
			fetch.WithMaxBytes(cfg.maxImageSize),
		)
	}

	readers := datauri.ReaderFactory(cfg.readers)
	if cfg.chrome && a.mode == hostenv.ModeBrowser {
		a.session = browser.NewSession(browser.WithBrowserBin(cfg.chromeBin), browser.WithTimeout(cfg.timeout))
		readers = a.session.NewReader
	}
	a.encoder = datauri.NewEncoder(a.mode, readers)

	a.logger.Debug("archiver ready",
		"mode", a.mode.String(),
		"policy", cfg.policy.String(),
		"concurrency", cfg.concurrency,
		"chrome", a.session != nil)
	return a, nil
}

// Mode returns the resolved runtime mode.
func (a *Archiver) Mode() RuntimeMode {
	return a.mode
}

// Archive embeds every image of markdown and returns the rewritten document.
// Documents without images come back unchanged.
func (a *Archiver) Archive(ctx context.Context, markdown string) (string, error) {
	res, err := a.ArchiveDocument(ctx, Input{Markdown: markdown})
	if err != nil {
		return "", err
	}
	return res.Markdown, nil
}

// ArchiveDocument runs the full pipeline: parse, scan, embed, serialize and,
// when input.HTML is set, export a standalone HTML page.
//
// Under PolicyPropagate the first image failure is returned as an
// *ImageError and no result is produced. Cancelling ctx stops outstanding
// images and returns ctx.Err(). Recovers from internal panics to prevent
// crashes from propagating to callers.
func (a *Archiver) ArchiveDocument(ctx context.Context, input Input) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, ErrClosed
	}

	start := time.Now()
	defer func() {
		a.recorder.ObserveDocumentDuration(time.Since(start), err == nil)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, err := a.sourceFor(input)
	if err != nil {
		return nil, err
	}

	doc := markdown.Parse([]byte(input.Markdown))
	refs := imageref.Scan(doc)

	orch := &embed.Orchestrator{
		Source:      source,
		Encoder:     a.encoder,
		Policy:      a.cfg.policy,
		Fallback:    a.fallback,
		Concurrency: a.cfg.concurrency,
		Logger:      a.logger,
		Recorder:    a.recorder,
	}
	report, err := orch.Embed(ctx, refs)
	if err != nil {
		return nil, err
	}

	out, err := markdown.Serialize(doc)
	if err != nil {
		return nil, fmt.Errorf("serializing document: %w", err)
	}

	res := &Result{
		Markdown: string(out),
		Images:   toImageReports(report),
	}
	a.logger.Debug("document archived",
		"images", len(refs),
		"embedded", report.Count(embed.StatusEmbedded),
		"fallback", report.Count(embed.StatusFallback),
		"duration_ms", time.Since(start).Milliseconds())

	if !input.HTML {
		return res, nil
	}

	res.HTML, err = a.exporter.Export(ctx, res.Markdown, input.Title)
	if err != nil {
		return nil, fmt.Errorf("exporting HTML: %w", err)
	}
	res.ExternalImages, err = pipeline.ExternalImages(res.HTML)
	if err != nil {
		return nil, fmt.Errorf("auditing HTML: %w", err)
	}
	if len(res.ExternalImages) > 0 {
		a.logger.Warn("exported page still loads external images",
			"count", len(res.ExternalImages),
			"urls", res.ExternalImages)
	}
	return res, nil
}

// sourceFor builds the per-document source: data: URLs resolve locally,
// relative paths read from input.BaseDir when set, everything else goes to
// the remote source.
func (a *Archiver) sourceFor(input Input) (fetch.ByteSource, error) {
	router := fetch.NewRouter(a.remote)
	if input.BaseDir != "" {
		files, err := fetch.NewFileSource(input.BaseDir)
		if err != nil {
			return nil, err
		}
		files.MaxBytes = a.cfg.maxImageSize
		router.Files = files
	}
	if a.cfg.sniff {
		return fetch.NewSniffingSource(router), nil
	}
	return router, nil
}

// Close releases resources (headless Chrome when WithChrome is used).
// Archiving after Close fails with ErrClosed. Close waits for running
// documents to finish.
func (a *Archiver) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}
