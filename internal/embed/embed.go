// Package embed fetches, encodes and applies every image reference of a
// document concurrently, under a configurable failure policy.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-mdarchive/internal/datauri"
	"github.com/alnah/go-mdarchive/internal/fetch"
	"github.com/alnah/go-mdarchive/internal/imageref"
	"github.com/alnah/go-mdarchive/internal/metrics"
)

// Orchestrator embeds image references.
//
// Every reference runs as its own task. References own disjoint mutation
// sites, so tasks apply their results without coordinating with each other;
// the only shared state is the gate that stops applies once a
// PolicyPropagate run has failed.
type Orchestrator struct {
	Source   fetch.ByteSource
	Encoder  datauri.Encoder
	Policy   FailurePolicy
	Fallback datauri.DataURI // DefaultFallback when empty
	// Concurrency caps simultaneous tasks. Zero or less means one task per reference.
	Concurrency int
	Logger      *slog.Logger
	Recorder    metrics.Recorder
}

// applyGate lets tasks apply concurrently until the run is aborted.
// After abort returns, no apply is running and none will start.
type applyGate struct {
	mu      sync.RWMutex
	aborted bool
}

func (g *applyGate) abort() {
	g.mu.Lock()
	g.aborted = true
	g.mu.Unlock()
}

func (g *applyGate) isAborted() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.aborted
}

// apply runs fn unless the gate is aborted and reports whether it ran.
func (g *applyGate) apply(fn func() error) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.aborted {
		return false, nil
	}
	return true, fn()
}

// Embed processes refs and returns one Outcome per reference, in order.
//
// Under PolicyFallback only cancellation of ctx fails the run; a reference
// that cannot be rewritten is logged and left as written. Under PolicyPropagate the first image failure is
// returned as an *ImageError, remaining tasks are canceled, and no reference
// is changed once the failure has been observed. The report is returned in
// both cases.
func (o *Orchestrator) Embed(ctx context.Context, refs []imageref.Reference) (*Report, error) {
	report := &Report{Outcomes: make([]Outcome, len(refs))}
	for i, ref := range refs {
		report.Outcomes[i] = Outcome{URL: ref.URL(), Kind: ref.Kind()}
	}
	if len(refs) == 0 {
		return report, nil
	}

	logger := o.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	recorder := o.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	fallback := o.Fallback
	if fallback == "" {
		fallback = DefaultFallback
	}

	g, gctx := errgroup.WithContext(ctx)
	if o.Concurrency > 0 {
		g.SetLimit(o.Concurrency)
	}

	var (
		gate     applyGate
		inFlight atomic.Int64
	)

	for i, ref := range refs {
		g.Go(func() error {
			// Each task writes only its own slot.
			out := &report.Outcomes[i]
			kind := ref.Kind().String()

			if gate.isAborted() || gctx.Err() != nil {
				out.Status = StatusSkipped
				recorder.IncImageResult(kind, metrics.ResultCanceled)
				return nil
			}

			recorder.SetInFlight(int(inFlight.Add(1)))
			defer func() { recorder.SetInFlight(int(inFlight.Add(-1))) }()

			start := time.Now()
			uri, payload, err := o.resolve(gctx, ref)
			out.Duration = time.Since(start)
			if payload != nil {
				out.Bytes = len(payload.Data)
				out.ContentType = payload.ContentType
			}
			recorder.ObserveImageDuration(kind, out.Duration)

			if err != nil {
				if ctx.Err() != nil {
					// The caller gave up; this is not an image failure.
					out.Status = StatusSkipped
					recorder.IncImageResult(kind, metrics.ResultCanceled)
					return ctx.Err()
				}
				if o.Policy == PolicyPropagate {
					if gate.isAborted() {
						// Canceled by a sibling's failure.
						out.Status = StatusSkipped
						recorder.IncImageResult(kind, metrics.ResultCanceled)
						return nil
					}
					gate.abort()
					out.Status = StatusFailed
					out.Err = err
					recorder.IncImageResult(kind, metrics.ResultFailed)
					logger.Error("image embedding failed",
						"url", ref.URL(), "kind", kind, "error", err)
					return &ImageError{URL: ref.URL(), Err: err}
				}
				out.Err = err
				uri = fallback
			}

			ran, applyErr := gate.apply(func() error { return ref.Apply(uri) })
			switch {
			case !ran:
				out.Status = StatusSkipped
				recorder.IncImageResult(kind, metrics.ResultCanceled)
				return nil
			case applyErr != nil && o.Policy == PolicyFallback:
				out.Status = StatusFailed
				out.Err = applyErr
				recorder.IncImageResult(kind, metrics.ResultFailed)
				logger.Warn("image left unchanged",
					"url", ref.URL(), "kind", kind, "error", applyErr)
			case applyErr != nil:
				gate.abort()
				out.Status = StatusFailed
				out.Err = applyErr
				recorder.IncImageResult(kind, metrics.ResultFailed)
				return &ImageError{URL: ref.URL(), Err: applyErr}
			case err != nil:
				out.Status = StatusFallback
				recorder.IncImageResult(kind, metrics.ResultFallback)
				logger.Warn("image replaced by fallback",
					"url", ref.URL(), "kind", kind, "error", err,
					"duration_ms", out.Duration.Milliseconds())
			default:
				out.Status = StatusEmbedded
				recorder.IncImageResult(kind, metrics.ResultEmbedded)
				recorder.AddEmbeddedBytes(out.Bytes)
				logger.Debug("image embedded",
					"url", ref.URL(), "kind", kind, "bytes", out.Bytes,
					"content_type", out.ContentType,
					"duration_ms", out.Duration.Milliseconds())
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// resolve fetches and encodes one reference.
func (o *Orchestrator) resolve(ctx context.Context, ref imageref.Reference) (datauri.DataURI, *fetch.Payload, error) {
	payload, err := o.Source.Fetch(ctx, ref.URL())
	if err != nil {
		return "", nil, err
	}
	uri, err := o.Encoder.Encode(ctx, payload.Data, payload.ContentType)
	if err != nil {
		return "", payload, err
	}
	// Strategies are trusted to produce data URIs, but a bad one must not
	// reach the document.
	if _, err := datauri.Parse(uri.String()); err != nil {
		return "", payload, fmt.Errorf("%w: %w", datauri.ErrEncoding, err)
	}
	return uri, payload, nil
}

// IsImageFailure reports whether err came from an image under PolicyPropagate.
func IsImageFailure(err error) bool {
	var ie *ImageError
	return errors.As(err, &ie)
}
