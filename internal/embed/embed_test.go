package embed

// Notes:
// - Documents are real markdown.Documents and encoding uses the real
//   Base64Encoder; only the ByteSource is faked, so completion order and
//   failures are under test control
// - The propagate test makes a sibling finish strictly after the failure (it
//   waits for the group context) to prove late results are never applied
// - Concurrency is measured inside the fake source, not inferred from timing

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alnah/go-mdarchive/internal/datauri"
	"github.com/alnah/go-mdarchive/internal/fetch"
	"github.com/alnah/go-mdarchive/internal/imageref"
	"github.com/alnah/go-mdarchive/internal/markdown"
	"github.com/alnah/go-mdarchive/internal/metrics"
)

// fakeSource serves fixed payloads; unknown URLs answer 404.
type fakeSource struct {
	payloads map[string]*fetch.Payload
	// hook runs before answering, with the fetch context.
	hook func(ctx context.Context, url string)

	active atomic.Int32
	peak   atomic.Int32
}

func (s *fakeSource) Fetch(ctx context.Context, url string) (*fetch.Payload, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if s.hook != nil {
		s.hook(ctx, url)
	}
	if p, ok := s.payloads[url]; ok {
		return p, nil
	}
	return nil, &fetch.Error{Kind: fetch.KindStatus, URL: url, StatusCode: 404}
}

func jpeg(b string) *fetch.Payload {
	return &fetch.Payload{Data: []byte(b), ContentType: "image/jpeg"}
}

func dataURI(ct, b string) string {
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString([]byte(b))
}

func run(t *testing.T, o *Orchestrator, src string) (string, *Report, error) {
	t.Helper()

	doc := markdown.Parse([]byte(src))
	report, err := o.Embed(context.Background(), imageref.Scan(doc))
	out, serr := markdown.Serialize(doc)
	if serr != nil {
		t.Fatalf("Serialize() unexpected error: %v", serr)
	}
	return string(out), report, err
}

func TestEmbed_AllImagesEmbedded(t *testing.T) {
	t.Parallel()

	src := &fakeSource{payloads: map[string]*fetch.Payload{
		"https://example.test/ok.jpg": jpeg("b"),
		"https://example.test/2.jpg":  jpeg("second"),
	}}
	o := &Orchestrator{Source: src, Encoder: datauri.Base64Encoder{}}

	out, report, err := run(t, o,
		"![alt](https://example.test/ok.jpg)\n\n<img src=\"https://example.test/2.jpg\" />\n")
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}

	want := "![alt](" + dataURI("image/jpeg", "b") + ")\n\n<img src=\"" + dataURI("image/jpeg", "second") + "\" />\n"
	if out != want {
		t.Errorf("output:\n got %q\nwant %q", out, want)
	}
	if report.Count(StatusEmbedded) != 2 {
		t.Errorf("embedded = %d, want 2", report.Count(StatusEmbedded))
	}
	if o0 := report.Outcomes[0]; o0.Bytes != 1 || o0.ContentType != "image/jpeg" || o0.Kind != imageref.KindStructured {
		t.Errorf("Outcomes[0] = %+v", o0)
	}
}

func TestEmbed_FallbackSubstitution(t *testing.T) {
	t.Parallel()

	src := &fakeSource{payloads: map[string]*fetch.Payload{"https://example.test/ok.jpg": jpeg("b")}}
	o := &Orchestrator{Source: src, Encoder: datauri.Base64Encoder{}, Policy: PolicyFallback}

	out, report, err := run(t, o,
		"![a](https://example.test/ok.jpg)\n\n<img src=\"https://example.test/missing.jpg\" />\n")
	if err != nil {
		t.Fatalf("Embed() under fallback should not fail: %v", err)
	}

	if !strings.Contains(out, `<img src="`+string(DefaultFallback)+`" />`) {
		t.Errorf("placeholder not substituted:\n%s", out)
	}
	if !strings.Contains(out, dataURI("image/jpeg", "b")) {
		t.Errorf("healthy image not embedded:\n%s", out)
	}

	miss := report.Outcomes[1]
	if miss.Status != StatusFallback || !errors.Is(miss.Err, fetch.ErrStatus) {
		t.Errorf("missing image outcome = %+v", miss)
	}
}

// A src value spanning lines of an HTML block cannot be patched in place.
const unrewritableDoc = "![ok](https://example.test/ok.jpg)\n\n" +
	"<div>\n<img src=\"https://example.test/a\nb.jpg\">\n</div>\n"

func TestEmbed_UnrewritableReference(t *testing.T) {
	t.Parallel()

	payloads := map[string]*fetch.Payload{
		"https://example.test/ok.jpg":     jpeg("b"),
		"https://example.test/a\nb.jpg": jpeg("c"),
	}

	t.Run("fallback leaves it unchanged", func(t *testing.T) {
		t.Parallel()

		o := &Orchestrator{Source: &fakeSource{payloads: payloads}, Encoder: datauri.Base64Encoder{}, Policy: PolicyFallback}
		out, report, err := run(t, o, unrewritableDoc)
		if err != nil {
			t.Fatalf("Embed() under fallback should not fail: %v", err)
		}

		want := strings.Replace(unrewritableDoc, "https://example.test/ok.jpg", dataURI("image/jpeg", "b"), 1)
		if out != want {
			t.Errorf("output:\n got %q\nwant %q", out, want)
		}
		got := report.Outcomes[1]
		if got.Status != StatusFailed || !errors.Is(got.Err, markdown.ErrPatchRange) {
			t.Errorf("unrewritable outcome = %+v", got)
		}
		if report.Outcomes[0].Status != StatusEmbedded {
			t.Errorf("sibling status = %s, want embedded", report.Outcomes[0].Status)
		}
	})

	t.Run("propagate fails the run", func(t *testing.T) {
		t.Parallel()

		o := &Orchestrator{Source: &fakeSource{payloads: payloads}, Encoder: datauri.Base64Encoder{}, Policy: PolicyPropagate}
		_, _, err := run(t, o, unrewritableDoc)
		if !IsImageFailure(err) || !errors.Is(err, markdown.ErrPatchRange) {
			t.Errorf("Embed() error = %v, want *ImageError wrapping ErrPatchRange", err)
		}
	})
}

func TestEmbed_CustomFallback(t *testing.T) {
	t.Parallel()

	custom := datauri.MustParse("data:image/gif;base64,R0lGODlhAQABAAAAACw=")
	o := &Orchestrator{Source: &fakeSource{}, Encoder: datauri.Base64Encoder{}, Fallback: custom}

	out, _, err := run(t, o, "![x](https://example.test/gone.png)\n")
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	if out != "![x]("+string(custom)+")\n" {
		t.Errorf("output = %q", out)
	}
}

func TestEmbed_PropagateFailsWithoutLateMutation(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		payloads: map[string]*fetch.Payload{"https://example.test/slow.jpg": jpeg("late")},
		hook: func(ctx context.Context, url string) {
			if url == "https://example.test/slow.jpg" {
				// Finish only after the failing sibling canceled the group,
				// and still report success.
				<-ctx.Done()
			}
		},
	}
	o := &Orchestrator{Source: src, Encoder: datauri.Base64Encoder{}, Policy: PolicyPropagate}

	input := "![slow](https://example.test/slow.jpg)\n\n![bad](https://example.test/missing.jpg)\n"
	out, report, err := run(t, o, input)

	var ie *ImageError
	if !errors.As(err, &ie) {
		t.Fatalf("Embed() error = %v, want *ImageError", err)
	}
	if ie.URL != "https://example.test/missing.jpg" {
		t.Errorf("ImageError.URL = %q", ie.URL)
	}
	if !errors.Is(err, fetch.ErrStatus) {
		t.Errorf("error chain lacks fetch.ErrStatus: %v", err)
	}
	if !IsImageFailure(err) {
		t.Error("IsImageFailure() = false")
	}

	if out != input {
		t.Errorf("document mutated after failure:\n%s", out)
	}
	if report.Outcomes[0].Status != StatusSkipped || report.Outcomes[1].Status != StatusFailed {
		t.Errorf("statuses = %s, %s", report.Outcomes[0].Status, report.Outcomes[1].Status)
	}
}

func TestEmbed_OrderInsensitive(t *testing.T) {
	t.Parallel()

	const n = 8
	payloads := make(map[string]*fetch.Payload, n)
	var sb strings.Builder
	for i := range n {
		url := fmt.Sprintf("https://example.test/%d.png", i)
		payloads[url] = &fetch.Payload{Data: []byte{byte(i)}, ContentType: "image/png"}
		if i%2 == 0 {
			fmt.Fprintf(&sb, "![%d](%s)\n\n", i, url)
		} else {
			fmt.Fprintf(&sb, "<img src=\"%s\">\n\n", url)
		}
	}
	input := sb.String()

	// Sequential baseline.
	baseline, _, err := run(t, &Orchestrator{
		Source: &fakeSource{payloads: payloads}, Encoder: datauri.Base64Encoder{}, Concurrency: 1,
	}, input)
	if err != nil {
		t.Fatalf("baseline Embed() unexpected error: %v", err)
	}

	// Release fetches in reverse document order once all have started.
	var (
		mu      sync.Mutex
		started int
		gates   = make(map[string]chan struct{}, n)
	)
	for url := range payloads {
		gates[url] = make(chan struct{})
	}
	reverse := &fakeSource{payloads: payloads, hook: func(_ context.Context, url string) {
		mu.Lock()
		started++
		if started == n {
			go func() {
				for i := n - 1; i >= 0; i-- {
					close(gates[fmt.Sprintf("https://example.test/%d.png", i)])
					time.Sleep(time.Millisecond)
				}
			}()
		}
		mu.Unlock()
		<-gates[url]
	}}

	got, _, err := run(t, &Orchestrator{Source: reverse, Encoder: datauri.Base64Encoder{}}, input)
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	if got != baseline {
		t.Errorf("output depends on completion order:\n got %q\nwant %q", got, baseline)
	}
	if reverse.peak.Load() != n {
		t.Errorf("peak concurrency = %d, want %d (unbounded)", reverse.peak.Load(), n)
	}
}

func TestEmbed_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	payloads := map[string]*fetch.Payload{}
	var sb strings.Builder
	for i := range 10 {
		url := fmt.Sprintf("https://example.test/%d.png", i)
		payloads[url] = jpeg("x")
		fmt.Fprintf(&sb, "![%d](%s)\n", i, url)
	}

	src := &fakeSource{payloads: payloads, hook: func(context.Context, string) {
		time.Sleep(5 * time.Millisecond)
	}}
	o := &Orchestrator{Source: src, Encoder: datauri.Base64Encoder{}, Concurrency: 2}

	_, report, err := run(t, o, sb.String())
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	if peak := src.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
	if report.Count(StatusEmbedded) != 10 {
		t.Errorf("embedded = %d, want 10", report.Count(StatusEmbedded))
	}
}

func TestEmbed_CallerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{
		payloads: map[string]*fetch.Payload{"https://example.test/a.png": jpeg("a")},
		hook: func(fctx context.Context, _ string) {
			cancel()
			<-fctx.Done()
		},
	}
	o := &Orchestrator{Source: src, Encoder: failingEncoder{}, Policy: PolicyFallback}

	input := "![a](https://example.test/a.png)\n"
	doc := markdown.Parse([]byte(input))
	_, err := o.Embed(ctx, imageref.Scan(doc))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Embed() error = %v, want context.Canceled", err)
	}

	out, _ := markdown.Serialize(doc)
	if string(out) != input {
		t.Errorf("canceled run must not substitute fallbacks:\n%s", out)
	}
}

// failingEncoder reports ctx errors and otherwise fails.
type failingEncoder struct{}

func (failingEncoder) Encode(ctx context.Context, _ []byte, _ string) (datauri.DataURI, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w: reader returned an empty result", datauri.ErrEncoding)
}

func TestEmbed_EncodingFailureFallsBack(t *testing.T) {
	t.Parallel()

	src := &fakeSource{payloads: map[string]*fetch.Payload{"https://example.test/a.png": jpeg("a")}}
	o := &Orchestrator{Source: src, Encoder: failingEncoder{}}

	out, report, err := run(t, o, "![a](https://example.test/a.png)\n")
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	if out != "![a]("+string(DefaultFallback)+")\n" {
		t.Errorf("output = %q", out)
	}
	if !errors.Is(report.Outcomes[0].Err, datauri.ErrEncoding) {
		t.Errorf("outcome error = %v, want ErrEncoding", report.Outcomes[0].Err)
	}
}

// rogueEncoder violates the data URI contract.
type rogueEncoder struct{}

func (rogueEncoder) Encode(context.Context, []byte, string) (datauri.DataURI, error) {
	return "blob:not-a-data-uri", nil
}

func TestEmbed_ValidatesEncoderOutput(t *testing.T) {
	t.Parallel()

	src := &fakeSource{payloads: map[string]*fetch.Payload{"https://example.test/a.png": jpeg("a")}}
	o := &Orchestrator{Source: src, Encoder: rogueEncoder{}, Policy: PolicyPropagate}

	_, _, err := run(t, o, "![a](https://example.test/a.png)\n")
	if !errors.Is(err, datauri.ErrEncoding) || !errors.Is(err, datauri.ErrInvalid) {
		t.Errorf("Embed() error = %v, want ErrEncoding wrapping ErrInvalid", err)
	}
}

func TestEmbed_FallbackReembeddingIsIdempotent(t *testing.T) {
	t.Parallel()

	o := &Orchestrator{
		Source:  fetch.NewRouter(&fakeSource{}),
		Encoder: datauri.Base64Encoder{},
	}

	input := "![gone](" + string(DefaultFallback) + ")\n\n<img src=\"" + string(DefaultFallback) + "\">\n"
	out, report, err := run(t, o, input)
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	if out != input {
		t.Errorf("re-embedding changed the placeholder:\n got %q\nwant %q", out, input)
	}
	if report.Count(StatusEmbedded) != 2 {
		t.Errorf("embedded = %d, want 2", report.Count(StatusEmbedded))
	}
}

func TestEmbed_NoReferences(t *testing.T) {
	t.Parallel()

	o := &Orchestrator{Source: &fakeSource{}, Encoder: datauri.Base64Encoder{}}
	report, err := o.Embed(context.Background(), nil)
	if err != nil || len(report.Outcomes) != 0 {
		t.Errorf("Embed(nil) = %+v, %v", report, err)
	}
}

// countingRecorder tallies results per label.
type countingRecorder struct {
	metrics.NoopRecorder
	mu      sync.Mutex
	results map[metrics.ResultLabel]int
	bytes   int
}

func (r *countingRecorder) IncImageResult(_ string, res metrics.ResultLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[res]++
}

func (r *countingRecorder) AddEmbeddedBytes(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bytes += n
}

func TestEmbed_RecordsMetrics(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{results: map[metrics.ResultLabel]int{}}
	src := &fakeSource{payloads: map[string]*fetch.Payload{"https://example.test/a.png": jpeg("abc")}}
	o := &Orchestrator{Source: src, Encoder: datauri.Base64Encoder{}, Recorder: rec}

	if _, _, err := run(t, o, "![a](https://example.test/a.png) ![b](https://example.test/b.png)\n"); err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	if rec.results[metrics.ResultEmbedded] != 1 || rec.results[metrics.ResultFallback] != 1 {
		t.Errorf("results = %v", rec.results)
	}
	if rec.bytes != 3 {
		t.Errorf("bytes = %d, want 3", rec.bytes)
	}
}
