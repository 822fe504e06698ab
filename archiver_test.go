package mdarchive

// Notes:
// - End-to-end tests run the real pipeline against httptest servers; no test
//   touches the network beyond the loopback interface
// - Browser mode is exercised with the in-process StreamReader; the headless
//   Chrome reader has its own integration tests in internal/browser
// - Output checks re-scan the archived document with internal/imageref rather
//   than matching on regular expressions

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/alnah/go-mdarchive/internal/datauri"
	"github.com/alnah/go-mdarchive/internal/imageref"
	"github.com/alnah/go-mdarchive/internal/markdown"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

// imageServer serves /ok.jpg and /other.png, answers 404 elsewhere and counts requests.
func imageServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/ok.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(jpegBytes)
		case "/other.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestArchiver(t *testing.T, opts ...Option) *Archiver {
	t.Helper()
	a, err := NewArchiver(opts...)
	if err != nil {
		t.Fatalf("NewArchiver() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func jpegURI() string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegBytes)
}

// imageURLs re-scans an archived document.
func imageURLs(t *testing.T, md string) []string {
	t.Helper()
	var urls []string
	for _, ref := range imageref.Scan(markdown.Parse([]byte(md))) {
		urls = append(urls, ref.URL())
	}
	return urls
}

// staticSource answers every URL with the same payload.
type staticSource struct {
	payload *Payload
	urls    atomic.Int64
}

func (s *staticSource) Fetch(context.Context, string) (*Payload, error) {
	s.urls.Add(1)
	return s.payload, nil
}

// ---------------------------------------------------------------------------
// End-to-end scenarios
// ---------------------------------------------------------------------------

func TestArchive_RemoteImageEmbedded(t *testing.T) {
	t.Parallel()

	srv, _ := imageServer(t)
	a := newTestArchiver(t)

	got, err := a.Archive(context.Background(), "![alt]("+srv.URL+"/ok.jpg)")
	if err != nil {
		t.Fatalf("Archive() unexpected error: %v", err)
	}
	if want := "![alt](" + jpegURI() + ")"; got != want {
		t.Errorf("Archive() = %q, want %q", got, want)
	}
}

func TestArchive_ExampleHostThroughByteSource(t *testing.T) {
	t.Parallel()

	src := &staticSource{payload: &Payload{Data: jpegBytes, ContentType: "image/jpeg"}}
	a := newTestArchiver(t, WithByteSource(src))

	got, err := a.Archive(context.Background(), "![alt](https://example.test/ok.jpg)")
	if err != nil {
		t.Fatalf("Archive() unexpected error: %v", err)
	}
	if want := "![alt](" + jpegURI() + ")"; got != want {
		t.Errorf("Archive() = %q, want %q", got, want)
	}
}

func TestArchive_MissingMarkupImageFallsBack(t *testing.T) {
	t.Parallel()

	srv, _ := imageServer(t)
	a := newTestArchiver(t)

	got, err := a.Archive(context.Background(), `<img src="`+srv.URL+`/missing.jpg" />`)
	if err != nil {
		t.Fatalf("Archive() unexpected error: %v", err)
	}
	if want := `<img src="` + DefaultFallbackImage + `" />`; got != want {
		t.Errorf("Archive() = %q, want %q", got, want)
	}
}

func TestArchive_NoImagesUnchanged(t *testing.T) {
	t.Parallel()

	a := newTestArchiver(t)
	inputs := []string{
		"",
		"# Title\n\nSome *text* and a [link](https://example.test).\n",
		"```md\n![not an image](x.png)\n```\n",
		"- a\n- b\n\n> quote\n",
	}
	for _, in := range inputs {
		got, err := a.Archive(context.Background(), in)
		if err != nil {
			t.Fatalf("Archive(%q) unexpected error: %v", in, err)
		}
		if got != in {
			t.Errorf("Archive(%q) = %q, want unchanged", in, got)
		}
	}
}

// ---------------------------------------------------------------------------
// Failure policy
// ---------------------------------------------------------------------------

func TestArchive_PropagateFailsWholeDocument(t *testing.T) {
	t.Parallel()

	srv, _ := imageServer(t)
	a := newTestArchiver(t, WithFailurePolicy(PolicyPropagate))

	missing := srv.URL + "/missing.jpg"
	md := "![ok](" + srv.URL + "/ok.jpg)\n\n![gone](" + missing + ")\n"
	res, err := a.ArchiveDocument(context.Background(), Input{Markdown: md})
	if err == nil {
		t.Fatal("ArchiveDocument() expected error")
	}
	if res != nil {
		t.Errorf("ArchiveDocument() returned a partial result: %+v", res)
	}
	if !IsImageFailure(err) {
		t.Errorf("IsImageFailure(%v) = false", err)
	}
	if !errors.Is(err, ErrStatus) {
		t.Errorf("error = %v, want ErrStatus", err)
	}
	var ie *ImageError
	if !errors.As(err, &ie) || ie.URL != missing {
		t.Errorf("ImageError URL = %v, want %q", ie, missing)
	}
}

func TestArchiveDocument_ReportsEveryImage(t *testing.T) {
	t.Parallel()

	srv, _ := imageServer(t)
	a := newTestArchiver(t)

	md := "![a](" + srv.URL + "/ok.jpg)\n\n<img src=\"" + srv.URL + "/missing.png\">\n\n![c](" + srv.URL + "/other.png)\n"
	res, err := a.ArchiveDocument(context.Background(), Input{Markdown: md})
	if err != nil {
		t.Fatalf("ArchiveDocument() unexpected error: %v", err)
	}

	want := []struct {
		kind   ImageKind
		status ImageStatus
	}{
		{KindImage, StatusEmbedded},
		{KindHTML, StatusFallback},
		{KindImage, StatusEmbedded},
	}
	if len(res.Images) != len(want) {
		t.Fatalf("len(Images) = %d, want %d", len(res.Images), len(want))
	}
	for i, w := range want {
		img := res.Images[i]
		if img.Kind != w.kind || img.Status != w.status {
			t.Errorf("Images[%d] = %v/%v, want %v/%v", i, img.Kind, img.Status, w.kind, w.status)
		}
	}
	if fb := res.Fallbacks(); len(fb) != 1 || !errors.Is(fb[0].Err, ErrStatus) {
		t.Errorf("Fallbacks() = %+v, want one status failure", fb)
	}
	if res.Images[0].ContentType != "image/jpeg" || res.Images[0].Bytes != len(jpegBytes) {
		t.Errorf("Images[0] = %+v", res.Images[0])
	}

	for _, u := range imageURLs(t, res.Markdown) {
		if !strings.HasPrefix(u, datauri.Prefix) {
			t.Errorf("archived image URL %q is not a data URI", u)
		}
	}
}

func TestArchive_EveryImageBecomesDataURI(t *testing.T) {
	t.Parallel()

	srv, _ := imageServer(t)
	const gif = "R0lGODlhAQABAAAAACw="

	tests := []struct {
		name string
		md   string
		want string
	}{
		{
			name: "destination on blockquote continuation line",
			md:   "> ![a](\n> " + srv.URL + "/ok.jpg)\n",
			want: "> ![a](\n> " + jpegURI() + ")\n",
		},
		{
			name: "list item with title on next line",
			md:   "- ![a](\n  " + srv.URL + "/ok.jpg \"t\")\n",
			want: "- ![a](\n  " + jpegURI() + " \"t\")\n",
		},
		{
			name: "upper-case data scheme",
			md:   "![a](DATA:image/gif;base64," + gif + ")",
			want: "![a](data:image/gif;base64," + gif + ")",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := newTestArchiver(t)
			res, err := a.ArchiveDocument(context.Background(), Input{Markdown: tt.md})
			if err != nil {
				t.Fatalf("ArchiveDocument() unexpected error: %v", err)
			}
			if res.Markdown != tt.want {
				t.Errorf("Markdown:\n got %q\nwant %q", res.Markdown, tt.want)
			}
			if fb := res.Fallbacks(); len(fb) != 0 {
				t.Errorf("unexpected fallbacks: %+v", fb)
			}
			for _, u := range imageURLs(t, res.Markdown) {
				if !strings.HasPrefix(u, datauri.Prefix) {
					t.Errorf("image URL %q is not a data URI", u)
				}
			}
		})
	}
}

func TestDefaultFallbackImage(t *testing.T) {
	t.Parallel()

	data, ct, err := datauri.Decode(DefaultFallbackImage)
	if err != nil {
		t.Fatalf("Decode(DefaultFallbackImage) error: %v", err)
	}
	if ct != "image/png" || !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Errorf("placeholder is %s with %d bytes, want a PNG", ct, len(data))
	}
}

func TestArchive_ReembeddingIsIdempotent(t *testing.T) {
	t.Parallel()

	srv, hits := imageServer(t)
	a := newTestArchiver(t)

	md := "![a](" + srv.URL + "/ok.jpg)\n\n<img src=\"" + srv.URL + "/missing.png\">\n"
	first, err := a.Archive(context.Background(), md)
	if err != nil {
		t.Fatalf("Archive() unexpected error: %v", err)
	}
	before := hits.Load()

	second, err := a.Archive(context.Background(), first)
	if err != nil {
		t.Fatalf("Archive() second pass unexpected error: %v", err)
	}
	if second != first {
		t.Errorf("second pass changed the document:\n%s\n---\n%s", first, second)
	}
	if hits.Load() != before {
		t.Errorf("second pass made %d requests, want none", hits.Load()-before)
	}
}

func TestArchive_FirstMarkupMatchOnly(t *testing.T) {
	t.Parallel()

	srv, hits := imageServer(t)
	a := newTestArchiver(t)

	second := srv.URL + "/other.png"
	md := `<p><img src="` + srv.URL + `/ok.jpg"><img src="` + second + `"></p>`
	got, err := a.Archive(context.Background(), md)
	if err != nil {
		t.Fatalf("Archive() unexpected error: %v", err)
	}
	want := `<p><img src="` + jpegURI() + `"><img src="` + second + `"></p>`
	if got != want {
		t.Errorf("Archive() = %q, want %q", got, want)
	}
	if hits.Load() != 1 {
		t.Errorf("requests = %d, want 1", hits.Load())
	}
}

// ---------------------------------------------------------------------------
// Sources, modes and export
// ---------------------------------------------------------------------------

func TestArchiveDocument_LocalImages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "img"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "img", "a.jpg"), jpegBytes, 0o600); err != nil {
		t.Fatal(err)
	}
	a := newTestArchiver(t)

	md := "![a](img/a.jpg)\n\n![b](../escape.jpg)\n"

	t.Run("with base dir", func(t *testing.T) {
		t.Parallel()

		res, err := a.ArchiveDocument(context.Background(), Input{Markdown: md, BaseDir: dir})
		if err != nil {
			t.Fatalf("ArchiveDocument() unexpected error: %v", err)
		}
		if res.Images[0].Status != StatusEmbedded {
			t.Errorf("local image status = %v, want embedded", res.Images[0].Status)
		}
		if !errors.Is(res.Images[1].Err, ErrOutsideRoot) {
			t.Errorf("escaping image error = %v, want ErrOutsideRoot", res.Images[1].Err)
		}
		if !strings.Contains(res.Markdown, "![a]("+jpegURI()+")") {
			t.Errorf("Markdown = %q", res.Markdown)
		}
	})

	t.Run("without base dir", func(t *testing.T) {
		t.Parallel()

		res, err := a.ArchiveDocument(context.Background(), Input{Markdown: md})
		if err != nil {
			t.Fatalf("ArchiveDocument() unexpected error: %v", err)
		}
		if res.Images[0].Status != StatusFallback {
			t.Errorf("local image status = %v, want fallback", res.Images[0].Status)
		}
	})
}

func TestArchive_BrowserModeMatchesServerMode(t *testing.T) {
	t.Parallel()

	srv, _ := imageServer(t)
	md := "![a](" + srv.URL + "/ok.jpg)\n\n<img src=\"" + srv.URL + "/other.png\">\n"

	server := newTestArchiver(t, WithRuntimeMode(ModeServer))
	browserLike := newTestArchiver(t,
		WithRuntimeMode(ModeBrowser),
		WithFileReader(func() FileReader { return datauri.NewStreamReader() }),
	)
	if browserLike.Mode() != ModeBrowser {
		t.Fatalf("Mode() = %v, want browser", browserLike.Mode())
	}

	want, err := server.Archive(context.Background(), md)
	if err != nil {
		t.Fatalf("server Archive() unexpected error: %v", err)
	}
	got, err := browserLike.Archive(context.Background(), md)
	if err != nil {
		t.Fatalf("browser Archive() unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("browser mode output differs:\n%s\n---\n%s", got, want)
	}
}

func TestArchive_ContentSniffing(t *testing.T) {
	t.Parallel()

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	src := &staticSource{payload: &Payload{Data: png, ContentType: "application/octet-stream"}}

	tests := []struct {
		name  string
		sniff bool
		want  string
	}{
		{name: "declared type kept", sniff: false, want: "data:application/octet-stream;base64,"},
		{name: "sniffed", sniff: true, want: "data:image/png;base64,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := newTestArchiver(t, WithByteSource(src), WithContentSniffing(tt.sniff))
			got, err := a.Archive(context.Background(), "![x](https://example.test/blob)")
			if err != nil {
				t.Fatalf("Archive() unexpected error: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Archive() = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestArchiveDocument_HTMLExport(t *testing.T) {
	t.Parallel()

	srv, _ := imageServer(t)
	a := newTestArchiver(t)

	res, err := a.ArchiveDocument(context.Background(), Input{
		Markdown: "# Trip\n\n![a](" + srv.URL + "/ok.jpg)\n",
		HTML:     true,
		Title:    "Trip",
	})
	if err != nil {
		t.Fatalf("ArchiveDocument() unexpected error: %v", err)
	}
	if !strings.Contains(res.HTML, `src="`+jpegURI()+`"`) {
		t.Errorf("HTML missing embedded image:\n%s", res.HTML)
	}
	if !strings.Contains(res.HTML, "<title>Trip</title>") {
		t.Errorf("HTML missing title")
	}
	if len(res.ExternalImages) != 0 {
		t.Errorf("ExternalImages = %v, want none", res.ExternalImages)
	}
}

func TestArchiveDocument_NoHTMLUnlessAsked(t *testing.T) {
	t.Parallel()

	a := newTestArchiver(t)
	res, err := a.ArchiveDocument(context.Background(), Input{Markdown: "# x"})
	if err != nil {
		t.Fatalf("ArchiveDocument() unexpected error: %v", err)
	}
	if res.HTML != "" || res.ExternalImages != nil {
		t.Errorf("unexpected export: %+v", res)
	}
}

// ---------------------------------------------------------------------------
// Lifecycle and options
// ---------------------------------------------------------------------------

func TestArchive_CanceledContext(t *testing.T) {
	t.Parallel()

	srv, _ := imageServer(t)
	a := newTestArchiver(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Archive(ctx, "![a]("+srv.URL+"/ok.jpg)"); !errors.Is(err, context.Canceled) {
		t.Errorf("Archive() error = %v, want context.Canceled", err)
	}
}

func TestArchive_AfterClose(t *testing.T) {
	t.Parallel()

	a, err := NewArchiver()
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close() unexpected error: %v", err)
	}
	if _, err := a.Archive(context.Background(), "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Archive() after Close error = %v, want ErrClosed", err)
	}
}

func TestNewArchiver_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opt     Option
		wantErr error
	}{
		{"unknown policy", WithFailurePolicy(FailurePolicy(7)), ErrInvalidPolicy},
		{"unknown mode", WithRuntimeMode(RuntimeMode(7)), ErrInvalidMode},
		{"negative concurrency", WithConcurrency(-1), ErrInvalidConcurrency},
		{"negative timeout", WithTimeout(-1), ErrInvalidTimeout},
		{"negative max size", WithMaxImageSize(-1), ErrInvalidMaxImageSize},
		{"fallback not a data URI", WithFallbackImage("https://example.test/x.png"), ErrInvalidFallback},
		{"valid fallback", WithFallbackImage("data:image/gif;base64,R0lGODlhAQABAAAAACw="), nil},
		{"bounded concurrency", WithConcurrency(4), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, err := NewArchiver(tt.opt)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("NewArchiver() unexpected error: %v", err)
				}
				_ = a.Close()
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewArchiver() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestArchive_CustomFallback(t *testing.T) {
	t.Parallel()

	srv, _ := imageServer(t)
	const gif = "data:image/gif;base64,R0lGODlhAQABAAAAACw="
	a := newTestArchiver(t, WithFallbackImage(gif))

	got, err := a.Archive(context.Background(), "![x]("+srv.URL+"/missing.gif)")
	if err != nil {
		t.Fatalf("Archive() unexpected error: %v", err)
	}
	if got != "![x]("+gif+")" {
		t.Errorf("Archive() = %q", got)
	}
}

func TestArchive_LogsAndMetrics(t *testing.T) {
	t.Parallel()

	srv, _ := imageServer(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	reg := prom.NewRegistry()

	a := newTestArchiver(t, WithLogger(logger), WithMetrics(NewPrometheusRecorder(reg)))
	if _, err := a.Archive(context.Background(), "![x]("+srv.URL+"/missing.gif)"); err != nil {
		t.Fatalf("Archive() unexpected error: %v", err)
	}

	if !strings.Contains(logs.String(), "image replaced by fallback") {
		t.Errorf("logs missing fallback warning:\n%s", logs.String())
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() unexpected error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"mdarchive_image_results_total", "mdarchive_document_duration_seconds"} {
		if !names[want] {
			t.Errorf("metric %s not recorded", want)
		}
	}
}
