package main

// Notes:
// - Shared test infrastructure: an in-memory Environment, an image server and
//   a mock pool. Not code under test.

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	mdarchive "github.com/alnah/go-mdarchive"
)

const pixelBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

// pixelURI is what the archiver embeds for /pixel.png.
const pixelURI = "data:image/png;base64," + pixelBase64

func pixelPNG(t *testing.T) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(pixelBase64)
	if err != nil {
		t.Fatalf("decoding pixel: %v", err)
	}
	return data
}

// testEnv is an Environment backed by buffers and a private variable map.
type testEnv struct {
	*Environment
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestEnv(stdin string, vars map[string]string) *testEnv {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return &testEnv{
		Environment: &Environment{
			Now:    func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
			Stdin:  strings.NewReader(stdin),
			Stdout: stdout,
			Stderr: stderr,
			Getenv: func(k string) string { return vars[k] },
			Environ: func() []string {
				out := make([]string, 0, len(vars))
				for k, v := range vars {
					out = append(out, k+"="+v)
				}
				return out
			},
		},
		stdout: stdout,
		stderr: stderr,
	}
}

// imageServer serves /pixel.png and 404s everything else.
func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	png := pixelPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pixel.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// setupTestDir creates a temp directory with the given file structure.
// Files map paths to content. Returns the temp directory path.
func setupTestDir(t *testing.T, files map[string]string) string {
	t.Helper()
	tempDir := t.TempDir()

	for path, content := range files {
		fullPath := filepath.Join(tempDir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
			t.Fatalf("failed to create dir for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}

	return tempDir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

// ---------------------------------------------------------------------------
// Mock Implementations
// ---------------------------------------------------------------------------

// mockArchiver upper-cases documents and records every input.
type mockArchiver struct {
	mu     sync.Mutex
	inputs []mdarchive.Input
	err    error
	result func(mdarchive.Input) *mdarchive.Result
}

func (m *mockArchiver) ArchiveDocument(_ context.Context, in mdarchive.Input) (*mdarchive.Result, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, in)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result(in), nil
	}
	res := &mdarchive.Result{Markdown: strings.ToUpper(in.Markdown)}
	if in.HTML {
		res.HTML = "<html>" + in.Title + "</html>"
	}
	return res, nil
}

func (m *mockArchiver) calls() []mdarchive.Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mdarchive.Input(nil), m.inputs...)
}

// mockPool hands out one shared mockArchiver.
type mockPool struct {
	arc        *mockArchiver
	size       int
	acquireErr error
	closed     bool
}

var _ Pool = (*mockPool)(nil)

func (p *mockPool) Acquire() (CLIArchiver, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	return p.arc, nil
}

func (p *mockPool) Release(CLIArchiver) {}

func (p *mockPool) Size() int { return p.size }

func (p *mockPool) Close() error {
	p.closed = true
	return nil
}

// mockFactory returns a poolFactory that hands out pool and records options.
func mockFactory(pool *mockPool, gotOpts *[]mdarchive.Option) poolFactory {
	return func(_ int, opts []mdarchive.Option) (Pool, error) {
		if gotOpts != nil {
			*gotOpts = opts
		}
		return pool, nil
	}
}

var errBoom = errors.New("boom")
