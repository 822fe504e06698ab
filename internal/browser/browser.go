// Package browser encodes images with the FileReader of a headless Chrome,
// driven through go-rod. It backs the browser-like encoding strategy on hosts
// that are not themselves a browser.
//
// Rod downloads Chromium on first use when none is installed. Set
// ROD_BROWSER_BIN to use a pre-installed browser (containers, CI).
package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-mdarchive/internal/datauri"
	"github.com/alnah/go-mdarchive/internal/process"
)

// Sentinel errors for browser operations.
var (
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrRead           = errors.New("browser FileReader failed")
	ErrClosed         = errors.New("browser session closed")
)

// DefaultTimeout bounds one read when the caller's context has no deadline.
const DefaultTimeout = 30 * time.Second

// readScript reads a base64 payload back as a data URL through the page's
// FileReader. Listeners are removed on both outcomes.
const readScript = `(b64, type) => new Promise((resolve, reject) => {
	const bin = atob(b64);
	const bytes = new Uint8Array(bin.length);
	for (let i = 0; i < bin.length; i++) bytes[i] = bin.charCodeAt(i);
	const reader = new FileReader();
	const detach = () => {
		reader.removeEventListener("load", onLoad);
		reader.removeEventListener("error", onError);
	};
	const onLoad = () => {
		detach();
		resolve(typeof reader.result === "string" ? reader.result : "");
	};
	const onError = () => {
		detach();
		reject(new Error(reader.error ? reader.error.message : "read failed"));
	};
	reader.addEventListener("load", onLoad);
	reader.addEventListener("error", onError);
	reader.readAsDataURL(new Blob([bytes], type ? { type } : {}));
})`

// evaluator runs readScript; the rod page in production, a fake in tests.
type evaluator interface {
	readAsDataURL(ctx context.Context, b64, contentType string) (string, error)
}

// Session owns one lazily launched browser and a blank page shared by all reads.
// Safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	closed   bool
	bin      string
	timeout  time.Duration

	// eval overrides the rod page; set by tests.
	eval evaluator
}

// Option configures a Session.
type Option func(*Session)

// WithBrowserBin uses the browser binary at path instead of ROD_BROWSER_BIN
// or a downloaded Chromium.
func WithBrowserBin(path string) Option {
	return func(s *Session) {
		s.bin = path
	}
}

// WithTimeout sets the per-read timeout used when the context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewSession returns a Session. The browser starts on the first read.
func NewSession(opts ...Option) *Session {
	s := &Session{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewReader returns a FileReader bound to the session. Its signature matches
// datauri.ReaderFactory.
func (s *Session) NewReader() datauri.FileReader {
	return &Reader{session: s}
}

// ensurePage lazily connects to the browser and opens the shared page.
func (s *Session) ensurePage() (evaluator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.eval != nil {
		return s.eval, nil
	}

	l := launcher.New()

	bin := s.bin
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || bin != "" {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		killLauncher(l)
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		killLauncher(l)
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}

	s.launcher = l
	s.browser = b
	s.page = page
	s.eval = rodEvaluator{page: page}
	return s.eval, nil
}

// Close releases browser resources. Reads after Close fail with ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.eval = nil
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	killLauncher(s.launcher)
	s.launcher = nil
	s.browser = nil
	s.page = nil
	return err
}

// killLauncher reaps the Chrome process tree left behind by a launch.
func killLauncher(l *launcher.Launcher) {
	if l == nil {
		return
	}
	if pid := l.PID(); pid > 0 {
		process.KillProcessGroup(pid)
	}
	l.Kill()
}

// rodEvaluator runs readScript on a rod page.
type rodEvaluator struct {
	page *rod.Page
}

func (e rodEvaluator) readAsDataURL(ctx context.Context, b64, contentType string) (string, error) {
	res, err := e.page.Context(ctx).Eval(readScript, b64, contentType)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// Reader is a datauri.FileReader backed by the session's page.
// Each Reader serves a single read.
type Reader struct {
	session   *Session
	listeners datauri.Listeners

	mu      sync.Mutex
	cancel  context.CancelFunc
	aborted bool
}

var _ datauri.FileReader = (*Reader)(nil)

// AddListener implements datauri.FileReader.
func (r *Reader) AddListener(l datauri.Listener) func() {
	return r.listeners.Add(l)
}

// Listeners returns the number of registered listeners.
func (r *Reader) Listeners() int {
	return r.listeners.Len()
}

// ReadAsDataURL implements datauri.FileReader.
func (r *Reader) ReadAsDataURL(ctx context.Context, data []byte, contentType string) {
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); ok {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, r.session.timeout)
	}
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	go func() {
		defer cancel()

		eval, err := r.session.ensurePage()
		if err != nil {
			r.listeners.Dispatch(datauri.ReadEvent{Err: err})
			return
		}

		result, err := eval.readAsDataURL(ctx, base64.StdEncoding.EncodeToString(data), contentType)
		if r.isAborted() {
			return
		}
		if err != nil {
			r.listeners.Dispatch(datauri.ReadEvent{Err: fmt.Errorf("%w: %v", ErrRead, err)})
			return
		}
		r.listeners.Dispatch(datauri.ReadEvent{Result: result})
	}()
}

// Abort implements datauri.FileReader.
func (r *Reader) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborted = true
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Reader) isAborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}
