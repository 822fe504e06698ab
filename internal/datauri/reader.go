package datauri

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
)

// readChunk bounds how much is encoded between cancellation checks.
const readChunk = 64 << 10

// defaultBlobType is what platform readers report for an untyped blob.
const defaultBlobType = "application/octet-stream"

// ReadEvent is the single completion event of a FileReader read.
// Exactly one of Result and Err is meaningful; an empty Result is a failure.
type ReadEvent struct {
	Result string
	Err    error
}

// Listener receives read events.
type Listener func(ReadEvent)

// FileReader is a platform binary-to-data-URI reader. Reads are asynchronous:
// ReadAsDataURL returns immediately and the outcome is delivered to listeners.
type FileReader interface {
	// AddListener registers l and returns the function that removes it.
	AddListener(l Listener) (remove func())
	// ReadAsDataURL starts reading data as a data URI of the given type.
	ReadAsDataURL(ctx context.Context, data []byte, contentType string)
	// Abort stops an in-flight read. Listeners receive no further events.
	Abort()
}

// ReaderFactory creates one FileReader per read.
type ReaderFactory func() FileReader

// Listeners is a concurrency-safe listener registry shared by FileReader implementations.
type Listeners struct {
	mu      sync.Mutex
	next    int
	entries map[int]Listener
}

// Add registers l. The returned function is idempotent.
func (s *Listeners) Add(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries == nil {
		s.entries = make(map[int]Listener)
	}
	id := s.next
	s.next++
	s.entries[id] = l

	return func() {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
	}
}

// Dispatch delivers ev to every registered listener.
func (s *Listeners) Dispatch(ev ReadEvent) {
	s.mu.Lock()
	snapshot := make([]Listener, 0, len(s.entries))
	for _, l := range s.entries {
		snapshot = append(snapshot, l)
	}
	s.mu.Unlock()

	for _, l := range snapshot {
		l(ev)
	}
}

// Len returns the number of registered listeners.
func (s *Listeners) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StreamReader is the portable in-process FileReader. It encodes on its own
// goroutine and reports completion through its listeners.
type StreamReader struct {
	listeners Listeners

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewStreamReader returns a ready StreamReader.
func NewStreamReader() *StreamReader {
	return &StreamReader{}
}

// AddListener implements FileReader.
func (r *StreamReader) AddListener(l Listener) func() {
	return r.listeners.Add(l)
}

// Listeners returns the number of registered listeners.
func (r *StreamReader) Listeners() int {
	return r.listeners.Len()
}

// ReadAsDataURL implements FileReader.
func (r *StreamReader) ReadAsDataURL(ctx context.Context, data []byte, contentType string) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	if contentType == "" {
		contentType = defaultBlobType
	}

	go func() {
		defer cancel()

		var b strings.Builder
		b.Grow(len(Prefix) + len(contentType) + len(";base64,") + base64.StdEncoding.EncodedLen(len(data)))
		b.WriteString(Prefix)
		b.WriteString(contentType)
		b.WriteString(";base64,")

		enc := base64.NewEncoder(base64.StdEncoding, &b)
		for off := 0; off < len(data); off += readChunk {
			if ctx.Err() != nil {
				return
			}
			end := min(off+readChunk, len(data))
			if _, err := enc.Write(data[off:end]); err != nil {
				r.listeners.Dispatch(ReadEvent{Err: err})
				return
			}
		}
		if err := enc.Close(); err != nil {
			r.listeners.Dispatch(ReadEvent{Err: err})
			return
		}
		if ctx.Err() != nil {
			return
		}
		r.listeners.Dispatch(ReadEvent{Result: b.String()})
	}()
}

// Abort implements FileReader.
func (r *StreamReader) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}
