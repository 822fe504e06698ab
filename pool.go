package mdarchive

import (
	"errors"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one worker is available.
	MinPoolSize = 1

	// MaxPoolSize caps concurrent documents; each may hold a browser
	// when WithChrome is used.
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for the image goroutines of each document.
	cpuDivisor = 2
)

// ArchiverPool manages Archiver instances for parallel batch archiving.
// Archivers are created lazily on first acquire with the pool's options, so
// with WithChrome each worker owns its own browser.
type ArchiverPool struct {
	size      int
	opts      []Option
	archivers []*Archiver
	sem       chan *Archiver
	mu        sync.Mutex
	created   int
	closed    bool
}

// NewArchiverPool creates a pool with capacity for n archivers built from opts.
// Options are validated once here so Acquire only fails on resource errors.
func NewArchiverPool(n int, opts ...Option) (*ArchiverPool, error) {
	if n < 1 {
		n = 1
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &ArchiverPool{
		size:      n,
		opts:      opts,
		archivers: make([]*Archiver, 0, n),
		sem:       make(chan *Archiver, n),
	}, nil
}

// Acquire gets an archiver from the pool, creating one if needed.
// Blocks if all archivers are in use.
func (p *ArchiverPool) Acquire() (*Archiver, error) {
	// Try to get an existing archiver (non-blocking)
	select {
	case a, ok := <-p.sem:
		if !ok {
			return nil, ErrClosed
		}
		return a, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		// Create outside the lock
		a, err := NewArchiver(p.opts...)

		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			p.created--
			return nil, err
		}
		p.archivers = append(p.archivers, a)
		return a, nil
	}
	p.mu.Unlock()

	// All archivers created, wait for one to be released
	a, ok := <-p.sem
	if !ok {
		return nil, ErrClosed
	}
	return a, nil
}

// Release returns an archiver to the pool.
// The lock is held while sending; the channel has room for every archiver.
func (p *ArchiverPool) Release(a *Archiver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || a == nil {
		return
	}
	p.sem <- a
}

// Close releases every archiver.
// Returns an aggregated error if multiple archivers fail to close.
func (p *ArchiverPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sem)
	archivers := p.archivers
	p.mu.Unlock()

	var errs []error
	for _, a := range archivers {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *ArchiverPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
// Exported for use by servers and CLIs.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// Auto-calculate based on GOMAXPROCS (adjusted by automaxprocs for containers)
	n := runtime.GOMAXPROCS(0) / cpuDivisor
	return min(max(n, MinPoolSize), MaxPoolSize)
}
