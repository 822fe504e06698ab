package mdarchive

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"
)

// Compile-time interface check.
var _ interface {
	Acquire() (*Archiver, error)
	Release(*Archiver)
	Size() int
	Close() error
} = (*ArchiverPool)(nil)

func newTestPool(t *testing.T, n int, opts ...Option) *ArchiverPool {
	t.Helper()
	pool, err := NewArchiverPool(n, opts...)
	if err != nil {
		t.Fatalf("NewArchiverPool() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func TestResolvePoolSize(t *testing.T) {
	t.Parallel()

	gomaxprocs := runtime.GOMAXPROCS(0)

	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{
			name:    "explicit takes priority",
			workers: 4,
			want:    4,
		},
		{
			name:    "explicit=1 for sequential",
			workers: 1,
			want:    1,
		},
		{
			name:    "explicit can exceed max",
			workers: 16,
			want:    16,
		},
		{
			name:    "zero uses auto calculation",
			workers: 0,
			want:    min(max(gomaxprocs/cpuDivisor, MinPoolSize), MaxPoolSize),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ResolvePoolSize(tt.workers); got != tt.want {
				t.Errorf("ResolvePoolSize(%d) = %d, want %d", tt.workers, got, tt.want)
			}
		})
	}
}

func TestArchiverPool_AcquireRelease(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t, 2)

	a1, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire() unexpected error: %v", err)
	}
	a2, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire() unexpected error: %v", err)
	}
	if a1 == a2 {
		t.Error("expected different archiver instances")
	}

	pool.Release(a1)
	a3, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire() unexpected error: %v", err)
	}
	if a3 != a1 {
		t.Error("expected to get back released archiver")
	}

	pool.Release(a2)
	pool.Release(a3)
}

func TestArchiverPool_Size(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		size int
		want int
	}{
		{"size 1", 1, 1},
		{"size 4", 4, 4},
		{"size 0 becomes 1", 0, 1},
		{"negative becomes 1", -1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := newTestPool(t, tt.size).Size(); got != tt.want {
				t.Errorf("Size() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestArchiverPool_InvalidOptions(t *testing.T) {
	t.Parallel()

	if _, err := NewArchiverPool(2, WithConcurrency(-3)); !errors.Is(err, ErrInvalidConcurrency) {
		t.Errorf("NewArchiverPool() error = %v, want ErrInvalidConcurrency", err)
	}
}

func TestArchiverPool_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t, 4)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := pool.Acquire()
			if err != nil {
				t.Errorf("Acquire() unexpected error: %v", err)
				return
			}
			defer pool.Release(a)
			if _, err := a.Archive(context.Background(), "# no images"); err != nil {
				t.Errorf("Archive() unexpected error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		t.Fatal("concurrent access test timed out - possible deadlock")
	}
}

func TestArchiverPool_Close(t *testing.T) {
	t.Parallel()

	pool, err := NewArchiverPool(1)
	if err != nil {
		t.Fatal(err)
	}
	a, err := pool.Acquire()
	if err != nil {
		t.Fatal(err)
	}

	if err := pool.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	// Release after close is a no-op.
	pool.Release(a)

	if _, err := pool.Acquire(); !errors.Is(err, ErrClosed) {
		t.Errorf("Acquire() after Close error = %v, want ErrClosed", err)
	}
	if _, err := a.Archive(context.Background(), "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("archiver from closed pool: error = %v, want ErrClosed", err)
	}
}

func TestArchiverPool_WaitsForRelease(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t, 1)
	a, err := pool.Acquire()
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan *Archiver, 1)
	go func() {
		b, err := pool.Acquire()
		if err != nil {
			t.Errorf("Acquire() unexpected error: %v", err)
		}
		got <- b
	}()

	select {
	case <-got:
		t.Fatal("Acquire() returned before Release")
	case <-time.After(20 * time.Millisecond):
	}

	pool.Release(a)
	select {
	case b := <-got:
		if b != a {
			t.Error("expected the released archiver")
		}
		pool.Release(b)
	case <-time.After(5 * time.Second):
		t.Fatal("Acquire() did not return after Release")
	}
}
