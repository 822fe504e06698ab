package main

import (
	"context"

	mdarchive "github.com/alnah/go-mdarchive"
)

// CLIArchiver is the slice of the archiver the batch runner needs.
type CLIArchiver interface {
	ArchiveDocument(ctx context.Context, input mdarchive.Input) (*mdarchive.Result, error)
}

// Compile-time interface implementation check.
var _ CLIArchiver = (*mdarchive.Archiver)(nil)

// Pool abstracts archiver pool operations for testability.
type Pool interface {
	Acquire() (CLIArchiver, error)
	Release(CLIArchiver)
	Size() int
	Close() error
}

// archiverPool adapts mdarchive.ArchiverPool to Pool.
type archiverPool struct {
	*mdarchive.ArchiverPool
}

var _ Pool = archiverPool{}

// newArchiverPool creates a pool of workers archivers sharing opts.
func newArchiverPool(workers int, opts []mdarchive.Option) (archiverPool, error) {
	p, err := mdarchive.NewArchiverPool(mdarchive.ResolvePoolSize(workers), opts...)
	if err != nil {
		return archiverPool{}, err
	}
	return archiverPool{ArchiverPool: p}, nil
}

// Acquire implements Pool.
func (p archiverPool) Acquire() (CLIArchiver, error) {
	a, err := p.ArchiverPool.Acquire()
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Release implements Pool.
func (p archiverPool) Release(a CLIArchiver) {
	if arc, ok := a.(*mdarchive.Archiver); ok {
		p.ArchiverPool.Release(arc)
	}
}
