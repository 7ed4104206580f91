package analysis

import (
	"context"

	"github.com/google/uuid"
)

// IndexFuture is the pending outcome of an asynchronous indexing operation.
type IndexFuture struct {
	id    uuid.UUID
	done  chan struct{}
	count int
	err   error
}

func newIndexFuture() *IndexFuture {
	return &IndexFuture{id: uuid.New(), done: make(chan struct{})}
}

// NewCompletedIndexFuture returns a future that is already resolved.
func NewCompletedIndexFuture(count int, err error) *IndexFuture {
	f := newIndexFuture()
	f.complete(count, err)
	return f
}

func (f *IndexFuture) complete(count int, err error) {
	f.count, f.err = count, err
	close(f.done)
}

// ID identifies the operation in logs and traces.
func (f *IndexFuture) ID() uuid.UUID { return f.id }

// Done is closed once the operation finished.
func (f *IndexFuture) Done() <-chan struct{} { return f.done }

// Wait blocks until the operation finished or ctx is done and returns the number of
// indexed entries. A failed operation returns an *analysis.IndexingError.
func (f *IndexFuture) Wait(ctx context.Context) (int, error) {
	select {
	case <-f.done:
		return f.count, f.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
