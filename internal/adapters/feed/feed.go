// Package feed carries unit-change events from committed submissions to
// observers. The feed is strictly observational: resolution happens inside
// the store transaction, so a dropped event can never affect results.
package feed

import (
	"context"
	"sync"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/metrics"
)

// Change is the payload type flowing through the feed.
type Change = model.UnitChange

// Feed provides non-blocking publish and channel-based consumption.
type Feed interface {
	// Publish adds a change to the feed. Returns false if the feed is full
	// or closed; the change is then dropped and counted, not retried.
	Publish(ctx context.Context, c Change) bool

	// Subscribe returns the channel changes are delivered on. The channel
	// is closed when the feed is closed.
	Subscribe(ctx context.Context) <-chan Change

	// Len returns the number of buffered changes.
	Len(ctx context.Context) int

	Close() error
	IsClosed() bool
}

// Default feed capacity.
const defaultCapacity = 4096

// InMemoryFeed implements Feed on a buffered channel.
type InMemoryFeed struct {
	changes  chan Change
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryFeed creates an in-memory feed with configuration options.
func NewInMemoryFeed(opts ...Option) *InMemoryFeed {
	f := &InMemoryFeed{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(f)
	}
	f.changes = make(chan Change, f.capacity)
	metrics.UpdateFeedDepth(0)
	return f
}

// Publish implements Feed.
func (f *InMemoryFeed) Publish(ctx context.Context, c Change) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		metrics.RecordFeedDropped()
		return false
	}
	select {
	case f.changes <- c:
		metrics.RecordFeedPublished()
		metrics.UpdateFeedDepth(len(f.changes))
		return true
	case <-ctx.Done():
		metrics.RecordFeedDropped()
		return false
	default:
		metrics.RecordFeedDropped()
		return false
	}
}

// Subscribe implements Feed.
func (f *InMemoryFeed) Subscribe(_ context.Context) <-chan Change {
	return f.changes
}

// Len implements Feed.
func (f *InMemoryFeed) Len(_ context.Context) int {
	return len(f.changes)
}

// Close implements Feed. After closing, publishes are dropped and the
// subscription channel drains then closes.
func (f *InMemoryFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.changes)
	return nil
}

// IsClosed implements Feed.
func (f *InMemoryFeed) IsClosed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}
