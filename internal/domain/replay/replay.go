// Package replay detects byte-identical resubmissions so they can be
// acknowledged without re-running resolution. It is purely an optimization of
// the idempotent-resubmission guarantee: a hit returns the same answer full
// processing would produce, and a miss always goes through the store.
package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/okian/tally/internal/domain/model"
)

// Cache remembers the digest of the last accepted payload per key.
type Cache interface {
	// Unchanged atomically compares digest against the last recorded value
	// for key. It returns true when they match; otherwise it records the
	// new digest and returns false.
	Unchanged(ctx context.Context, key, digest string) bool

	// Forget drops the recorded digest for key. Used when a submission was
	// recorded but failed downstream and must be retryable.
	Forget(ctx context.Context, key string)

	Size() int64
}

// Key identifies the cache slot for a (unit, judge) pair.
func Key(unitID, judgeID string) string {
	return unitID + "|" + judgeID
}

// Digest produces a stable digest of a validated submission payload. Entry
// order does not matter; the caller is expected to pass the folded set.
func Digest(entries []model.ScoreEntry, teamRanks map[string]int) string {
	lines := make([]string, 0, len(entries)+len(teamRanks))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("e:%s:%s:%s", e.ParticipantID, e.Category,
			strconv.FormatFloat(e.Value, 'g', -1, 64)))
	}
	for team, r := range teamRanks {
		lines = append(lines, fmt.Sprintf("r:%s:%d", team, r))
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

// inMemoryCache implements Cache with a bounded map and FIFO eviction.
type inMemoryCache struct {
	mu      sync.Mutex
	digests map[string]string
	order   []string // insertion order for eviction
	maxSize int
	size    atomic.Int64
}

// NewInMemoryCache creates a bounded in-memory cache with options.
func NewInMemoryCache(opts ...Option) Cache {
	c := &inMemoryCache{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(c)
	}
	c.digests = make(map[string]string)
	return c
}

func (c *inMemoryCache) Unchanged(_ context.Context, key, digest string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.digests[key]; ok {
		if prev == digest {
			return true
		}
		c.digests[key] = digest
		return false
	}

	if c.maxSize > 0 && len(c.digests) >= c.maxSize {
		c.evictOldest()
	}
	c.digests[key] = digest
	c.order = append(c.order, key)
	c.size.Store(int64(len(c.digests)))
	return false
}

func (c *inMemoryCache) Forget(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.digests, key)
	c.size.Store(int64(len(c.digests)))
}

func (c *inMemoryCache) Size() int64 {
	return c.size.Load()
}

// evictOldest drops insertion-order entries until there is room. Stale order
// slots whose key was already forgotten are skipped.
func (c *inMemoryCache) evictOldest() {
	for len(c.order) > 0 && len(c.digests) >= c.maxSize {
		key := c.order[0]
		c.order = c.order[1:]
		delete(c.digests, key)
	}
}
