package processor

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// SeenFilter is a probabilistic pre-filter over processed notification IDs.
// A definite negative lets a message skip straight to processing; a
// positive may be false, so callers must still rely on the real
// idempotency guard (the settled-status field) and never drop a message on
// this filter alone.
type SeenFilter struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// NewSeenFilter sizes the filter for the expected number of message IDs
// and target false-positive rate.
func NewSeenFilter(capacity uint, fpRate float64) *SeenFilter {
	return &SeenFilter{filter: bloom.NewWithEstimates(capacity, fpRate)}
}

// CheckAndAdd records the ID and reports whether it was possibly seen
// before.
func (f *SeenFilter) CheckAndAdd(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter.TestAndAddString(id)
}
