package sequence

import (
	"context"
	"sync"
)

type counterKey struct {
	family string
	scope  string
}

// Allocator is an in-memory implementation of sequence.Allocator.
// It is safe for concurrent use.
type Allocator struct {
	mu     sync.Mutex
	values map[counterKey]int64
}

func NewAllocator() *Allocator {
	return &Allocator{values: make(map[counterKey]int64)}
}

func (a *Allocator) Next(ctx context.Context, family string, scope string) (int64, error) {
	_ = ctx
	a.mu.Lock()
	defer a.mu.Unlock()
	k := counterKey{family: family, scope: scope}
	a.values[k]++
	return a.values[k], nil
}

// Snapshot captures the counters and returns a function restoring them.
func (a *Allocator) Snapshot() (restore func()) {
	a.mu.Lock()
	saved := make(map[counterKey]int64, len(a.values))
	for k, v := range a.values {
		saved[k] = v
	}
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		a.values = saved
		a.mu.Unlock()
	}
}
