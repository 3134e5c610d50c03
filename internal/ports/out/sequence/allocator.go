package sequence

import "context"

// Allocator hands out monotonically increasing values per (family, scope) counter.
// Next is atomic: concurrent callers never receive the same value.
type Allocator interface {
	Next(ctx context.Context, family string, scope string) (int64, error)
}
