package sequence

import (
	"context"

	postgres "github.com/civic-assoc/membership-api/internal/adapters/postgres"
)

// Allocator increments a row in the sequences table. Inside a transaction the row
// stays locked until commit, so a rolled back unit of work never leaves a gap.
type Allocator struct {
	db postgres.DBTX
}

func NewAllocator(db postgres.DBTX) *Allocator {
	return &Allocator{db: db}
}

func (a *Allocator) Next(ctx context.Context, family string, scope string) (int64, error) {
	var v int64
	err := a.db.QueryRow(ctx, `
		INSERT INTO sequences (family, scope, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (family, scope) DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`, family, scope).Scan(&v)
	return v, err
}
