package sequence

import (
	"testing"

	"github.com/civic-assoc/membership-api/internal/adapters/contracttest"
	"github.com/civic-assoc/membership-api/internal/adapters/postgres/testutil"
	sequenceport "github.com/civic-assoc/membership-api/internal/ports/out/sequence"
)

func TestContract_PostgresSequenceAllocator(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunSequenceAllocator(t, func(t *testing.T) (sequenceport.Allocator, func()) {
		t.Helper()
		return NewAllocator(pool), nil
	})
}
