package formrepo

import (
	"testing"

	"github.com/civic-assoc/membership-api/internal/adapters/contracttest"
	"github.com/civic-assoc/membership-api/internal/adapters/postgres/testutil"
	formrepoport "github.com/civic-assoc/membership-api/internal/ports/out/formrepo"
)

func TestContract_PostgresFormRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	testutil.SeedMembers(t, pool, contracttest.SeedMemberA, contracttest.SeedMemberB)

	contracttest.RunFormRepo(t, func(t *testing.T) (formrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(pool), nil
	})
}
