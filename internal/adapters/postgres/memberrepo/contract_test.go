package memberrepo

import (
	"testing"

	"github.com/civic-assoc/membership-api/internal/adapters/contracttest"
	"github.com/civic-assoc/membership-api/internal/adapters/postgres/testutil"
	memberrepoport "github.com/civic-assoc/membership-api/internal/ports/out/memberrepo"
)

func TestContract_PostgresMemberRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunMemberRepo(t, func(t *testing.T) (memberrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(pool), nil
	})
}
