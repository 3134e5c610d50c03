package auditlog

import (
	"testing"

	"github.com/civic-assoc/membership-api/internal/adapters/contracttest"
	"github.com/civic-assoc/membership-api/internal/adapters/postgres/testutil"
	auditlogport "github.com/civic-assoc/membership-api/internal/ports/out/auditlog"
)

func TestContract_PostgresAuditLog(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunAuditLog(t, func(t *testing.T) (auditlogport.Log, func()) {
		t.Helper()
		return NewLog(pool), nil
	})
}
