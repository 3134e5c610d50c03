package auditlog

import (
	"testing"

	"github.com/civic-assoc/membership-api/internal/adapters/contracttest"
	auditlogport "github.com/civic-assoc/membership-api/internal/ports/out/auditlog"
)

func TestContract_AuditLog(t *testing.T) {
	contracttest.RunAuditLog(t, func(t *testing.T) (auditlogport.Log, func()) {
		t.Helper()
		return NewLog(), nil
	})
}
