package auditlog

import (
	"context"

	"github.com/civic-assoc/membership-api/internal/domain"
)

// Log is an append-only audit trail. Entries are never updated or deleted.
type Log interface {
	Append(ctx context.Context, e domain.AuditEntry) error
	// ListByMember returns entries about a member, newest first.
	ListByMember(ctx context.Context, memberID domain.MemberID, limit int) ([]domain.AuditEntry, error)
}
