package memberrepo

import (
	"context"

	"github.com/civic-assoc/membership-api/internal/domain"
)

// Member is the persistence shape used by the member repository.
// It carries the credential hash, which never leaves the application layer.
type Member struct {
	domain.Member

	PasswordHash []byte
}

// IdentityField names which unique identity field collided.
type IdentityField string

const (
	IdentityNone       IdentityField = ""
	IdentityNationalID IdentityField = "nationalId"
	IdentityEmail      IdentityField = "email"
)

// ListFilter narrows List results. Zero value lists every active member.
type ListFilter struct {
	Status           *domain.MemberStatus
	IncludeInactive  bool
	ExcludeOperators bool
}

// Repository provides access to persisted members.
//
// Result ordering expectations:
//   - List/Search methods return results ordered by last name, first name, then ID.
type Repository interface {
	Create(ctx context.Context, m Member) error
	Update(ctx context.Context, m Member) error

	GetByID(ctx context.Context, id domain.MemberID) (Member, error)
	// GetByIDForUpdate reads the member and, inside a unit of work, holds a row lock
	// until the unit commits.
	GetByIDForUpdate(ctx context.Context, id domain.MemberID) (Member, error)
	GetBySubject(ctx context.Context, subject domain.SubjectID) (Member, error)
	GetByPhoneAndReference(ctx context.Context, phone string, reference string) (Member, error)

	SubjectExists(ctx context.Context, subject domain.SubjectID) (bool, error)

	// FindIdentityConflict reports which identity field (national ID, then email) is
	// already held by a member other than exclude. Empty values are not checked.
	FindIdentityConflict(ctx context.Context, nationalID string, email string, exclude domain.MemberID) (IdentityField, error)

	List(ctx context.Context, f ListFilter) ([]Member, error)

	// SearchDirectory searches directory-visible members by a tokenized, case-insensitive
	// match on full name. Query validation is enforced at the application layer.
	SearchDirectory(ctx context.Context, query string, limit int) ([]Member, error)
}
