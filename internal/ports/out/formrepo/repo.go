package formrepo

import (
	"context"
	"errors"

	"github.com/civic-assoc/membership-api/internal/domain"
)

var (
	// ErrNotFound indicates no matching form version exists.
	ErrNotFound = errors.New("membership form not found")

	// ErrVersionExists indicates the (member, version) pair is already taken.
	ErrVersionExists = errors.New("membership form version already exists")

	// ErrActiveExists indicates the member already has an active form version.
	ErrActiveExists = errors.New("membership form already has an active version")
)

// Repository stores versioned membership forms. At most one version per member is active.
type Repository interface {
	Create(ctx context.Context, f domain.MembershipForm) error
	Update(ctx context.Context, f domain.MembershipForm) error

	GetActive(ctx context.Context, memberID domain.MemberID) (domain.MembershipForm, error)
	LatestVersion(ctx context.Context, memberID domain.MemberID) (int, error)
	// DeactivateAll clears the active flag on every version and returns how many changed.
	DeactivateAll(ctx context.Context, memberID domain.MemberID) (int, error)

	// ListByMember returns all versions, newest version first.
	ListByMember(ctx context.Context, memberID domain.MemberID) ([]domain.MembershipForm, error)
}
