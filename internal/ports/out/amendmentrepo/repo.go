package amendmentrepo

import (
	"context"
	"errors"

	"github.com/civic-assoc/membership-api/internal/domain"
)

var (
	// ErrNotFound indicates the requested amendment does not exist.
	ErrNotFound = errors.New("amendment not found")

	// ErrAlreadyExists indicates an amendment already exists with the provided ID.
	ErrAlreadyExists = errors.New("amendment already exists")

	// ErrReferenceTaken indicates the amendment reference collided with an existing row.
	ErrReferenceTaken = errors.New("amendment reference already taken")

	// ErrPendingExists indicates the member already has a PENDING amendment.
	ErrPendingExists = errors.New("member already has a pending amendment")
)

// Repository stores amendment requests.
//
// Ordering:
//   - ListPending returns oldest submission first.
//   - ListByMember returns newest submission first.
type Repository interface {
	Create(ctx context.Context, a domain.Amendment) error
	Save(ctx context.Context, a domain.Amendment) error

	GetByID(ctx context.Context, id domain.AmendmentID) (domain.Amendment, error)
	GetByIDForUpdate(ctx context.Context, id domain.AmendmentID) (domain.Amendment, error)
	GetPendingByMember(ctx context.Context, memberID domain.MemberID) (domain.Amendment, error)

	ListPending(ctx context.Context) ([]domain.Amendment, error)
	ListByMember(ctx context.Context, memberID domain.MemberID, limit int) ([]domain.Amendment, error)
}
