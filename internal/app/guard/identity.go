package guard

import (
	"context"
	"errors"

	"github.com/civic-assoc/membership-api/internal/app/apperr"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/ports/out/memberrepo"
)

// EnsureIdentityUnique fails with DUPLICATE_IDENTITY when the national ID or email
// already belongs to a member other than exclude.
func EnsureIdentityUnique(ctx context.Context, repo memberrepo.Repository, nationalID, email string, exclude domain.MemberID) error {
	field, err := repo.FindIdentityConflict(ctx, nationalID, domain.NormalizeEmail(email), exclude)
	if err != nil {
		return err
	}
	if field == memberrepo.IdentityNone {
		return nil
	}
	return duplicateIdentity(field)
}

// MapIdentityViolation translates repository uniqueness errors raised by a concurrent
// writer into the same business error EnsureIdentityUnique returns.
func MapIdentityViolation(err error) error {
	switch {
	case errors.Is(err, memberrepo.ErrDuplicateNationalID):
		return duplicateIdentity(memberrepo.IdentityNationalID)
	case errors.Is(err, memberrepo.ErrDuplicateEmail):
		return duplicateIdentity(memberrepo.IdentityEmail)
	default:
		return err
	}
}

func duplicateIdentity(field memberrepo.IdentityField) error {
	e := apperr.Conflict(apperr.CodeDuplicateIdentity, "identity already registered to another member")
	e.Details = map[string]any{string(field): "already registered"}
	return e.WithHints("check the " + string(field) + " value or contact the secretariat")
}
