package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/civic-assoc/membership-api/internal/app/apperr"
	"github.com/civic-assoc/membership-api/internal/app/guard"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/ports/out/credentials"
	"github.com/civic-assoc/membership-api/internal/ports/out/memberrepo"
	"github.com/civic-assoc/membership-api/internal/ports/out/uow"
)

// maxLoginCandidates bounds the numeric suffix search for a free login identifier.
const maxLoginCandidates = 1000

// IssueIdentifier generates the member's login identifier and a temporary secret once
// payment is confirmed. The member must change the secret at first use.
func (s *Service) IssueIdentifier(ctx context.Context, actor domain.Actor, memberID domain.MemberID, confirmedPaid bool) (out IssuedIdentifier, err error) {
	defer func() { s.finish("issue_identifier", actor, memberID, err) }()

	if err := requireOperator(actor); err != nil {
		return IssuedIdentifier{}, err
	}
	if !confirmedPaid {
		e := apperr.Precondition(apperr.CodePaymentNotConfirmed, "payment must be confirmed before issuing an identifier")
		e.Status = 422
		return IssuedIdentifier{}, e.WithHints("record the membership payment, then retry with confirmedPaid=true")
	}

	secret, err := s.secrets.NewTemporarySecret()
	if err != nil {
		return IssuedIdentifier{}, err
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return IssuedIdentifier{}, err
	}

	err = guard.WithAllocationRetry(ctx, "login", s.Metrics, func(ctx context.Context) error {
		return s.uow.Run(ctx, func(ctx context.Context, tx uow.Stores) error {
			return s.issueLocked(ctx, tx, actor, memberID, secret, hash, &out)
		})
	})
	if err != nil {
		return IssuedIdentifier{}, err
	}
	return out, nil
}

func (s *Service) issueLocked(ctx context.Context, tx uow.Stores, actor domain.Actor, memberID domain.MemberID, secret string, hash []byte, out *IssuedIdentifier) error {
	m, err := lockMember(ctx, tx, memberID)
	if err != nil {
		return err
	}
	if m.IsProvisioned() {
		return apperr.Conflict(apperr.CodeAlreadyProvisioned, "an identifier was already issued to this member")
	}

	login, err := freeLogin(ctx, tx.Members, domain.DeriveLogin(m.Profile.FirstName, m.Profile.LastName))
	if err != nil {
		return err
	}
	m.Subject = &login
	m.PasswordHash = hash
	m.MustChangePassword = true
	m.HasPaid = true
	m.UpdatedAt = s.now()
	if err := tx.Members.Update(ctx, m); err != nil {
		if errors.Is(err, memberrepo.ErrSubjectAlreadyBound) {
			return fmt.Errorf("login %s: %w", login, guard.ErrCollision)
		}
		return err
	}
	*out = IssuedIdentifier{Member: m.Member, Login: login, TemporarySecret: secret}
	return s.audit(ctx, tx, actor, m.ID, domain.AuditIdentifierIssued, map[string]any{
		"login": string(login),
	})
}

// freeLogin returns base, or base with the smallest numeric suffix (2, 3, ...) not yet taken.
func freeLogin(ctx context.Context, repo memberrepo.Repository, base string) (domain.SubjectID, error) {
	for n := 1; n <= maxLoginCandidates; n++ {
		candidate := domain.SubjectID(domain.LoginCandidate(base, n))
		taken, err := repo.SubjectExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", errors.New("no free login identifier for " + base)
}

// ChangePassword replaces the member's secret after verifying the current one and
// clears mustChangePassword.
func (s *Service) ChangePassword(ctx context.Context, actor domain.Actor, current, next string) (err error) {
	defer func() { s.finish("change_password", actor, actor.MemberID, err) }()

	if len([]rune(next)) < MinPasswordLength {
		return apperr.Field("newPassword", "must be at least 8 characters")
	}
	if next == current {
		return apperr.Field("newPassword", "must differ from the current password")
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}

	return s.uow.Run(ctx, func(ctx context.Context, tx uow.Stores) error {
		m, err := lockMember(ctx, tx, actor.MemberID)
		if err != nil {
			return err
		}
		if len(m.PasswordHash) == 0 {
			return apperr.Precondition(apperr.CodeMemberNotProvisioned, "no identifier has been issued to this member")
		}
		if err := s.hasher.Compare(m.PasswordHash, current); err != nil {
			if errors.Is(err, credentials.ErrMismatch) {
				e := apperr.Validation("current password does not match", map[string]any{"currentPassword": "does not match"})
				e.Code = apperr.CodeInvalidCredentials
				return e
			}
			return err
		}
		m.PasswordHash = hash
		m.MustChangePassword = false
		m.UpdatedAt = s.now()
		if err := tx.Members.Update(ctx, m); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, m.ID, domain.AuditPasswordChanged, nil)
	})
}
