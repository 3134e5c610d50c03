package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/civic-assoc/membership-api/internal/app/apperr"
	"github.com/civic-assoc/membership-api/internal/app/guard"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/ports/out/memberrepo"
	"github.com/civic-assoc/membership-api/internal/ports/out/uow"
)

// SubmitApplication is the public intake: it creates a PENDING member whose form is
// already submitted, together with form version 1.
func (s *Service) SubmitApplication(ctx context.Context, in FormInput) (out domain.Member, err error) {
	defer func() { s.finish("submit_application", domain.Actor{}, out.ID, err) }()

	in = normalizeForm(in)
	if err := validateForm(in); err != nil {
		return domain.Member{}, err
	}

	err = guard.WithAllocationRetry(ctx, domain.SequenceMemberReference, s.Metrics, func(ctx context.Context) error {
		return s.uow.Run(ctx, func(ctx context.Context, tx uow.Stores) error {
			if err := guard.EnsureIdentityUnique(ctx, tx.Members, in.NationalID, in.Profile.Email, ""); err != nil {
				return err
			}
			m, err := s.newMemberRecord(ctx, tx, in.NationalID, in.Profile, domain.RoleMember)
			if err != nil {
				return err
			}
			m.HasSubmittedForm = true
			if err := createMember(ctx, tx, m); err != nil {
				return err
			}
			form := s.newForm(m.ID, 1, snapshotOf(in), nil)
			if err := tx.Forms.Create(ctx, form); err != nil {
				return err
			}
			out = m.Member
			return s.audit(ctx, tx, domain.Actor{}, m.ID, domain.AuditApplicationSubmitted, map[string]any{
				"reference":   m.Reference,
				"formVersion": form.Version,
			})
		})
	})
	if err != nil {
		return domain.Member{}, err
	}
	return out, nil
}

// ProvisionMember creates a member record without a form. The member submits the
// form after an identifier has been issued.
func (s *Service) ProvisionMember(ctx context.Context, actor domain.Actor, in ProvisionInput) (out domain.Member, err error) {
	defer func() { s.finish("provision_member", actor, out.ID, err) }()

	if err := requireOperator(actor); err != nil {
		return domain.Member{}, err
	}
	role := in.Role.ValueOr(domain.RoleMember)
	if !role.Valid() {
		return domain.Member{}, apperr.Field("role", "must be one of MEMBER, SECRETARY, PRESIDENT, ADMIN")
	}
	nationalID := normalizeForm(FormInput{NationalID: in.NationalID}).NationalID
	profile := normalizeProfile(in.Profile)
	if details := validateIdentity(nationalID, profile); len(details) > 0 {
		return domain.Member{}, apperr.Validation("invalid member", details)
	}

	err = guard.WithAllocationRetry(ctx, domain.SequenceMemberReference, s.Metrics, func(ctx context.Context) error {
		return s.uow.Run(ctx, func(ctx context.Context, tx uow.Stores) error {
			if err := guard.EnsureIdentityUnique(ctx, tx.Members, nationalID, profile.Email, ""); err != nil {
				return err
			}
			m, err := s.newMemberRecord(ctx, tx, nationalID, profile, role)
			if err != nil {
				return err
			}
			if err := createMember(ctx, tx, m); err != nil {
				return err
			}
			out = m.Member
			return s.audit(ctx, tx, actor, m.ID, domain.AuditMemberProvisioned, map[string]any{
				"reference": m.Reference,
				"role":      string(role),
			})
		})
	})
	if err != nil {
		return domain.Member{}, err
	}
	return out, nil
}

// EnsureOperator creates the bootstrap operator bound to b.Subject unless a member
// already holds that subject. It reports whether a member was created.
func (s *Service) EnsureOperator(ctx context.Context, b OperatorBootstrap) (created bool, err error) {
	if b.Subject == "" {
		return false, apperr.Field("subject", "must be non-empty")
	}
	if !b.Role.IsOperator() {
		return false, apperr.Field("role", "must be an operator role")
	}
	if _, err := s.uow.Stores().Members.GetBySubject(ctx, b.Subject); err == nil {
		return false, nil
	} else if !errors.Is(err, memberrepo.ErrNotFound) {
		return false, err
	}

	profile := normalizeProfile(domain.Profile{FirstName: b.FirstName, LastName: b.LastName, Email: b.Email})
	err = guard.WithAllocationRetry(ctx, domain.SequenceMemberReference, s.Metrics, func(ctx context.Context) error {
		return s.uow.Run(ctx, func(ctx context.Context, tx uow.Stores) error {
			m, err := s.newMemberRecord(ctx, tx, "", profile, b.Role)
			if err != nil {
				return err
			}
			subject := b.Subject
			m.Subject = &subject
			m.HasPaid = true
			if err := createMember(ctx, tx, m); err != nil {
				return err
			}
			return s.audit(ctx, tx, domain.Actor{}, m.ID, domain.AuditOperatorBootstrapped, map[string]any{
				"subject": string(b.Subject),
				"role":    string(b.Role),
			})
		})
	})
	if errors.Is(err, memberrepo.ErrSubjectAlreadyBound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.log().Info("bootstrap operator created")
	return true, nil
}

// newMemberRecord allocates a membership reference and returns an unsaved PENDING member.
func (s *Service) newMemberRecord(ctx context.Context, tx uow.Stores, nationalID string, p domain.Profile, role domain.Role) (memberrepo.Member, error) {
	seq, err := tx.Sequences.Next(ctx, domain.SequenceMemberReference, "")
	if err != nil {
		return memberrepo.Member{}, err
	}
	now := s.now()
	return memberrepo.Member{Member: domain.Member{
		ID:         s.newMemberID(),
		NationalID: nationalID,
		Reference:  domain.FormatMembershipReference(seq, s.Jurisdiction, role),
		Role:       role,
		Status:     domain.MemberStatusPending,
		IsActive:   true,
		Profile:    p,
		CreatedAt:  now,
		UpdatedAt:  now,
	}}, nil
}

// createMember inserts m, marking reference collisions as retryable.
func createMember(ctx context.Context, tx uow.Stores, m memberrepo.Member) error {
	err := tx.Members.Create(ctx, m)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, memberrepo.ErrReferenceTaken):
		return fmt.Errorf("membership reference %s: %w", m.Reference, guard.ErrCollision)
	default:
		return guard.MapIdentityViolation(err)
	}
}

func snapshotOf(in FormInput) domain.FormSnapshot {
	snap := domain.FormSnapshot{
		NationalID:  in.NationalID,
		Profile:     in.Profile.Clone(),
		DocumentURL: in.DocumentURL,
	}
	if len(in.Documents) > 0 {
		snap.Documents = append([]domain.DocumentRef(nil), in.Documents...)
	}
	return snap
}

func (s *Service) newForm(memberID domain.MemberID, version int, snap domain.FormSnapshot, submittedBy *domain.MemberID) domain.MembershipForm {
	now := s.now()
	return domain.MembershipForm{
		ID:          s.newFormID(),
		MemberID:    memberID,
		Version:     version,
		Revision:    1,
		Active:      true,
		Snapshot:    snap,
		SubmittedBy: submittedBy,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
}
