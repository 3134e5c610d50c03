package members

import (
	"context"
	"errors"

	"github.com/civic-assoc/membership-api/internal/app/apperr"
	"github.com/civic-assoc/membership-api/internal/app/guard"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/ports/out/formrepo"
	"github.com/civic-assoc/membership-api/internal/ports/out/uow"
)

// SubmitForm records the caller's own membership form and puts the member in review.
// A REJECTED member resubmits through here; an APPROVED member must use amendments.
func (s *Service) SubmitForm(ctx context.Context, actor domain.Actor, in FormInput) (out domain.Member, err error) {
	defer func() { s.finish("submit_form", actor, actor.MemberID, err) }()
	if actor.MemberID == "" {
		return domain.Member{}, apperr.Forbidden("member identity required")
	}
	return s.submitForm(ctx, actor, actor.MemberID, in, false)
}

// SubmitFormOnBehalf lets an operator submit or replace a member's form regardless of
// status. An APPROVED member is re-opened: a new form version is created and the
// form code and card date are cleared.
func (s *Service) SubmitFormOnBehalf(ctx context.Context, actor domain.Actor, memberID domain.MemberID, in FormInput) (out domain.Member, err error) {
	defer func() { s.finish("submit_form_on_behalf", actor, memberID, err) }()
	if err := requireOperator(actor); err != nil {
		return domain.Member{}, err
	}
	return s.submitForm(ctx, actor, memberID, in, true)
}

func (s *Service) submitForm(ctx context.Context, actor domain.Actor, memberID domain.MemberID, in FormInput, onBehalf bool) (domain.Member, error) {
	in = normalizeForm(in)
	if err := validateForm(in); err != nil {
		return domain.Member{}, err
	}

	var out domain.Member
	err := s.uow.Run(ctx, func(ctx context.Context, tx uow.Stores) error {
		m, err := lockMember(ctx, tx, memberID)
		if err != nil {
			return err
		}
		previous := m.Status

		if !onBehalf {
			switch {
			case m.Status == domain.MemberStatusApproved:
				return apperr.Precondition(apperr.CodeAlreadyApproved, "member is already approved").
					WithHints("submit an amendment to change profile data")
			case m.Status == domain.MemberStatusPending && m.HasSubmittedForm:
				return apperr.Conflict(apperr.CodeAlreadyPendingReview, "a submitted form is already awaiting review")
			}
		}
		if err := guard.EnsureIdentityUnique(ctx, tx.Members, in.NationalID, in.Profile.Email, m.ID); err != nil {
			return err
		}

		snap := snapshotOf(in)
		var submittedBy *domain.MemberID
		if onBehalf {
			submittedBy = ptr(actor.MemberID)
		}

		active, err := tx.Forms.GetActive(ctx, m.ID)
		hasActive := err == nil
		if err != nil && !errors.Is(err, formrepo.ErrNotFound) {
			return err
		}

		var version, revision int
		if hasActive && previous != domain.MemberStatusApproved {
			active.Snapshot = snap
			active.Revision++
			active.SubmittedBy = submittedBy
			active.UpdatedAt = s.now()
			if err := tx.Forms.Update(ctx, active); err != nil {
				return err
			}
			version, revision = active.Version, active.Revision
		} else {
			if _, err := tx.Forms.DeactivateAll(ctx, m.ID); err != nil {
				return err
			}
			latest, err := tx.Forms.LatestVersion(ctx, m.ID)
			if err != nil {
				return err
			}
			form := s.newForm(m.ID, latest+1, snap, submittedBy)
			if err := tx.Forms.Create(ctx, form); err != nil {
				return err
			}
			version, revision = form.Version, form.Revision
		}

		m.NationalID = in.NationalID
		m.Profile = in.Profile.Clone()
		m.HasSubmittedForm = true
		m.Status = domain.MemberStatusPending
		m.RejectionReason = nil
		m.FormCode = nil
		m.CardIssuedAt = nil
		m.UpdatedAt = s.now()
		if err := tx.Members.Update(ctx, m); err != nil {
			return guard.MapIdentityViolation(err)
		}
		out = m.Member
		return s.audit(ctx, tx, actor, m.ID, domain.AuditFormSubmitted, map[string]any{
			"formVersion":    version,
			"formRevision":   revision,
			"previousStatus": string(previous),
			"onBehalf":       onBehalf,
		})
	})
	if err != nil {
		return domain.Member{}, err
	}
	return out, nil
}
