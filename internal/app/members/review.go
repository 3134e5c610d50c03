package members

import (
	"context"
	"errors"
	"strings"

	"github.com/civic-assoc/membership-api/internal/app/apperr"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/ports/out/memberrepo"
	"github.com/civic-assoc/membership-api/internal/ports/out/uow"
)

// Approve admits a member whose form is under review. The form code, card date, status
// and audit entry are written in one unit of work while the member row is locked, so
// two concurrent approvals produce exactly one form code.
func (s *Service) Approve(ctx context.Context, actor domain.Actor, memberID domain.MemberID, comment string) (out domain.Member, err error) {
	defer func() { s.finish("approve", actor, memberID, err) }()

	if err := requireOperator(actor); err != nil {
		return domain.Member{}, err
	}
	comment = strings.TrimSpace(comment)

	err = s.uow.Run(ctx, func(ctx context.Context, tx uow.Stores) error {
		m, err := lockMember(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if !m.HasSubmittedForm {
			return apperr.Precondition(apperr.CodeNotSubmitted, "member has not submitted a membership form")
		}
		if m.Status == domain.MemberStatusApproved {
			return apperr.Conflict(apperr.CodeAlreadyApproved, "member is already approved")
		}
		if !domain.CanTransition(m.Status, domain.MemberStatusApproved) {
			return invalidTransition(m.Status, domain.MemberStatusApproved).
				WithHints("the member must resubmit the form first")
		}

		seq, err := tx.Sequences.Next(ctx, domain.SequenceFormCode, domain.FormCodeScope(m.Role))
		if err != nil {
			return err
		}
		now := s.now()
		segment := s.FormCodeSegment
		if m.Role.IsOperator() {
			// Operators draw from their own counter; the role tag keeps their codes distinct.
			segment += "-" + m.Role.Tag()
		}
		code := domain.FormatFormCode(seq, segment, now.Year())

		m.Status = domain.MemberStatusApproved
		m.FormCode = &code
		m.CardIssuedAt = ptr(now)
		m.RejectionReason = nil
		m.UpdatedAt = now
		if err := tx.Members.Update(ctx, m); err != nil {
			return err
		}

		details := map[string]any{
			"formCode":     code,
			"cardIssuedAt": now,
		}
		if comment != "" {
			details["comment"] = comment
		}
		signatory, err := tx.Members.GetByID(ctx, actor.MemberID)
		switch {
		case err == nil:
			details["signatory"] = map[string]any{
				"memberId":     string(signatory.ID),
				"name":         signatory.Profile.FullName(),
				"role":         string(signatory.Role),
				"signatureRef": signatory.Profile.SignatureRef,
			}
		case !errors.Is(err, memberrepo.ErrNotFound):
			return err
		}

		out = m.Member
		return s.audit(ctx, tx, actor, m.ID, domain.AuditMemberApproved, details)
	})
	if err != nil {
		return domain.Member{}, err
	}
	return out, nil
}

// Reject declines a member whose form is under review. reason is mandatory.
func (s *Service) Reject(ctx context.Context, actor domain.Actor, memberID domain.MemberID, reason string) (out domain.Member, err error) {
	defer func() { s.finish("reject", actor, memberID, err) }()

	if err := requireOperator(actor); err != nil {
		return domain.Member{}, err
	}
	if err := validateReason("reason", reason); err != nil {
		return domain.Member{}, err
	}
	reason = strings.TrimSpace(reason)

	err = s.uow.Run(ctx, func(ctx context.Context, tx uow.Stores) error {
		m, err := lockMember(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if !m.HasSubmittedForm {
			return apperr.Precondition(apperr.CodeNotSubmitted, "member has not submitted a membership form")
		}
		if m.Status == domain.MemberStatusApproved {
			return apperr.Conflict(apperr.CodeAlreadyApproved, "member is already approved").
				WithHints("use reset to re-open an approved member")
		}
		if !domain.CanTransition(m.Status, domain.MemberStatusRejected) {
			return invalidTransition(m.Status, domain.MemberStatusRejected)
		}

		m.Status = domain.MemberStatusRejected
		m.RejectionReason = &reason
		m.UpdatedAt = s.now()
		if err := tx.Members.Update(ctx, m); err != nil {
			return err
		}
		out = m.Member
		return s.audit(ctx, tx, actor, m.ID, domain.AuditMemberRejected, map[string]any{
			"reason": reason,
		})
	})
	if err != nil {
		return domain.Member{}, err
	}
	return out, nil
}

// ResetSubmission is the operator override returning any member to PENDING without a
// submitted form. Every form version is deactivated so the next submission starts a
// new version.
func (s *Service) ResetSubmission(ctx context.Context, actor domain.Actor, memberID domain.MemberID, reason string) (out domain.Member, err error) {
	defer func() { s.finish("reset_submission", actor, memberID, err) }()

	if err := requireOperator(actor); err != nil {
		return domain.Member{}, err
	}
	if err := validateReason("reason", reason); err != nil {
		return domain.Member{}, err
	}
	reason = strings.TrimSpace(reason)

	err = s.uow.Run(ctx, func(ctx context.Context, tx uow.Stores) error {
		m, err := lockMember(ctx, tx, memberID)
		if err != nil {
			return err
		}
		previous := m.Status
		deactivated, err := tx.Forms.DeactivateAll(ctx, m.ID)
		if err != nil {
			return err
		}

		m.Status = domain.MemberStatusPending
		m.HasSubmittedForm = false
		m.FormCode = nil
		m.CardIssuedAt = nil
		m.RejectionReason = nil
		m.UpdatedAt = s.now()
		if err := tx.Members.Update(ctx, m); err != nil {
			return err
		}
		out = m.Member
		return s.audit(ctx, tx, actor, m.ID, domain.AuditSubmissionReset, map[string]any{
			"reason":              reason,
			"previousStatus":      string(previous),
			"deactivatedVersions": deactivated,
		})
	})
	if err != nil {
		return domain.Member{}, err
	}
	return out, nil
}

// SetActive deactivates or reactivates a member account. Status is unchanged.
func (s *Service) SetActive(ctx context.Context, actor domain.Actor, memberID domain.MemberID, active bool) (out domain.Member, err error) {
	op := "deactivate"
	action := domain.AuditMemberDeactivated
	if active {
		op = "reactivate"
		action = domain.AuditMemberReactivated
	}
	defer func() { s.finish(op, actor, memberID, err) }()

	if err := requireOperator(actor); err != nil {
		return domain.Member{}, err
	}
	if !active && actor.MemberID == memberID {
		return domain.Member{}, apperr.Precondition(apperr.CodeInvalidStatusTransition, "operators cannot deactivate their own account")
	}

	err = s.uow.Run(ctx, func(ctx context.Context, tx uow.Stores) error {
		m, err := lockMember(ctx, tx, memberID)
		if err != nil {
			return err
		}
		out = m.Member
		if m.IsActive == active {
			return nil
		}
		m.IsActive = active
		m.UpdatedAt = s.now()
		if err := tx.Members.Update(ctx, m); err != nil {
			return err
		}
		out = m.Member
		return s.audit(ctx, tx, actor, m.ID, action, nil)
	})
	if err != nil {
		return domain.Member{}, err
	}
	return out, nil
}

func invalidTransition(from, to domain.MemberStatus) *apperr.Error {
	e := apperr.Precondition(apperr.CodeInvalidStatusTransition, "status transition not allowed")
	e.Details = map[string]any{"from": string(from), "to": string(to)}
	return e
}
