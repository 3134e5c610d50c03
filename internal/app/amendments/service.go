package amendments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civic-assoc/membership-api/internal/app/apperr"
	"github.com/civic-assoc/membership-api/internal/app/guard"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/platform/metrics"
	"github.com/civic-assoc/membership-api/internal/platform/requestctx"
	"github.com/civic-assoc/membership-api/internal/ports/out/amendmentrepo"
	clockport "github.com/civic-assoc/membership-api/internal/ports/out/clock"
	"github.com/civic-assoc/membership-api/internal/ports/out/memberrepo"
	"github.com/civic-assoc/membership-api/internal/ports/out/uow"
)

const (
	// MinJustificationLength applies to the member's reason for an amendment.
	MinJustificationLength = 10
	// MinRejectionReasonLength applies to operator rejections.
	MinRejectionReasonLength = 5
	// MemberHistoryLimit bounds ListForMember.
	MemberHistoryLimit = 10
)

// Decision is the operator's verdict on an amendment.
type Decision string

const (
	DecisionApprove Decision = "APPROVED"
	DecisionReject  Decision = "REJECTED"
)

type SubmitInput struct {
	Fields        domain.FieldValues
	Justification string
	Documents     []domain.DocumentRef
}

type DecideInput struct {
	Decision        Decision
	Comment         string
	RejectionReason string
}

// Service runs the post-approval amendment workflow.
type Service struct {
	uow uow.Runner
	clk clockport.Clock

	newAmendmentID func() domain.AmendmentID
	newAuditID     func() domain.AuditEntryID

	Logger  *zap.Logger
	Metrics *metrics.Lifecycle
}

func NewService(runner uow.Runner, clk clockport.Clock) *Service {
	return &Service{
		uow: runner,
		clk: clk,
		newAmendmentID: func() domain.AmendmentID {
			return domain.AmendmentID(uuid.NewString())
		},
		newAuditID: func() domain.AuditEntryID {
			return domain.AuditEntryID(uuid.NewString())
		},
		Logger: zap.NewNop(),
	}
}

// SetNewAmendmentIDForTest overrides amendment ID generation.
func (s *Service) SetNewAmendmentIDForTest(fn func() domain.AmendmentID) {
	s.newAmendmentID = fn
}

// Submit files an amendment for the calling member. The member must be APPROVED, have
// no other PENDING amendment, and request at least one real change.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, in SubmitInput) (out domain.Amendment, err error) {
	defer func() { s.finish("submit_amendment", actor, out.ID, err) }()

	if actor.MemberID == "" {
		return domain.Amendment{}, apperr.Forbidden("member identity required")
	}
	candidate, err := prepareCandidate(in)
	if err != nil {
		return domain.Amendment{}, err
	}

	err = guard.WithAllocationRetry(ctx, domain.SequenceAmendmentReference, s.Metrics, func(ctx context.Context) error {
		return s.uow.Run(ctx, func(ctx context.Context, tx uow.Stores) error {
			m, err := tx.Members.GetByIDForUpdate(ctx, actor.MemberID)
			if err != nil {
				if errors.Is(err, memberrepo.ErrNotFound) {
					return apperr.NotFound(apperr.CodeMemberNotFound, "member not found")
				}
				return err
			}
			if m.Status != domain.MemberStatusApproved {
				return apperr.Precondition(apperr.CodeMemberNotApproved, "only approved members can request amendments").
					WithHints("resubmit the membership form instead")
			}
			if _, err := tx.Amendments.GetPendingByMember(ctx, m.ID); err == nil {
				return pendingExists()
			} else if !errors.Is(err, amendmentrepo.ErrNotFound) {
				return err
			}

			changes := domain.DiffFields(m.Profile.Fields(), candidate)
			if len(changes) == 0 {
				return apperr.Conflict(apperr.CodeNoChangesDetected, "the requested values match the current profile")
			}
			if email, ok := candidate[domain.FieldEmail]; ok && email != "" && email != m.Profile.Email {
				if err := guard.EnsureIdentityUnique(ctx, tx.Members, "", email, m.ID); err != nil {
					return err
				}
			}

			now := s.clk.Now()
			seq, err := tx.Sequences.Next(ctx, domain.SequenceAmendmentReference, fmt.Sprint(now.Year()))
			if err != nil {
				return err
			}
			a := domain.Amendment{
				ID:            s.newAmendmentID(),
				Reference:     domain.FormatAmendmentReference(now.Year(), seq),
				MemberID:      m.ID,
				Changes:       changes,
				Justification: strings.TrimSpace(in.Justification),
				Documents:     in.Documents,
				Status:        domain.AmendmentPending,
				SubmittedAt:   now,
			}
			if err := tx.Amendments.Create(ctx, a); err != nil {
				switch {
				case errors.Is(err, amendmentrepo.ErrReferenceTaken):
					return fmt.Errorf("amendment reference %s: %w", a.Reference, guard.ErrCollision)
				case errors.Is(err, amendmentrepo.ErrPendingExists):
					return pendingExists()
				}
				return err
			}
			out = a
			return s.audit(ctx, tx, actor, m.ID, domain.AuditAmendmentSubmitted, map[string]any{
				"amendmentId": string(a.ID),
				"reference":   a.Reference,
				"fields":      changedFields(changes),
			})
		})
	})
	if err != nil {
		return domain.Amendment{}, err
	}
	return out, nil
}

// Decide approves or rejects a PENDING amendment. Approval copies the requested values
// into the member profile in the same unit of work; member status is untouched.
func (s *Service) Decide(ctx context.Context, actor domain.Actor, id domain.AmendmentID, in DecideInput) (out domain.Amendment, err error) {
	defer func() { s.finish("decide_amendment", actor, id, err) }()

	if !actor.IsOperator() {
		return domain.Amendment{}, apperr.Forbidden("operator identity required")
	}
	comment := strings.TrimSpace(in.Comment)
	reason := strings.TrimSpace(in.RejectionReason)
	switch in.Decision {
	case DecisionApprove:
	case DecisionReject:
		if len([]rune(reason)) < MinRejectionReasonLength {
			return domain.Amendment{}, apperr.Field("rejectionReason", "must be at least 5 characters")
		}
	default:
		return domain.Amendment{}, apperr.Field("decision", "must be APPROVED or REJECTED")
	}

	// Lock order is member then amendment, matching Submit.
	current, err := s.uow.Stores().Amendments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, amendmentrepo.ErrNotFound) {
			return domain.Amendment{}, amendmentNotFound()
		}
		return domain.Amendment{}, err
	}

	err = s.uow.Run(ctx, func(ctx context.Context, tx uow.Stores) error {
		m, err := tx.Members.GetByIDForUpdate(ctx, current.MemberID)
		if err != nil {
			return err
		}
		a, err := tx.Amendments.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, amendmentrepo.ErrNotFound) {
				return amendmentNotFound()
			}
			return err
		}
		if a.Status.Decided() {
			e := apperr.Conflict(apperr.CodeAlreadyDecided, "amendment has already been decided")
			e.Details = map[string]any{"status": string(a.Status)}
			return e
		}

		now := s.clk.Now()
		a.ReviewerID = &actor.MemberID
		a.DecidedAt = &now
		if comment != "" {
			a.ReviewComment = &comment
		}

		action := domain.AuditAmendmentRejected
		if in.Decision == DecisionApprove {
			if err := checkFresh(m.Profile, a.Changes); err != nil {
				return err
			}
			after := a.After()
			if email, ok := after[domain.FieldEmail]; ok {
				if err := guard.EnsureIdentityUnique(ctx, tx.Members, "", email, m.ID); err != nil {
					return err
				}
			}
			profile, err := m.Profile.Apply(a.Changes)
			if err != nil {
				return apperr.Validation("amendment values cannot be applied", map[string]any{"changes": err.Error()})
			}
			m.Profile = profile
			m.UpdatedAt = now
			if err := tx.Members.Update(ctx, m); err != nil {
				return guard.MapIdentityViolation(err)
			}
			a.Status = domain.AmendmentApproved
			action = domain.AuditAmendmentApproved
		} else {
			a.Status = domain.AmendmentRejected
			a.RejectionReason = &reason
		}

		if err := tx.Amendments.Save(ctx, a); err != nil {
			return err
		}
		out = a
		details := map[string]any{
			"amendmentId": string(a.ID),
			"reference":   a.Reference,
			"fields":      changedFields(a.Changes),
		}
		if a.RejectionReason != nil {
			details["reason"] = *a.RejectionReason
		}
		return s.audit(ctx, tx, actor, a.MemberID, action, details)
	})
	if err != nil {
		return domain.Amendment{}, err
	}
	return out, nil
}

// ListPending returns the review queue, oldest first.
func (s *Service) ListPending(ctx context.Context, actor domain.Actor) ([]domain.Amendment, error) {
	if !actor.IsOperator() {
		return nil, apperr.Forbidden("operator identity required")
	}
	out, err := s.uow.Stores().Amendments.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	s.Metrics.SetPending("amendments", len(out))
	return out, nil
}

// Get returns one amendment for operators.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id domain.AmendmentID) (domain.Amendment, error) {
	if !actor.IsOperator() {
		return domain.Amendment{}, apperr.Forbidden("operator identity required")
	}
	a, err := s.uow.Stores().Amendments.GetByID(ctx, id)
	if errors.Is(err, amendmentrepo.ErrNotFound) {
		return domain.Amendment{}, amendmentNotFound()
	}
	return a, err
}

// ListForMember returns the caller's last amendments, newest first, with reviewer
// fields hidden until decided.
func (s *Service) ListForMember(ctx context.Context, actor domain.Actor) ([]domain.Amendment, error) {
	if actor.MemberID == "" {
		return nil, apperr.Forbidden("member identity required")
	}
	as, err := s.uow.Stores().Amendments.ListByMember(ctx, actor.MemberID, MemberHistoryLimit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Amendment, 0, len(as))
	for _, a := range as {
		out = append(out, a.Redacted())
	}
	return out, nil
}

// checkFresh fails when the profile moved since the amendment captured its before values.
func checkFresh(p domain.Profile, changes []domain.FieldChange) error {
	stale := map[string]any{}
	for _, c := range changes {
		if cur := p.Value(c.Field); cur != c.Before {
			stale[string(c.Field)] = map[string]any{"expected": c.Before, "current": cur}
		}
	}
	if len(stale) == 0 {
		return nil
	}
	e := apperr.Conflict(apperr.CodeAmendmentStale, "profile changed since the amendment was submitted")
	e.Details = stale
	return e.WithHints("reject this amendment and ask the member to submit a new one")
}

// prepareCandidate normalizes the requested values, checks them with the same field
// rules as intake and returns them in their stored spelling. Empty values mean unchanged.
func prepareCandidate(in SubmitInput) (domain.FieldValues, error) {
	details := map[string]any{}
	if len([]rune(strings.TrimSpace(in.Justification))) < MinJustificationLength {
		details["justification"] = "must be at least 10 characters"
	}
	for i, d := range in.Documents {
		if err := domain.ValidateURL(strings.TrimSpace(d.URL)); err != nil {
			details["documents"] = map[string]any{"index": i, "reason": err.Error()}
			break
		}
	}
	out := make(domain.FieldValues, len(in.Fields))
	for f, v := range normalizeCandidate(in.Fields) {
		if v == "" {
			continue
		}
		if err := domain.ValidateFieldValue(f, v); err != nil {
			details[string(f)] = err.Error()
			continue
		}
		canon, err := domain.CanonicalFieldValue(f, v)
		if err != nil {
			details[string(f)] = err.Error()
			continue
		}
		out[f] = canon
	}
	if len(details) > 0 {
		return nil, apperr.Validation("invalid amendment", details)
	}
	return out, nil
}

// normalizeCandidate trims values and canonicalizes the email.
func normalizeCandidate(in domain.FieldValues) domain.FieldValues {
	out := make(domain.FieldValues, len(in))
	for f, v := range in {
		v = strings.TrimSpace(v)
		switch f {
		case domain.FieldEmail:
			v = domain.NormalizeEmail(v)
		case domain.FieldFirstName, domain.FieldLastName, domain.FieldSpouseName:
			v = domain.NormalizeHumanName(v)
		}
		out[f] = v
	}
	return out
}

func changedFields(changes []domain.FieldChange) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, string(c.Field))
	}
	return out
}

func pendingExists() error {
	return apperr.Conflict(apperr.CodeAmendmentAlreadyPending, "an amendment is already awaiting review").
		WithHints("wait for the pending amendment to be decided")
}

func amendmentNotFound() error {
	return apperr.NotFound(apperr.CodeAmendmentNotFound, "amendment not found")
}

func (s *Service) audit(ctx context.Context, tx uow.Stores, actor domain.Actor, memberID domain.MemberID, action domain.AuditAction, details map[string]any) error {
	client := requestctx.ClientFrom(ctx)
	actorID := actor.MemberID
	return tx.Audit.Append(ctx, domain.AuditEntry{
		ID:        s.newAuditID(),
		ActorID:   &actorID,
		MemberID:  &memberID,
		Action:    action,
		Details:   details,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		CreatedAt: s.clk.Now(),
	})
}

func (s *Service) finish(op string, actor domain.Actor, id domain.AmendmentID, err error) {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("amendment_id", string(id)),
		zap.String("actor_id", string(actor.MemberID)),
	}
	switch ae, ok := apperr.As(err); {
	case err == nil:
		s.Metrics.ObserveOperation(op, "ok")
		log.Info("amendment operation", fields...)
	case ok:
		s.Metrics.ObserveOperation(op, ae.Code)
		log.Debug("amendment operation refused", append(fields, zap.String("code", ae.Code))...)
	default:
		s.Metrics.ObserveOperation(op, "error")
		log.Error("amendment operation failed", append(fields, zap.Error(err))...)
	}
}
