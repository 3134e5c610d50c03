package members

import (
	"context"
	"errors"
	"strings"

	"github.com/civic-assoc/membership-api/internal/app/apperr"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/ports/out/memberrepo"
)

// ResolveActor maps an authenticated subject to the member acting. Deactivated
// accounts are refused regardless of status.
func (s *Service) ResolveActor(ctx context.Context, subject domain.SubjectID) (domain.Actor, error) {
	m, err := s.uow.Stores().Members.GetBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return domain.Actor{}, notProvisioned()
		}
		return domain.Actor{}, err
	}
	if !m.IsActive {
		e := apperr.Forbidden("account is deactivated")
		e.Code = apperr.CodeAccountDeactivated
		return domain.Actor{}, e
	}
	return domain.Actor{MemberID: m.ID, Subject: subject, Role: m.Role}, nil
}

func (s *Service) GetMyMemberProfile(ctx context.Context, subject domain.SubjectID) (domain.Member, error) {
	m, err := s.uow.Stores().Members.GetBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return domain.Member{}, notProvisioned()
		}
		return domain.Member{}, err
	}
	return m.Member, nil
}

func (s *Service) GetMember(ctx context.Context, id domain.MemberID) (domain.Member, error) {
	m, err := s.uow.Stores().Members.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return domain.Member{}, memberNotFound()
		}
		return domain.Member{}, err
	}
	return m.Member, nil
}

// ListMembers is the operator review listing.
func (s *Service) ListMembers(ctx context.Context, f ListFilter) ([]domain.Member, error) {
	rf := memberrepo.ListFilter{IncludeInactive: f.IncludeInactive}
	if f.Status.IsSpecified() && !f.Status.IsNull() {
		st := f.Status.Value()
		if !st.Valid() {
			return nil, apperr.Field("status", "must be one of PENDING, APPROVED, REJECTED")
		}
		rf.Status = &st
	}
	ms, err := s.uow.Stores().Members.List(ctx, rf)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Member, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Member)
	}
	if rf.Status != nil && *rf.Status == domain.MemberStatusPending {
		s.Metrics.SetPending("applications", countSubmitted(out))
	}
	return out, nil
}

// ListForms returns every form version of a member, newest first.
func (s *Service) ListForms(ctx context.Context, id domain.MemberID) ([]domain.MembershipForm, error) {
	if _, err := s.GetMember(ctx, id); err != nil {
		return nil, err
	}
	return s.uow.Stores().Forms.ListByMember(ctx, id)
}

// QueryStatus is the public status lookup. Both phone and reference must match.
func (s *Service) QueryStatus(ctx context.Context, phone, reference string) (StatusView, error) {
	details := map[string]any{}
	if err := domain.ValidatePhone(phone); err != nil {
		details["phone"] = err.Error()
	}
	if _, ok := domain.ParseMembershipReference(reference); !ok {
		details["reference"] = "must look like 0001/XXX/MBR"
	}
	if len(details) > 0 {
		return StatusView{}, apperr.Validation("invalid status query", details)
	}

	m, err := s.uow.Stores().Members.GetByPhoneAndReference(ctx, phone, strings.TrimSpace(reference))
	if err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return StatusView{}, apperr.NotFound(apperr.CodeMemberNotFound, "no application matches this phone and reference").
				WithHints("check the reference printed on your receipt")
		}
		return StatusView{}, err
	}
	return StatusView{
		Reference:        m.Reference,
		FullName:         m.Profile.FullName(),
		Status:           m.Status,
		HasSubmittedForm: m.HasSubmittedForm,
		FormCode:         m.FormCode,
		CardIssuedAt:     m.CardIssuedAt,
		RejectionReason:  m.RejectionReason,
	}, nil
}

// ListDirectory returns every approved, active, non-operator member.
func (s *Service) ListDirectory(ctx context.Context) ([]DirectoryEntry, error) {
	st := domain.MemberStatusApproved
	ms, err := s.uow.Stores().Members.List(ctx, memberrepo.ListFilter{Status: &st, ExcludeOperators: true})
	if err != nil {
		return nil, err
	}
	return toDirectory(ms), nil
}

func (s *Service) SearchDirectory(ctx context.Context, query string) ([]DirectoryEntry, error) {
	q := strings.TrimSpace(query)
	if len([]rune(q)) < 3 {
		return nil, apperr.Validation("invalid search query", map[string]any{"q": "must be at least 3 characters"})
	}
	ms, err := s.uow.Stores().Members.SearchDirectory(ctx, q, s.SearchLimit)
	if err != nil {
		return nil, err
	}
	return toDirectory(ms), nil
}

// ListAudit returns the newest audit entries about a member.
func (s *Service) ListAudit(ctx context.Context, id domain.MemberID) ([]domain.AuditEntry, error) {
	if _, err := s.GetMember(ctx, id); err != nil {
		return nil, err
	}
	return s.uow.Stores().Audit.ListByMember(ctx, id, s.AuditLimit)
}

func toDirectory(ms []memberrepo.Member) []DirectoryEntry {
	out := make([]DirectoryEntry, 0, len(ms))
	for _, m := range ms {
		if !m.InDirectory() {
			continue
		}
		e := DirectoryEntry{
			MemberID:      m.ID,
			FullName:      m.Profile.FullName(),
			Profession:    m.Profile.Profession,
			ResidenceCity: m.Profile.ResidenceCity,
			PhotoRef:      m.Profile.PhotoRef,
		}
		if m.FormCode != nil {
			e.FormCode = *m.FormCode
		}
		out = append(out, e)
	}
	return out
}

func countSubmitted(ms []domain.Member) int {
	n := 0
	for _, m := range ms {
		if m.HasSubmittedForm {
			n++
		}
	}
	return n
}

func notProvisioned() error {
	return apperr.NotFound(apperr.CodeMemberNotProvisioned, "No member profile exists for the authenticated subject.")
}
