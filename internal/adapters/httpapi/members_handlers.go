package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/civic-assoc/membership-api/internal/app/apperr"
	"github.com/civic-assoc/membership-api/internal/app/members"
	"github.com/civic-assoc/membership-api/internal/app/policy"
	"github.com/civic-assoc/membership-api/internal/domain"
)

func (s *Server) GetMe(w http.ResponseWriter, r *http.Request) {
	a, err := s.actor(r, policy.OpViewOwnProfile)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.Members.GetMember(r.Context(), a.MemberID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberResponse{Member: memberFromDomain(m)})
}

func (s *Server) SubmitMyForm(w http.ResponseWriter, r *http.Request) {
	a, err := s.actor(r, policy.OpSubmitOwnForm)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body FormRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.idempotent(w, r, a.Subject, body, func() (int, any, error) {
		m, err := s.Members.SubmitForm(r.Context(), a, formInputFromRequest(body))
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, MemberResponse{Member: memberFromDomain(m)}, nil
	})
}

// ChangeMyPassword replaces the temporary secret. Deactivated accounts never get here.
func (s *Server) ChangeMyPassword(w http.ResponseWriter, r *http.Request) {
	a, err := s.actor(r, policy.OpChangePassword)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body ChangePasswordRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Members.ChangePassword(r.Context(), a, body.CurrentPassword, body.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ListMembers(w http.ResponseWriter, r *http.Request) {
	if _, err := s.actor(r, policy.OpListMembers); err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	f := members.ListFilter{Status: members.Unspecified[domain.MemberStatus]()}
	if st := strings.TrimSpace(q.Get("status")); st != "" {
		f.Status = members.Some(domain.MemberStatus(strings.ToUpper(st)))
	}
	if raw := q.Get("includeInactive"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.fail(w, r, apperr.Field("includeInactive", "must be a boolean"))
			return
		}
		f.IncludeInactive = v
	}
	ms, err := s.Members.ListMembers(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberListResponse{Members: membersFromDomain(ms)})
}

// ProvisionMember creates a member ahead of the form. Operator roles need an officer.
func (s *Server) ProvisionMember(w http.ResponseWriter, r *http.Request) {
	a, err := s.actor(r, policy.OpProvisionMember)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body ProvisionMemberRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	in := provisionInputFromRequest(body)
	if in.Role.IsSpecified() && !in.Role.IsNull() && in.Role.Value().IsOperator() {
		if err := policy.Check(policy.OpProvisionOperator, a.Role); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	s.idempotent(w, r, a.Subject, body, func() (int, any, error) {
		m, err := s.Members.ProvisionMember(r.Context(), a, in)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, MemberResponse{Member: memberFromDomain(m)}, nil
	})
}

// GetMember returns the member with every form version, newest first.
func (s *Server) GetMember(w http.ResponseWriter, r *http.Request) {
	if _, err := s.actor(r, policy.OpViewMember); err != nil {
		s.fail(w, r, err)
		return
	}
	id := memberIDParam(r)
	m, err := s.Members.GetMember(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	forms, err := s.Members.ListForms(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := MemberDetailResponse{Member: memberFromDomain(m), Forms: make([]Form, 0, len(forms))}
	for _, f := range forms {
		resp.Forms = append(resp.Forms, formFromDomain(f))
	}
	writeJSON(w, http.StatusOK, resp)
}

// IssueIdentifier is never replayed: the temporary secret is shown once.
func (s *Server) IssueIdentifier(w http.ResponseWriter, r *http.Request) {
	a, err := s.actor(r, policy.OpIssueIdentifier)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body IssueIdentifierRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.Members.IssueIdentifier(r.Context(), a, memberIDParam(r), body.ConfirmedPaid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, IssueIdentifierResponse{
		Member:          memberFromDomain(out.Member),
		Login:           string(out.Login),
		TemporarySecret: out.TemporarySecret,
	})
}

func (s *Server) SubmitFormOnBehalf(w http.ResponseWriter, r *http.Request) {
	a, err := s.actor(r, policy.OpSubmitFormOnBehalf)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body FormRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.idempotent(w, r, a.Subject, body, func() (int, any, error) {
		m, err := s.Members.SubmitFormOnBehalf(r.Context(), a, memberIDParam(r), formInputFromRequest(body))
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, MemberResponse{Member: memberFromDomain(m)}, nil
	})
}

func (s *Server) ApproveMember(w http.ResponseWriter, r *http.Request) {
	a, err := s.actor(r, policy.OpApprove)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body ApproveRequest
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.idempotent(w, r, a.Subject, body, func() (int, any, error) {
		m, err := s.Members.Approve(r.Context(), a, memberIDParam(r), body.Comment)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, MemberResponse{Member: memberFromDomain(m)}, nil
	})
}

func (s *Server) RejectMember(w http.ResponseWriter, r *http.Request) {
	a, err := s.actor(r, policy.OpReject)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body ReasonRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.Members.Reject(r.Context(), a, memberIDParam(r), body.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberResponse{Member: memberFromDomain(m)})
}

func (s *Server) ResetSubmission(w http.ResponseWriter, r *http.Request) {
	a, err := s.actor(r, policy.OpResetSubmission)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body ReasonRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.Members.ResetSubmission(r.Context(), a, memberIDParam(r), body.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberResponse{Member: memberFromDomain(m)})
}

func (s *Server) DeactivateMember(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, false)
}

func (s *Server) ReactivateMember(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, true)
}

func (s *Server) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	a, err := s.actor(r, policy.OpSetActive)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.Members.SetActive(r.Context(), a, memberIDParam(r), active)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberResponse{Member: memberFromDomain(m)})
}

func (s *Server) ListMemberAudit(w http.ResponseWriter, r *http.Request) {
	if _, err := s.actor(r, policy.OpViewAudit); err != nil {
		s.fail(w, r, err)
		return
	}
	id := memberIDParam(r)
	if _, err := s.Members.GetMember(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	es, err := s.Members.ListAudit(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auditFromDomain(es))
}
