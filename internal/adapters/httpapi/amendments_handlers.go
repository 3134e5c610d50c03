package httpapi

import (
	"net/http"

	"github.com/civic-assoc/membership-api/internal/app/policy"
)

func (s *Server) SubmitAmendment(w http.ResponseWriter, r *http.Request) {
	a, err := s.actor(r, policy.OpSubmitAmendment)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body AmendmentRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.idempotent(w, r, a.Subject, body, func() (int, any, error) {
		am, err := s.Amendments.Submit(r.Context(), a, amendmentInputFromRequest(body))
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, AmendmentResponse{Amendment: amendmentFromDomain(am)}, nil
	})
}

func (s *Server) ListMyAmendments(w http.ResponseWriter, r *http.Request) {
	a, err := s.actor(r, policy.OpListOwnAmendments)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	as, err := s.Amendments.ListForMember(r.Context(), a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amendmentsFromDomain(as))
}

// ListPendingAmendments is the operator review queue, oldest first.
func (s *Server) ListPendingAmendments(w http.ResponseWriter, r *http.Request) {
	a, err := s.actor(r, policy.OpListPendingAmendments)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	as, err := s.Amendments.ListPending(r.Context(), a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amendmentsFromDomain(as))
}

func (s *Server) GetAmendment(w http.ResponseWriter, r *http.Request) {
	a, err := s.actor(r, policy.OpViewAmendment)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	am, err := s.Amendments.Get(r.Context(), a, amendmentIDParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AmendmentResponse{Amendment: amendmentFromDomain(am)})
}

func (s *Server) DecideAmendment(w http.ResponseWriter, r *http.Request) {
	a, err := s.actor(r, policy.OpDecideAmendment)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body DecisionRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.idempotent(w, r, a.Subject, body, func() (int, any, error) {
		am, err := s.Amendments.Decide(r.Context(), a, amendmentIDParam(r), decideInputFromRequest(body))
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, AmendmentResponse{Amendment: amendmentFromDomain(am)}, nil
	})
}
