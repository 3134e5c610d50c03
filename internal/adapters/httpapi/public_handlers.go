package httpapi

import (
	"net/http"
	"strings"

	"github.com/civic-assoc/membership-api/internal/app/policy"
)

// SubmitApplication is the public intake: it creates a PENDING member holding the first form version.
func (s *Server) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	if err := policy.Check(policy.OpSubmitApplication, ""); err != nil {
		s.fail(w, r, err)
		return
	}
	var body FormRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.idempotent(w, r, "", body, func() (int, any, error) {
		m, err := s.Members.SubmitApplication(r.Context(), formInputFromRequest(body))
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, MemberResponse{Member: memberFromDomain(m)}, nil
	})
}

func (s *Server) QueryStatus(w http.ResponseWriter, r *http.Request) {
	if err := policy.Check(policy.OpQueryStatus, ""); err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	v, err := s.Members.QueryStatus(r.Context(), q.Get("phone"), q.Get("reference"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusFromView(v))
}

// ListDirectory lists the public directory, or searches it when ?q= is present.
func (s *Server) ListDirectory(w http.ResponseWriter, r *http.Request) {
	if err := policy.Check(policy.OpViewDirectory, ""); err != nil {
		s.fail(w, r, err)
		return
	}
	q, searching := r.URL.Query()["q"]
	if searching {
		es, err := s.Members.SearchDirectory(r.Context(), strings.Join(q, " "))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, directoryFromDomain(es))
		return
	}
	es, err := s.Members.ListDirectory(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, directoryFromDomain(es))
}
