package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/civic-assoc/membership-api/internal/app/amendments"
	"github.com/civic-assoc/membership-api/internal/app/apperr"
	"github.com/civic-assoc/membership-api/internal/app/members"
	"github.com/civic-assoc/membership-api/internal/app/policy"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/ports/out/idempotency"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP adapter over the lifecycle and amendment services.
type Server struct {
	Members    *members.Service
	Amendments *amendments.Service
	Idem       idempotency.Store
	Logger     *zap.Logger
}

func NewServer(membersSvc *members.Service, amendmentsSvc *amendments.Service, idem idempotency.Store) *Server {
	return &Server{
		Members:    membersSvc,
		Amendments: amendmentsSvc,
		Idem:       idem,
	}
}

func (s *Server) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, s.log(), err)
}

// actor resolves the authenticated principal to a member and checks op against
// the member's stored role. A role claim in the token must agree with that role.
func (s *Server) actor(r *http.Request, op policy.Operation) (domain.Actor, error) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		return domain.Actor{}, errUnauthenticated
	}
	a, err := s.Members.ResolveActor(r.Context(), domain.SubjectID(p.Subject))
	if err != nil {
		return domain.Actor{}, err
	}
	if p.Role != "" && domain.Role(p.Role) != a.Role {
		return domain.Actor{}, apperr.Forbidden("token role does not match member role")
	}
	if err := policy.Check(op, a.Role); err != nil {
		return domain.Actor{}, err
	}
	return a, nil
}

// decodeJSON reads a single JSON object into dst. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	raw, err := readBody(w, r)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return apperr.Validation("missing request body", nil)
	}
	return unmarshalStrict(raw, dst)
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be omitted.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	raw, err := readBody(w, r)
	if err != nil || len(raw) == 0 {
		return err
	}
	return unmarshalStrict(raw, dst)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Validation("request body too large", nil)
		}
		return nil, apperr.Validation("unreadable request body", nil)
	}
	return bytes.TrimSpace(raw), nil
}

func unmarshalStrict(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("malformed request body", map[string]any{"body": err.Error()})
	}
	return nil
}

func memberIDParam(r *http.Request) domain.MemberID {
	return domain.MemberID(strings.TrimSpace(chi.URLParam(r, "memberId")))
}

func amendmentIDParam(r *http.Request) domain.AmendmentID {
	return domain.AmendmentID(strings.TrimSpace(chi.URLParam(r, "amendmentId")))
}

// hashBody fingerprints a request by path and canonical JSON body.
func hashBody(path string, body any) (string, error) {
	raw, err := json.Marshal(struct {
		Path string `json:"path"`
		Body any    `json:"body"`
	}{
		Path: path,
		Body: body,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// idempotent runs a state-changing handler under the caller's Idempotency-Key.
//
// The first successful request with a key records the body hash; a later request
// reusing the key with a different body is refused with 409. Failed requests leave the
// key unbound so a corrected retry can use it. A successful response is stored and
// replayed verbatim for retries with the same body. Requests without a key run normally.
func (s *Server) idempotent(w http.ResponseWriter, r *http.Request, subject domain.SubjectID, body any, run func() (int, any, error)) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" || s.Idem == nil {
		s.respond(w, r, run)
		return
	}

	ctx := r.Context()
	bodyHash, err := hashBody(r.URL.Path, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	metaFP := idempotency.Fingerprint{
		Key:      idempotency.Key(key),
		Subject:  subject,
		Method:   r.Method,
		Route:    r.URL.Path,
		BodyHash: "",
	}
	meta, seen, err := s.Idem.Get(ctx, metaFP)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if seen && string(meta.Body) != bodyHash {
		writeAPIError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil, nil)
		return
	}

	respFP := metaFP
	respFP.BodyHash = bodyHash
	if rec, ok, err := s.Idem.Get(ctx, respFP); err != nil {
		s.fail(w, r, err)
		return
	} else if ok && rec.StatusCode >= 200 && rec.StatusCode < 300 && strings.HasPrefix(rec.ContentType, "application/json") {
		w.Header().Set("Content-Type", rec.ContentType)
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.Body)
		return
	}

	status, resp, err := run()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	b, err := json.Marshal(resp)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// The key is bound to a payload only once a request with it has succeeded.
	now := time.Now().UTC()
	if !seen {
		if err := s.Idem.Put(ctx, metaFP, idempotency.Record{
			StatusCode:  0,
			ContentType: "text/plain",
			Body:        []byte(bodyHash),
			CreatedAt:   now,
		}); err != nil {
			s.log().Warn("idempotency key not bound", zap.Error(err), zap.String("route", r.URL.Path))
		}
	}
	if err := s.Idem.Put(ctx, respFP, idempotency.Record{
		StatusCode:  status,
		ContentType: "application/json",
		Body:        b,
		CreatedAt:   now,
	}); err != nil {
		s.log().Warn("idempotency record not stored", zap.Error(err), zap.String("route", r.URL.Path))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, run func() (int, any, error)) {
	status, resp, err := run()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, resp)
}
