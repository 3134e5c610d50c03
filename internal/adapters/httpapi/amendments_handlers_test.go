package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmendments_SubmitAndApprove(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	m, login := env.approvedMember(t, "SN-20001", "Rokhaya", "Diouf", "+221770000101")

	body := AmendmentRequest{
		Fields:        map[string]string{"address": "9 rue Carnot", "profession": "Midwife"},
		Justification: "moved after getting a new position",
	}
	rec := env.do(t, call{method: http.MethodPost, path: "/members/me/amendments", subject: login, body: body})
	require.Equal(t, http.StatusCreated, rec.Code, "body=%s", rec.Body.String())
	a := decode[AmendmentResponse](t, rec).Amendment
	assert.Equal(t, "PENDING", a.Status)
	assert.Equal(t, m.MemberId, a.MemberId)
	require.Len(t, a.Changes, 2)
	assert.True(t, a.ReviewerId.IsNull())
	assert.True(t, a.DecidedAt.IsNull())

	rec = env.do(t, call{method: http.MethodPost, path: "/members/me/amendments", subject: login, body: body})
	requireAPIError(t, rec, http.StatusConflict, "AMENDMENT_ALREADY_PENDING")

	rec = env.do(t, call{method: http.MethodGet, path: "/amendments/pending", subject: "ops.admin"})
	require.Equal(t, http.StatusOK, rec.Code, "body=%s", rec.Body.String())
	pending := decode[AmendmentListResponse](t, rec).Amendments
	require.Len(t, pending, 1)
	assert.Equal(t, a.AmendmentId, pending[0].AmendmentId)

	rec = env.do(t, call{method: http.MethodGet, path: "/amendments/" + a.AmendmentId, subject: "ops.admin"})
	require.Equal(t, http.StatusOK, rec.Code)

	decision := DecisionRequest{Decision: "approved", Comment: "lease attached"}
	headers := map[string]string{"Idempotency-Key": "decide-1"}
	rec = env.do(t, call{method: http.MethodPost, path: "/amendments/" + a.AmendmentId + "/decision", subject: "ops.admin", body: decision, headers: headers})
	require.Equal(t, http.StatusOK, rec.Code, "body=%s", rec.Body.String())
	decided := decode[AmendmentResponse](t, rec).Amendment
	assert.Equal(t, "APPROVED", decided.Status)
	assert.False(t, decided.ReviewerId.IsNull())
	assert.False(t, decided.DecidedAt.IsNull())

	replay := env.do(t, call{method: http.MethodPost, path: "/amendments/" + a.AmendmentId + "/decision", subject: "ops.admin", body: decision, headers: headers})
	require.Equal(t, http.StatusOK, replay.Code, "body=%s", replay.Body.String())
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))

	rec = env.do(t, call{method: http.MethodPost, path: "/amendments/" + a.AmendmentId + "/decision", subject: "ops.admin", body: decision})
	requireAPIError(t, rec, http.StatusConflict, "ALREADY_DECIDED")

	rec = env.do(t, call{method: http.MethodGet, path: "/members/me", subject: login})
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[MemberResponse](t, rec).Member
	assert.Equal(t, "9 rue Carnot", me.Profile.Address)
	assert.Equal(t, "Midwife", me.Profile.Profession)
	assert.Equal(t, "APPROVED", me.Status)

	rec = env.do(t, call{method: http.MethodGet, path: "/members/me/amendments", subject: login})
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[AmendmentListResponse](t, rec).Amendments
	require.Len(t, mine, 1)
	assert.Equal(t, "APPROVED", mine[0].Status)
}

func TestAmendments_RejectRequiresReason(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, login := env.approvedMember(t, "SN-20002", "Pape", "Thiam", "+221770000102")

	rec := env.do(t, call{
		method:  http.MethodPost,
		path:    "/members/me/amendments",
		subject: login,
		body:    AmendmentRequest{Fields: map[string]string{"employer": "Port Autonome"}, Justification: "changed employer this year"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body=%s", rec.Body.String())
	a := decode[AmendmentResponse](t, rec).Amendment

	rec = env.do(t, call{method: http.MethodPost, path: "/amendments/" + a.AmendmentId + "/decision", subject: "ops.admin", body: DecisionRequest{Decision: "REJECTED"}})
	requireAPIError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rec = env.do(t, call{method: http.MethodPost, path: "/amendments/" + a.AmendmentId + "/decision", subject: "ops.admin", body: DecisionRequest{Decision: "REJECTED", RejectionReason: "no supporting letter"}})
	require.Equal(t, http.StatusOK, rec.Code, "body=%s", rec.Body.String())
	rejected := decode[AmendmentResponse](t, rec).Amendment
	reason, err := rejected.RejectionReason.Get()
	require.NoError(t, err)
	assert.Equal(t, "no supporting letter", reason)

	rec = env.do(t, call{method: http.MethodGet, path: "/members/me", subject: login})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[MemberResponse](t, rec).Member.Profile.Employer)
}

func TestAmendments_NotAllowedBeforeApproval(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, call{
		method:  http.MethodPost,
		path:    "/members/me/amendments",
		subject: "ops.admin",
		body:    AmendmentRequest{Fields: map[string]string{"address": "1 place de l'Independance"}, Justification: "office relocated downtown"},
	})
	requireAPIError(t, rec, http.StatusConflict, "MEMBER_NOT_APPROVED")

	rec = env.do(t, call{method: http.MethodGet, path: "/amendments/missing", subject: "ops.admin"})
	requireAPIError(t, rec, http.StatusNotFound, "AMENDMENT_NOT_FOUND")
}

func TestAmendments_UnknownFieldInBodyIsRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, login := env.approvedMember(t, "SN-20003", "Binta", "Cisse", "+221770000103")

	rec := env.do(t, call{
		method:  http.MethodPost,
		path:    "/members/me/amendments",
		subject: login,
		body:    `{"fields":{"address":"x"},"justification":"long enough text","extra":true}`,
	})
	requireAPIError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}
