package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware_MissingHeader_401(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, call{method: http.MethodGet, path: "/members"})

	er := requireAPIError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
	require.True(t, er.Error.RequestId.IsSpecified() && !er.Error.RequestId.IsNull(), "expected requestId to be set")
	rid, err := er.Error.RequestId.Get()
	require.NoError(t, err)
	assert.NotEmpty(t, rid)
}

func TestAuthMiddleware_MalformedHeader_401(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, call{method: http.MethodGet, path: "/members", headers: map[string]string{"Authorization": "Basic abc"}})
	requireAPIError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestAuthMiddleware_InvalidToken_401(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, call{method: http.MethodGet, path: "/members", headers: map[string]string{"Authorization": "Bearer not.a.jwt"}})
	requireAPIError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestAuthMiddleware_ValidToken_AllowsOperator(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, call{method: http.MethodGet, path: "/members", subject: "ops.admin"})
	require.Equal(t, http.StatusOK, rec.Code, "body=%s", rec.Body.String())

	got := decode[MemberListResponse](t, rec)
	require.Len(t, got.Members, 1)
	assert.Equal(t, "ADMIN", got.Members[0].Role)
}

func TestAuthMiddleware_RoleClaimMustMatchStoredRole(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, call{method: http.MethodGet, path: "/members", subject: "ops.admin", role: "admin"})
	require.Equal(t, http.StatusOK, rec.Code, "body=%s", rec.Body.String())

	rec = env.do(t, call{method: http.MethodGet, path: "/members", subject: "ops.admin", role: "MEMBER"})
	requireAPIError(t, rec, http.StatusForbidden, "FORBIDDEN")
}

func TestAuthMiddleware_UnknownSubject_NotProvisioned(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, call{method: http.MethodGet, path: "/members/me", subject: "stranger"})
	requireAPIError(t, rec, http.StatusNotFound, "MEMBER_NOT_PROVISIONED")
}

func TestMalformedBody_Is422JSON(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, call{method: http.MethodPost, path: "/members", subject: "ops.admin", body: "{"})
	requireAPIError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestDevAuthMiddleware_UsesDebugHeaders(t *testing.T) {
	t.Parallel()

	var got Principal
	h := NewDevAuthMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/members/me", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/members/me", nil)
	req.Header.Set("X-Debug-Subject", "ops.admin")
	req.Header.Set("X-Debug-Role", "president")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, Principal{Subject: "ops.admin", Role: "PRESIDENT"}, got)
}
