package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	memclock "github.com/civic-assoc/membership-api/internal/adapters/memory/clock"
	memidempotency "github.com/civic-assoc/membership-api/internal/adapters/memory/idempotency"
	muow "github.com/civic-assoc/membership-api/internal/adapters/memory/uow"
	"github.com/civic-assoc/membership-api/internal/app/amendments"
	"github.com/civic-assoc/membership-api/internal/app/members"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/platform/auth/jwks_testutil"
	"github.com/civic-assoc/membership-api/internal/platform/auth/jwtverifier"
	"github.com/civic-assoc/membership-api/internal/platform/config"
	"github.com/civic-assoc/membership-api/internal/platform/secret"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var tokenTime = time.Unix(1700000000, 0)

type fixedSecrets struct{}

func (fixedSecrets) NewTemporarySecret() (string, error) { return "TempSecret42", nil }

type testEnv struct {
	h       http.Handler
	members *members.Service
	mint    func(sub, role string) string
}

// newTestEnv wires the router over in-memory storage with JWT auth and an ADMIN
// operator bootstrapped as "ops.admin".
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	kp, err := jwks_testutil.GenerateRSAKeypair("kid-1")
	require.NoError(t, err)
	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	t.Cleanup(jwksSrv.Close)
	setKeys([]jwks_testutil.Keypair{kp})

	jwtCfg := config.JWTConfig{
		Issuer:                 "test-iss",
		Audience:               "test-aud",
		JWKSURL:                jwksSrv.URL,
		ClockSkew:              0,
		JWKSRefreshInterval:    10 * time.Minute,
		JWKSMinRefreshInterval: time.Second,
		HTTPTimeout:            2 * time.Second,
		RoleClaim:              "role",
	}
	v := jwtverifier.NewWithOptions(jwtCfg, nil, fixedClock{t: tokenTime})

	clk := memclock.NewManualClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	runner := muow.NewRunner()
	memberSvc := members.NewService(runner, clk, secret.NewBcryptHasher(bcrypt.MinCost), fixedSecrets{})
	memberSvc.FormCodeSegment = "DK"
	amendSvc := amendments.NewService(runner, clk)

	_, err = memberSvc.EnsureOperator(context.Background(), members.OperatorBootstrap{
		Subject:   "ops.admin",
		Role:      domain.RoleAdmin,
		FirstName: "Ada",
		LastName:  "Admin",
	})
	require.NoError(t, err)

	api := NewServer(memberSvc, amendSvc, memidempotency.NewStore(clk, time.Hour))
	h := NewRouter(api, RouterOptions{AuthMiddleware: NewAuthMiddleware(v)})

	mint := func(sub, role string) string {
		var extra map[string]any
		if role != "" {
			extra = map[string]any{"role": role}
		}
		tok, err := jwks_testutil.MintRS256JWTWithClaims(kp, jwtCfg.Issuer, jwtCfg.Audience, sub, tokenTime, 10*time.Minute, nil, extra)
		require.NoError(t, err)
		return tok
	}
	return &testEnv{h: h, members: memberSvc, mint: mint}
}

type call struct {
	method  string
	path    string
	subject string
	role    string
	body    any
	headers map[string]string
}

func (e *testEnv) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		if raw, ok := c.body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(c.body))
		}
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.subject != "" {
		req.Header.Set("Authorization", "Bearer "+e.mint(c.subject, c.role))
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body=%s", rec.Body.String())
	return out
}

func requireAPIError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, "body=%s", rec.Body.String())
	er := decode[ErrorResponse](t, rec)
	require.Equal(t, code, er.Error.Code, "body=%s", rec.Body.String())
	return er
}

func applicationBody(nationalID, first, last, phone string) map[string]any {
	return map[string]any{
		"nationalId": nationalID,
		"profile": map[string]any{
			"firstName":     first,
			"lastName":      last,
			"phone":         phone,
			"email":         first + "@example.org",
			"address":       "4 avenue Bourguiba",
			"profession":    "Nurse",
			"residenceCity": "Dakar",
		},
	}
}

// approvedMember runs intake, identifier issuance and approval, returning the
// member and its login.
func (e *testEnv) approvedMember(t *testing.T, nationalID, first, last, phone string) (Member, string) {
	t.Helper()
	rec := e.do(t, call{method: http.MethodPost, path: "/applications", body: applicationBody(nationalID, first, last, phone)})
	require.Equal(t, http.StatusCreated, rec.Code, "body=%s", rec.Body.String())
	created := decode[MemberResponse](t, rec).Member

	rec = e.do(t, call{
		method:  http.MethodPost,
		path:    "/members/" + created.MemberId + "/identifier",
		subject: "ops.admin",
		body:    IssueIdentifierRequest{ConfirmedPaid: true},
	})
	require.Equal(t, http.StatusOK, rec.Code, "body=%s", rec.Body.String())
	issued := decode[IssueIdentifierResponse](t, rec)

	rec = e.do(t, call{method: http.MethodPost, path: "/members/" + created.MemberId + "/approve", subject: "ops.admin"})
	require.Equal(t, http.StatusOK, rec.Code, "body=%s", rec.Body.String())
	return decode[MemberResponse](t, rec).Member, issued.Login
}
