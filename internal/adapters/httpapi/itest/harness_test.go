package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/civic-assoc/membership-api/internal/adapters/httpapi"
	memclock "github.com/civic-assoc/membership-api/internal/adapters/memory/clock"
	memidempotency "github.com/civic-assoc/membership-api/internal/adapters/memory/idempotency"
	muow "github.com/civic-assoc/membership-api/internal/adapters/memory/uow"
	pgidempotency "github.com/civic-assoc/membership-api/internal/adapters/postgres/idempotency"
	postgres_testutil "github.com/civic-assoc/membership-api/internal/adapters/postgres/testutil"
	pguow "github.com/civic-assoc/membership-api/internal/adapters/postgres/uow"
	redisidempotency "github.com/civic-assoc/membership-api/internal/adapters/redis/idempotency"
	redis_testutil "github.com/civic-assoc/membership-api/internal/adapters/redis/testutil"
	"github.com/civic-assoc/membership-api/internal/app/amendments"
	"github.com/civic-assoc/membership-api/internal/app/members"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/platform/secret"
	idempotencyport "github.com/civic-assoc/membership-api/internal/ports/out/idempotency"
	"github.com/civic-assoc/membership-api/internal/ports/out/uow"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

const operatorSubject = "itest.secretary"

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))

	var (
		runner    uow.Runner
		idemStore idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		runner = pguow.NewRunner(pool)
		idemStore = pgidempotency.NewStore(pool, time.Hour)
	case backendMemory:
		runner = muow.NewRunner()
		idemStore = memidempotency.NewStore(clk, time.Hour)
	default:
		t.Fatalf("unknown backend: %s", b)
	}
	// ITEST_IDEMPOTENCY=redis swaps the replay store for Redis on any backend.
	if strings.EqualFold(strings.TrimSpace(os.Getenv("ITEST_IDEMPOTENCY")), "redis") {
		idemStore = redisidempotency.NewStore(redis_testutil.OpenClient(t), "itest:"+t.Name()+":", time.Hour)
	}

	memberSvc := members.NewService(runner, clk, secret.NewBcryptHasher(bcrypt.MinCost), secret.NewGenerator())
	memberSvc.Jurisdiction = "DKR"
	memberSvc.FormCodeSegment = "DKR"
	amendSvc := amendments.NewService(runner, clk)

	if _, err := memberSvc.EnsureOperator(context.Background(), members.OperatorBootstrap{
		Subject:   operatorSubject,
		Role:      domain.RoleSecretary,
		FirstName: "Seynabou",
		LastName:  "Secretary",
	}); err != nil {
		t.Fatalf("bootstrap operator: %v", err)
	}

	api := httpapi.NewServer(memberSvc, amendSvc, idemStore)

	// Integration tests use the dev auth middleware to stay fully local and deterministic.
	// We pass empty default subject to ensure requests MUST provide X-Debug-Subject, allowing
	// auth-failure coverage.
	authMW := httpapi.NewDevAuthMiddleware("")
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{AuthMiddleware: authMW})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any, headers ...string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
