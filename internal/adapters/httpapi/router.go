package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/civic-assoc/membership-api/internal/platform/metrics"
)

type RouterOptions struct {
	// AuthMiddleware guards every member and operator route. Required.
	AuthMiddleware func(http.Handler) http.Handler
	Logger         *zap.Logger
	Metrics        *metrics.Lifecycle
	// MetricsHandler, when set, is mounted at /metrics without auth.
	MetricsHandler http.Handler
}

// NewRouter constructs the API HTTP router.
//
// Public routes (application intake, status query, directory) run without auth.
// Everything under /members and /amendments requires an authenticated principal.
func NewRouter(api *Server, opts RouterOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(log, opts.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(clientMiddleware)

	// Health endpoint is used for infra checks.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Post("/applications", api.SubmitApplication)
	r.Get("/applications/status", api.QueryStatus)
	r.Get("/directory", api.ListDirectory)

	r.Group(func(r chi.Router) {
		r.Use(opts.AuthMiddleware)

		r.Route("/members", func(r chi.Router) {
			r.Get("/", api.ListMembers)
			r.Post("/", api.ProvisionMember)

			r.Get("/me", api.GetMe)
			r.Post("/me/form", api.SubmitMyForm)
			r.Post("/me/password", api.ChangeMyPassword)
			r.Post("/me/amendments", api.SubmitAmendment)
			r.Get("/me/amendments", api.ListMyAmendments)

			r.Route("/{memberId}", func(r chi.Router) {
				r.Get("/", api.GetMember)
				r.Post("/identifier", api.IssueIdentifier)
				r.Post("/form", api.SubmitFormOnBehalf)
				r.Post("/approve", api.ApproveMember)
				r.Post("/reject", api.RejectMember)
				r.Post("/reset", api.ResetSubmission)
				r.Post("/deactivate", api.DeactivateMember)
				r.Post("/reactivate", api.ReactivateMember)
				r.Get("/audit", api.ListMemberAudit)
			})
		})

		r.Route("/amendments", func(r chi.Router) {
			r.Get("/pending", api.ListPendingAmendments)
			r.Get("/{amendmentId}", api.GetAmendment)
			r.Post("/{amendmentId}/decision", api.DecideAmendment)
		})
	})

	return r
}
