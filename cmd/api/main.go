package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/civic-assoc/membership-api/internal/adapters/httpapi"
	memidempotency "github.com/civic-assoc/membership-api/internal/adapters/memory/idempotency"
	muow "github.com/civic-assoc/membership-api/internal/adapters/memory/uow"
	postgres "github.com/civic-assoc/membership-api/internal/adapters/postgres"
	pgidempotency "github.com/civic-assoc/membership-api/internal/adapters/postgres/idempotency"
	pguow "github.com/civic-assoc/membership-api/internal/adapters/postgres/uow"
	redisadapter "github.com/civic-assoc/membership-api/internal/adapters/redis"
	redisidempotency "github.com/civic-assoc/membership-api/internal/adapters/redis/idempotency"
	"github.com/civic-assoc/membership-api/internal/app/amendments"
	"github.com/civic-assoc/membership-api/internal/app/members"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/platform/auth/jwtverifier"
	platformclock "github.com/civic-assoc/membership-api/internal/platform/clock"
	"github.com/civic-assoc/membership-api/internal/platform/config"
	"github.com/civic-assoc/membership-api/internal/platform/logger"
	"github.com/civic-assoc/membership-api/internal/platform/metrics"
	"github.com/civic-assoc/membership-api/internal/platform/secret"
	idempotencyport "github.com/civic-assoc/membership-api/internal/ports/out/idempotency"
	"github.com/civic-assoc/membership-api/internal/ports/out/uow"
)

const purgeInterval = 15 * time.Minute

func main() {
	if err := config.LoadDotEnv(); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("invalid config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Auth configuration:
	// - Production: require JWT_* env vars and enforce bearer auth
	// - Local dev: set AUTH_MODE=dev to bypass JWT verification and use X-Debug-Subject
	var authMW func(http.Handler) http.Handler
	switch cfg.AuthMode {
	case "dev":
		log.Warn("dev auth enabled; do not use in production", zap.String("default_subject", cfg.DevSubject))
		authMW = httpapi.NewDevAuthMiddleware(cfg.DevSubject)
	default:
		authMW = httpapi.NewAuthMiddleware(jwtverifier.New(cfg.JWT))
	}

	clk := platformclock.NewSystemClock()
	reg := metrics.NewRegistry()
	lifecycle := metrics.NewLifecycle(reg)

	var (
		runner    uow.Runner
		idemStore idempotencyport.Store
		purger    interface {
			Purge(ctx context.Context) (int64, error)
		}
	)

	switch cfg.StorageBackend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: cfg.DBMaxConns})
		if err != nil {
			return err
		}
		defer pool.Close()
		if cfg.AutoMigrate {
			if err := postgres.Migrate(ctx, pool, log); err != nil {
				return err
			}
		}
		runner = pguow.NewRunner(pool)
		pgIdem := pgidempotency.NewStore(pool, cfg.IdempotencyTTL)
		idemStore, purger = pgIdem, pgIdem
	default:
		log.Warn("memory storage backend; data is lost on restart")
		runner = muow.NewRunner()
		idemStore = memidempotency.NewStore(clk, cfg.IdempotencyTTL)
	}

	if cfg.IdempotencyBackend == "redis" {
		client, err := redisadapter.NewClient(ctx, cfg.RedisURL, 0)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		idemStore = redisidempotency.NewStore(client, "", cfg.IdempotencyTTL)
		purger = nil
	}

	memberSvc := members.NewService(runner, clk, secret.NewBcryptHasher(bcrypt.DefaultCost), secret.NewGenerator())
	memberSvc.Logger = log.Named("members")
	memberSvc.Metrics = lifecycle
	memberSvc.Jurisdiction = cfg.Jurisdiction
	memberSvc.FormCodeSegment = cfg.FormCodeSegment

	amendSvc := amendments.NewService(runner, clk)
	amendSvc.Logger = log.Named("amendments")
	amendSvc.Metrics = lifecycle

	if cfg.BootstrapOperatorSubject != "" {
		first, last := splitName(cfg.BootstrapOperatorName)
		created, err := memberSvc.EnsureOperator(ctx, members.OperatorBootstrap{
			Subject:   domain.SubjectID(cfg.BootstrapOperatorSubject),
			Role:      domain.Role(cfg.BootstrapOperatorRole),
			FirstName: first,
			LastName:  last,
		})
		if err != nil {
			return err
		}
		log.Info("bootstrap operator checked", zap.String("subject", cfg.BootstrapOperatorSubject), zap.Bool("created", created))
	}

	api := httpapi.NewServer(memberSvc, amendSvc, idemStore)
	api.Logger = log.Named("http")

	opts := httpapi.RouterOptions{
		AuthMiddleware: authMW,
		Logger:         log.Named("access"),
		Metrics:        lifecycle,
	}
	if cfg.MetricsEnabled {
		opts.MetricsHandler = metrics.Handler(reg)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.NewRouter(api, opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.StorageBackend), zap.String("auth", cfg.AuthMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if purger != nil {
		g.Go(func() error {
			t := time.NewTicker(purgeInterval)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					n, err := purger.Purge(gctx)
					if err != nil {
						log.Warn("idempotency purge failed", zap.Error(err))
						continue
					}
					log.Debug("idempotency records purged", zap.Int64("count", n))
				}
			}
		})
	}
	return g.Wait()
}

// splitName splits "First Last Names" at the first space.
func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i], strings.TrimSpace(full[i+1:])
	}
	return full, full
}
