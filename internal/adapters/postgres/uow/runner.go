package uow

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/civic-assoc/membership-api/internal/adapters/postgres"
	"github.com/civic-assoc/membership-api/internal/adapters/postgres/amendmentrepo"
	"github.com/civic-assoc/membership-api/internal/adapters/postgres/auditlog"
	"github.com/civic-assoc/membership-api/internal/adapters/postgres/formrepo"
	"github.com/civic-assoc/membership-api/internal/adapters/postgres/memberrepo"
	"github.com/civic-assoc/membership-api/internal/adapters/postgres/sequence"
	"github.com/civic-assoc/membership-api/internal/ports/out/uow"
)

const maxAttempts = 3

// Runner runs each unit of work in one Postgres transaction. Transactions aborted
// by a deadlock or serialization failure are retried with a short backoff.
type Runner struct {
	pool *pgxpool.Pool
}

func NewRunner(pool *pgxpool.Pool) *Runner {
	return &Runner{pool: pool}
}

func (r *Runner) Stores() uow.Stores {
	return storesFor(r.pool)
}

func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context, tx uow.Stores) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond

	op := func() error {
		err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			return fn(ctx, storesFor(tx))
		})
		if err != nil && !postgres.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx))
}

func storesFor(db postgres.DBTX) uow.Stores {
	return uow.Stores{
		Members:    memberrepo.NewRepo(db),
		Forms:      formrepo.NewRepo(db),
		Amendments: amendmentrepo.NewRepo(db),
		Audit:      auditlog.NewLog(db),
		Sequences:  sequence.NewAllocator(db),
	}
}
