package uow

import (
	"context"
	"sync"

	"github.com/civic-assoc/membership-api/internal/adapters/memory/amendmentrepo"
	"github.com/civic-assoc/membership-api/internal/adapters/memory/auditlog"
	"github.com/civic-assoc/membership-api/internal/adapters/memory/formrepo"
	"github.com/civic-assoc/membership-api/internal/adapters/memory/memberrepo"
	"github.com/civic-assoc/membership-api/internal/adapters/memory/sequence"
	"github.com/civic-assoc/membership-api/internal/ports/out/uow"
)

// Runner is an in-memory uow.Runner. Units of work are serialized by a single lock
// and rolled back by restoring repository snapshots.
type Runner struct {
	mu sync.Mutex

	Members    *memberrepo.Repo
	Forms      *formrepo.Repo
	Amendments *amendmentrepo.Repo
	Audit      *auditlog.Log
	Sequences  *sequence.Allocator
}

func NewRunner() *Runner {
	return &Runner{
		Members:    memberrepo.NewRepo(),
		Forms:      formrepo.NewRepo(),
		Amendments: amendmentrepo.NewRepo(),
		Audit:      auditlog.NewLog(),
		Sequences:  sequence.NewAllocator(),
	}
}

func (r *Runner) Stores() uow.Stores {
	return uow.Stores{
		Members:    r.Members,
		Forms:      r.Forms,
		Amendments: r.Amendments,
		Audit:      r.Audit,
		Sequences:  r.Sequences,
	}
}

func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context, tx uow.Stores) error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	restores := []func(){
		r.Members.Snapshot(),
		r.Forms.Snapshot(),
		r.Amendments.Snapshot(),
		r.Audit.Snapshot(),
		r.Sequences.Snapshot(),
	}
	defer func() {
		if p := recover(); p != nil {
			rollback(restores)
			panic(p)
		}
		if err != nil {
			rollback(restores)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, r.Stores())
}

func rollback(restores []func()) {
	for _, restore := range restores {
		restore()
	}
}
