package uow

import (
	"context"

	"github.com/civic-assoc/membership-api/internal/ports/out/amendmentrepo"
	"github.com/civic-assoc/membership-api/internal/ports/out/auditlog"
	"github.com/civic-assoc/membership-api/internal/ports/out/formrepo"
	"github.com/civic-assoc/membership-api/internal/ports/out/memberrepo"
	"github.com/civic-assoc/membership-api/internal/ports/out/sequence"
)

// Stores is the set of repositories bound to one persistence context.
type Stores struct {
	Members    memberrepo.Repository
	Forms      formrepo.Repository
	Amendments amendmentrepo.Repository
	Audit      auditlog.Log
	Sequences  sequence.Allocator
}

// Runner executes work inside an all-or-nothing unit. If fn returns an error every
// write made through the provided Stores is discarded.
type Runner interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error

	// Stores returns repositories for reads outside a unit of work.
	Stores() Stores
}
