package uow

import (
	"context"
	"errors"
	"testing"

	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/ports/out/memberrepo"
	"github.com/civic-assoc/membership-api/internal/ports/out/uow"
)

func TestRunner_RollsBackOnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewRunner()

	boom := errors.New("boom")
	err := r.Run(ctx, func(ctx context.Context, tx uow.Stores) error {
		if _, err := tx.Sequences.Next(ctx, domain.SequenceFormCode, "member"); err != nil {
			return err
		}
		if err := tx.Members.Create(ctx, memberrepo.Member{Member: domain.Member{ID: "m1", Reference: "r1"}}); err != nil {
			return err
		}
		if err := tx.Audit.Append(ctx, domain.AuditEntry{ID: "a1", Action: domain.AuditMemberApproved}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() err=%v, want %v", err, boom)
	}

	if _, err := r.Members.GetByID(ctx, "m1"); !errors.Is(err, memberrepo.ErrNotFound) {
		t.Fatalf("expected member write to be rolled back, err=%v", err)
	}
	n, _ := r.Sequences.Next(ctx, domain.SequenceFormCode, "member")
	if n != 1 {
		t.Fatalf("expected counter rollback, got %d", n)
	}
}

func TestRunner_CommitsOnSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewRunner()

	err := r.Run(ctx, func(ctx context.Context, tx uow.Stores) error {
		return tx.Members.Create(ctx, memberrepo.Member{Member: domain.Member{ID: "m1", Reference: "r1"}})
	})
	if err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if _, err := r.Stores().Members.GetByID(ctx, "m1"); err != nil {
		t.Fatalf("expected committed member, err=%v", err)
	}
}
