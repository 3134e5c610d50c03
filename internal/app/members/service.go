package members

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civic-assoc/membership-api/internal/app/apperr"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/platform/metrics"
	"github.com/civic-assoc/membership-api/internal/platform/requestctx"
	clockport "github.com/civic-assoc/membership-api/internal/ports/out/clock"
	"github.com/civic-assoc/membership-api/internal/ports/out/credentials"
	"github.com/civic-assoc/membership-api/internal/ports/out/memberrepo"
	"github.com/civic-assoc/membership-api/internal/ports/out/uow"
)

// Service runs the member lifecycle: intake, identifier issuance, form submission
// and operator review.
type Service struct {
	uow     uow.Runner
	clk     clockport.Clock
	hasher  credentials.Hasher
	secrets credentials.SecretGenerator

	newMemberID func() domain.MemberID
	newFormID   func() domain.FormID
	newAuditID  func() domain.AuditEntryID

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Metrics may be nil.
	Metrics *metrics.Lifecycle

	// Jurisdiction is embedded in membership references.
	Jurisdiction string
	// FormCodeSegment is the middle segment of form codes.
	FormCodeSegment string

	// SearchLimit bounds directory search result size.
	SearchLimit int
	// AuditLimit bounds audit listings.
	AuditLimit int
}

func NewService(runner uow.Runner, clk clockport.Clock, hasher credentials.Hasher, secrets credentials.SecretGenerator) *Service {
	return &Service{
		uow:     runner,
		clk:     clk,
		hasher:  hasher,
		secrets: secrets,
		newMemberID: func() domain.MemberID {
			return domain.MemberID(uuid.NewString())
		},
		newFormID: func() domain.FormID {
			return domain.FormID(uuid.NewString())
		},
		newAuditID: func() domain.AuditEntryID {
			return domain.AuditEntryID(uuid.NewString())
		},
		Logger:          zap.NewNop(),
		Jurisdiction:    "HQ",
		FormCodeSegment: "ASSOC",
		SearchLimit:     50,
		AuditLimit:      100,
	}
}

// SetNewMemberIDForTest overrides member ID generation.
func (s *Service) SetNewMemberIDForTest(fn func() domain.MemberID) {
	s.newMemberID = fn
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// finish records the outcome of an operation and logs it.
func (s *Service) finish(op string, actor domain.Actor, memberID domain.MemberID, err error) {
	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("member_id", string(memberID)),
		zap.String("actor_id", string(actor.MemberID)),
	}
	if err == nil {
		s.Metrics.ObserveOperation(op, "ok")
		s.log().Info("member lifecycle operation", fields...)
		return
	}
	if ae, ok := apperr.As(err); ok {
		s.Metrics.ObserveOperation(op, ae.Code)
		s.log().Debug("member lifecycle operation refused", append(fields, zap.String("code", ae.Code))...)
		return
	}
	s.Metrics.ObserveOperation(op, "error")
	s.log().Error("member lifecycle operation failed", append(fields, zap.Error(err))...)
}

// audit appends an entry inside the current unit of work.
func (s *Service) audit(ctx context.Context, tx uow.Stores, actor domain.Actor, memberID domain.MemberID, action domain.AuditAction, details map[string]any) error {
	client := requestctx.ClientFrom(ctx)
	e := domain.AuditEntry{
		ID:        s.newAuditID(),
		Action:    action,
		Details:   details,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		CreatedAt: s.clk.Now(),
	}
	if actor.MemberID != "" {
		id := actor.MemberID
		e.ActorID = &id
	}
	if memberID != "" {
		id := memberID
		e.MemberID = &id
	}
	return tx.Audit.Append(ctx, e)
}

func requireOperator(actor domain.Actor) error {
	if !actor.IsOperator() {
		return apperr.Forbidden("operator identity required")
	}
	return nil
}

func memberNotFound() error {
	return apperr.NotFound(apperr.CodeMemberNotFound, "member not found")
}

func lockMember(ctx context.Context, tx uow.Stores, id domain.MemberID) (memberrepo.Member, error) {
	m, err := tx.Members.GetByIDForUpdate(ctx, id)
	if errors.Is(err, memberrepo.ErrNotFound) {
		return memberrepo.Member{}, memberNotFound()
	}
	return m, err
}

func (s *Service) year() int {
	return s.clk.Now().Year()
}

func (s *Service) now() time.Time {
	return s.clk.Now()
}

func ptr[T any](v T) *T { return &v }
