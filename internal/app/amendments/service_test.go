package amendments

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	memclock "github.com/civic-assoc/membership-api/internal/adapters/memory/clock"
	muow "github.com/civic-assoc/membership-api/internal/adapters/memory/uow"
	"github.com/civic-assoc/membership-api/internal/app/apperr"
	"github.com/civic-assoc/membership-api/internal/app/members"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/platform/secret"
)

type fixture struct {
	svc     *Service
	members *members.Service
	runner  *muow.Runner
	clk     *memclock.ManualClock
	admin   domain.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	runner := muow.NewRunner()
	clk := memclock.NewManualClock(time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC))
	ms := members.NewService(runner, clk, secret.NewBcryptHasher(bcrypt.MinCost), secret.NewGenerator())

	ctx := context.Background()
	_, err := ms.EnsureOperator(ctx, members.OperatorBootstrap{
		Subject: "ops.secretary", Role: domain.RoleSecretary, FirstName: "Sam", LastName: "Secretary",
	})
	require.NoError(t, err)
	admin, err := ms.ResolveActor(ctx, "ops.secretary")
	require.NoError(t, err)

	return &fixture{svc: NewService(runner, clk), members: ms, runner: runner, clk: clk, admin: admin}
}

// approvedMember creates an APPROVED member and returns it with its actor.
func (f *fixture) approvedMember(t *testing.T, n int) (domain.Member, domain.Actor) {
	t.Helper()
	ctx := context.Background()
	m, err := f.members.SubmitApplication(ctx, members.FormInput{
		NationalID: fmt.Sprintf("ID-%05d", n),
		Profile: domain.Profile{
			FirstName:     "Awa",
			LastName:      fmt.Sprintf("Diop%d", n),
			Phone:         fmt.Sprintf("+2217700%05d", n),
			Email:         fmt.Sprintf("awa%d@example.org", n),
			Address:       "Rue 10, Médina",
			Profession:    "Librarian",
			ResidenceCity: "Dakar",
		},
	})
	require.NoError(t, err)
	m, err = f.members.Approve(ctx, f.admin, m.ID, "")
	require.NoError(t, err)
	return m, domain.Actor{MemberID: m.ID, Role: m.Role}
}

func requireCode(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok, "err=%v (type=%T)", err, err)
	assert.Equal(t, code, ae.Code)
	assert.Equal(t, status, ae.Status)
}

const justification = "moved to a new apartment"

func TestService_Submit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	m, actor := f.approvedMember(t, 1)

	a, err := f.svc.Submit(ctx, actor, SubmitInput{
		Fields: domain.FieldValues{
			domain.FieldAddress:    " Villa 7, Almadies ",
			domain.FieldProfession: "Librarian",
		},
		Justification: justification,
	})
	require.NoError(t, err)
	assert.Equal(t, "AMD-2026-001", a.Reference)
	assert.Equal(t, domain.AmendmentPending, a.Status)
	assert.Equal(t, m.ID, a.MemberID)
	require.Len(t, a.Changes, 1, "unchanged fields are not part of the diff")
	assert.Equal(t, domain.FieldChange{Field: domain.FieldAddress, Before: "Rue 10, Médina", After: "Villa 7, Almadies"}, a.Changes[0])

	entries, err := f.runner.Audit.ListByMember(ctx, m.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.AuditAmendmentSubmitted, entries[0].Action)
}

func TestService_Submit_OnlyOnePending(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	_, actor := f.approvedMember(t, 1)

	_, err := f.svc.Submit(ctx, actor, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldAddress: "Villa 7"},
		Justification: justification,
	})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, actor, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldProfession: "Principal"},
		Justification: "promoted at work this year",
	})
	requireCode(t, err, 409, apperr.CodeAmendmentAlreadyPending)

	pending, err := f.svc.ListPending(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestService_Submit_NoChanges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	m, actor := f.approvedMember(t, 1)

	_, err := f.svc.Submit(ctx, actor, SubmitInput{
		Fields: domain.FieldValues{
			domain.FieldAddress: m.Profile.Address,
			domain.FieldEmail:   "AWA1@example.org",
		},
		Justification: justification,
	})
	requireCode(t, err, 409, apperr.CodeNoChangesDetected)

	history, err := f.svc.ListForMember(ctx, actor)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestService_Submit_EquivalentSpellingIsNoChange(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	m, actor := f.approvedMember(t, 1)

	a, err := f.svc.Submit(ctx, actor, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldChildrenCount: "2"},
		Justification: justification,
	})
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, f.admin, a.ID, DecideInput{Decision: DecisionApprove})
	require.NoError(t, err)

	for _, v := range []string{"02", "+2", " 002 "} {
		_, err := f.svc.Submit(ctx, actor, SubmitInput{
			Fields:        domain.FieldValues{domain.FieldChildrenCount: v},
			Justification: justification,
		})
		requireCode(t, err, 409, apperr.CodeNoChangesDetected)
	}

	pending, err := f.runner.Amendments.GetPendingByMember(ctx, m.ID)
	assert.Error(t, err, "no pending amendment left behind: %+v", pending)

	a, err = f.svc.Submit(ctx, actor, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldChildrenCount: "03"},
		Justification: justification,
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.FieldChange{{Field: domain.FieldChildrenCount, Before: "2", After: "3"}}, a.Changes)
}

func TestService_Submit_AppliesProfileFieldRules(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		field domain.ProfileField
		value string
	}{
		{"email not an address", domain.FieldEmail, "not-an-email"},
		{"email with display name", domain.FieldEmail, "Awa <awa@example.org>"},
		{"phone without digits", domain.FieldPhone, "x"},
		{"phone too short", domain.FieldPhone, "12 34"},
		{"phone too long", domain.FieldPhone, "+1234567890123456"},
		{"first name too short", domain.FieldFirstName, "A"},
		{"last name too short", domain.FieldLastName, " B "},
		{"photo ref not http", domain.FieldPhotoRef, "javascript:alert(1)"},
		{"signature ref relative", domain.FieldSignatureRef, "/files/sig.png"},
		{"children count negative", domain.FieldChildrenCount, "-1"},
		{"issue date wrong layout", domain.FieldIDDocumentIssued, "2020/01/05"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			ctx := context.Background()
			m, actor := f.approvedMember(t, 1)

			_, err := f.svc.Submit(ctx, actor, SubmitInput{
				Fields:        domain.FieldValues{tc.field: tc.value},
				Justification: justification,
			})
			requireCode(t, err, 422, apperr.CodeValidation)
			ae, _ := apperr.As(err)
			assert.Contains(t, ae.Details, string(tc.field))

			history, err := f.svc.ListForMember(ctx, actor)
			require.NoError(t, err)
			assert.Empty(t, history)
			got, err := f.members.GetMember(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, m.Profile, got.Profile)
		})
	}
}

func TestService_Submit_RejectsNonHTTPDocuments(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, actor := f.approvedMember(t, 1)

	_, err := f.svc.Submit(context.Background(), actor, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldAddress: "Villa 7"},
		Justification: justification,
		Documents:     []domain.DocumentRef{{Kind: "lease", URL: "file:///etc/passwd"}},
	})
	requireCode(t, err, 422, apperr.CodeValidation)
	ae, _ := apperr.As(err)
	assert.Contains(t, ae.Details, "documents")
}

func TestService_Submit_RequiresApprovedMember(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.members.SubmitApplication(ctx, members.FormInput{
		NationalID: "ID-99999",
		Profile:    domain.Profile{FirstName: "Ibou", LastName: "Fall", Phone: "+221770000001"},
	})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, domain.Actor{MemberID: m.ID, Role: m.Role}, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldAddress: "Villa 7"},
		Justification: justification,
	})
	requireCode(t, err, 409, apperr.CodeMemberNotApproved)
}

func TestService_Submit_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, actor := f.approvedMember(t, 1)

	_, err := f.svc.Submit(context.Background(), actor, SubmitInput{
		Fields: domain.FieldValues{
			domain.FieldChildrenCount:    "many",
			domain.FieldIDDocumentIssued: "31/12/2020",
		},
		Justification: "short",
	})
	requireCode(t, err, 422, apperr.CodeValidation)
	ae, _ := apperr.As(err)
	assert.Contains(t, ae.Details, "justification")
	assert.Contains(t, ae.Details, string(domain.FieldChildrenCount))
	assert.Contains(t, ae.Details, string(domain.FieldIDDocumentIssued))
}

func TestService_Submit_EmailTakenByAnotherMember(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, actor := f.approvedMember(t, 1)
	f.approvedMember(t, 2)

	_, err := f.svc.Submit(context.Background(), actor, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldEmail: "awa2@example.org"},
		Justification: justification,
	})
	requireCode(t, err, 409, apperr.CodeDuplicateIdentity)
}

func TestService_ApproveCopiesValuesBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	m, actor := f.approvedMember(t, 1)

	a, err := f.svc.Submit(ctx, actor, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldAddress: "X"},
		Justification: justification,
	})
	require.NoError(t, err)

	f.clk.Advance(time.Hour)
	decided, err := f.svc.Decide(ctx, f.admin, a.ID, DecideInput{Decision: DecisionApprove, Comment: "proof attached"})
	require.NoError(t, err)
	assert.Equal(t, domain.AmendmentApproved, decided.Status)
	require.NotNil(t, decided.ReviewerID)
	assert.Equal(t, f.admin.MemberID, *decided.ReviewerID)
	require.NotNil(t, decided.DecidedAt)
	assert.Equal(t, f.clk.Now(), *decided.DecidedAt)

	got, err := f.members.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "X", got.Profile.Address)
	assert.Equal(t, domain.MemberStatusApproved, got.Status)
	assert.Equal(t, m.FormCode, got.FormCode)

	want := m.Profile.Fields()
	want[domain.FieldAddress] = "X"
	assert.Equal(t, want, got.Profile.Fields(), "no other field changes")

	_, err = f.svc.Decide(ctx, f.admin, a.ID, DecideInput{Decision: DecisionReject, RejectionReason: "changed mind"})
	requireCode(t, err, 409, apperr.CodeAlreadyDecided)
}

func TestService_RejectLeavesProfileUntouched(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	m, actor := f.approvedMember(t, 1)

	a, err := f.svc.Submit(ctx, actor, SubmitInput{
		Fields: domain.FieldValues{
			domain.FieldPhone:   "+221781112233",
			domain.FieldAddress: "Villa 7, Almadies",
		},
		Justification: justification,
	})
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, f.admin, a.ID, DecideInput{Decision: DecisionReject})
	requireCode(t, err, 422, apperr.CodeValidation)

	decided, err := f.svc.Decide(ctx, f.admin, a.ID, DecideInput{Decision: DecisionReject, RejectionReason: "insufficient proof"})
	require.NoError(t, err)
	assert.Equal(t, domain.AmendmentRejected, decided.Status)
	require.NotNil(t, decided.RejectionReason)
	assert.Equal(t, "insufficient proof", *decided.RejectionReason)

	got, err := f.members.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Profile.Phone, got.Profile.Phone)
	assert.Equal(t, m.Profile.Address, got.Profile.Address)

	// A decided amendment frees the slot for a new one.
	_, err = f.svc.Submit(ctx, actor, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldAddress: "Villa 7, Almadies"},
		Justification: "attached the lease this time",
	})
	require.NoError(t, err)
}

func TestService_Decide_StaleProfile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	m, actor := f.approvedMember(t, 1)

	a, err := f.svc.Submit(ctx, actor, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldAddress: "Villa 7"},
		Justification: justification,
	})
	require.NoError(t, err)

	stored, err := f.runner.Members.GetByID(ctx, m.ID)
	require.NoError(t, err)
	stored.Profile.Address = "Somewhere else"
	require.NoError(t, f.runner.Members.Update(ctx, stored))

	_, err = f.svc.Decide(ctx, f.admin, a.ID, DecideInput{Decision: DecisionApprove})
	requireCode(t, err, 409, apperr.CodeAmendmentStale)

	got, err := f.svc.Get(ctx, f.admin, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AmendmentPending, got.Status)
	after, err := f.members.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Somewhere else", after.Profile.Address)
}

func TestService_Decide_RequiresOperator(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	_, actor := f.approvedMember(t, 1)

	a, err := f.svc.Submit(ctx, actor, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldAddress: "Villa 7"},
		Justification: justification,
	})
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, actor, a.ID, DecideInput{Decision: DecisionApprove})
	requireCode(t, err, 403, apperr.CodeForbidden)

	_, err = f.svc.Decide(ctx, f.admin, "missing", DecideInput{Decision: DecisionApprove})
	requireCode(t, err, 404, apperr.CodeAmendmentNotFound)

	_, err = f.svc.Decide(ctx, f.admin, a.ID, DecideInput{Decision: "MAYBE"})
	requireCode(t, err, 422, apperr.CodeValidation)
}

func TestService_ListForMember_RedactsUndecided(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	_, actor := f.approvedMember(t, 1)

	first, err := f.svc.Submit(ctx, actor, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldAddress: "Villa 7"},
		Justification: justification,
	})
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, f.admin, first.ID, DecideInput{Decision: DecisionApprove, Comment: "fine"})
	require.NoError(t, err)

	f.clk.Advance(time.Minute)
	_, err = f.svc.Submit(ctx, actor, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldProfession: "Principal"},
		Justification: "promoted at work this year",
	})
	require.NoError(t, err)

	history, err := f.svc.ListForMember(ctx, actor)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.AmendmentPending, history[0].Status)
	assert.Nil(t, history[0].ReviewerID)
	assert.Equal(t, domain.AmendmentApproved, history[1].Status)
	require.NotNil(t, history[1].ReviewComment)
	assert.Equal(t, "fine", *history[1].ReviewComment)
}

func TestService_Submit_ConcurrentReferencesAreDistinct(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	actors := make([]domain.Actor, n)
	for i := range actors {
		_, actors[i] = f.approvedMember(t, i+1)
	}

	refs := make([]string, n)
	var g errgroup.Group
	for i, actor := range actors {
		g.Go(func() error {
			a, err := f.svc.Submit(ctx, actor, SubmitInput{
				Fields:        domain.FieldValues{domain.FieldResidenceCity: "Thiès"},
				Justification: justification,
			})
			refs[i] = a.Reference
			return err
		})
	}
	require.NoError(t, g.Wait())

	seqs := make([]int64, 0, n)
	for _, ref := range refs {
		year, seq, ok := domain.ParseAmendmentReference(ref)
		require.True(t, ok, ref)
		assert.Equal(t, 2026, year)
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, seq := range seqs {
		assert.Equal(t, int64(i+1), seq)
	}
}

func TestService_ReferencesRestartEachYear(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	_, first := f.approvedMember(t, 1)
	_, second := f.approvedMember(t, 2)

	a, err := f.svc.Submit(ctx, first, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldAddress: "Villa 7"},
		Justification: justification,
	})
	require.NoError(t, err)
	assert.Equal(t, "AMD-2026-001", a.Reference)

	f.clk.Set(time.Date(2027, 1, 3, 8, 0, 0, 0, time.UTC))
	b, err := f.svc.Submit(ctx, second, SubmitInput{
		Fields:        domain.FieldValues{domain.FieldAddress: "Villa 8"},
		Justification: justification,
	})
	require.NoError(t, err)
	assert.Equal(t, "AMD-2027-001", b.Reference)
}
