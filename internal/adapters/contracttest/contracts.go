package contracttest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/civic-assoc/membership-api/internal/domain"
	amendmentrepoport "github.com/civic-assoc/membership-api/internal/ports/out/amendmentrepo"
	auditlogport "github.com/civic-assoc/membership-api/internal/ports/out/auditlog"
	formrepoport "github.com/civic-assoc/membership-api/internal/ports/out/formrepo"
	idempotencyport "github.com/civic-assoc/membership-api/internal/ports/out/idempotency"
	memberrepoport "github.com/civic-assoc/membership-api/internal/ports/out/memberrepo"
	sequenceport "github.com/civic-assoc/membership-api/internal/ports/out/sequence"
	uowport "github.com/civic-assoc/membership-api/internal/ports/out/uow"
)

type CleanupFunc = func()

// Factories for the form, amendment and audit suites must make SeedMemberA and
// SeedMemberB resolvable wherever rows reference a member.
const (
	SeedMemberA = domain.MemberID("00000000-0000-4000-8000-00000000000a")
	SeedMemberB = domain.MemberID("00000000-0000-4000-8000-00000000000b")
)

type MemberRepoFactory func(t *testing.T) (memberrepoport.Repository, CleanupFunc)
type FormRepoFactory func(t *testing.T) (formrepoport.Repository, CleanupFunc)
type AmendmentRepoFactory func(t *testing.T) (amendmentrepoport.Repository, CleanupFunc)
type AuditLogFactory func(t *testing.T) (auditlogport.Log, CleanupFunc)
type SequenceFactory func(t *testing.T) (sequenceport.Allocator, CleanupFunc)
type UnitOfWorkFactory func(t *testing.T) (uowport.Runner, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      "k-1",
		Subject:  domain.SubjectID("sub-1"),
		Method:   "POST",
		Route:    "/members/{memberId}/approve",
		BodyHash: "",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}
	rec := idempotencyport.Record{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        []byte(`{"status":"APPROVED"}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != `{"status":"APPROVED"}` || got.ContentType != "application/json" || got.StatusCode != 200 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Each fingerprint component scopes the record.
	other := fp
	other.Subject = "sub-2"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("expected miss for other subject, ok=%v err=%v", ok, err)
	}
	other = fp
	other.BodyHash = "different"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("expected miss for other body hash, ok=%v err=%v", ok, err)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte(`{"status":"REJECTED"}`)
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != `{"status":"REJECTED"}` {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}
}

func newMember(ref, nationalID, first, last, email, phone string) memberrepoport.Member {
	now := time.Unix(1000, 0).UTC()
	return memberrepoport.Member{Member: domain.Member{
		ID:         domain.MemberID(uuid.NewString()),
		NationalID: nationalID,
		Reference:  ref,
		Role:       domain.RoleMember,
		Status:     domain.MemberStatusPending,
		IsActive:   true,
		Profile: domain.Profile{
			FirstName: first,
			LastName:  last,
			Email:     email,
			Phone:     phone,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}}
}

func RunMemberRepo(t *testing.T, newRepo MemberRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	alice := newMember("0001/HQ/MBR", "NID-0001", "Alice", "Johnson", "alice@example.com", "+33 6 11 22 33 44")
	if err := repo.Create(ctx, alice); err != nil {
		t.Fatalf("Create alice: %v", err)
	}
	got, err := repo.GetByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Reference != alice.Reference || got.Profile.Email != "alice@example.com" || got.Subject != nil {
		t.Fatalf("unexpected member: %#v", got)
	}
	if _, err := repo.GetByIDForUpdate(ctx, alice.ID); err != nil {
		t.Fatalf("GetByIDForUpdate: %v", err)
	}
	if _, err := repo.GetByID(ctx, domain.MemberID(uuid.NewString())); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("GetByID missing: err=%v, want ErrNotFound", err)
	}

	// Identity uniqueness.
	dup := newMember("0002/HQ/MBR", "nid-0001", "Other", "Person", "other@example.com", "0600000000")
	if err := repo.Create(ctx, dup); !errors.Is(err, memberrepoport.ErrDuplicateNationalID) {
		t.Fatalf("duplicate national ID: err=%v", err)
	}
	dup = newMember("0002/HQ/MBR", "NID-0002", "Other", "Person", "ALICE@example.com", "0600000000")
	if err := repo.Create(ctx, dup); !errors.Is(err, memberrepoport.ErrDuplicateEmail) {
		t.Fatalf("duplicate email: err=%v", err)
	}
	dup = newMember("0001/HQ/MBR", "NID-0002", "Other", "Person", "other@example.com", "0600000000")
	if err := repo.Create(ctx, dup); !errors.Is(err, memberrepoport.ErrReferenceTaken) {
		t.Fatalf("duplicate reference: err=%v", err)
	}

	field, err := repo.FindIdentityConflict(ctx, "nid-0001", "", "")
	if err != nil || field != memberrepoport.IdentityNationalID {
		t.Fatalf("FindIdentityConflict nationalId: field=%q err=%v", field, err)
	}
	field, err = repo.FindIdentityConflict(ctx, "NID-9999", "alice@example.com", "")
	if err != nil || field != memberrepoport.IdentityEmail {
		t.Fatalf("FindIdentityConflict email: field=%q err=%v", field, err)
	}
	field, err = repo.FindIdentityConflict(ctx, "NID-0001", "alice@example.com", alice.ID)
	if err != nil || field != memberrepoport.IdentityNone {
		t.Fatalf("FindIdentityConflict excluding self: field=%q err=%v", field, err)
	}

	// Phone lookup compares digits only.
	got, err = repo.GetByPhoneAndReference(ctx, "+33.6.11.22.33.44", "0001/HQ/MBR")
	if err != nil || got.ID != alice.ID {
		t.Fatalf("GetByPhoneAndReference: got=%v err=%v", got.ID, err)
	}
	if _, err := repo.GetByPhoneAndReference(ctx, "+33611223345", "0001/HQ/MBR"); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("GetByPhoneAndReference wrong phone: err=%v", err)
	}

	// Subject binding.
	sub := domain.SubjectID("alice.johnson")
	alice.Subject = &sub
	alice.PasswordHash = []byte("hash")
	alice.MustChangePassword = true
	if err := repo.Update(ctx, alice); err != nil {
		t.Fatalf("Update bind subject: %v", err)
	}
	if ok, err := repo.SubjectExists(ctx, sub); err != nil || !ok {
		t.Fatalf("SubjectExists: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.SubjectExists(ctx, "nobody"); err != nil || ok {
		t.Fatalf("SubjectExists missing: ok=%v err=%v", ok, err)
	}
	got, err = repo.GetBySubject(ctx, sub)
	if err != nil || got.ID != alice.ID || string(got.PasswordHash) != "hash" || !got.MustChangePassword {
		t.Fatalf("GetBySubject: got=%#v err=%v", got, err)
	}
	rebound := alice
	other := domain.SubjectID("alice.j")
	rebound.Subject = &other
	if err := repo.Update(ctx, rebound); !errors.Is(err, memberrepoport.ErrSubjectAlreadyBound) {
		t.Fatalf("rebinding subject: err=%v", err)
	}

	bob := newMember("0002/HQ/MBR", "NID-0002", "bob", "Adams", "bob@example.com", "0611111111")
	if err := repo.Create(ctx, bob); err != nil {
		t.Fatalf("Create bob: %v", err)
	}
	bob.Subject = &sub
	if err := repo.Update(ctx, bob); !errors.Is(err, memberrepoport.ErrSubjectAlreadyBound) {
		t.Fatalf("subject uniqueness: err=%v", err)
	}
	bob.Subject = nil
	if err := repo.Update(ctx, memberrepoport.Member{Member: domain.Member{ID: domain.MemberID(uuid.NewString())}}); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("Update missing: err=%v", err)
	}

	// Directory visibility: approved, active, non-operator.
	approve(&bob, "N°001/ASSOC/2026")
	if err := repo.Update(ctx, bob); err != nil {
		t.Fatalf("Update bob: %v", err)
	}
	op := newMember("0003/HQ/ADM", "", "Alan", "Adams", "", "0622222222")
	op.Role = domain.RoleAdmin
	approve(&op, "N°001/ASSOC-ADM/2026")
	if err := repo.Create(ctx, op); err != nil {
		t.Fatalf("Create operator: %v", err)
	}
	inactive := newMember("0004/HQ/MBR", "NID-0004", "Bobby", "Adams", "", "0633333333")
	approve(&inactive, "N°002/ASSOC/2026")
	inactive.IsActive = false
	if err := repo.Create(ctx, inactive); err != nil {
		t.Fatalf("Create inactive: %v", err)
	}

	// Deterministic list ordering by last name, then first name.
	all, err := repo.List(ctx, memberrepoport.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != op.ID || all[1].ID != bob.ID || all[2].ID != alice.ID {
		t.Fatalf("unexpected ordering: %v", memberIDs(all))
	}
	withInactive, err := repo.List(ctx, memberrepoport.ListFilter{IncludeInactive: true})
	if err != nil || len(withInactive) != 4 {
		t.Fatalf("List include inactive: n=%d err=%v", len(withInactive), err)
	}
	approved := domain.MemberStatusApproved
	dir, err := repo.List(ctx, memberrepoport.ListFilter{Status: &approved, ExcludeOperators: true})
	if err != nil || len(dir) != 1 || dir[0].ID != bob.ID {
		t.Fatalf("List directory filter: %v err=%v", memberIDs(dir), err)
	}

	// Search: token AND match, directory-visible only, limit.
	res, err := repo.SearchDirectory(ctx, "ada bo", 10)
	if err != nil {
		t.Fatalf("SearchDirectory: %v", err)
	}
	if len(res) != 1 || res[0].ID != bob.ID {
		t.Fatalf("unexpected search result: %v", memberIDs(res))
	}
	res, err = repo.SearchDirectory(ctx, "johnson", 10)
	if err != nil || len(res) != 0 {
		t.Fatalf("pending member must not be searchable: %v err=%v", memberIDs(res), err)
	}
}

func approve(m *memberrepoport.Member, formCode string) {
	cardAt := time.Unix(2000, 0).UTC()
	m.Status = domain.MemberStatusApproved
	m.FormCode = &formCode
	m.CardIssuedAt = &cardAt
	m.HasSubmittedForm = true
}

func memberIDs(ms []memberrepoport.Member) []domain.MemberID {
	out := make([]domain.MemberID, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}

func newForm(member domain.MemberID, version int, active bool) domain.MembershipForm {
	now := time.Unix(3000, 0).UTC().Add(time.Duration(version) * time.Minute)
	return domain.MembershipForm{
		ID:       domain.FormID(uuid.NewString()),
		MemberID: member,
		Version:  version,
		Revision: 1,
		Active:   active,
		Snapshot: domain.FormSnapshot{
			NationalID: "NID-0001",
			Profile:    domain.Profile{FirstName: "Alice", LastName: "Johnson"},
			Documents:  []domain.DocumentRef{{Kind: "id_card", URL: "https://files.example.org/id.pdf"}},
		},
		SubmittedAt: now,
		UpdatedAt:   now,
	}
}

func RunFormRepo(t *testing.T, newRepo FormRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	if _, err := repo.GetActive(ctx, SeedMemberA); !errors.Is(err, formrepoport.ErrNotFound) {
		t.Fatalf("GetActive empty: err=%v", err)
	}
	if v, err := repo.LatestVersion(ctx, SeedMemberA); err != nil || v != 0 {
		t.Fatalf("LatestVersion empty: v=%d err=%v", v, err)
	}

	v1 := newForm(SeedMemberA, 1, true)
	if err := repo.Create(ctx, v1); err != nil {
		t.Fatalf("Create v1: %v", err)
	}
	if err := repo.Create(ctx, newForm(SeedMemberA, 1, false)); !errors.Is(err, formrepoport.ErrVersionExists) {
		t.Fatalf("duplicate version: err=%v", err)
	}
	if err := repo.Create(ctx, newForm(SeedMemberA, 2, true)); !errors.Is(err, formrepoport.ErrActiveExists) {
		t.Fatalf("second active version: err=%v", err)
	}

	// In-place revision keeps the version number.
	v1.Revision = 2
	v1.Snapshot.DocumentURL = "https://files.example.org/v1r2.pdf"
	if err := repo.Update(ctx, v1); err != nil {
		t.Fatalf("Update v1: %v", err)
	}
	active, err := repo.GetActive(ctx, SeedMemberA)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active.ID != v1.ID || active.Revision != 2 || active.Snapshot.DocumentURL != "https://files.example.org/v1r2.pdf" {
		t.Fatalf("unexpected active form: %#v", active)
	}
	if len(active.Snapshot.Documents) != 1 || active.Snapshot.Documents[0].Kind != "id_card" {
		t.Fatalf("documents not round-tripped: %#v", active.Snapshot.Documents)
	}

	n, err := repo.DeactivateAll(ctx, SeedMemberA)
	if err != nil || n != 1 {
		t.Fatalf("DeactivateAll: n=%d err=%v", n, err)
	}
	if _, err := repo.GetActive(ctx, SeedMemberA); !errors.Is(err, formrepoport.ErrNotFound) {
		t.Fatalf("GetActive after deactivate: err=%v", err)
	}
	v2 := newForm(SeedMemberA, 2, true)
	if err := repo.Create(ctx, v2); err != nil {
		t.Fatalf("Create v2: %v", err)
	}
	if err := repo.Create(ctx, newForm(SeedMemberB, 1, true)); err != nil {
		t.Fatalf("Create other member v1: %v", err)
	}

	if v, err := repo.LatestVersion(ctx, SeedMemberA); err != nil || v != 2 {
		t.Fatalf("LatestVersion: v=%d err=%v", v, err)
	}
	list, err := repo.ListByMember(ctx, SeedMemberA)
	if err != nil {
		t.Fatalf("ListByMember: %v", err)
	}
	if len(list) != 2 || list[0].ID != v2.ID || list[1].ID != v1.ID || list[1].Active {
		t.Fatalf("unexpected versions: %#v", list)
	}
}

func newAmendment(member domain.MemberID, ref string, at time.Time) domain.Amendment {
	return domain.Amendment{
		ID:        domain.AmendmentID(uuid.NewString()),
		Reference: ref,
		MemberID:  member,
		Changes: []domain.FieldChange{
			{Field: domain.FieldAddress, Before: "Rue 10", After: "Villa 7"},
		},
		Justification: "moved to a new apartment",
		Status:        domain.AmendmentPending,
		SubmittedAt:   at,
	}
}

func RunAmendmentRepo(t *testing.T, newRepo AmendmentRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	t0 := time.Unix(5000, 0).UTC()
	a1 := newAmendment(SeedMemberA, "AMD-2026-001", t0)
	if err := repo.Create(ctx, a1); err != nil {
		t.Fatalf("Create a1: %v", err)
	}
	got, err := repo.GetByID(ctx, a1.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Reference != a1.Reference || len(got.Changes) != 1 || got.Changes[0] != a1.Changes[0] {
		t.Fatalf("unexpected amendment: %#v", got)
	}
	if _, err := repo.GetByID(ctx, domain.AmendmentID(uuid.NewString())); !errors.Is(err, amendmentrepoport.ErrNotFound) {
		t.Fatalf("GetByID missing: err=%v", err)
	}

	if err := repo.Create(ctx, newAmendment(SeedMemberA, "AMD-2026-002", t0.Add(time.Minute))); !errors.Is(err, amendmentrepoport.ErrPendingExists) {
		t.Fatalf("second pending: err=%v", err)
	}
	if err := repo.Create(ctx, newAmendment(SeedMemberB, "AMD-2026-001", t0.Add(time.Minute))); !errors.Is(err, amendmentrepoport.ErrReferenceTaken) {
		t.Fatalf("duplicate reference: err=%v", err)
	}
	b1 := newAmendment(SeedMemberB, "AMD-2026-002", t0.Add(time.Minute))
	if err := repo.Create(ctx, b1); err != nil {
		t.Fatalf("Create b1: %v", err)
	}

	pa, err := repo.GetPendingByMember(ctx, SeedMemberA)
	if err != nil || pa.ID != a1.ID {
		t.Fatalf("GetPendingByMember: id=%v err=%v", pa.ID, err)
	}
	pending, err := repo.ListPending(ctx)
	if err != nil || len(pending) != 2 || pending[0].ID != a1.ID || pending[1].ID != b1.ID {
		t.Fatalf("ListPending oldest first: %#v err=%v", pending, err)
	}

	locked, err := repo.GetByIDForUpdate(ctx, a1.ID)
	if err != nil {
		t.Fatalf("GetByIDForUpdate: %v", err)
	}
	reviewer := SeedMemberB
	decidedAt := t0.Add(time.Hour)
	reason := "insufficient proof"
	locked.Status = domain.AmendmentRejected
	locked.ReviewerID = &reviewer
	locked.DecidedAt = &decidedAt
	locked.RejectionReason = &reason
	if err := repo.Save(ctx, locked); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := repo.GetPendingByMember(ctx, SeedMemberA); !errors.Is(err, amendmentrepoport.ErrNotFound) {
		t.Fatalf("GetPendingByMember after decision: err=%v", err)
	}

	// Decided amendments free the pending slot.
	a2 := newAmendment(SeedMemberA, "AMD-2026-003", t0.Add(2*time.Hour))
	if err := repo.Create(ctx, a2); err != nil {
		t.Fatalf("Create a2: %v", err)
	}
	hist, err := repo.ListByMember(ctx, SeedMemberA, 10)
	if err != nil || len(hist) != 2 || hist[0].ID != a2.ID || hist[1].ID != a1.ID {
		t.Fatalf("ListByMember newest first: %#v err=%v", hist, err)
	}
	if hist[1].RejectionReason == nil || *hist[1].RejectionReason != reason || hist[1].DecidedAt == nil || !hist[1].DecidedAt.Equal(decidedAt) {
		t.Fatalf("decision not persisted: %#v", hist[1])
	}
	hist, err = repo.ListByMember(ctx, SeedMemberA, 1)
	if err != nil || len(hist) != 1 || hist[0].ID != a2.ID {
		t.Fatalf("ListByMember limit: %#v err=%v", hist, err)
	}
}

func RunAuditLog(t *testing.T, newLog AuditLogFactory) {
	t.Helper()
	ctx := context.Background()

	log, cleanup := newLog(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	memberA, memberB := SeedMemberA, SeedMemberB
	t0 := time.Unix(7000, 0).UTC()
	actions := []domain.AuditAction{
		domain.AuditApplicationSubmitted,
		domain.AuditIdentifierIssued,
		domain.AuditMemberApproved,
	}
	for i, action := range actions {
		if err := log.Append(ctx, domain.AuditEntry{
			ID:        domain.AuditEntryID(uuid.NewString()),
			ActorID:   &memberB,
			MemberID:  &memberA,
			Action:    action,
			Details:   map[string]any{"step": fmt.Sprint(i)},
			IPAddress: "192.0.2.10",
			UserAgent: "contract-test",
			CreatedAt: t0,
		}); err != nil {
			t.Fatalf("Append %s: %v", action, err)
		}
	}
	if err := log.Append(ctx, domain.AuditEntry{
		ID:        domain.AuditEntryID(uuid.NewString()),
		MemberID:  &memberB,
		Action:    domain.AuditOperatorBootstrapped,
		CreatedAt: t0,
	}); err != nil {
		t.Fatalf("Append other member: %v", err)
	}

	got, err := log.ListByMember(ctx, memberA, 0)
	if err != nil {
		t.Fatalf("ListByMember: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListByMember: n=%d", len(got))
	}
	if got[0].Action != domain.AuditMemberApproved || got[2].Action != domain.AuditApplicationSubmitted {
		t.Fatalf("expected newest first, got %s..%s", got[0].Action, got[2].Action)
	}
	if got[0].Details["step"] != "2" || got[0].IPAddress != "192.0.2.10" || got[0].ActorID == nil || *got[0].ActorID != memberB {
		t.Fatalf("entry not round-tripped: %#v", got[0])
	}

	got, err = log.ListByMember(ctx, memberA, 2)
	if err != nil || len(got) != 2 {
		t.Fatalf("ListByMember limit: n=%d err=%v", len(got), err)
	}
}

func RunSequenceAllocator(t *testing.T, newAllocator SequenceFactory) {
	t.Helper()
	ctx := context.Background()

	alloc, cleanup := newAllocator(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	for want := int64(1); want <= 3; want++ {
		got, err := alloc.Next(ctx, domain.SequenceFormCode, "member")
		if err != nil || got != want {
			t.Fatalf("Next form_code/member: got=%d err=%v, want %d", got, err, want)
		}
	}
	// Scopes and families count independently.
	if got, err := alloc.Next(ctx, domain.SequenceFormCode, "operator"); err != nil || got != 1 {
		t.Fatalf("Next form_code/operator: got=%d err=%v", got, err)
	}
	if got, err := alloc.Next(ctx, domain.SequenceAmendmentReference, "2026"); err != nil || got != 1 {
		t.Fatalf("Next amendment/2026: got=%d err=%v", got, err)
	}

	const n = 20
	seen := make([]int64, n)
	var g errgroup.Group
	for i := range seen {
		g.Go(func() error {
			v, err := alloc.Next(ctx, domain.SequenceMemberReference, "")
			seen[i] = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Next: %v", err)
	}
	got := make(map[int64]bool, n)
	for _, v := range seen {
		if v < 1 || v > n || got[v] {
			t.Fatalf("concurrent Next produced %v", seen)
		}
		got[v] = true
	}
}

func RunUnitOfWork(t *testing.T, newRunner UnitOfWorkFactory) {
	t.Helper()
	ctx := context.Background()

	runner, cleanup := newRunner(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	committed := newMember("0001/HQ/MBR", "NID-1001", "Carla", "Commit", "carla@example.com", "0644444444")
	err := runner.Run(ctx, func(ctx context.Context, tx uowport.Stores) error {
		if _, err := tx.Sequences.Next(ctx, domain.SequenceMemberReference, ""); err != nil {
			return err
		}
		if err := tx.Members.Create(ctx, committed); err != nil {
			return err
		}
		if err := tx.Forms.Create(ctx, newForm(committed.ID, 1, true)); err != nil {
			return err
		}
		return tx.Audit.Append(ctx, domain.AuditEntry{
			ID:        domain.AuditEntryID(uuid.NewString()),
			MemberID:  &committed.ID,
			Action:    domain.AuditApplicationSubmitted,
			CreatedAt: time.Unix(8000, 0).UTC(),
		})
	})
	if err != nil {
		t.Fatalf("Run commit: %v", err)
	}
	stores := runner.Stores()
	if _, err := stores.Members.GetByID(ctx, committed.ID); err != nil {
		t.Fatalf("committed member missing: %v", err)
	}
	if _, err := stores.Forms.GetActive(ctx, committed.ID); err != nil {
		t.Fatalf("committed form missing: %v", err)
	}

	boom := errors.New("boom")
	rolledBack := newMember("0002/HQ/MBR", "NID-1002", "Rolf", "Back", "rolf@example.com", "0655555555")
	err = runner.Run(ctx, func(ctx context.Context, tx uowport.Stores) error {
		if _, err := tx.Sequences.Next(ctx, domain.SequenceMemberReference, ""); err != nil {
			return err
		}
		if err := tx.Members.Create(ctx, rolledBack); err != nil {
			return err
		}
		m, err := tx.Members.GetByIDForUpdate(ctx, committed.ID)
		if err != nil {
			return err
		}
		reason := "incomplete documents"
		m.Status = domain.MemberStatusRejected
		m.RejectionReason = &reason
		if err := tx.Members.Update(ctx, m); err != nil {
			return err
		}
		if err := tx.Audit.Append(ctx, domain.AuditEntry{
			ID:        domain.AuditEntryID(uuid.NewString()),
			MemberID:  &committed.ID,
			Action:    domain.AuditMemberRejected,
			CreatedAt: time.Unix(8001, 0).UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run rollback: err=%v, want %v", err, boom)
	}

	if _, err := stores.Members.GetByID(ctx, rolledBack.ID); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("rolled back member visible: err=%v", err)
	}
	m, err := stores.Members.GetByID(ctx, committed.ID)
	if err != nil || m.Status != domain.MemberStatusPending {
		t.Fatalf("rolled back update visible: status=%s err=%v", m.Status, err)
	}
	entries, err := stores.Audit.ListByMember(ctx, committed.ID, 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("rolled back audit entry visible: n=%d err=%v", len(entries), err)
	}
	if next, err := stores.Sequences.Next(ctx, domain.SequenceMemberReference, ""); err != nil || next != 2 {
		t.Fatalf("rolled back counter: next=%d err=%v", next, err)
	}
}
