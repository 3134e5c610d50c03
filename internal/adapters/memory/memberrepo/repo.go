package memberrepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/ports/out/memberrepo"
)

// Repo is an in-memory implementation of memberrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID map[domain.MemberID]memberrepo.Member
}

func NewRepo() *Repo {
	return &Repo{
		byID: make(map[domain.MemberID]memberrepo.Member),
	}
}

func (r *Repo) Create(ctx context.Context, m memberrepo.Member) error {
	_ = ctx
	if m.ID == "" {
		return memberrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[m.ID]; ok {
		return memberrepo.ErrAlreadyExists
	}
	if err := r.checkUniqueLocked(m); err != nil {
		return err
	}
	r.byID[m.ID] = cloneMember(m)
	return nil
}

func (r *Repo) Update(ctx context.Context, m memberrepo.Member) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[m.ID]
	if !ok {
		return memberrepo.ErrNotFound
	}
	// Once bound, a login identifier cannot change.
	if existing.IsProvisioned() && (m.Subject == nil || *m.Subject != *existing.Subject) {
		return memberrepo.ErrSubjectAlreadyBound
	}
	if err := r.checkUniqueLocked(m); err != nil {
		return err
	}
	r.byID[m.ID] = cloneMember(m)
	return nil
}

// checkUniqueLocked mirrors the unique indexes of the relational schema.
func (r *Repo) checkUniqueLocked(m memberrepo.Member) error {
	for id, other := range r.byID {
		if id == m.ID {
			continue
		}
		if m.IsProvisioned() && other.IsProvisioned() && *m.Subject == *other.Subject {
			return memberrepo.ErrSubjectAlreadyBound
		}
		if m.NationalID != "" && strings.EqualFold(m.NationalID, other.NationalID) {
			return memberrepo.ErrDuplicateNationalID
		}
		if m.Profile.Email != "" && strings.EqualFold(m.Profile.Email, other.Profile.Email) {
			return memberrepo.ErrDuplicateEmail
		}
		if m.Reference != "" && m.Reference == other.Reference {
			return memberrepo.ErrReferenceTaken
		}
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.MemberID) (memberrepo.Member, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return memberrepo.Member{}, memberrepo.ErrNotFound
	}
	return cloneMember(m), nil
}

// GetByIDForUpdate is GetByID; the in-memory unit of work serializes writers.
func (r *Repo) GetByIDForUpdate(ctx context.Context, id domain.MemberID) (memberrepo.Member, error) {
	return r.GetByID(ctx, id)
}

func (r *Repo) GetBySubject(ctx context.Context, subject domain.SubjectID) (memberrepo.Member, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.byID {
		if m.IsProvisioned() && *m.Subject == subject {
			return cloneMember(m), nil
		}
	}
	return memberrepo.Member{}, memberrepo.ErrNotFound
}

func (r *Repo) GetByPhoneAndReference(ctx context.Context, phone string, reference string) (memberrepo.Member, error) {
	_ = ctx
	want := domain.NormalizePhone(phone)
	ref := strings.TrimSpace(reference)
	if want == "" || ref == "" {
		return memberrepo.Member{}, memberrepo.ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.byID {
		if m.Reference == ref && domain.NormalizePhone(m.Profile.Phone) == want {
			return cloneMember(m), nil
		}
	}
	return memberrepo.Member{}, memberrepo.ErrNotFound
}

func (r *Repo) SubjectExists(ctx context.Context, subject domain.SubjectID) (bool, error) {
	_, err := r.GetBySubject(ctx, subject)
	if err == memberrepo.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *Repo) FindIdentityConflict(ctx context.Context, nationalID string, email string, exclude domain.MemberID) (memberrepo.IdentityField, error) {
	_ = ctx
	nationalID = strings.TrimSpace(nationalID)
	email = strings.TrimSpace(email)
	r.mu.RLock()
	defer r.mu.RUnlock()

	if nationalID != "" {
		for id, m := range r.byID {
			if id != exclude && strings.EqualFold(m.NationalID, nationalID) {
				return memberrepo.IdentityNationalID, nil
			}
		}
	}
	if email != "" {
		for id, m := range r.byID {
			if id != exclude && strings.EqualFold(m.Profile.Email, email) {
				return memberrepo.IdentityEmail, nil
			}
		}
	}
	return memberrepo.IdentityNone, nil
}

func (r *Repo) List(ctx context.Context, f memberrepo.ListFilter) ([]memberrepo.Member, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]memberrepo.Member, 0, len(r.byID))
	for _, m := range r.byID {
		if !f.IncludeInactive && !m.IsActive {
			continue
		}
		if f.Status != nil && m.Status != *f.Status {
			continue
		}
		if f.ExcludeOperators && m.Role.IsOperator() {
			continue
		}
		out = append(out, cloneMember(m))
	}
	sortMembersByName(out)
	return out, nil
}

func (r *Repo) SearchDirectory(ctx context.Context, query string, limit int) ([]memberrepo.Member, error) {
	_ = ctx

	qTokens := tokenize(query)
	if len(qTokens) == 0 {
		return []memberrepo.Member{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]memberrepo.Member, 0)
	for _, m := range r.byID {
		if !m.InDirectory() {
			continue
		}
		if matchesAllTokens(m.Profile.FullName(), qTokens) {
			out = append(out, cloneMember(m))
		}
	}
	sortMembersByName(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Snapshot captures the current contents and returns a function restoring them.
func (r *Repo) Snapshot() (restore func()) {
	r.mu.RLock()
	saved := make(map[domain.MemberID]memberrepo.Member, len(r.byID))
	for id, m := range r.byID {
		saved[id] = cloneMember(m)
	}
	r.mu.RUnlock()

	return func() {
		r.mu.Lock()
		r.byID = saved
		r.mu.Unlock()
	}
}

func cloneMember(m memberrepo.Member) memberrepo.Member {
	out := m
	out.Profile = m.Profile.Clone()
	if m.Subject != nil {
		v := *m.Subject
		out.Subject = &v
	}
	out.FormCode = cloneStringPtr(m.FormCode)
	out.RejectionReason = cloneStringPtr(m.RejectionReason)
	if m.CardIssuedAt != nil {
		v := *m.CardIssuedAt
		out.CardIssuedAt = &v
	}
	if m.PasswordHash != nil {
		out.PasswordHash = append([]byte(nil), m.PasswordHash...)
	}
	return out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sortMembersByName(ms []memberrepo.Member) {
	sort.Slice(ms, func(i, j int) bool {
		li, lj := strings.ToLower(ms[i].Profile.LastName), strings.ToLower(ms[j].Profile.LastName)
		if li != lj {
			return li < lj
		}
		fi, fj := strings.ToLower(ms[i].Profile.FirstName), strings.ToLower(ms[j].Profile.FirstName)
		if fi != fj {
			return fi < fj
		}
		return string(ms[i].ID) < string(ms[j].ID)
	})
}

func tokenize(s string) []string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func matchesAllTokens(name string, tokens []string) bool {
	hay := strings.ToLower(name)
	for _, t := range tokens {
		if !strings.Contains(hay, t) {
			return false
		}
	}
	return true
}
