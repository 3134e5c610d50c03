package amendmentrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/ports/out/amendmentrepo"
)

// Repo is an in-memory implementation of amendmentrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.AmendmentID]domain.Amendment
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.AmendmentID]domain.Amendment)}
}

func (r *Repo) Create(ctx context.Context, a domain.Amendment) error {
	_ = ctx
	if a.ID == "" {
		return amendmentrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[a.ID]; ok {
		return amendmentrepo.ErrAlreadyExists
	}
	for _, other := range r.byID {
		if other.Reference == a.Reference {
			return amendmentrepo.ErrReferenceTaken
		}
		if a.Status == domain.AmendmentPending && other.MemberID == a.MemberID && other.Status == domain.AmendmentPending {
			return amendmentrepo.ErrPendingExists
		}
	}
	r.byID[a.ID] = cloneAmendment(a)
	return nil
}

func (r *Repo) Save(ctx context.Context, a domain.Amendment) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[a.ID]; !ok {
		return amendmentrepo.ErrNotFound
	}
	r.byID[a.ID] = cloneAmendment(a)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.AmendmentID) (domain.Amendment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return domain.Amendment{}, amendmentrepo.ErrNotFound
	}
	return cloneAmendment(a), nil
}

// GetByIDForUpdate is GetByID; the in-memory unit of work serializes writers.
func (r *Repo) GetByIDForUpdate(ctx context.Context, id domain.AmendmentID) (domain.Amendment, error) {
	return r.GetByID(ctx, id)
}

func (r *Repo) GetPendingByMember(ctx context.Context, memberID domain.MemberID) (domain.Amendment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.byID {
		if a.MemberID == memberID && a.Status == domain.AmendmentPending {
			return cloneAmendment(a), nil
		}
	}
	return domain.Amendment{}, amendmentrepo.ErrNotFound
}

func (r *Repo) ListPending(ctx context.Context) ([]domain.Amendment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Amendment, 0)
	for _, a := range r.byID {
		if a.Status == domain.AmendmentPending {
			out = append(out, cloneAmendment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return submittedBefore(out[i], out[j]) })
	return out, nil
}

func (r *Repo) ListByMember(ctx context.Context, memberID domain.MemberID, limit int) ([]domain.Amendment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Amendment, 0)
	for _, a := range r.byID {
		if a.MemberID == memberID {
			out = append(out, cloneAmendment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return submittedBefore(out[j], out[i]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Snapshot captures the current contents and returns a function restoring them.
func (r *Repo) Snapshot() (restore func()) {
	r.mu.RLock()
	saved := make(map[domain.AmendmentID]domain.Amendment, len(r.byID))
	for id, a := range r.byID {
		saved[id] = cloneAmendment(a)
	}
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		r.byID = saved
		r.mu.Unlock()
	}
}

// submittedBefore orders by submission time, then reference for equal timestamps.
func submittedBefore(a, b domain.Amendment) bool {
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.Reference < b.Reference
}

func cloneAmendment(a domain.Amendment) domain.Amendment {
	out := a
	out.Changes = append([]domain.FieldChange(nil), a.Changes...)
	if a.Documents != nil {
		out.Documents = append([]domain.DocumentRef(nil), a.Documents...)
	}
	out.ReviewerID = cloneMemberIDPtr(a.ReviewerID)
	out.ReviewComment = cloneStringPtr(a.ReviewComment)
	out.RejectionReason = cloneStringPtr(a.RejectionReason)
	if a.DecidedAt != nil {
		v := *a.DecidedAt
		out.DecidedAt = &v
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

func cloneMemberIDPtr(p *domain.MemberID) *domain.MemberID {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
