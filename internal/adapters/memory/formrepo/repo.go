package formrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/ports/out/formrepo"
)

// Repo is an in-memory implementation of formrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.FormID]domain.MembershipForm
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.FormID]domain.MembershipForm)}
}

func (r *Repo) Create(ctx context.Context, f domain.MembershipForm) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[f.ID]; ok || f.ID == "" {
		return formrepo.ErrVersionExists
	}
	for _, other := range r.byID {
		if other.MemberID != f.MemberID {
			continue
		}
		if other.Version == f.Version {
			return formrepo.ErrVersionExists
		}
		if f.Active && other.Active {
			return formrepo.ErrActiveExists
		}
	}
	r.byID[f.ID] = cloneForm(f)
	return nil
}

func (r *Repo) Update(ctx context.Context, f domain.MembershipForm) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[f.ID]
	if !ok {
		return formrepo.ErrNotFound
	}
	if existing.MemberID != f.MemberID || existing.Version != f.Version {
		return formrepo.ErrVersionExists
	}
	if f.Active {
		for id, other := range r.byID {
			if id != f.ID && other.MemberID == f.MemberID && other.Active {
				return formrepo.ErrActiveExists
			}
		}
	}
	r.byID[f.ID] = cloneForm(f)
	return nil
}

func (r *Repo) GetActive(ctx context.Context, memberID domain.MemberID) (domain.MembershipForm, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.byID {
		if f.MemberID == memberID && f.Active {
			return cloneForm(f), nil
		}
	}
	return domain.MembershipForm{}, formrepo.ErrNotFound
}

func (r *Repo) LatestVersion(ctx context.Context, memberID domain.MemberID) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	latest := 0
	for _, f := range r.byID {
		if f.MemberID == memberID && f.Version > latest {
			latest = f.Version
		}
	}
	return latest, nil
}

func (r *Repo) DeactivateAll(ctx context.Context, memberID domain.MemberID) (int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, f := range r.byID {
		if f.MemberID == memberID && f.Active {
			f.Active = false
			r.byID[id] = f
			n++
		}
	}
	return n, nil
}

func (r *Repo) ListByMember(ctx context.Context, memberID domain.MemberID) ([]domain.MembershipForm, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.MembershipForm, 0)
	for _, f := range r.byID {
		if f.MemberID == memberID {
			out = append(out, cloneForm(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// Snapshot captures the current contents and returns a function restoring them.
func (r *Repo) Snapshot() (restore func()) {
	r.mu.RLock()
	saved := make(map[domain.FormID]domain.MembershipForm, len(r.byID))
	for id, f := range r.byID {
		saved[id] = cloneForm(f)
	}
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		r.byID = saved
		r.mu.Unlock()
	}
}

func cloneForm(f domain.MembershipForm) domain.MembershipForm {
	out := f
	out.Snapshot.Profile = f.Snapshot.Profile.Clone()
	if f.Snapshot.Documents != nil {
		out.Snapshot.Documents = append([]domain.DocumentRef(nil), f.Snapshot.Documents...)
	}
	if f.SubmittedBy != nil {
		v := *f.SubmittedBy
		out.SubmittedBy = &v
	}
	return out
}
