package auditlog

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/civic-assoc/membership-api/internal/domain"
)

// Log is an in-memory, append-only implementation of auditlog.Log.
// It is safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(ctx context.Context, e domain.AuditEntry) error {
	_ = ctx
	if e.ID == "" {
		return errors.New("audit entry id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, cloneEntry(e))
	return nil
}

func (l *Log) ListByMember(ctx context.Context, memberID domain.MemberID, limit int) ([]domain.AuditEntry, error) {
	_ = ctx
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.AuditEntry, 0)
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if e.MemberID == nil || *e.MemberID != memberID {
			continue
		}
		out = append(out, cloneEntry(e))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Snapshot returns a function truncating the log back to its current length.
func (l *Log) Snapshot() (restore func()) {
	l.mu.RLock()
	n := len(l.entries)
	l.mu.RUnlock()
	return func() {
		l.mu.Lock()
		l.entries = l.entries[:n]
		l.mu.Unlock()
	}
}

func cloneEntry(e domain.AuditEntry) domain.AuditEntry {
	out := e
	out.Details = maps.Clone(e.Details)
	if e.ActorID != nil {
		v := *e.ActorID
		out.ActorID = &v
	}
	if e.MemberID != nil {
		v := *e.MemberID
		out.MemberID = &v
	}
	return out
}
