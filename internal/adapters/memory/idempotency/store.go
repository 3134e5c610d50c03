package idempotency

import (
	"context"
	"sync"
	"time"

	clockport "github.com/civic-assoc/membership-api/internal/ports/out/clock"
	"github.com/civic-assoc/membership-api/internal/ports/out/idempotency"
)

// Store is an in-memory implementation of idempotency.Store.
// Records older than the TTL are treated as absent. It is safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	m   map[idempotency.Fingerprint]idempotency.Record
	clk clockport.Clock
	ttl time.Duration
}

// NewStore builds a store. A zero ttl keeps records forever.
func NewStore(clk clockport.Clock, ttl time.Duration) *Store {
	return &Store{
		m:   make(map[idempotency.Fingerprint]idempotency.Record),
		clk: clk,
		ttl: ttl,
	}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[fp]
	if ok && s.expired(rec) {
		return idempotency.Record{}, false, nil
	}
	return rec, ok, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() && s.clk != nil {
		rec.CreatedAt = s.clk.Now()
	}
	rec.Body = append([]byte(nil), rec.Body...)
	s.m[fp] = rec
	return nil
}

func (s *Store) expired(rec idempotency.Record) bool {
	if s.ttl <= 0 || s.clk == nil {
		return false
	}
	return s.clk.Now().Sub(rec.CreatedAt) > s.ttl
}
