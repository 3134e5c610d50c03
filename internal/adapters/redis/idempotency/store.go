package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/civic-assoc/membership-api/internal/ports/out/idempotency"
)

const defaultPrefix = "membership:idem:"

// Store keeps replayable responses in Redis. Records expire through the key TTL.
type Store struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore builds a store. A zero ttl keeps records until evicted. An empty prefix
// uses the default key namespace.
func NewStore(client goredis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

type storedRecord struct {
	StatusCode  int       `json:"statusCode"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	raw, err := s.client.Get(ctx, s.key(fp)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return idempotency.Record{}, false, nil
		}
		return idempotency.Record{}, false, err
	}
	var sr storedRecord
	if err := json.Unmarshal(raw, &sr); err != nil {
		return idempotency.Record{}, false, err
	}
	return idempotency.Record{
		StatusCode:  sr.StatusCode,
		ContentType: sr.ContentType,
		Body:        sr.Body,
		CreatedAt:   sr.CreatedAt.UTC(),
	}, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	raw, err := json.Marshal(storedRecord{
		StatusCode:  rec.StatusCode,
		ContentType: rec.ContentType,
		Body:        rec.Body,
		CreatedAt:   createdAt.UTC(),
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(fp), raw, s.ttl).Err()
}

// key joins the fingerprint parts with a separator that cannot appear in a
// subject, method or route.
func (s *Store) key(fp idempotency.Fingerprint) string {
	return s.prefix + strings.Join([]string{
		string(fp.Subject),
		fp.Method,
		fp.Route,
		fp.BodyHash,
		string(fp.Key),
	}, "\x1f")
}
