package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryClaim struct {
	fingerprint string
	done        bool
	stored      StoredResponse
	expiresAt   time.Time
}

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu     sync.Mutex
	claims map[string]memoryClaim
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{claims: make(map[string]memoryClaim)}
}

// Begin implements Store.
func (s *MemoryStore) Begin(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Outcome, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[key]
	if !ok || !now.Before(claim.expiresAt) {
		s.claims[key] = memoryClaim{fingerprint: fingerprint, expiresAt: now.Add(ttl)}
		return Outcome{Decision: DecisionProceed}, nil
	}
	if claim.fingerprint != fingerprint {
		return Outcome{}, ErrKeyReused
	}
	if claim.done {
		return Outcome{Decision: DecisionReplay, Stored: claim.stored}, nil
	}
	return Outcome{Decision: DecisionInFlight}, nil
}

// Complete implements Store.
func (s *MemoryStore) Complete(_ context.Context, key string, resp StoredResponse, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	claim := s.claims[key]
	claim.done = true
	claim.stored = StoredResponse{
		Status: resp.Status,
		Header: storableHeader(resp.Header),
		Body:   append([]byte(nil), resp.Body...),
	}
	claim.expiresAt = now.Add(ttl)
	s.claims[key] = claim
	return nil
}

// Abandon implements Store.
func (s *MemoryStore) Abandon(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	return nil
}

// Purge implements Store.
func (s *MemoryStore) Purge(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, claim := range s.claims {
		if limit > 0 && removed >= limit {
			break
		}
		if now.Before(claim.expiresAt) {
			continue
		}
		delete(s.claims, key)
		removed++
	}
	return removed, nil
}
