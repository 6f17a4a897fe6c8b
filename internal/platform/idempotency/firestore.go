package idempotency

import (
	"context"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	claimCollection = "idempotency_keys"
	claimHeld       = "held"
	claimDone       = "done"
	txAttempts      = 5
)

type claimDoc struct {
	Fingerprint    string              `firestore:"fingerprint"`
	State          string              `firestore:"state"`
	ResponseStatus int                 `firestore:"responseStatus"`
	ResponseHeader map[string][]string `firestore:"responseHeader"`
	ResponseBody   []byte              `firestore:"responseBody"`
	CreatedAt      time.Time           `firestore:"createdAt"`
	ExpiresAt      time.Time           `firestore:"expiresAt"`
}

func (d claimDoc) expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && !now.Before(d.ExpiresAt)
}

// FirestoreStore keeps idempotency claims in a Firestore collection, one
// document per claimed key.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore constructs a Firestore-backed claim store.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client, collection: claimCollection}
}

// Begin implements Store. The read-then-claim pair runs in a transaction so
// two concurrent requests with the same key cannot both proceed.
func (s *FirestoreStore) Begin(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Outcome, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.client.Collection(s.collection).Doc(key)

	var outcome Outcome
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		var doc claimDoc
		if err == nil {
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
		}

		if err != nil || doc.expired(now) {
			outcome = Outcome{Decision: DecisionProceed}
			return tx.Set(ref, claimDoc{
				Fingerprint: fingerprint,
				State:       claimHeld,
				CreatedAt:   now,
				ExpiresAt:   now.Add(ttl),
			})
		}

		if doc.Fingerprint != fingerprint {
			return ErrKeyReused
		}
		if doc.State == claimDone {
			outcome = Outcome{Decision: DecisionReplay, Stored: StoredResponse{
				Status: doc.ResponseStatus,
				Header: http.Header(doc.ResponseHeader),
				Body:   doc.ResponseBody,
			}}
			return nil
		}
		outcome = Outcome{Decision: DecisionInFlight}
		return nil
	}, firestore.MaxAttempts(txAttempts))

	return outcome, err
}

// Complete implements Store.
func (s *FirestoreStore) Complete(ctx context.Context, key string, resp StoredResponse, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.client.Collection(s.collection).Doc(key)

	return s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		doc := claimDoc{State: claimDone, CreatedAt: now}
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
		}

		doc.State = claimDone
		doc.ResponseStatus = resp.Status
		doc.ResponseHeader = storableHeader(resp.Header)
		doc.ResponseBody = append([]byte(nil), resp.Body...)
		doc.ExpiresAt = now.Add(ttl)
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		return tx.Set(ref, doc)
	}, firestore.MaxAttempts(txAttempts))
}

// Abandon implements Store. A missing claim is not an error.
func (s *FirestoreStore) Abandon(ctx context.Context, key string) error {
	_, err := s.client.Collection(s.collection).Doc(key).Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

// Purge implements Store.
func (s *FirestoreStore) Purge(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	docs, err := s.client.Collection(s.collection).
		Where("expiresAt", "<=", now.UTC()).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil || len(docs) == 0 {
		return 0, err
	}

	batch := s.client.Batch()
	for _, doc := range docs {
		batch.Delete(doc.Ref)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return 0, err
	}
	return len(docs), nil
}
