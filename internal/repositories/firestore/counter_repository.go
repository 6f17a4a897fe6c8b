package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/auric-atelier/api/internal/platform/firestore"
)

const countersCollection = "counters"

type counterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// CounterRepository hands out order sequence numbers backed by Firestore transactions.
type CounterRepository struct {
	provider *pfirestore.Provider
	counters *pfirestore.BaseRepository[counterDocument]
	now      func() time.Time
}

// NewCounterRepository constructs a Firestore-backed counter repository.
func NewCounterRepository(provider *pfirestore.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	return &CounterRepository{
		provider: provider,
		counters: pfirestore.NewBaseRepository[counterDocument](provider, countersCollection, nil, nil),
		now:      time.Now,
	}, nil
}

// Next atomically increments the counter identified by counterID and returns
// the next value. A missing counter starts at 1. When the context already
// carries a transaction the increment joins it, so the counter commits or
// rolls back together with the caller's writes.
func (r *CounterRepository) Next(ctx context.Context, counterID string) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("counter repository not initialised")
	}
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, errors.New("counter next: counter id is required")
	}

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		nextValue, err := r.nextInTx(ctx, tx, id)
		if err != nil {
			return 0, pfirestore.WrapError("counters.next", err)
		}
		return nextValue, nil
	}

	var nextValue int64
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var err error
		nextValue, err = r.nextInTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return 0, pfirestore.WrapError("counters.next", err)
	}
	return nextValue, nil
}

func (r *CounterRepository) nextInTx(ctx context.Context, tx *firestore.Transaction, id string) (int64, error) {
	ref, err := r.counters.DocumentRef(ctx, id)
	if err != nil {
		return 0, err
	}
	now := r.now().UTC()

	snapshot, err := tx.Get(ref)
	switch status.Code(err) {
	case codes.NotFound:
		doc := counterDocument{CurrentValue: 1, UpdatedAt: now}
		if err := tx.Create(ref, doc); err != nil {
			return 0, err
		}
		return doc.CurrentValue, nil
	case codes.OK:
		// proceed
	default:
		return 0, err
	}

	var doc counterDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return 0, fmt.Errorf("firestore counters decode %s: %w", id, err)
	}

	doc.CurrentValue++
	doc.UpdatedAt = now
	if err := tx.Set(ref, doc); err != nil {
		return 0, err
	}
	return doc.CurrentValue, nil
}
