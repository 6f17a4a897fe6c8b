package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/auric-atelier/api/internal/domain"
	pfirestore "github.com/auric-atelier/api/internal/platform/firestore"
)

const productsCollection = "products"

// ProductStockRepository adjusts stock counters on product documents.
type ProductStockRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[domain.ProductStock]
}

// NewProductStockRepository constructs a Firestore-backed product stock repository.
func NewProductStockRepository(provider *pfirestore.Provider) (*ProductStockRepository, error) {
	if provider == nil {
		return nil, errors.New("product stock repository requires firestore provider")
	}
	return &ProductStockRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository[domain.ProductStock](provider, productsCollection, nil, nil),
	}, nil
}

// Adjust applies atomic field increments to a single product document.
// Each call touches exactly one document; callers apply per-line adjustments
// independently so one missing product does not block the others.
func (r *ProductStockRepository) Adjust(ctx context.Context, productRef string, stockDelta, soldDelta int64, now time.Time) error {
	if r == nil || r.products == nil {
		return errors.New("product stock repository not initialised")
	}
	productRef = strings.TrimSpace(productRef)
	if productRef == "" {
		return errors.New("product stock adjust: product ref is required")
	}
	if stockDelta == 0 && soldDelta == 0 {
		return nil
	}

	updates := []firestore.Update{
		{Path: "updatedAt", Value: now.UTC()},
	}
	if stockDelta != 0 {
		updates = append(updates, firestore.Update{Path: "stock", Value: firestore.Increment(stockDelta)})
	}
	if soldDelta != 0 {
		updates = append(updates, firestore.Update{Path: "sold", Value: firestore.Increment(soldDelta)})
	}

	if _, err := r.products.Update(ctx, productRef, updates); err != nil {
		return pfirestore.WrapError("products.adjustStock", err)
	}
	return nil
}
