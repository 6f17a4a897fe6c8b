package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/auric-atelier/api/internal/domain"
	pfirestore "github.com/auric-atelier/api/internal/platform/firestore"
	"github.com/auric-atelier/api/internal/platform/pagination"
	"github.com/auric-atelier/api/internal/repositories"
)

const ordersCollection = "orders"

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
)

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[domain.Order]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[domain.Order](provider, ordersCollection, nil, nil),
	}, nil
}

// Insert persists a new order, failing when the document already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order insert: id is required")
	}
	if _, err := r.orders.Create(ctx, order.ID, order); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update overwrites the order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order update: id is required")
	}
	if _, err := r.orders.Set(ctx, order.ID, order); err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

// Delete removes the order document permanently.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return errors.New("order delete: id is required")
	}
	if err := r.orders.Delete(ctx, orderID, firestore.Exists); err != nil {
		return pfirestore.WrapError("orders.delete", err)
	}
	return nil
}

// FindByID fetches a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order find: id is required")
	}

	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.find", err)
	}
	order := doc.Data
	order.ID = doc.ID
	return order, nil
}

// List returns orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := pagination.Clamp(filter.Pagination.PageSize, defaultOrderPageSize, maxOrderPageSize)

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
	}

	query := client.Collection(ordersCollection).Query
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		query = query.Where("userId", "==", userID)
	}
	if filter.OrderStatus != nil {
		query = query.Where("orderStatus", "==", string(*filter.OrderStatus))
	}
	if filter.PaymentStatus != nil {
		query = query.Where("paymentStatus", "==", string(*filter.PaymentStatus))
	}
	query = query.
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		decoded, err := pagination.DecodeTimeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		query = query.StartAfter(decoded.CreatedAt, decoded.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		var order domain.Order
		if err := snap.DataTo(&order); err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		order.ID = snap.Ref.ID
		orders = append(orders, order)
	}

	hasMore := len(orders) > pageSize
	if hasMore {
		orders = orders[:pageSize]
	}
	var nextToken string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		encoded, err := pagination.EncodeTimeCursor(pagination.TimeCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Order]{
		Items:         orders,
		NextPageToken: nextToken,
	}, nil
}
