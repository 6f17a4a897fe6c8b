package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/auric-atelier/api/internal/repositories"
)

// InventoryServiceDeps enumerates collaborators required to construct the service.
type InventoryServiceDeps struct {
	ProductStock repositories.ProductStockRepository
	Clock        func() time.Time
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	products repositories.ProductStockRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewInventoryService wires dependencies into an InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.ProductStock == nil {
		return nil, errors.New("inventory service: product stock repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &inventoryService{
		products: deps.ProductStock,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *inventoryService) ApplyOrderPlacement(ctx context.Context, order Order) error {
	return s.adjustLines(ctx, order, -1, "inventory.placement_adjust_failed")
}

func (s *inventoryService) RestoreOrderCancellation(ctx context.Context, order Order) error {
	return s.adjustLines(ctx, order, 1, "inventory.restore_adjust_failed")
}

// adjustLines applies per-line stock adjustments. Each line is an independent
// atomic increment on its product document; there is no cross-line transaction
// and no stock floor check. A failing line is logged and the rest proceed.
func (s *inventoryService) adjustLines(ctx context.Context, order Order, direction int64, failureEvent string) error {
	now := s.clock()
	var failures []error
	for _, item := range order.Items {
		productRef := strings.TrimSpace(item.ProductRef)
		if productRef == "" || item.Quantity <= 0 {
			continue
		}
		quantity := int64(item.Quantity)
		stockDelta := direction * quantity
		soldDelta := -direction * quantity
		if err := s.products.Adjust(ctx, productRef, stockDelta, soldDelta, now); err != nil {
			s.logger(ctx, failureEvent, map[string]any{
				"orderId":    order.ID,
				"productRef": productRef,
				"quantity":   item.Quantity,
				"error":      err.Error(),
			})
			failures = append(failures, fmt.Errorf("adjust %s: %w", productRef, err))
		}
	}
	return errors.Join(failures...)
}
