package services

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/auric-atelier/api/internal/domain"
	"github.com/auric-atelier/api/internal/platform/events"
	"github.com/auric-atelier/api/internal/repositories"
)

const (
	orderCounterPrefix = "orders"

	fallbackCompanyName = "Auric Atelier"

	// Customer notices substitute these when the order or the store settings
	// leave the detail blank, so no template line ever renders empty.
	defaultCarrierText      = "our delivery partner"
	defaultTrackingText     = "will follow shortly"
	defaultSupportEmailText = "our support team"
	defaultSupportPhoneText = "the number on our contact page"
)

var (
	// ErrFulfillmentInvalidInput indicates required fields were missing or malformed.
	ErrFulfillmentInvalidInput = errors.New("fulfillment: invalid input")
	// ErrOrderNotFound indicates the order does not exist or is not visible to the requester.
	ErrOrderNotFound = errors.New("fulfillment: order not found")
	// ErrOrderInvalidState indicates the requested status transition is illegal.
	ErrOrderInvalidState = errors.New("fulfillment: invalid order state")
	// ErrOrderConflict indicates a concurrent write collided with this one.
	ErrOrderConflict = errors.New("fulfillment: order conflict")
)

// FulfillmentServiceDeps enumerates collaborators required to construct the service.
type FulfillmentServiceDeps struct {
	Orders        repositories.OrderRepository
	Counters      repositories.CounterRepository
	Settings      SettingsService
	Templates     TemplateService
	Mail          MailService
	Inventory     InventoryService
	Notifications NotificationService
	Events        events.Publisher
	ProofArchiver PaymentProofArchiver
	Unit          repositories.UnitOfWork
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type fulfillmentService struct {
	orders        repositories.OrderRepository
	counters      repositories.CounterRepository
	settings      SettingsService
	templates     TemplateService
	mail          MailService
	inventory     InventoryService
	notifications NotificationService
	events        events.Publisher
	proofArchiver PaymentProofArchiver
	unit          repositories.UnitOfWork
	clock         func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

// NewFulfillmentService wires dependencies into a FulfillmentService implementation.
// Events, ProofArchiver, Inventory, Notifications, Mail and Templates are the
// best-effort side-effect surfaces; only Orders, Counters and Settings are
// hard requirements of the pipeline itself.
func NewFulfillmentService(deps FulfillmentServiceDeps) (FulfillmentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("fulfillment service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("fulfillment service: counter repository is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("fulfillment service: settings service is required")
	}

	unit := deps.Unit
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &fulfillmentService{
		orders:        deps.Orders,
		counters:      deps.Counters,
		settings:      deps.Settings,
		templates:     deps.Templates,
		mail:          deps.Mail,
		inventory:     deps.Inventory,
		notifications: deps.Notifications,
		events:        deps.Events,
		proofArchiver: deps.ProofArchiver,
		unit:          unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// PlaceOrder validates the command, prices shipping from the store settings,
// persists the order, and then fans out best-effort side effects. Persisting
// the order document is the only hard failure boundary: once it is written,
// inventory, notification, email, and event failures are logged and the order
// is still returned to the caller.
func (s *fulfillmentService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	if err := validatePlaceOrderCommand(cmd); err != nil {
		return Order{}, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("load store settings: %w", err)
	}

	now := s.clock()
	items := make([]OrderLineItem, 0, len(cmd.Items))
	var subtotal int64
	for _, item := range cmd.Items {
		lineTotal := item.UnitPrice * int64(item.Quantity)
		items = append(items, OrderLineItem{
			ProductRef: strings.TrimSpace(item.ProductRef),
			Name:       strings.TrimSpace(item.Name),
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			ImageRef:   strings.TrimSpace(item.ImageRef),
			Variations: cloneStringMap(item.Variations),
			Total:      lineTotal,
		})
		subtotal += lineTotal
	}
	totals := priceOrder(subtotal, settings)

	// The sequence number is allocated inside the insert transaction so a
	// failed insert never burns a number. The callback may retry, so the
	// order document is rebuilt on each pass.
	var order Order
	err = s.unit.RunInTx(ctx, func(ctx context.Context) error {
		orderNumber, err := s.nextOrderNumber(ctx, now)
		if err != nil {
			return err
		}
		order = Order{
			ID:              ensureOrderID(s.newID()),
			OrderNumber:     orderNumber,
			UserID:          strings.TrimSpace(cmd.UserID),
			Customer:        normalizeCustomer(cmd.Customer),
			Items:           items,
			Totals:          totals,
			PaymentStatus:   domain.PaymentStatusPending,
			OrderStatus:     domain.OrderStatusProcessing,
			PaymentProofRef: normalizeOptionalString(cmd.PaymentProofRef),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return s.orders.Insert(ctx, order)
	})
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}

	s.applyPlacementSideEffects(ctx, order, settings)

	return order, nil
}

func (s *fulfillmentService) GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrFulfillmentInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}
	if !opts.AdminAccess && order.UserID != strings.TrimSpace(opts.RequesterUID) {
		// Hidden rather than forbidden so order IDs cannot be enumerated.
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (s *fulfillmentService) ListOrders(ctx context.Context, query OrderListQuery) (domain.CursorPage[Order], error) {
	if query.OrderStatus != nil && !domain.ValidOrderStatus(*query.OrderStatus) {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown order status %q", ErrFulfillmentInvalidInput, *query.OrderStatus)
	}
	if query.PaymentStatus != nil && !domain.ValidPaymentStatus(*query.PaymentStatus) {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown payment status %q", ErrFulfillmentInvalidInput, *query.PaymentStatus)
	}

	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID:        strings.TrimSpace(query.UserID),
		OrderStatus:   query.OrderStatus,
		PaymentStatus: query.PaymentStatus,
		Pagination:    query.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, mapOrderRepositoryError(err)
	}
	return page, nil
}

// ResubmitPaymentProof resets a rejected payment to pending review with the
// new proof reference. Totals and line items are never touched. Submitting
// the same proof again while already pending is a no-op.
func (s *fulfillmentService) ResubmitPaymentProof(ctx context.Context, cmd ResubmitProofCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrFulfillmentInvalidInput)
	}
	proofRef := strings.TrimSpace(cmd.ProofRef)
	if proofRef == "" {
		return Order{}, fmt.Errorf("%w: proof reference is required", ErrFulfillmentInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}
	if order.UserID != strings.TrimSpace(cmd.RequesterUID) {
		return Order{}, ErrOrderNotFound
	}

	if order.PaymentStatus == domain.PaymentStatusPending &&
		order.PaymentProofRef != nil && *order.PaymentProofRef == proofRef {
		return order, nil
	}
	if !domain.CanTransitionPaymentStatus(order.PaymentStatus, domain.PaymentStatusPending) {
		return Order{}, fmt.Errorf("%w: payment status %s cannot return to pending", ErrOrderInvalidState, order.PaymentStatus)
	}

	previousPayment := order.PaymentStatus
	previousProof := order.PaymentProofRef
	now := s.clock()
	order.PaymentStatus = domain.PaymentStatusPending
	order.PaymentProofRef = &proofRef
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}

	if s.proofArchiver != nil && previousProof != nil && *previousProof != proofRef {
		if err := s.proofArchiver.ArchiveProof(ctx, order.ID, *previousProof); err != nil {
			s.logger(ctx, "order.proof_archive_failed", map[string]any{
				"orderId":  order.ID,
				"proofRef": *previousProof,
				"error":    err.Error(),
			})
		}
	}
	if previousPayment != order.PaymentStatus {
		s.publishStatusChanged(ctx, order, order.OrderStatus, previousPayment, now)
	}

	return order, nil
}

// AdminUpdateOrder applies a partial status update, validating every
// transition against the state machine, then fans out the side effects the
// diff owes: shipment and payment review emails, inventory restoration on
// cancellation, and a status-changed event. All side effects are best-effort.
func (s *fulfillmentService) AdminUpdateOrder(ctx context.Context, cmd AdminUpdateOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrFulfillmentInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}

	previousOrderStatus := order.OrderStatus
	previousPaymentStatus := order.PaymentStatus
	now := s.clock()
	changed := false

	if cmd.OrderStatus != nil {
		target := *cmd.OrderStatus
		if !domain.ValidOrderStatus(target) {
			return Order{}, fmt.Errorf("%w: unknown order status %q", ErrFulfillmentInvalidInput, target)
		}
		if !domain.CanTransitionOrderStatus(order.OrderStatus, target) {
			return Order{}, fmt.Errorf("%w: order status %s cannot move to %s", ErrOrderInvalidState, order.OrderStatus, target)
		}
		if target != order.OrderStatus {
			order.OrderStatus = target
			changed = true
			switch target {
			case domain.OrderStatusShipped:
				order.ShippedAt = &now
			case domain.OrderStatusDelivered:
				order.DeliveredAt = &now
			case domain.OrderStatusCancelled:
				order.CancelledAt = &now
			}
		}
	}

	if cmd.PaymentStatus != nil {
		target := *cmd.PaymentStatus
		if !domain.ValidPaymentStatus(target) {
			return Order{}, fmt.Errorf("%w: unknown payment status %q", ErrFulfillmentInvalidInput, target)
		}
		if !domain.CanTransitionPaymentStatus(order.PaymentStatus, target) {
			return Order{}, fmt.Errorf("%w: payment status %s cannot move to %s", ErrOrderInvalidState, order.PaymentStatus, target)
		}
		if target != order.PaymentStatus {
			order.PaymentStatus = target
			changed = true
		}
	}

	if cmd.TrackingID != nil {
		trimmed := normalizeOptionalString(cmd.TrackingID)
		if !equalOptionalString(order.TrackingID, trimmed) {
			order.TrackingID = trimmed
			changed = true
		}
	}
	if cmd.Carrier != nil {
		trimmed := normalizeOptionalString(cmd.Carrier)
		if !equalOptionalString(order.Carrier, trimmed) {
			order.Carrier = trimmed
			changed = true
		}
	}

	if changed {
		order.UpdatedAt = now
		if err := s.orders.Update(ctx, order); err != nil {
			return Order{}, mapOrderRepositoryError(err)
		}
	}

	s.applyUpdateSideEffects(ctx, order, updateDiff{
		orderStatusChanged:    order.OrderStatus != previousOrderStatus,
		paymentStatusChanged:  order.PaymentStatus != previousPaymentStatus,
		previousOrderStatus:   previousOrderStatus,
		previousPaymentStatus: previousPaymentStatus,
		notifyCustomer:        cmd.NotifyCustomer,
		at:                    now,
	})

	return order, nil
}

func (s *fulfillmentService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	cancelled := domain.OrderStatusCancelled
	return s.AdminUpdateOrder(ctx, AdminUpdateOrderCommand{
		OrderID:     cmd.OrderID,
		OrderStatus: &cancelled,
	})
}

func (s *fulfillmentService) DeleteOrder(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrFulfillmentInvalidInput)
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return mapOrderRepositoryError(err)
	}
	return nil
}

// priceOrder applies the shipping rule: shipping is free exactly when the
// subtotal reaches the configured threshold, otherwise the flat standard fee.
func priceOrder(subtotal int64, settings StoreSettings) OrderTotals {
	shipping := settings.StandardShippingFee
	if subtotal >= settings.FreeShippingThreshold {
		shipping = 0
	}
	return OrderTotals{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    subtotal + shipping,
	}
}

func (s *fulfillmentService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	year := now.Year()
	seq, err := s.counters.Next(ctx, fmt.Sprintf("%s_%d", orderCounterPrefix, year))
	if err != nil {
		return "", fmt.Errorf("allocate order number: %w", err)
	}
	return fmt.Sprintf("AA-%d-%06d", year, seq), nil
}

func (s *fulfillmentService) applyPlacementSideEffects(ctx context.Context, order Order, settings StoreSettings) {
	if s.inventory != nil {
		if err := s.inventory.ApplyOrderPlacement(ctx, order); err != nil {
			s.logger(ctx, "order.inventory_adjust_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}

	if s.notifications != nil {
		if _, err := s.notifications.NotifyOrderPlaced(ctx, order); err != nil {
			s.logger(ctx, "order.admin_notify_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}

	s.sendOrderEmail(ctx, order, TemplateOrderConfirmation, map[string]string{
		"customerName": order.Customer.Name,
		"orderNumber":  order.OrderNumber,
		"subtotal":     FormatMinorUnits(order.Totals.Subtotal),
		"shipping":     FormatMinorUnits(order.Totals.Shipping),
		"total":        FormatMinorUnits(order.Totals.Total),
		"companyName":  companyName(settings),
	})

	if s.events != nil {
		event := events.OrderEvent{
			Type:          events.TypeOrderCreated,
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			CustomerUID:   order.UserID,
			OrderStatus:   string(order.OrderStatus),
			PaymentStatus: string(order.PaymentStatus),
			TotalMinor:    order.Totals.Total,
			OccurredAt:    order.CreatedAt,
		}
		if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
			s.logger(ctx, "order.event_publish_failed", map[string]any{
				"orderId": order.ID,
				"type":    event.Type,
				"error":   err.Error(),
			})
		}
	}
}

type updateDiff struct {
	orderStatusChanged    bool
	paymentStatusChanged  bool
	previousOrderStatus   OrderStatus
	previousPaymentStatus PaymentStatus
	notifyCustomer        bool
	at                    time.Time
}

func (s *fulfillmentService) applyUpdateSideEffects(ctx context.Context, order Order, diff updateDiff) {
	if diff.orderStatusChanged && order.OrderStatus == domain.OrderStatusCancelled && s.inventory != nil {
		if err := s.inventory.RestoreOrderCancellation(ctx, order); err != nil {
			s.logger(ctx, "order.inventory_restore_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}

	// The shipped notification goes out exactly once per transition; a
	// same-state shipped write stays silent unless the admin asks for a resend.
	sendShipped := order.OrderStatus == domain.OrderStatusShipped &&
		(diff.orderStatusChanged || diff.notifyCustomer)

	if sendShipped || diff.paymentStatusChanged {
		settings := s.storeSettings(ctx)

		if sendShipped {
			s.sendOrderEmail(ctx, order, TemplateOrderShipped, map[string]string{
				"customerName": order.Customer.Name,
				"orderNumber":  order.OrderNumber,
				"carrier":      textOrDefault(optionalString(order.Carrier), defaultCarrierText),
				"trackingId":   textOrDefault(optionalString(order.TrackingID), defaultTrackingText),
				"companyName":  companyName(settings),
			})
		}

		if diff.paymentStatusChanged {
			switch order.PaymentStatus {
			case domain.PaymentStatusApproved:
				s.sendOrderEmail(ctx, order, TemplatePaymentApproved, map[string]string{
					"customerName": order.Customer.Name,
					"orderNumber":  order.OrderNumber,
					"companyName":  companyName(settings),
				})
			case domain.PaymentStatusRejected:
				s.sendOrderEmail(ctx, order, TemplatePaymentRejected, map[string]string{
					"customerName": order.Customer.Name,
					"orderNumber":  order.OrderNumber,
					"supportEmail": textOrDefault(settings.SupportEmail, defaultSupportEmailText),
					"supportPhone": textOrDefault(settings.SupportPhone, defaultSupportPhoneText),
					"companyName":  companyName(settings),
				})
			}
		}
	}

	if diff.orderStatusChanged || diff.paymentStatusChanged {
		s.publishStatusChanged(ctx, order, diff.previousOrderStatus, diff.previousPaymentStatus, diff.at)
	}
}

// sendOrderEmail renders the named template and enqueues a transactional
// message to the order's snapshotted customer email. Failures are logged; a
// broken template or relay never fails the order operation that owed the mail.
func (s *fulfillmentService) sendOrderEmail(ctx context.Context, order Order, templateName string, data map[string]string) {
	if s.templates == nil || s.mail == nil {
		return
	}
	rendered, err := s.templates.Render(ctx, templateName, data)
	if err != nil {
		s.logger(ctx, "order.email_render_failed", map[string]any{
			"orderId":  order.ID,
			"template": templateName,
			"error":    err.Error(),
		})
		return
	}
	if _, err := s.mail.EnqueueTransactional(ctx, EnqueueMailCommand{
		To:      order.Customer.Email,
		Subject: rendered.Subject,
		Body:    rendered.Body,
	}); err != nil {
		s.logger(ctx, "order.email_enqueue_failed", map[string]any{
			"orderId":  order.ID,
			"template": templateName,
			"error":    err.Error(),
		})
	}
}

func (s *fulfillmentService) publishStatusChanged(ctx context.Context, order Order, previousOrderStatus OrderStatus, previousPaymentStatus PaymentStatus, at time.Time) {
	if s.events == nil {
		return
	}
	event := events.OrderEvent{
		Type:                  events.TypeOrderStatusChanged,
		OrderID:               order.ID,
		OrderNumber:           order.OrderNumber,
		CustomerUID:           order.UserID,
		OrderStatus:           string(order.OrderStatus),
		PaymentStatus:         string(order.PaymentStatus),
		PreviousOrderStatus:   string(previousOrderStatus),
		PreviousPaymentStatus: string(previousPaymentStatus),
		TotalMinor:            order.Totals.Total,
		OccurredAt:            at,
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"orderId": order.ID,
			"type":    event.Type,
			"error":   err.Error(),
		})
	}
}

// storeSettings loads the settings snapshot used for notice rendering. A
// load failure yields zero values so the templates fall back to default copy.
func (s *fulfillmentService) storeSettings(ctx context.Context) StoreSettings {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return StoreSettings{}
	}
	return settings
}

func textOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func companyName(settings StoreSettings) string {
	if name := strings.TrimSpace(settings.CompanyName); name != "" {
		return name
	}
	return fallbackCompanyName
}

func validatePlaceOrderCommand(cmd PlaceOrderCommand) error {
	if strings.TrimSpace(cmd.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrFulfillmentInvalidInput)
	}
	if strings.TrimSpace(cmd.Customer.Name) == "" {
		return fmt.Errorf("%w: customer name is required", ErrFulfillmentInvalidInput)
	}
	email := strings.TrimSpace(cmd.Customer.Email)
	if email == "" {
		return fmt.Errorf("%w: customer email is required", ErrFulfillmentInvalidInput)
	}
	if _, err := netmail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: customer email is malformed", ErrFulfillmentInvalidInput)
	}
	if strings.TrimSpace(cmd.Customer.Address) == "" {
		return fmt.Errorf("%w: shipping address is required", ErrFulfillmentInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: at least one line item is required", ErrFulfillmentInvalidInput)
	}
	for i, item := range cmd.Items {
		if strings.TrimSpace(item.ProductRef) == "" {
			return fmt.Errorf("%w: item %d is missing a product reference", ErrFulfillmentInvalidInput, i)
		}
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: item %d is missing a name", ErrFulfillmentInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrFulfillmentInvalidInput, i)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("%w: item %d unit price must not be negative", ErrFulfillmentInvalidInput, i)
		}
	}
	return nil
}

func normalizeCustomer(customer CustomerSnapshot) CustomerSnapshot {
	return CustomerSnapshot{
		Name:       strings.TrimSpace(customer.Name),
		Email:      strings.TrimSpace(customer.Email),
		Phone:      strings.TrimSpace(customer.Phone),
		Address:    strings.TrimSpace(customer.Address),
		City:       strings.TrimSpace(customer.City),
		PostalCode: strings.TrimSpace(customer.PostalCode),
	}
}

func mapOrderRepositoryError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %s", ErrOrderConflict, repoErr.Error())
		}
	}
	return err
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func ensureOrderID(candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		trimmed = ulid.Make().String()
	}
	if strings.HasPrefix(trimmed, "ord_") {
		return trimmed
	}
	return "ord_" + trimmed
}

func valuePtr[T any](v T) *T {
	return &v
}

func optionalString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func equalOptionalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func cloneStringMap(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
