package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/auric-atelier/api/internal/domain"
	"github.com/auric-atelier/api/internal/platform/auth"
	"github.com/auric-atelier/api/internal/platform/httpx"
	"github.com/auric-atelier/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
	maxProofBodySize     = 4 * 1024
)

// OrderHandlers exposes order endpoints for authenticated customers.
type OrderHandlers struct {
	authn       *auth.Authenticator
	fulfillment services.FulfillmentService
	createMW    []func(http.Handler) http.Handler
}

// NewOrderHandlers constructs a new OrderHandlers instance. createMW is
// applied to order creation only; the idempotency guard goes there.
func NewOrderHandlers(authn *auth.Authenticator, fulfillment services.FulfillmentService, createMW ...func(http.Handler) http.Handler) *OrderHandlers {
	return &OrderHandlers{
		authn:       authn,
		fulfillment: fulfillment,
		createMW:    createMW,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.With(h.createMW...).Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:resubmit-proof", h.resubmitProof)
}

type createOrderRequest struct {
	Customer        customerPayload          `json:"customer"`
	Items           []createOrderItemPayload `json:"items"`
	PaymentProofRef *string                  `json:"payment_proof_ref,omitempty"`
}

type createOrderItemPayload struct {
	ProductRef string            `json:"product_ref"`
	Name       string            `json:"name"`
	UnitPrice  int64             `json:"unit_price"`
	Quantity   int               `json:"quantity"`
	ImageRef   string            `json:"image_ref,omitempty"`
	Variations map[string]string `json:"variations,omitempty"`
}

type resubmitProofRequest struct {
	ProofRef string `json:"proof_ref"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	items := make([]services.PlaceOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.PlaceOrderItem{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			ImageRef:   item.ImageRef,
			Variations: item.Variations,
		})
	}

	order, err := h.fulfillment.PlaceOrder(ctx, services.PlaceOrderCommand{
		UserID: identity.UID,
		Customer: services.CustomerSnapshot{
			Name:       req.Customer.Name,
			Email:      req.Customer.Email,
			Phone:      req.Customer.Phone,
			Address:    req.Customer.Address,
			City:       req.Customer.City,
			PostalCode: req.Customer.PostalCode,
		},
		Items:           items,
		PaymentProofRef: req.PaymentProofRef,
	})
	if err != nil {
		writeFulfillmentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	pageSize, err := parsePageSize(query.Get("page_size"), defaultOrderPageSize, maxOrderPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	listQuery := services.OrderListQuery{
		UserID: identity.UID,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}
	if raw := strings.TrimSpace(query.Get("order_status")); raw != "" {
		status := domain.OrderStatus(raw)
		listQuery.OrderStatus = &status
	}
	if raw := strings.TrimSpace(query.Get("payment_status")); raw != "" {
		status := domain.PaymentStatus(raw)
		listQuery.PaymentStatus = &status
	}

	page, err := h.fulfillment.ListOrders(ctx, listQuery)
	if err != nil {
		writeFulfillmentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.fulfillment.GetOrder(ctx, orderID, services.OrderReadOptions{RequesterUID: identity.UID})
	if err != nil {
		writeFulfillmentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) resubmitProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxProofBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req resubmitProofRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	order, err := h.fulfillment.ResubmitPaymentProof(ctx, services.ResubmitProofCommand{
		OrderID:      orderID,
		RequesterUID: identity.UID,
		ProofRef:     req.ProofRef,
	})
	if err != nil {
		writeFulfillmentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type customerPayload struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

type orderItemPayload struct {
	ProductRef string            `json:"product_ref"`
	Name       string            `json:"name"`
	UnitPrice  int64             `json:"unit_price"`
	Quantity   int               `json:"quantity"`
	ImageRef   string            `json:"image_ref,omitempty"`
	Variations map[string]string `json:"variations,omitempty"`
	Total      int64             `json:"total"`
}

type orderTotalsPayload struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Total    int64 `json:"total"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"order_number"`
	UserID          string             `json:"user_id"`
	Customer        customerPayload    `json:"customer"`
	Items           []orderItemPayload `json:"items"`
	Totals          orderTotalsPayload `json:"totals"`
	PaymentStatus   string             `json:"payment_status"`
	OrderStatus     string             `json:"order_status"`
	PaymentProofRef *string            `json:"payment_proof_ref,omitempty"`
	TrackingID      *string            `json:"tracking_id,omitempty"`
	Carrier         *string            `json:"carrier,omitempty"`
	CreatedAt       string             `json:"created_at"`
	UpdatedAt       string             `json:"updated_at,omitempty"`
	ShippedAt       string             `json:"shipped_at,omitempty"`
	DeliveredAt     string             `json:"delivered_at,omitempty"`
	CancelledAt     string             `json:"cancelled_at,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			ImageRef:   item.ImageRef,
			Variations: item.Variations,
			Total:      item.Total,
		})
	}

	return orderPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Customer: customerPayload{
			Name:       order.Customer.Name,
			Email:      order.Customer.Email,
			Phone:      order.Customer.Phone,
			Address:    order.Customer.Address,
			City:       order.Customer.City,
			PostalCode: order.Customer.PostalCode,
		},
		Items: items,
		Totals: orderTotalsPayload{
			Subtotal: order.Totals.Subtotal,
			Shipping: order.Totals.Shipping,
			Total:    order.Totals.Total,
		},
		PaymentStatus:   string(order.PaymentStatus),
		OrderStatus:     string(order.OrderStatus),
		PaymentProofRef: order.PaymentProofRef,
		TrackingID:      order.TrackingID,
		Carrier:         order.Carrier,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
		ShippedAt:       formatTimePtr(order.ShippedAt),
		DeliveredAt:     formatTimePtr(order.DeliveredAt),
		CancelledAt:     formatTimePtr(order.CancelledAt),
	}
}

func buildOrderListResponse(page domain.CursorPage[services.Order]) orderListResponse {
	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	return orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	}
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeFulfillmentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrFulfillmentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
