package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/auric-atelier/api/internal/domain"
	"github.com/auric-atelier/api/internal/platform/httpx"
	"github.com/auric-atelier/api/internal/services"
)

// ProofLinker resolves a stored payment-proof reference into a short-lived
// signed download URL for the admin dashboard.
type ProofLinker interface {
	ProofDownloadURL(ctx context.Context, proofRef string) (string, time.Time, error)
}

// AdminOrderHandlers exposes the admin order review endpoints.
type AdminOrderHandlers struct {
	fulfillment services.FulfillmentService
	proofs      ProofLinker
	logger      func(ctx context.Context, event string, fields map[string]any)
}

// NewAdminOrderHandlers constructs a new AdminOrderHandlers instance.
// proofs may be nil; order payloads then omit the proof download link.
func NewAdminOrderHandlers(fulfillment services.FulfillmentService, proofs ProofLinker, logger func(ctx context.Context, event string, fields map[string]any)) *AdminOrderHandlers {
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &AdminOrderHandlers{
		fulfillment: fulfillment,
		proofs:      proofs,
		logger:      logger,
	}
}

// Routes registers the admin order endpoints on the given router group.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Patch("/orders/{orderID}", h.updateOrder)
	r.Delete("/orders/{orderID}", h.deleteOrder)
}

type adminUpdateOrderRequest struct {
	OrderStatus    *string `json:"order_status,omitempty"`
	PaymentStatus  *string `json:"payment_status,omitempty"`
	TrackingID     *string `json:"tracking_id,omitempty"`
	Carrier        *string `json:"carrier,omitempty"`
	NotifyCustomer bool    `json:"notify_customer,omitempty"`
}

type adminOrderResponse struct {
	Order           orderPayload `json:"order"`
	ProofURL        string       `json:"proof_url,omitempty"`
	ProofURLExpires string       `json:"proof_url_expires,omitempty"`
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	pageSize, err := parsePageSize(query.Get("page_size"), defaultOrderPageSize, maxOrderPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	listQuery := services.OrderListQuery{
		UserID: strings.TrimSpace(query.Get("user_id")),
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

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.fulfillment.GetOrder(ctx, orderID, services.OrderReadOptions{AdminAccess: true})
	if err != nil {
		writeFulfillmentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, h.buildAdminOrderResponse(ctx, order))
}

func (h *AdminOrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req adminUpdateOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	cmd := services.AdminUpdateOrderCommand{
		OrderID:        orderID,
		TrackingID:     req.TrackingID,
		Carrier:        req.Carrier,
		NotifyCustomer: req.NotifyCustomer,
	}
	if req.OrderStatus != nil {
		status := domain.OrderStatus(strings.TrimSpace(*req.OrderStatus))
		cmd.OrderStatus = &status
	}
	if req.PaymentStatus != nil {
		status := domain.PaymentStatus(strings.TrimSpace(*req.PaymentStatus))
		cmd.PaymentStatus = &status
	}

	order, err := h.fulfillment.AdminUpdateOrder(ctx, cmd)
	if err != nil {
		writeFulfillmentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, h.buildAdminOrderResponse(ctx, order))
}

func (h *AdminOrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	if err := h.fulfillment.DeleteOrder(ctx, orderID); err != nil {
		writeFulfillmentError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminOrderHandlers) buildAdminOrderResponse(ctx context.Context, order services.Order) adminOrderResponse {
	response := adminOrderResponse{Order: buildOrderPayload(order)}
	if h.proofs == nil || order.PaymentProofRef == nil {
		return response
	}

	url, expires, err := h.proofs.ProofDownloadURL(ctx, *order.PaymentProofRef)
	if err != nil {
		// The admin can still review everything else; the link is optional.
		h.logger(ctx, "admin.proof_url_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		return response
	}
	response.ProofURL = url
	response.ProofURLExpires = formatTime(expires)
	return response
}
