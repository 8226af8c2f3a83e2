package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/cartkeeper/internal/domain"
	"github.com/fjod/go_cart/cartkeeper/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// CartService is the part of service.CartService the handlers drive.
type CartService interface {
	CurrentCart() domain.Cart
	AddProduct(ctx context.Context, productID int64) error
	RemoveProduct(ctx context.Context, productID int64) error
	SetProductAmount(ctx context.Context, productID int64, amount int) error
	Subscribe() (<-chan domain.Cart, func())
}

type CartHandler struct {
	cart    CartService
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewCartHandler(cart CartService, timeout time.Duration, log logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
}

type UpdateAmountRequestDTO struct {
	Amount *int `json:"amount"`
}

type CartResponseDTO struct {
	Items []domain.CartEntry `json:"items"`
	Total float64            `json:"total"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, toCartResponse(h.cart.CurrentCart()))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	if err := h.cart.AddProduct(ctx, req.ProductID); err != nil {
		h.handleMutationError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toCartResponse(h.cart.CurrentCart()))
}

func (h *CartHandler) UpdateAmount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := h.productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateAmountRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Amount == nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "amount is required")
		return
	}

	// non-positive amounts are rejected by the service, not here
	if err := h.cart.SetProductAmount(ctx, productID, *req.Amount); err != nil {
		h.handleMutationError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toCartResponse(h.cart.CurrentCart()))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := h.productIDParam(w, r)
	if !ok {
		return
	}

	if err := h.cart.RemoveProduct(ctx, productID); err != nil {
		h.handleMutationError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toCartResponse(h.cart.CurrentCart()))
}

func (h *CartHandler) productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}

func toCartResponse(cart domain.Cart) CartResponseDTO {
	resp := CartResponseDTO{Items: cart}
	if resp.Items == nil {
		resp.Items = []domain.CartEntry{}
	}
	for _, e := range cart {
		resp.Total += e.Price * float64(e.Amount)
	}
	return resp
}

// handleMutationError converts coordinator errors to HTTP status codes
func (h *CartHandler) handleMutationError(w http.ResponseWriter, r *http.Request, err error) {
	var httpStatus int
	var code string

	switch service.KindOf(err) {
	case service.KindInvalidAmount:
		httpStatus, code = http.StatusBadRequest, service.KindInvalidAmount.String()
	case service.KindEntryNotFound:
		httpStatus, code = http.StatusNotFound, service.KindEntryNotFound.String()
	case service.KindOutOfStock:
		httpStatus, code = http.StatusConflict, service.KindOutOfStock.String()
	case service.KindLookupFailed:
		httpStatus, code = http.StatusBadGateway, service.KindLookupFailed.String()
	case service.KindPersistenceFailed:
		httpStatus, code = http.StatusServiceUnavailable, service.KindPersistenceFailed.String()
	default:
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			httpStatus, code = http.StatusGatewayTimeout, "timeout"
		default:
			httpStatus, code = http.StatusInternalServerError, "internal_error"
		}
	}

	if httpStatus >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("request_id", getRequestID(r.Context())).Error("cart mutation failed")
	}
	h.respondError(w, httpStatus, code, err.Error())
}

func (h *CartHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.WithError(err).Warn("failed to encode response")
	}
}

func (h *CartHandler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
