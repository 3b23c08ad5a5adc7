package transport

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/money"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CheckoutResponse carries the confirmation and the emptied cart
type CheckoutResponse struct {
	Order   OrderView `json:"order"`
	Cart    CartView  `json:"cart"`
	Warning string    `json:"warning,omitempty"`
}

// CheckoutHandler handles HTTP requests for order confirmation
type CheckoutHandler struct {
	sessions Sessions
	checkout service.CheckoutService
	currency money.Currency
	logger   *zap.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(sessions Sessions, checkout service.CheckoutService, currency money.Currency, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		checkout: checkout,
		currency: currency,
		logger:   logger,
	}
}

// RegisterRoutes registers all checkout routes
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout", h.Checkout)
	r.Get("/orders", h.ListOrders)
}

// Checkout confirms the session's cart as an order
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	s, err := h.sessions.Acquire(r.Context(), sessionID)
	if err != nil {
		respondWithDomainError(w, h.logger, err, nil)
		return
	}

	order, err := h.checkout.Confirm(r.Context(), sessionID, s.Engine)
	if order == nil {
		notifications := s.Recorder.Drain()
		h.sessions.Release(s)
		respondWithDomainError(w, h.logger, err, notifications)
		return
	}

	status := http.StatusCreated
	response := CheckoutResponse{Order: newOrderView(*order, h.currency)}
	if errors.Is(err, domain.ErrPersistence) {
		h.logger.Warn("Order stored but cart not cleared", zap.String("order_id", order.ID), zap.Error(err))
		status = http.StatusAccepted
		response.Warning = "order confirmed but the cart could not be emptied"
	}
	response.Cart = newCartView(s.Engine, s.Recorder.Drain())
	h.sessions.Release(s)

	// a completed checkout ends the cart; the next request starts from the store
	if status == http.StatusCreated {
		h.sessions.Drop(sessionID)
	}

	middleware.RespondWithJSON(w, status, response)
}

// ListOrders returns the session's past orders, newest first
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	orders, err := h.checkout.Orders(r.Context(), sessionID)
	if err != nil {
		respondWithDomainError(w, h.logger, err, nil)
		return
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o, h.currency))
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"orders": views,
	})
}
