package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/session"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddLineRequest represents the add-to-cart payload
type AddLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=999"`
}

// UpdateLineRequest represents the quantity change payload. Zero removes the line.
type UpdateLineRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=999"`
}

// Sessions hands out exclusive access to a session's cart
type Sessions interface {
	Acquire(ctx context.Context, id string) (*session.Session, error)
	Release(s *session.Session)
	Drop(id string)
}

// CartHandler handles HTTP requests for cart operations
type CartHandler struct {
	sessions Sessions
	products ProductLoader
	logger   *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(sessions Sessions, products ProductLoader, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		products: products,
		logger:   logger,
	}
}

// RegisterRoutes registers all cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/lines", h.AddLine)
		r.Patch("/lines/{productID}/{variantID}", h.UpdateLine)
		r.Delete("/lines/{productID}/{variantID}", h.RemoveLine)
	})
}

// GetCart returns the session's cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) error {
		return nil
	})
}

// AddLine adds a product variant to the cart, clamped to live stock
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req AddLineRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Add to cart validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.products.LoadProductDetail(r.Context(), req.ProductID)
	if err != nil {
		respondWithDomainError(w, h.logger, err, nil)
		return
	}
	variant, ok := product.Variant(req.VariantID)
	if !ok {
		respondWithDomainError(w, h.logger,
			fmt.Errorf("variant %q of product %q: %w", req.VariantID, req.ProductID, domain.ErrNotFound), nil)
		return
	}

	h.withSession(w, r, func(s *session.Session) error {
		_, err := s.Engine.AddToCart(r.Context(), product, variant, req.Quantity, variant.InventoryQuantity)
		return err
	})
}

// UpdateLine sets a line's quantity
func (h *CartHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	var req UpdateLineRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Update quantity validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	key := lineKey(r)
	h.withSession(w, r, func(s *session.Session) error {
		_, err := s.Engine.UpdateQuantity(r.Context(), key, *req.Quantity)
		return err
	})
}

// RemoveLine deletes a line; removing an absent line succeeds
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	key := lineKey(r)
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.Remove(r.Context(), key)
	})
}

// ClearCart empties the cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) error {
		return s.Engine.Clear(r.Context())
	})
}

// withSession runs op against the locked session and writes the resulting
// cart. A persistence failure still reports the updated cart, with 202.
func (h *CartHandler) withSession(w http.ResponseWriter, r *http.Request, op func(s *session.Session) error) {
	sessionID, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	s, err := h.sessions.Acquire(r.Context(), sessionID)
	if err != nil {
		respondWithDomainError(w, h.logger, err, nil)
		return
	}
	defer h.sessions.Release(s)

	opErr := op(s)
	notifications := s.Recorder.Drain()

	switch {
	case opErr == nil:
		middleware.RespondWithJSON(w, http.StatusOK, newCartView(s.Engine, notifications))
	case errors.Is(opErr, domain.ErrPersistence):
		h.logger.Warn("Cart change kept locally but not saved",
			zap.String("session_id", sessionID),
			zap.Error(opErr),
		)
		view := newCartView(s.Engine, notifications)
		view.Warning = "your cart was updated but could not be saved"
		middleware.RespondWithJSON(w, http.StatusAccepted, view)
	default:
		respondWithDomainError(w, h.logger, opErr, notifications)
	}
}

func lineKey(r *http.Request) domain.LineKey {
	return domain.LineKey{
		ProductID: chi.URLParam(r, "productID"),
		VariantID: chi.URLParam(r, "variantID"),
	}
}
