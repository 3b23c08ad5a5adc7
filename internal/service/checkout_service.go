package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

// StockReserver takes stock for confirmed orders. Returning ErrOutOfStock
// means nothing was taken.
type StockReserver interface {
	Reserve(ctx context.Context, quantities map[string]int) error
	Release(ctx context.Context, quantities map[string]int) error
}

// CartPurger deletes every stored cart line of a session
type CartPurger interface {
	DeleteSession(ctx context.Context, sessionID string) error
}

// CheckoutOption customizes a CheckoutService
type CheckoutOption func(*checkoutService)

// WithCartPurger sets the fallback used when clearing a confirmed cart line
// by line fails
func WithCartPurger(p CartPurger) CheckoutOption {
	return func(s *checkoutService) { s.purger = p }
}

// CheckoutService defines the interface for order confirmation
type CheckoutService interface {
	Confirm(ctx context.Context, sessionID string, engine *cart.Engine) (*domain.Order, error)
	Orders(ctx context.Context, sessionID string) ([]domain.Order, error)
}

type checkoutService struct {
	orderRepo repository.OrderRepository
	stock     StockReserver
	purger    CartPurger
	logger    *zap.Logger
}

// NewCheckoutService creates a new instance of CheckoutService. stock may be
// nil, in which case inventory is not decremented.
func NewCheckoutService(orderRepo repository.OrderRepository, stock StockReserver, logger *zap.Logger, opts ...CheckoutOption) CheckoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &checkoutService{
		orderRepo: orderRepo,
		stock:     stock,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Confirm turns the session's cart into an order and empties the cart.
// The order is returned together with a persistence error when it was
// stored but the cart could not be cleared.
func (s *checkoutService) Confirm(ctx context.Context, sessionID string, engine *cart.Engine) (*domain.Order, error) {
	lines := engine.Lines()
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	order := &domain.Order{
		SessionID: sessionID,
		Currency:  engine.Currency().Code,
		Lines:     make([]domain.OrderLine, 0, len(lines)),
	}
	reserved := make(map[string]int)
	for _, l := range lines {
		unit := l.Variant.EffectivePrice()
		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID:        l.Key.ProductID,
			VariantID:        l.Key.VariantID,
			ProductTitle:     l.Product.Title,
			VariantTitle:     l.Variant.Title,
			UnitPriceInCents: unit,
			Quantity:         l.Quantity,
			LineTotalInCents: l.Subtotal(),
		})
		order.TotalInCents += l.Subtotal()
		if l.Variant.ManageInventory {
			reserved[l.Key.VariantID] += l.Quantity
		}
	}

	if s.stock != nil {
		if err := s.stock.Reserve(ctx, reserved); err != nil {
			if errors.Is(err, domain.ErrOutOfStock) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: reserve stock: %w", domain.ErrSourceUnavailable, err)
		}
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.releaseStock(ctx, reserved)
		return nil, &domain.PersistenceError{Op: "checkout", Err: err}
	}

	s.logger.Info("Order confirmed",
		zap.String("order_id", order.ID),
		zap.String("session_id", sessionID),
		zap.Int("lines", len(order.Lines)),
		zap.Int64("total_in_cents", order.TotalInCents),
	)

	if err := engine.Clear(ctx); err != nil {
		if s.purger == nil {
			return order, err
		}
		if perr := s.purger.DeleteSession(ctx, sessionID); perr != nil {
			s.logger.Warn("Failed to purge confirmed cart", zap.String("session_id", sessionID), zap.Error(perr))
			return order, err
		}
		s.logger.Info("Confirmed cart purged after partial clear", zap.String("session_id", sessionID))
	}
	return order, nil
}

// Orders lists a session's past orders newest first
func (s *checkoutService) Orders(ctx context.Context, sessionID string) ([]domain.Order, error) {
	orders, err := s.orderRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %w", domain.ErrSourceUnavailable, err)
	}
	return orders, nil
}

func (s *checkoutService) releaseStock(ctx context.Context, reserved map[string]int) {
	if s.stock == nil || len(reserved) == 0 {
		return
	}
	if err := s.stock.Release(ctx, reserved); err != nil {
		s.logger.Error("Failed to return reserved stock", zap.Error(err))
	}
}
