package cart

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/money"
	"storefront/internal/notify"

	"go.uber.org/zap"
)

// LineStore is the cart half of the record source
type LineStore interface {
	CreateCartLine(ctx context.Context, productID, variantID string, quantity int) (domain.CartLine, error)
	UpdateCartLine(ctx context.Context, lineID string, quantity int) (domain.CartLine, error)
	DeleteCartLine(ctx context.Context, lineID string) error
	ListCartLines(ctx context.Context) ([]domain.CartLine, error)
}

// InventorySource reports live stock for variants. Variants missing from the
// snapshot keep the stock recorded on the stored line.
type InventorySource interface {
	ListInventory(ctx context.Context, variantIDs []string) (domain.InventorySnapshot, error)
}

// Engine holds one session's cart. Mutations apply to memory first and are
// then written through the LineStore; a failed write is reported but never
// rolled back. An Engine is not safe for concurrent use.
type Engine struct {
	lines     []*domain.CartLine
	store     LineStore
	inventory InventorySource
	notifier  notify.Notifier
	currency  money.Currency
	logger    *zap.Logger
}

// Option customizes an Engine
type Option func(*Engine)

// WithCurrency sets the currency used by Total
func WithCurrency(c money.Currency) Option {
	return func(e *Engine) { e.currency = c }
}

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithInventory refreshes stock ceilings from live inventory when the cart is
// loaded from the store
func WithInventory(src InventorySource) Option {
	return func(e *Engine) { e.inventory = src }
}

// NewEngine creates an empty cart
func NewEngine(store LineStore, notifier notify.Notifier, opts ...Option) *Engine {
	if notifier == nil {
		notifier = notify.Multi{}
	}
	e := &Engine{
		store:    store,
		notifier: notifier,
		currency: money.USD,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddToCart inserts a line or merges into the existing line for the same
// product and variant. Managed variants are clamped to availableStock.
func (e *Engine) AddToCart(ctx context.Context, product domain.Product, variant domain.Variant, requestedQuantity, availableStock int) (domain.CartLine, error) {
	if requestedQuantity < 1 {
		return domain.CartLine{}, domain.ErrInvalidQuantity
	}
	if _, ok := product.Variant(variant.ID); !ok {
		return domain.CartLine{}, fmt.Errorf("variant %q of product %q: %w", variant.ID, product.ID, domain.ErrNotFound)
	}
	if !product.Purchasable {
		e.notifier.Notify(notify.Error, fmt.Sprintf("%s is currently unavailable", product.Title))
		return domain.CartLine{}, domain.ErrNotPurchasable
	}
	if variant.ManageInventory && availableStock <= 0 {
		e.notifier.Notify(notify.Error, fmt.Sprintf("%s (%s) is out of stock", product.Title, variant.Title))
		return domain.CartLine{}, domain.ErrOutOfStock
	}

	key := domain.LineKey{ProductID: product.ID, VariantID: variant.ID}
	line, idx := e.find(key)

	desired := requestedQuantity
	if line != nil {
		desired += line.Quantity
	}

	quantity := desired
	if variant.ManageInventory && quantity > availableStock {
		quantity = availableStock
	}

	snapshot := variant
	if variant.ManageInventory {
		snapshot.InventoryQuantity = availableStock
	}

	if idx < 0 {
		line = &domain.CartLine{Key: key}
		e.lines = append(e.lines, line)
	}
	line.Quantity = quantity
	line.Product = product.Clone()
	line.Variant = snapshot

	e.logger.Debug("Cart line added",
		zap.String("product_id", key.ProductID),
		zap.String("variant_id", key.VariantID),
		zap.Int("requested", requestedQuantity),
		zap.Int("quantity", quantity),
		zap.Bool("clamped", quantity < desired),
	)

	if err := e.persist(ctx, "add", line); err != nil {
		return *line, err
	}

	if quantity < desired {
		e.notifier.Notify(notify.Success, fmt.Sprintf("%s (%s) added to cart. Only %d available, quantity set to %d.",
			product.Title, variant.Title, availableStock, quantity))
	} else {
		e.notifier.Notify(notify.Success, fmt.Sprintf("%d x %s (%s) added to cart.", requestedQuantity, product.Title, variant.Title))
	}

	return *line, nil
}

// UpdateQuantity sets a line's quantity. A quantity below 1 removes the line.
func (e *Engine) UpdateQuantity(ctx context.Context, key domain.LineKey, newQuantity int) (domain.CartLine, error) {
	line, _ := e.find(key)
	if line == nil {
		return domain.CartLine{}, fmt.Errorf("cart line %s/%s: %w", key.ProductID, key.VariantID, domain.ErrNotFound)
	}
	if newQuantity < 1 {
		removed := *line
		removed.Quantity = 0
		return removed, e.Remove(ctx, key)
	}

	if line.Variant.ManageInventory {
		if line.Variant.InventoryQuantity <= 0 {
			e.notifier.Notify(notify.Error, fmt.Sprintf("%s (%s) is out of stock", line.Product.Title, line.Variant.Title))
			return *line, domain.ErrOutOfStock
		}
		if newQuantity > line.Variant.InventoryQuantity {
			newQuantity = line.Variant.InventoryQuantity
		}
	}
	line.Quantity = newQuantity

	if err := e.persist(ctx, "update", line); err != nil {
		return *line, err
	}

	e.notifier.Notify(notify.Success, fmt.Sprintf("%s quantity updated to %d.", line.Product.Title, line.Quantity))
	return *line, nil
}

// Remove deletes a line. Removing an absent key is a no-op.
func (e *Engine) Remove(ctx context.Context, key domain.LineKey) error {
	line, idx := e.find(key)
	if line == nil {
		return nil
	}

	e.lines = append(e.lines[:idx], e.lines[idx+1:]...)

	if err := e.deleteRecord(ctx, line); err != nil {
		perr := &domain.PersistenceError{Op: "remove", Key: key, Err: err}
		e.notifier.Notify(notify.Error, fmt.Sprintf("Could not save removal of %s: %v", line.Product.Title, err))
		e.logger.Warn("Cart line removal not persisted", zap.Error(perr))
		return perr
	}

	e.notifier.Notify(notify.Success, fmt.Sprintf("%s removed from cart.", line.Product.Title))
	return nil
}

// Clear empties the cart, e.g. after checkout confirmation
func (e *Engine) Clear(ctx context.Context) error {
	lines := e.lines
	e.lines = nil

	var errs []error
	for _, line := range lines {
		if err := e.deleteRecord(ctx, line); err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", line.Key.ProductID, line.Key.VariantID, err))
		}
	}

	if len(errs) > 0 {
		perr := &domain.PersistenceError{Op: "clear", Err: errors.Join(errs...)}
		e.notifier.Notify(notify.Error, "Cart cleared locally but could not be saved.")
		e.logger.Warn("Cart clear not fully persisted", zap.Error(perr))
		return perr
	}
	return nil
}

// Load replaces the in-memory cart with the lines held by the store.
// Duplicate keys are merged by summing their quantities, then managed lines
// are clamped to live stock.
func (e *Engine) Load(ctx context.Context) error {
	records, err := e.store.ListCartLines(ctx)
	if err != nil {
		return fmt.Errorf("%w: list cart lines: %w", domain.ErrSourceUnavailable, err)
	}

	lines := make([]*domain.CartLine, 0, len(records))
	index := make(map[domain.LineKey]*domain.CartLine, len(records))
	for _, rec := range records {
		if rec.Quantity < 1 {
			continue
		}
		if existing, ok := index[rec.Key]; ok {
			existing.Quantity += rec.Quantity
			e.logger.Warn("Duplicate cart line collapsed",
				zap.String("product_id", rec.Key.ProductID),
				zap.String("variant_id", rec.Key.VariantID),
				zap.String("line_id", rec.ID),
			)
			continue
		}
		line := rec
		lines = append(lines, &line)
		index[rec.Key] = &line
	}

	e.refreshStock(ctx, lines)
	e.lines = e.fitToStock(ctx, lines)
	return nil
}

// refreshStock replaces the stored stock of managed lines with live levels.
// A failed read keeps the stored levels.
func (e *Engine) refreshStock(ctx context.Context, lines []*domain.CartLine) {
	if e.inventory == nil {
		return
	}

	var ids []string
	for _, line := range lines {
		if line.Variant.ManageInventory {
			ids = append(ids, line.Key.VariantID)
		}
	}
	if len(ids) == 0 {
		return
	}

	snapshot, err := e.inventory.ListInventory(ctx, ids)
	if err != nil {
		e.logger.Warn("Live inventory unavailable, using stored stock for cart", zap.Error(err))
		return
	}

	for _, line := range lines {
		qty, ok := snapshot[line.Key.VariantID]
		if !ok || !line.Variant.ManageInventory {
			continue
		}
		line.Variant.InventoryQuantity = qty
		line.Product = line.Product.Clone()
		for i := range line.Product.Variants {
			if line.Product.Variants[i].ID == line.Variant.ID {
				line.Product.Variants[i].InventoryQuantity = qty
			}
		}
	}
}

// fitToStock clamps managed lines to their stock ceiling and drops lines
// whose variant has sold out. Adjustments are written back best effort.
func (e *Engine) fitToStock(ctx context.Context, lines []*domain.CartLine) []*domain.CartLine {
	kept := lines[:0]
	for _, line := range lines {
		ceiling := line.Variant.InventoryQuantity
		if !line.Variant.ManageInventory || line.Quantity <= ceiling {
			kept = append(kept, line)
			continue
		}

		if ceiling <= 0 {
			e.notifier.Notify(notify.Error, fmt.Sprintf("%s (%s) sold out and was removed from your cart.",
				line.Product.Title, line.Variant.Title))
			if err := e.deleteRecord(ctx, line); err != nil {
				e.logger.Warn("Sold out cart line not deleted", zap.String("line_id", line.ID), zap.Error(err))
			}
			continue
		}

		e.logger.Debug("Cart line clamped to live stock",
			zap.String("product_id", line.Key.ProductID),
			zap.String("variant_id", line.Key.VariantID),
			zap.Int("stored", line.Quantity),
			zap.Int("quantity", ceiling),
		)
		line.Quantity = ceiling
		e.notifier.Notify(notify.Error, fmt.Sprintf("Only %d of %s (%s) available, quantity set to %d.",
			ceiling, line.Product.Title, line.Variant.Title, ceiling))
		// persist reports its own failure
		_ = e.persist(ctx, "load", line)
		kept = append(kept, line)
	}
	return kept
}

// Lines returns a copy of the cart lines in insertion order
func (e *Engine) Lines() []domain.CartLine {
	out := make([]domain.CartLine, 0, len(e.lines))
	for _, l := range e.lines {
		out = append(out, *l)
	}
	return out
}

// Line looks up a single line
func (e *Engine) Line(key domain.LineKey) (domain.CartLine, bool) {
	line, _ := e.find(key)
	if line == nil {
		return domain.CartLine{}, false
	}
	return *line, true
}

// TotalInCents sums effective price times quantity across all lines
func (e *Engine) TotalInCents() int64 {
	var total int64
	for _, l := range e.lines {
		total += l.Subtotal()
	}
	return total
}

// Total returns the cart total formatted for display
func (e *Engine) Total() string {
	return money.Format(e.TotalInCents(), e.currency)
}

// ItemCount sums quantities across all lines
func (e *Engine) ItemCount() int {
	count := 0
	for _, l := range e.lines {
		count += l.Quantity
	}
	return count
}

// Currency returns the currency totals are rendered in
func (e *Engine) Currency() money.Currency {
	return e.currency
}

func (e *Engine) find(key domain.LineKey) (*domain.CartLine, int) {
	for i, l := range e.lines {
		if l.Key == key {
			return l, i
		}
	}
	return nil, -1
}

// persist writes a line through the store, creating the record when the line
// has never been saved or when the store has lost it.
func (e *Engine) persist(ctx context.Context, op string, line *domain.CartLine) error {
	var (
		saved domain.CartLine
		err   error
	)
	if line.ID != "" {
		saved, err = e.store.UpdateCartLine(ctx, line.ID, line.Quantity)
		if errors.Is(err, domain.ErrNotFound) {
			saved, err = e.store.CreateCartLine(ctx, line.Key.ProductID, line.Key.VariantID, line.Quantity)
		}
	} else {
		saved, err = e.store.CreateCartLine(ctx, line.Key.ProductID, line.Key.VariantID, line.Quantity)
	}

	if err != nil {
		perr := &domain.PersistenceError{Op: op, Key: line.Key, Err: err}
		e.notifier.Notify(notify.Error, fmt.Sprintf("Could not save %s to your cart: %v", line.Product.Title, err))
		e.logger.Warn("Cart line not persisted", zap.Error(perr))
		return perr
	}

	if saved.ID != "" {
		line.ID = saved.ID
	}
	return nil
}

func (e *Engine) deleteRecord(ctx context.Context, line *domain.CartLine) error {
	if line.ID == "" {
		return nil
	}
	err := e.store.DeleteCartLine(ctx, line.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}
