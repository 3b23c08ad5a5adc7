package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// ProductSource is the catalog half of the record source
type ProductSource interface {
	ListProducts(ctx context.Context, opts domain.ListOptions) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

// InventorySource returns current stock for a set of variants. Missing ids
// mean the embedded product value should be used.
type InventorySource interface {
	ListInventory(ctx context.Context, variantIDs []string) (domain.InventorySnapshot, error)
}

// Config tunes the reconciler
type Config struct {
	DefaultLimit   int
	RetryAttempts  uint64
	RetryBaseDelay time.Duration
}

// Reconciler joins product records with a separately fetched inventory snapshot
type Reconciler struct {
	products  ProductSource
	inventory InventorySource
	config    Config
	logger    *zap.Logger
}

// NewReconciler creates a new Reconciler
func NewReconciler(products ProductSource, inventory InventorySource, config Config, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = 50 * time.Millisecond
	}
	return &Reconciler{
		products:  products,
		inventory: inventory,
		config:    config,
		logger:    logger,
	}
}

// LoadProductPage fetches a page of products and overlays live inventory.
// A limit of zero or less uses the configured default.
func (r *Reconciler) LoadProductPage(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = r.config.DefaultLimit
	}

	records, err := r.products.ListProducts(ctx, domain.ListOptions{Limit: limit})
	if err != nil {
		return nil, classifySourceError("list products", err)
	}

	products := make([]domain.Product, 0, len(records))
	for _, rec := range records {
		p := rec.Clone()
		if err := domain.ValidateProduct(&p); err != nil {
			r.logger.Warn("Dropping invalid product record", zap.String("product_id", rec.ID), zap.Error(err))
			continue
		}
		products = append(products, p)
	}

	if len(products) == 0 {
		return products, nil
	}

	snapshot := r.fetchInventory(ctx, variantUnion(products))
	return Apply(products, snapshot), nil
}

// LoadProductDetail fetches a single product and overlays live inventory
func (r *Reconciler) LoadProductDetail(ctx context.Context, productID string) (domain.Product, error) {
	rec, err := r.products.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, classifySourceError("get product "+productID, err)
	}

	p := rec.Clone()
	if err := domain.ValidateProduct(&p); err != nil {
		return domain.Product{}, err
	}

	snapshot := r.fetchInventory(ctx, p.VariantIDs())
	return Apply([]domain.Product{p}, snapshot)[0], nil
}

// Apply returns copies of products with each variant's inventory replaced by
// the snapshot value when present. Order is preserved.
func Apply(products []domain.Product, snapshot domain.InventorySnapshot) []domain.Product {
	out := make([]domain.Product, len(products))
	for i, p := range products {
		c := p.Clone()
		for j := range c.Variants {
			if qty, ok := snapshot[c.Variants[j].ID]; ok {
				c.Variants[j].InventoryQuantity = qty
			}
		}
		out[i] = c
	}
	return out
}

// fetchInventory retries the idempotent inventory read and degrades to an
// empty snapshot once retries are exhausted.
func (r *Reconciler) fetchInventory(ctx context.Context, variantIDs []string) domain.InventorySnapshot {
	if r.inventory == nil || len(variantIDs) == 0 {
		return nil
	}

	var snapshot domain.InventorySnapshot
	backoff := retry.WithMaxRetries(r.config.RetryAttempts, retry.NewExponential(r.config.RetryBaseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		s, err := r.inventory.ListInventory(ctx, variantIDs)
		if err != nil {
			r.logger.Debug("Inventory fetch attempt failed", zap.Error(err))
			return retry.RetryableError(err)
		}
		snapshot = s
		return nil
	})
	if err != nil {
		r.logger.Warn("Inventory unavailable, using embedded quantities",
			zap.Int("variants", len(variantIDs)),
			zap.Error(err),
		)
		return nil
	}

	return snapshot
}

// variantUnion collects variant ids across products, first occurrence wins
func variantUnion(products []domain.Product) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, p := range products {
		for _, v := range p.Variants {
			if _, ok := seen[v.ID]; ok {
				continue
			}
			seen[v.ID] = struct{}{}
			ids = append(ids, v.ID)
		}
	}
	return ids
}

func classifySourceError(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrSourceUnavailable, err)
}
