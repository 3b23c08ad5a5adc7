package listing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock record sources for testing
type mockProductSource struct {
	products  []domain.Product
	err       error
	lastLimit int
}

func (m *mockProductSource) ListProducts(ctx context.Context, opts domain.ListOptions) ([]domain.Product, error) {
	m.lastLimit = opts.Limit
	if m.err != nil {
		return nil, m.err
	}
	out := m.products
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *mockProductSource) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if m.err != nil {
		return domain.Product{}, m.err
	}
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrNotFound
}

type mockInventorySource struct {
	snapshot  domain.InventorySnapshot
	failTimes int
	calls     int
	requested []string
}

func (m *mockInventorySource) ListInventory(ctx context.Context, variantIDs []string) (domain.InventorySnapshot, error) {
	m.calls++
	m.requested = variantIDs
	if m.calls <= m.failTimes {
		return nil, errors.New("inventory timeout")
	}
	return m.snapshot, nil
}

func fastConfig() Config {
	return Config{RetryAttempts: 2, RetryBaseDelay: time.Millisecond}
}

func catalog() []domain.Product {
	return []domain.Product{
		{
			ID: "p1", Title: "Granola", Purchasable: true,
			Variants: []domain.Variant{
				{ID: "v1", Title: "Small", PriceInCents: 500, InventoryQuantity: 11, ManageInventory: true},
				{ID: "v2", Title: "Large", PriceInCents: 900, InventoryQuantity: 22, ManageInventory: true},
			},
		},
		{
			ID: "p2", Title: "Trail Mix", Purchasable: true,
			Variants: []domain.Variant{
				{ID: "v3", Title: "Bag", PriceInCents: 700, InventoryQuantity: 33, ManageInventory: true},
			},
		},
	}
}

func TestLoadProductPageMergesSnapshot(t *testing.T) {
	products := &mockProductSource{products: catalog()}
	inventory := &mockInventorySource{snapshot: domain.InventorySnapshot{"v1": 5, "v3": 0}}
	r := NewReconciler(products, inventory, fastConfig(), nil)

	page, err := r.LoadProductPage(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, page, 2)

	assert.Equal(t, "p1", page[0].ID)
	assert.Equal(t, "p2", page[1].ID)
	assert.Equal(t, []string{"v1", "v2"}, page[0].VariantIDs())

	assert.Equal(t, 5, page[0].Variants[0].InventoryQuantity)
	assert.Equal(t, 22, page[0].Variants[1].InventoryQuantity, "missing id keeps embedded value")
	assert.Equal(t, 0, page[1].Variants[0].InventoryQuantity)

	assert.Equal(t, []string{"v1", "v2", "v3"}, inventory.requested)
	assert.Equal(t, 11, products.products[0].Variants[0].InventoryQuantity, "source records must not be mutated")
}

func TestLoadProductPageUsesDefaultLimit(t *testing.T) {
	products := &mockProductSource{products: catalog()}
	cfg := fastConfig()
	cfg.DefaultLimit = 1
	r := NewReconciler(products, &mockInventorySource{}, cfg, nil)

	page, err := r.LoadProductPage(context.Background(), -1)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.Equal(t, 1, products.lastLimit)

	_, err = r.LoadProductPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, products.lastLimit)
}

func TestInventoryRetriesThenSucceeds(t *testing.T) {
	inventory := &mockInventorySource{snapshot: domain.InventorySnapshot{"v3": 1}, failTimes: 2}
	r := NewReconciler(&mockProductSource{products: catalog()}, inventory, fastConfig(), nil)

	page, err := r.LoadProductPage(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, inventory.calls)
	assert.Equal(t, 1, page[1].Variants[0].InventoryQuantity)
}

func TestInventoryFailureDegradesToEmbeddedValues(t *testing.T) {
	inventory := &mockInventorySource{failTimes: 100}
	r := NewReconciler(&mockProductSource{products: catalog()}, inventory, fastConfig(), nil)

	page, err := r.LoadProductPage(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, inventory.calls, "one attempt plus two retries")
	assert.Equal(t, 11, page[0].Variants[0].InventoryQuantity)
	assert.Equal(t, 33, page[1].Variants[0].InventoryQuantity)
}

func TestProductFetchFailureIsTerminal(t *testing.T) {
	inventory := &mockInventorySource{}
	r := NewReconciler(&mockProductSource{err: errors.New("dial tcp: refused")}, inventory, fastConfig(), nil)

	_, err := r.LoadProductPage(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Zero(t, inventory.calls)

	_, err = r.LoadProductDetail(context.Background(), "p1")
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestLoadProductDetail(t *testing.T) {
	inventory := &mockInventorySource{snapshot: domain.InventorySnapshot{"v2": 4}}
	r := NewReconciler(&mockProductSource{products: catalog()}, inventory, fastConfig(), nil)

	p, err := r.LoadProductDetail(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, inventory.requested)
	assert.Equal(t, 11, p.Variants[0].InventoryQuantity)
	assert.Equal(t, 4, p.Variants[1].InventoryQuantity)

	_, err = r.LoadProductDetail(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestInvalidRecordsAreDropped(t *testing.T) {
	products := catalog()
	products = append(products, domain.Product{ID: "broken", Title: "No variants"})
	r := NewReconciler(&mockProductSource{products: products}, &mockInventorySource{}, fastConfig(), nil)

	page, err := r.LoadProductPage(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	_, err = r.LoadProductDetail(context.Background(), "broken")
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)
}

func TestEmptyPageSkipsInventory(t *testing.T) {
	inventory := &mockInventorySource{}
	r := NewReconciler(&mockProductSource{}, inventory, fastConfig(), nil)

	page, err := r.LoadProductPage(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Zero(t, inventory.calls)
}

// Feature: storefront-cart, Property: reconciliation preserves order and falls back per variant
func TestProperty_ApplyPreservesOrderAndFallsBack(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("snapshot values override, missing ids keep embedded values", prop.ForAll(
		func(embedded []int, present []bool) bool {
			n := len(embedded)
			if len(present) < n {
				n = len(present)
			}
			product := domain.Product{ID: "p", Title: "p"}
			snapshot := domain.InventorySnapshot{}
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("v%d", i)
				product.Variants = append(product.Variants, domain.Variant{ID: id, InventoryQuantity: embedded[i]})
				if present[i] {
					snapshot[id] = embedded[i] + 1000
				}
			}

			out := Apply([]domain.Product{product}, snapshot)[0]
			for i := 0; i < n; i++ {
				v := out.Variants[i]
				if v.ID != fmt.Sprintf("v%d", i) {
					return false
				}
				want := embedded[i]
				if present[i] {
					want += 1000
				}
				if v.InventoryQuantity != want || product.Variants[i].InventoryQuantity != embedded[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
