package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/money"
	"storefront/internal/service"
	"storefront/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Mock catalog for testing
type mockProducts struct {
	products []domain.Product
	err      error
}

func (m *mockProducts) LoadProductPage(ctx context.Context, limit int) ([]domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && limit < len(m.products) {
		return m.products[:limit], nil
	}
	return m.products, nil
}

func (m *mockProducts) LoadProductDetail(ctx context.Context, productID string) (domain.Product, error) {
	if m.err != nil {
		return domain.Product{}, m.err
	}
	for _, p := range m.products {
		if p.ID == productID {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrNotFound
}

type memoryLineStore struct {
	mu        sync.Mutex
	lines     map[string]domain.CartLine
	nextID    int
	failWrite bool
}

func (m *memoryLineStore) CreateCartLine(ctx context.Context, productID, variantID string, quantity int) (domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return domain.CartLine{}, errors.New("write timeout")
	}
	m.nextID++
	line := domain.CartLine{ID: string(rune('a' + m.nextID)), Key: domain.LineKey{ProductID: productID, VariantID: variantID}, Quantity: quantity}
	m.lines[line.ID] = line
	return line, nil
}

func (m *memoryLineStore) UpdateCartLine(ctx context.Context, lineID string, quantity int) (domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return domain.CartLine{}, errors.New("write timeout")
	}
	line, ok := m.lines[lineID]
	if !ok {
		return domain.CartLine{}, domain.ErrNotFound
	}
	line.Quantity = quantity
	m.lines[lineID] = line
	return line, nil
}

func (m *memoryLineStore) DeleteCartLine(ctx context.Context, lineID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, lineID)
	return nil
}

func (m *memoryLineStore) ListCartLines(ctx context.Context) ([]domain.CartLine, error) {
	return nil, nil
}

type memoryOrders struct {
	orders []domain.Order
}

func (m *memoryOrders) Create(ctx context.Context, order *domain.Order) error {
	order.ID = "order-1"
	m.orders = append([]domain.Order{*order}, m.orders...)
	return nil
}

func (m *memoryOrders) ListBySession(ctx context.Context, sessionID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range m.orders {
		if o.SessionID == sessionID {
			out = append(out, o)
		}
	}
	return out, nil
}

type testAPI struct {
	router   *chi.Mux
	store    *memoryLineStore
	orders   *memoryOrders
	registry *session.Registry
}

func catalogFixture() []domain.Product {
	sale := int64(399)
	ribbon := "New"
	return []domain.Product{
		{
			ID: "p1", Title: "Granola", Purchasable: true, RibbonText: &ribbon,
			Variants: []domain.Variant{
				{ID: "v1", Title: "Small", PriceInCents: 799, InventoryQuantity: 4, ManageInventory: true},
				{ID: "v2", Title: "Large", PriceInCents: 999, SalePriceInCents: &sale, ManageInventory: false},
				{ID: "v3", Title: "Family", PriceInCents: 1999, InventoryQuantity: 0, ManageInventory: true},
			},
		},
		{
			ID: "p2", Title: "Gift Card", Purchasable: false,
			Variants: []domain.Variant{{ID: "g1", Title: "Gift Card", PriceInCents: 2500}},
		},
	}
}

func newTestAPI(t *testing.T, products *mockProducts) *testAPI {
	t.Helper()
	store := &memoryLineStore{lines: map[string]domain.CartLine{}}
	orders := &memoryOrders{}
	registry := session.NewRegistry(func(string) cart.LineStore { return store }, nil)
	logger := zap.NewNop()

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get("X-Test-Session"); id != "" {
				r = r.WithContext(context.WithValue(r.Context(), middleware.SessionIDKey, id))
			}
			next.ServeHTTP(w, r)
		})
	})
	router.Route("/api", func(r chi.Router) {
		NewCatalogHandler(products, money.USD, logger).RegisterRoutes(r)
		NewCartHandler(registry, products, logger).RegisterRoutes(r)
		NewCheckoutHandler(registry, service.NewCheckoutService(orders, nil, logger), money.USD, logger).RegisterRoutes(r)
	})
	return &testAPI{router: router, store: store, orders: orders, registry: registry}
}

func (a *testAPI) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Test-Session", "s1")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeCart(t *testing.T, w *httptest.ResponseRecorder) CartView {
	t.Helper()
	var view CartView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	return view
}

func TestListProductsFormatsPrices(t *testing.T) {
	api := newTestAPI(t, &mockProducts{products: catalogFixture()})

	w := api.do("GET", "/api/products?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Products []ProductView `json:"products"`
		Count    int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)

	variants := body.Products[0].Variants
	assert.Equal(t, "$7.99", variants[0].Price)
	assert.True(t, variants[0].InStock)
	assert.True(t, variants[1].OnSale)
	assert.Equal(t, "$3.99", *variants[1].SalePrice)
	assert.False(t, variants[2].InStock)
	assert.Equal(t, "New", *body.Products[0].RibbonText)

	assert.Equal(t, http.StatusBadRequest, api.do("GET", "/api/products?limit=abc", nil).Code)
}

func TestCatalogErrorsAreMapped(t *testing.T) {
	api := newTestAPI(t, &mockProducts{products: catalogFixture()})
	assert.Equal(t, http.StatusNotFound, api.do("GET", "/api/products/missing", nil).Code)

	down := newTestAPI(t, &mockProducts{err: domain.ErrSourceUnavailable})
	assert.Equal(t, http.StatusServiceUnavailable, down.do("GET", "/api/products", nil).Code)
}

func TestAddLineClampsToLiveStock(t *testing.T) {
	api := newTestAPI(t, &mockProducts{products: catalogFixture()})

	w := api.do("POST", "/api/cart/lines", AddLineRequest{ProductID: "p1", VariantID: "v1", Quantity: 3})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do("POST", "/api/cart/lines", AddLineRequest{ProductID: "p1", VariantID: "v1", Quantity: 5})
	require.Equal(t, http.StatusOK, w.Code)

	view := decodeCart(t, w)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 4, view.Lines[0].Quantity)
	assert.Equal(t, 4, *view.Lines[0].MaxQuantity)
	assert.Equal(t, "$31.96", view.Total)
	assert.Equal(t, 4, view.ItemCount)
	require.Len(t, view.Notifications, 1)
	assert.Contains(t, view.Notifications[0].Message, "Only 4 available")
}

func TestAddLineErrors(t *testing.T) {
	api := newTestAPI(t, &mockProducts{products: catalogFixture()})

	cases := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"out of stock", AddLineRequest{ProductID: "p1", VariantID: "v3", Quantity: 1}, http.StatusConflict},
		{"not purchasable", AddLineRequest{ProductID: "p2", VariantID: "g1", Quantity: 1}, http.StatusUnprocessableEntity},
		{"unknown product", AddLineRequest{ProductID: "nope", VariantID: "v1", Quantity: 1}, http.StatusNotFound},
		{"unknown variant", AddLineRequest{ProductID: "p1", VariantID: "g1", Quantity: 1}, http.StatusNotFound},
		{"zero quantity", map[string]interface{}{"product_id": "p1", "variant_id": "v1", "quantity": 0}, http.StatusBadRequest},
		{"malformed", "not json", http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := api.do("POST", "/api/cart/lines", tc.body)
			assert.Equal(t, tc.status, w.Code)
		})
	}

	view := decodeCart(t, api.do("GET", "/api/cart", nil))
	assert.Empty(t, view.Lines)
}

func TestOutOfStockErrorCarriesNotification(t *testing.T) {
	api := newTestAPI(t, &mockProducts{products: catalogFixture()})

	w := api.do("POST", "/api/cart/lines", AddLineRequest{ProductID: "p1", VariantID: "v3", Quantity: 1})
	require.Equal(t, http.StatusConflict, w.Code)

	var response middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response.Error.Details, "notifications")
}

func TestUpdateAndRemoveLine(t *testing.T) {
	api := newTestAPI(t, &mockProducts{products: catalogFixture()})
	api.do("POST", "/api/cart/lines", AddLineRequest{ProductID: "p1", VariantID: "v2", Quantity: 1})

	w := api.do("PATCH", "/api/cart/lines/p1/v2", map[string]int{"quantity": 7})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, decodeCart(t, w).ItemCount)
	assert.Equal(t, "$27.93", decodeCart(t, w).Total)

	assert.Equal(t, http.StatusNotFound, api.do("PATCH", "/api/cart/lines/p1/v9", map[string]int{"quantity": 1}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do("PATCH", "/api/cart/lines/p1/v2", map[string]int{}).Code)

	w = api.do("PATCH", "/api/cart/lines/p1/v2", map[string]int{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeCart(t, w).Lines)

	assert.Equal(t, http.StatusOK, api.do("DELETE", "/api/cart/lines/p1/v2", nil).Code, "removing an absent line is a no-op")
}

func TestPersistenceFailureReturnsAccepted(t *testing.T) {
	api := newTestAPI(t, &mockProducts{products: catalogFixture()})
	api.store.failWrite = true

	w := api.do("POST", "/api/cart/lines", AddLineRequest{ProductID: "p1", VariantID: "v1", Quantity: 2})
	require.Equal(t, http.StatusAccepted, w.Code)

	view := decodeCart(t, w)
	assert.NotEmpty(t, view.Warning)
	assert.Equal(t, 2, view.ItemCount, "optimistic state is kept")
}

func TestCheckoutFlow(t *testing.T) {
	api := newTestAPI(t, &mockProducts{products: catalogFixture()})

	assert.Equal(t, http.StatusConflict, api.do("POST", "/api/checkout", nil).Code)

	api.do("POST", "/api/cart/lines", AddLineRequest{ProductID: "p1", VariantID: "v1", Quantity: 3})
	w := api.do("POST", "/api/checkout", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Zero(t, api.registry.Len(), "confirmed session is torn down")

	var response CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "$23.97", response.Order.Total)
	assert.Empty(t, response.Cart.Lines)

	w = api.do("GET", "/api/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Orders []OrderView `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Orders, 1)
	assert.Equal(t, int64(2397), history.Orders[0].TotalInCents)
}

func TestMissingSessionIsRejected(t *testing.T) {
	api := newTestAPI(t, &mockProducts{products: catalogFixture()})

	req := httptest.NewRequest("GET", "/api/cart", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// Feature: storefront-cart, Property: the reported total equals the sum of line subtotals
func TestProperty_CartViewTotalsAreConsistent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("total and item count agree with the lines", prop.ForAll(
		func(quantities []int) bool {
			api := newTestAPI(t, &mockProducts{products: catalogFixture()})
			for i, q := range quantities {
				variant := []string{"v1", "v2"}[i%2]
				api.do("POST", "/api/cart/lines", AddLineRequest{ProductID: "p1", VariantID: variant, Quantity: q})
			}

			view := decodeCart(t, api.do("GET", "/api/cart", nil))
			var total int64
			count := 0
			for _, l := range view.Lines {
				total += l.SubtotalInCents
				count += l.Quantity
				if l.MaxQuantity != nil && l.Quantity > *l.MaxQuantity {
					return false
				}
			}
			return total == view.TotalInCents && count == view.ItemCount &&
				view.Total == money.Format(total, money.USD)
		},
		gen.SliceOf(gen.IntRange(1, 10)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
