package transport

import (
	"context"
	"net/http"
	"strconv"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/money"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxPageSize caps the limit query parameter
const maxPageSize = 100

// ProductLoader serves reconciled catalog reads
type ProductLoader interface {
	LoadProductPage(ctx context.Context, limit int) ([]domain.Product, error)
	LoadProductDetail(ctx context.Context, productID string) (domain.Product, error)
}

// CatalogHandler handles HTTP requests for product listings
type CatalogHandler struct {
	products ProductLoader
	currency money.Currency
	logger   *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(products ProductLoader, currency money.Currency, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		products: products,
		currency: currency,
		logger:   logger,
	}
}

// RegisterRoutes registers all catalog routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
	})
}

// ListProducts handles a page of reconciled products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			middleware.RespondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = min(n, maxPageSize)
	}

	products, err := h.products.LoadProductPage(r.Context(), limit)
	if err != nil {
		respondWithDomainError(w, h.logger, err, nil)
		return
	}

	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, newProductView(p, h.currency))
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"products": views,
		"count":    len(views),
	})
}

// GetProduct handles a single reconciled product
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.LoadProductDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithDomainError(w, h.logger, err, nil)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductView(product, h.currency))
}
