package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
)

var (
	ErrProductNotFound = fmt.Errorf("product %w", domain.ErrNotFound)
)

// ProductRepository defines the interface for catalog data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	ListProducts(ctx context.Context, opts domain.ListOptions) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	InventoryLevels(ctx context.Context) (domain.InventorySnapshot, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts a product and its variants in one transaction
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, title, subtitle, description, ribbon_text, purchasable, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`,
		product.ID,
		product.Title,
		product.Subtitle,
		product.Description,
		product.RibbonText,
		product.Purchasable,
		product.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	for i, v := range product.Variants {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO variants (id, product_id, position, title, price_in_cents, sale_price_in_cents, inventory_quantity, manage_inventory)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			v.ID,
			product.ID,
			i,
			v.Title,
			v.PriceInCents,
			v.SalePriceInCents,
			v.InventoryQuantity,
			v.ManageInventory,
		)
		if err != nil {
			return fmt.Errorf("failed to create variant %s: %w", v.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit product: %w", err)
	}
	return nil
}

// ListProducts returns products newest first, each with its ordered variants
func (r *productRepository) ListProducts(ctx context.Context, opts domain.ListOptions) ([]domain.Product, error) {
	query := `
		SELECT id, title, subtitle, description, ribbon_text, purchasable, created_at
		FROM products
		ORDER BY created_at DESC, id ASC
	`
	args := []interface{}{}
	if opts.Limit > 0 {
		query += " LIMIT $1"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	ids := []string{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
		ids = append(ids, p.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	if len(ids) == 0 {
		return products, nil
	}

	variants, err := r.variantsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Variants = variants[products[i].ID]
	}

	return products, nil
}

// GetProduct retrieves a product with its variants
func (r *productRepository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, subtitle, description, ribbon_text, purchasable, created_at
		FROM products
		WHERE id = $1
	`, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("failed to find product by ID: %w", err)
	}

	variants, err := r.variantsFor(ctx, []string{p.ID})
	if err != nil {
		return domain.Product{}, err
	}
	p.Variants = variants[p.ID]

	return p, nil
}

// InventoryLevels returns the embedded inventory of every managed variant
func (r *productRepository) InventoryLevels(ctx context.Context) (domain.InventorySnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, inventory_quantity FROM variants WHERE manage_inventory`)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory levels: %w", err)
	}
	defer rows.Close()

	levels := domain.InventorySnapshot{}
	for rows.Next() {
		var (
			id  string
			qty int
		)
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan inventory level: %w", err)
		}
		levels[id] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory levels: %w", err)
	}
	return levels, nil
}

func (r *productRepository) variantsFor(ctx context.Context, productIDs []string) (map[string][]domain.Variant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, id, title, price_in_cents, sale_price_in_cents, inventory_quantity, manage_inventory
		FROM variants
		WHERE product_id = ANY($1)
		ORDER BY product_id, position
	`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Variant, len(productIDs))
	for rows.Next() {
		var productID string
		v, err := scanVariant(rows, &productID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		out[productID] = append(out[productID], v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variants: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(s scanner) (domain.Product, error) {
	var (
		p      domain.Product
		ribbon sql.NullString
	)
	if err := s.Scan(&p.ID, &p.Title, &p.Subtitle, &p.Description, &ribbon, &p.Purchasable, &p.CreatedAt); err != nil {
		return domain.Product{}, err
	}
	if ribbon.Valid {
		p.RibbonText = &ribbon.String
	}
	return p, nil
}

// scanVariant reads a variant row prefixed by one extra column into prefix
func scanVariant(s scanner, prefix *string) (domain.Variant, error) {
	var (
		v    domain.Variant
		sale sql.NullInt64
	)
	if err := s.Scan(prefix, &v.ID, &v.Title, &v.PriceInCents, &sale, &v.InventoryQuantity, &v.ManageInventory); err != nil {
		return domain.Variant{}, err
	}
	if sale.Valid {
		v.SalePriceInCents = &sale.Int64
	}
	return v, nil
}
