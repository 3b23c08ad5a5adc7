package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/cart"
	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrCartLineNotFound = fmt.Errorf("cart line %w", domain.ErrNotFound)
)

const foreignKeyViolation = "23503"

// CartLineRepository stores cart lines for every session
type CartLineRepository struct {
	db *sql.DB
}

// NewCartLineRepository creates a new instance of CartLineRepository
func NewCartLineRepository(db *sql.DB) *CartLineRepository {
	return &CartLineRepository{db: db}
}

// ForSession returns the line store backing one session's cart
func (r *CartLineRepository) ForSession(sessionID string) *SessionCartLines {
	return &SessionCartLines{db: r.db, sessionID: sessionID}
}

// DeleteSession removes every line of a session
func (r *CartLineRepository) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session cart: %w", err)
	}
	return nil
}

// SessionCartLines is the cart record source scoped to a single session
type SessionCartLines struct {
	db        *sql.DB
	sessionID string
}

var _ cart.LineStore = (*SessionCartLines)(nil)

// CreateCartLine inserts a line. An existing record for the same key is
// overwritten so a retried create never produces a duplicate.
func (s *SessionCartLines) CreateCartLine(ctx context.Context, productID, variantID string, quantity int) (domain.CartLine, error) {
	line := domain.CartLine{
		Key: domain.LineKey{ProductID: productID, VariantID: variantID},
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO cart_lines (id, session_id, product_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT uq_cart_lines_key
		DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING id, quantity
	`, uuid.New(), s.sessionID, productID, variantID, quantity).Scan(&line.ID, &line.Quantity)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return domain.CartLine{}, fmt.Errorf("product %s variant %s: %w", productID, variantID, domain.ErrNotFound)
		}
		return domain.CartLine{}, fmt.Errorf("failed to create cart line: %w", err)
	}

	return line, nil
}

// UpdateCartLine sets the quantity of an existing line
func (s *SessionCartLines) UpdateCartLine(ctx context.Context, lineID string, quantity int) (domain.CartLine, error) {
	id, err := uuid.Parse(lineID)
	if err != nil {
		return domain.CartLine{}, ErrCartLineNotFound
	}

	line := domain.CartLine{ID: lineID}
	err = s.db.QueryRowContext(ctx, `
		UPDATE cart_lines
		SET quantity = $3
		WHERE id = $1 AND session_id = $2
		RETURNING product_id, variant_id, quantity
	`, id, s.sessionID, quantity).Scan(&line.Key.ProductID, &line.Key.VariantID, &line.Quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CartLine{}, ErrCartLineNotFound
		}
		return domain.CartLine{}, fmt.Errorf("failed to update cart line: %w", err)
	}

	return line, nil
}

// DeleteCartLine removes a line
func (s *SessionCartLines) DeleteCartLine(ctx context.Context, lineID string) error {
	id, err := uuid.Parse(lineID)
	if err != nil {
		return ErrCartLineNotFound
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE id = $1 AND session_id = $2`, id, s.sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCartLineNotFound
	}

	return nil
}

// ListCartLines returns the session's lines in insertion order with product
// and variant snapshots embedded
func (s *SessionCartLines) ListCartLines(ctx context.Context) ([]domain.CartLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cl.id, cl.quantity,
		       p.id, p.title, p.subtitle, p.description, p.ribbon_text, p.purchasable, p.created_at,
		       v.product_id, v.id, v.title, v.price_in_cents, v.sale_price_in_cents, v.inventory_quantity, v.manage_inventory
		FROM cart_lines cl
		JOIN products p ON p.id = cl.product_id
		JOIN variants v ON v.id = cl.variant_id
		WHERE cl.session_id = $1
		ORDER BY cl.created_at ASC, cl.id ASC
	`, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	defer rows.Close()

	lines := []domain.CartLine{}
	for rows.Next() {
		var (
			line       domain.CartLine
			ribbon     sql.NullString
			sale       sql.NullInt64
			variantPID string
		)
		err := rows.Scan(
			&line.ID, &line.Quantity,
			&line.Product.ID, &line.Product.Title, &line.Product.Subtitle, &line.Product.Description,
			&ribbon, &line.Product.Purchasable, &line.Product.CreatedAt,
			&variantPID, &line.Variant.ID, &line.Variant.Title, &line.Variant.PriceInCents,
			&sale, &line.Variant.InventoryQuantity, &line.Variant.ManageInventory,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		if ribbon.Valid {
			line.Product.RibbonText = &ribbon.String
		}
		if sale.Valid {
			line.Variant.SalePriceInCents = &sale.Int64
		}
		line.Key = domain.LineKey{ProductID: line.Product.ID, VariantID: line.Variant.ID}
		line.Product.Variants = []domain.Variant{line.Variant}
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return lines, nil
}
