package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

// OrderRepository defines the interface for order confirmation storage
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create stores an order and its lines in one transaction, assigning an ID
// and timestamp when they are unset
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, session_id, total_in_cents, currency, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, order.ID, order.SessionID, order.TotalInCents, order.Currency, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i, l := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, position, product_id, variant_id, product_title, variant_title,
			                         unit_price_in_cents, quantity, line_total_in_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, order.ID, i, l.ProductID, l.VariantID, l.ProductTitle, l.VariantTitle,
			l.UnitPriceInCents, l.Quantity, l.LineTotalInCents)
		if err != nil {
			return fmt.Errorf("failed to create order line %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

// ListBySession returns a session's orders newest first
func (r *orderRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.total_in_cents, o.currency, o.created_at,
		       l.product_id, l.variant_id, l.product_title, l.variant_title,
		       l.unit_price_in_cents, l.quantity, l.line_total_in_cents
		FROM orders o
		JOIN order_lines l ON l.order_id = o.id
		WHERE o.session_id = $1
		ORDER BY o.created_at DESC, o.id, l.position
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		var (
			id        string
			total     int64
			currency  string
			createdAt time.Time
			line      domain.OrderLine
		)
		err := rows.Scan(&id, &total, &currency, &createdAt,
			&line.ProductID, &line.VariantID, &line.ProductTitle, &line.VariantTitle,
			&line.UnitPriceInCents, &line.Quantity, &line.LineTotalInCents)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		if n := len(orders); n == 0 || orders[n-1].ID != id {
			orders = append(orders, domain.Order{
				ID:           id,
				SessionID:    sessionID,
				TotalInCents: total,
				Currency:     currency,
				CreatedAt:    createdAt,
			})
		}
		last := &orders[len(orders)-1]
		last.Lines = append(last.Lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
