package domain

import "time"

// LineKey identifies a cart line by product and variant
type LineKey struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
}

// CartLine is one (product, variant, quantity) entry in a cart. Product and
// Variant are snapshots taken when the line was last added to.
type CartLine struct {
	ID       string  `json:"id,omitempty"`
	Key      LineKey `json:"key"`
	Quantity int     `json:"quantity"`
	Product  Product `json:"product"`
	Variant  Variant `json:"variant"`
}

// Subtotal returns effective price times quantity in cents
func (l CartLine) Subtotal() int64 {
	return l.Variant.EffectivePrice() * int64(l.Quantity)
}

// Order is the confirmation record written when a cart is checked out
type Order struct {
	ID           string      `json:"id"`
	SessionID    string      `json:"session_id"`
	Lines        []OrderLine `json:"lines"`
	TotalInCents int64       `json:"total_in_cents"`
	Currency     string      `json:"currency"`
	CreatedAt    time.Time   `json:"created_at"`
}

// OrderLine freezes the pricing of one cart line at checkout
type OrderLine struct {
	ProductID        string `json:"product_id"`
	VariantID        string `json:"variant_id"`
	ProductTitle     string `json:"product_title"`
	VariantTitle     string `json:"variant_title"`
	UnitPriceInCents int64  `json:"unit_price_in_cents"`
	Quantity         int    `json:"quantity"`
	LineTotalInCents int64  `json:"line_total_in_cents"`
}
