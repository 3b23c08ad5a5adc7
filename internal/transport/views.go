package transport

import (
	"time"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/money"
	"storefront/internal/notify"
)

// VariantView is a variant with display prices and stock status
type VariantView struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Price             string  `json:"price"`
	PriceInCents      int64   `json:"price_in_cents"`
	SalePrice         *string `json:"sale_price,omitempty"`
	SalePriceInCents  *int64  `json:"sale_price_in_cents,omitempty"`
	OnSale            bool    `json:"on_sale"`
	InventoryQuantity int     `json:"inventory_quantity"`
	ManageInventory   bool    `json:"manage_inventory"`
	InStock           bool    `json:"in_stock"`
}

// ProductView is a reconciled product as shown in listings and detail pages
type ProductView struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Subtitle    string        `json:"subtitle,omitempty"`
	Description string        `json:"description,omitempty"`
	RibbonText  *string       `json:"ribbon_text,omitempty"`
	Purchasable bool          `json:"purchasable"`
	Variants    []VariantView `json:"variants"`
}

// LineView is one cart line with display prices
type LineView struct {
	ID               string `json:"id,omitempty"`
	ProductID        string `json:"product_id"`
	VariantID        string `json:"variant_id"`
	ProductTitle     string `json:"product_title"`
	VariantTitle     string `json:"variant_title"`
	Quantity         int    `json:"quantity"`
	UnitPrice        string `json:"unit_price"`
	UnitPriceInCents int64  `json:"unit_price_in_cents"`
	Subtotal         string `json:"subtotal"`
	SubtotalInCents  int64  `json:"subtotal_in_cents"`
	MaxQuantity      *int   `json:"max_quantity,omitempty"`
}

// CartView is the full cart plus notifications raised since the last response
type CartView struct {
	Lines         []LineView            `json:"lines"`
	Total         string                `json:"total"`
	TotalInCents  int64                 `json:"total_in_cents"`
	ItemCount     int                   `json:"item_count"`
	Currency      string                `json:"currency"`
	Warning       string                `json:"warning,omitempty"`
	Notifications []notify.Notification `json:"notifications"`
}

// OrderView is a confirmed order
type OrderView struct {
	ID           string          `json:"id"`
	Lines        []OrderLineView `json:"lines"`
	Total        string          `json:"total"`
	TotalInCents int64           `json:"total_in_cents"`
	Currency     string          `json:"currency"`
	CreatedAt    time.Time       `json:"created_at"`
}

// OrderLineView is one frozen line of an order
type OrderLineView struct {
	ProductID    string `json:"product_id"`
	VariantID    string `json:"variant_id"`
	ProductTitle string `json:"product_title"`
	VariantTitle string `json:"variant_title"`
	Quantity     int    `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	LineTotal    string `json:"line_total"`
}

func newVariantView(v domain.Variant, c money.Currency) VariantView {
	view := VariantView{
		ID:                v.ID,
		Title:             v.Title,
		Price:             money.Format(v.PriceInCents, c),
		PriceInCents:      v.PriceInCents,
		OnSale:            v.OnSale(),
		InventoryQuantity: v.InventoryQuantity,
		ManageInventory:   v.ManageInventory,
		InStock:           !v.ManageInventory || v.InventoryQuantity > 0,
	}
	if view.OnSale {
		sale := money.Format(*v.SalePriceInCents, c)
		view.SalePrice = &sale
		view.SalePriceInCents = v.SalePriceInCents
	}
	return view
}

func newProductView(p domain.Product, c money.Currency) ProductView {
	view := ProductView{
		ID:          p.ID,
		Title:       p.Title,
		Subtitle:    p.Subtitle,
		Description: p.Description,
		RibbonText:  p.RibbonText,
		Purchasable: p.Purchasable,
		Variants:    make([]VariantView, 0, len(p.Variants)),
	}
	for _, v := range p.Variants {
		view.Variants = append(view.Variants, newVariantView(v, c))
	}
	return view
}

func newLineView(l domain.CartLine, c money.Currency) LineView {
	view := LineView{
		ID:               l.ID,
		ProductID:        l.Key.ProductID,
		VariantID:        l.Key.VariantID,
		ProductTitle:     l.Product.Title,
		VariantTitle:     l.Variant.Title,
		Quantity:         l.Quantity,
		UnitPrice:        money.Format(l.Variant.EffectivePrice(), c),
		UnitPriceInCents: l.Variant.EffectivePrice(),
		Subtotal:         money.Format(l.Subtotal(), c),
		SubtotalInCents:  l.Subtotal(),
	}
	if l.Variant.ManageInventory {
		max := l.Variant.InventoryQuantity
		view.MaxQuantity = &max
	}
	return view
}

func newCartView(e *cart.Engine, notifications []notify.Notification) CartView {
	c := e.Currency()
	lines := e.Lines()
	view := CartView{
		Lines:         make([]LineView, 0, len(lines)),
		Total:         e.Total(),
		TotalInCents:  e.TotalInCents(),
		ItemCount:     e.ItemCount(),
		Currency:      c.Code,
		Notifications: notifications,
	}
	for _, l := range lines {
		view.Lines = append(view.Lines, newLineView(l, c))
	}
	return view
}

func newOrderView(o domain.Order, c money.Currency) OrderView {
	if o.Currency != "" && o.Currency != c.Code {
		if parsed, err := money.ParseCurrency(o.Currency, ""); err == nil {
			c = parsed
		}
	}
	view := OrderView{
		ID:           o.ID,
		Lines:        make([]OrderLineView, 0, len(o.Lines)),
		Total:        money.Format(o.TotalInCents, c),
		TotalInCents: o.TotalInCents,
		Currency:     c.Code,
		CreatedAt:    o.CreatedAt,
	}
	for _, l := range o.Lines {
		view.Lines = append(view.Lines, OrderLineView{
			ProductID:    l.ProductID,
			VariantID:    l.VariantID,
			ProductTitle: l.ProductTitle,
			VariantTitle: l.VariantTitle,
			Quantity:     l.Quantity,
			UnitPrice:    money.Format(l.UnitPriceInCents, c),
			LineTotal:    money.Format(l.LineTotalInCents, c),
		})
	}
	return view
}
