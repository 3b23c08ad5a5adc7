package domain

import "time"

// Product represents a catalog entry as served by the record source
type Product struct {
	ID          string    `json:"id" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Subtitle    string    `json:"subtitle"`
	Description string    `json:"description"`
	RibbonText  *string   `json:"ribbon_text,omitempty"`
	Purchasable bool      `json:"purchasable"`
	Variants    []Variant `json:"variants" validate:"required,min=1,dive"`
	CreatedAt   time.Time `json:"created_at"`
}

// Variant is a purchasable option of a product. It has no lifecycle of its own.
type Variant struct {
	ID                string `json:"id" validate:"required"`
	Title             string `json:"title"`
	PriceInCents      int64  `json:"price_in_cents" validate:"gte=0"`
	SalePriceInCents  *int64 `json:"sale_price_in_cents" validate:"omitempty,gte=0"`
	InventoryQuantity int    `json:"inventory_quantity"`
	ManageInventory   bool   `json:"manage_inventory"`
}

// EffectivePrice returns the sale price when present and lower than the list price
func (v Variant) EffectivePrice() int64 {
	if v.SalePriceInCents != nil && *v.SalePriceInCents < v.PriceInCents {
		return *v.SalePriceInCents
	}
	return v.PriceInCents
}

// OnSale reports whether the effective price comes from the sale price
func (v Variant) OnSale() bool {
	return v.EffectivePrice() != v.PriceInCents
}

// Variant looks up a variant owned by the product
func (p Product) Variant(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// VariantIDs returns the product's variant ids in order
func (p Product) VariantIDs() []string {
	ids := make([]string, 0, len(p.Variants))
	for _, v := range p.Variants {
		ids = append(ids, v.ID)
	}
	return ids
}

// Clone returns a deep copy so callers can rewrite variants without aliasing
func (p Product) Clone() Product {
	out := p
	if p.RibbonText != nil {
		ribbon := *p.RibbonText
		out.RibbonText = &ribbon
	}
	out.Variants = make([]Variant, len(p.Variants))
	for i, v := range p.Variants {
		if v.SalePriceInCents != nil {
			sale := *v.SalePriceInCents
			v.SalePriceInCents = &sale
		}
		out.Variants[i] = v
	}
	return out
}

// InventorySnapshot maps variant id to its current stock level
type InventorySnapshot map[string]int

// ListOptions narrows a product listing
type ListOptions struct {
	Limit int
}
