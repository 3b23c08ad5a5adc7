package domain

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateProduct checks a record ingested from the record source. Fields that
// can be safely defaulted are normalized in place; anything that would corrupt
// pricing is rejected with ErrInvalidRecord.
func ValidateProduct(p *Product) error {
	p.ID = strings.TrimSpace(p.ID)
	p.Title = strings.TrimSpace(p.Title)
	if p.RibbonText != nil && strings.TrimSpace(*p.RibbonText) == "" {
		p.RibbonText = nil
	}

	for i := range p.Variants {
		v := &p.Variants[i]
		if v.InventoryQuantity < 0 {
			v.InventoryQuantity = 0
		}
		if strings.TrimSpace(v.Title) == "" {
			v.Title = p.Title
		}
	}

	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: product %q: %v", ErrInvalidRecord, p.ID, err)
	}

	seen := make(map[string]struct{}, len(p.Variants))
	for _, v := range p.Variants {
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("%w: product %q: duplicate variant %q", ErrInvalidRecord, p.ID, v.ID)
		}
		seen[v.ID] = struct{}{}
	}

	return nil
}
