package money

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
)

// Currency describes how minor-unit amounts are rendered
type Currency struct {
	Code   string
	Symbol string
	// Digits is the number of minor-unit decimals, 2 for USD and 0 for JPY
	Digits int
}

// USD is the default storefront currency
var USD = Currency{Code: "USD", Symbol: "$", Digits: 2}

// ParseCurrency validates an ISO 4217 code and resolves its display symbol
// and minor-unit scale. An explicit symbol wins over the narrow CLDR symbol;
// codes without one render as the code followed by a space.
func ParseCurrency(code, symbol string) (Currency, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return Currency{}, fmt.Errorf("invalid currency code %q: %w", code, err)
	}

	iso := unit.String()
	if symbol == "" {
		symbol = fmt.Sprint(currency.NarrowSymbol(unit))
		if symbol == iso {
			symbol = iso + " "
		}
	}

	digits, _ := currency.Standard.Rounding(unit)
	return Currency{Code: iso, Symbol: symbol, Digits: digits}, nil
}

// Format renders an amount in minor units, e.g. 2397 -> "$23.97"
func Format(amount int64, c Currency) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if c.Digits <= 0 {
		return fmt.Sprintf("%s%s%d", sign, c.Symbol, amount)
	}

	scale := int64(1)
	for i := 0; i < c.Digits; i++ {
		scale *= 10
	}
	return fmt.Sprintf("%s%s%d.%0*d", sign, c.Symbol, amount/scale, c.Digits, amount%scale)
}
