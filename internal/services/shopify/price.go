package shopify

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Price is a money amount as Shopify sends it. The REST API returns prices as
// JSON strings, some endpoints and proxies as numbers; both are accepted.
// Prices are always written as two-decimal strings.
type Price struct {
	decimal.Decimal
}

func NewPrice(d decimal.Decimal) Price {
	return Price{Decimal: d}
}

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(p.StringFixed(2))), nil
}

func (p *Price) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || string(data) == `""` {
		p.Decimal = decimal.Zero
		return nil
	}
	return p.Decimal.UnmarshalJSON(data)
}

func (p Price) String() string {
	return p.StringFixed(2)
}
