package rackbeat

import (
	"github.com/shopspring/decimal"
)

// Product represents a Rackbeat product. Only Number, Name and SalesPrice are
// propagated to the storefront; the rest is carried for logging and previews.
type Product struct {
	Number            string              `json:"number"`
	Name              string              `json:"name"`
	Description       string              `json:"description"`
	SalesPrice        decimal.NullDecimal `json:"sales_price"`
	CostPrice         decimal.NullDecimal `json:"cost_price"`
	Barcode           *string             `json:"barcode"`
	Unit              *Unit               `json:"unit,omitempty"`
	StockQuantity     float64             `json:"stock_quantity"`
	InOrderQuantity   float64             `json:"in_order_quantity"`
	PurchasedQuantity float64             `json:"purchased_quantity"`
	AvailableQuantity float64             `json:"available_quantity"`
	DefaultLocation   *Location           `json:"default_location,omitempty"`
	Weight            float64             `json:"weight"`
	WeightUnit        string              `json:"weight_unit"`
	Height            float64             `json:"height"`
	Width             float64             `json:"width"`
	Depth             float64             `json:"depth"`
	IsBarred          bool                `json:"is_barred"`
	CreatedAt         string              `json:"created_at"`
	UpdatedAt         string              `json:"updated_at"`
}

type Unit struct {
	Name string `json:"name"`
}

type Location struct {
	Number string `json:"number"`
	Name   string `json:"name"`
}

// ProductsResponse represents the response from the products endpoint
type ProductsResponse struct {
	Products []Product `json:"products"`
}

// Price returns the sales price, or zero when Rackbeat has none.
func (p *Product) Price() decimal.Decimal {
	if !p.SalesPrice.Valid {
		return decimal.Zero
	}
	return p.SalesPrice.Decimal
}
