package shopify

import (
	"time"
)

// Product represents a Shopify product
type Product struct {
	ID          int64       `json:"id,omitempty"`
	Title       string      `json:"title"`
	BodyHTML    string      `json:"body_html,omitempty"`
	Vendor      string      `json:"vendor,omitempty"`
	ProductType string      `json:"product_type,omitempty"`
	Handle      string      `json:"handle,omitempty"`
	Status      string      `json:"status,omitempty"`
	Published   *bool       `json:"published,omitempty"`
	Tags        string      `json:"tags"`
	Variants    []Variant   `json:"variants,omitempty"`
	Options     []Option    `json:"options,omitempty"`
	Metafields  []Metafield `json:"metafields,omitempty"`
	CreatedAt   *time.Time  `json:"created_at,omitempty"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
	PublishedAt *time.Time  `json:"published_at,omitempty"`
}

// Variant represents a product variant
type Variant struct {
	ID                  int64      `json:"id,omitempty"`
	ProductID           int64      `json:"product_id,omitempty"`
	Title               string     `json:"title,omitempty"`
	Price               Price      `json:"price"`
	CompareAtPrice      *Price     `json:"compare_at_price,omitempty"`
	Sku                 string     `json:"sku"`
	Barcode             *string    `json:"barcode"`
	Position            int        `json:"position,omitempty"`
	InventoryPolicy     string     `json:"inventory_policy,omitempty"`
	InventoryManagement *string    `json:"inventory_management"`
	FulfillmentService  string     `json:"fulfillment_service,omitempty"`
	Option1             *string    `json:"option1,omitempty"`
	Taxable             bool       `json:"taxable"`
	RequiresShipping    bool       `json:"requires_shipping"`
	InventoryQuantity   int        `json:"inventory_quantity,omitempty"`
	CreatedAt           *time.Time `json:"created_at,omitempty"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}

// Option represents a product option
type Option struct {
	ID        int64    `json:"id,omitempty"`
	ProductID int64    `json:"product_id,omitempty"`
	Name      string   `json:"name"`
	Position  int      `json:"position,omitempty"`
	Values    []string `json:"values,omitempty"`
}

// Metafield is a namespaced key/value annotation on a product.
type Metafield struct {
	ID        int64  `json:"id,omitempty"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

// SalesChannel is a publishing target such as the online store.
type SalesChannel struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ProductPublication struct {
	ProductID int64 `json:"product_id"`
	ChannelID int64 `json:"channel_id"`
	Published bool  `json:"published"`
}

// ProductsResponse represents the response from products API
type ProductsResponse struct {
	Products []Product `json:"products"`
}

type productEnvelope struct {
	Product *Product `json:"product"`
}

type salesChannelsResponse struct {
	SalesChannels []SalesChannel `json:"sales_channels"`
}

type publicationEnvelope struct {
	ProductPublication ProductPublication `json:"product_publication"`
}

type graphQLRequest struct {
	Query string `json:"query"`
}

// FirstVariant returns the primary variant or nil.
func (p *Product) FirstVariant() *Variant {
	for i := range p.Variants {
		if p.Variants[i].Position == 1 {
			return &p.Variants[i]
		}
	}
	if len(p.Variants) > 0 {
		return &p.Variants[0]
	}
	return nil
}
