package shopify

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	ProductType = "Configurator Component"
	Vendor      = "Rackbeat"

	TagConfiguratorComponent = "configurator-component"
	TagRackbeatProduct       = "rackbeat-product"

	MetafieldNamespaceRackbeat     = "rackbeat"
	MetafieldKeyProductID          = "product_id"
	MetafieldNamespaceConfigurator = "configurator"
	MetafieldKeyComponentType      = "component_type"

	ComponentType = "component"

	defaultOptionName  = "Title"
	defaultOptionValue = "Default Title"
)

// ProductInput is what the storefront needs to know about a source product.
type ProductInput struct {
	Number      string
	Name        string
	Description string
	Price       decimal.Decimal
}

type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

// BuildProduct converts a source product into the Shopify product payload used
// by both create and update. The source number is the title, the SKU, the
// barcode and the first tag, so it can be found again on the next run.
func (t *Transformer) BuildProduct(in ProductInput) *Product {
	number := strings.TrimSpace(in.Number)
	barcode := number
	option := defaultOptionValue
	published := true

	body := in.Description
	if body == "" {
		body = in.Name
	}

	return &Product{
		Title:       number,
		BodyHTML:    body,
		Vendor:      Vendor,
		ProductType: ProductType,
		Status:      "active",
		Published:   &published,
		Tags:        t.BuildTags(number),
		Options: []Option{
			{Name: defaultOptionName, Values: []string{defaultOptionValue}},
		},
		Variants: []Variant{
			{
				Title:               defaultOptionValue,
				Price:               NewPrice(in.Price),
				Sku:                 number,
				Barcode:             &barcode,
				InventoryPolicy:     "continue",
				InventoryManagement: nil,
				FulfillmentService:  "manual",
				Option1:             &option,
				Taxable:             true,
				RequiresShipping:    true,
			},
		},
		Metafields: []Metafield{
			{
				Namespace: MetafieldNamespaceRackbeat,
				Key:       MetafieldKeyProductID,
				Value:     number,
				Type:      "single_line_text_field",
			},
			{
				Namespace: MetafieldNamespaceConfigurator,
				Key:       MetafieldKeyComponentType,
				Value:     ComponentType,
				Type:      "single_line_text_field",
			},
		},
	}
}

func (t *Transformer) BuildTags(number string) string {
	return strings.Join([]string{number, TagConfiguratorComponent, TagRackbeatProduct}, ",")
}
