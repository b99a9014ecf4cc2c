package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"catalogsync/internal/config"
	"catalogsync/internal/logger"
	"catalogsync/internal/services"
)

const DefaultListLimit = 250

type Client struct {
	apiBase     string
	accessToken string
	httpClient  *http.Client
	transformer *Transformer
	logger      *logger.Logger
}

func NewClient(cfg config.ShopifyConfig, logger *logger.Logger) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		shop := strings.TrimSuffix(cfg.ShopDomain, ".myshopify.com")
		base = fmt.Sprintf("https://%s.myshopify.com", shop)
	}
	version := cfg.APIVersion
	if version == "" {
		version = "2023-10"
	}

	return &Client{
		apiBase:     fmt.Sprintf("%s/admin/api/%s", base, version),
		accessToken: cfg.AccessToken,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		transformer: NewTransformer(),
		logger:      logger,
	}
}

// ListAll fetches the first page of products. Pagination cursors are not
// followed, so at most limit products are returned.
func (c *Client) ListAll(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return c.getProducts(ctx, "list products", q)
}

// SearchByTitle queries products by title. Shopify matches loosely, so the
// result may hold zero, one or several products and callers must filter.
func (c *Client) SearchByTitle(ctx context.Context, title string) ([]Product, error) {
	q := url.Values{}
	q.Set("title", title)
	return c.getProducts(ctx, "search products", q)
}

func (c *Client) getProducts(ctx context.Context, op string, q url.Values) ([]Product, error) {
	status, body, err := c.do(ctx, op, http.MethodGet, "/products.json?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, &services.TransportError{Op: op, Status: status, Body: string(body)}
	}

	var productsResp ProductsResponse
	if err := json.Unmarshal(body, &productsResp); err != nil {
		return nil, &services.DecodeError{Op: op, Err: err}
	}
	return productsResp.Products, nil
}

// Create creates a new product from the source input.
func (c *Client) Create(ctx context.Context, in ProductInput) (*Product, error) {
	product := c.transformer.BuildProduct(in)
	product, err := c.writeProduct(ctx, "create product", http.MethodPost, "/products.json", product)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Created Shopify product %d for %s", product.ID, in.Number)
	return product, nil
}

// Update replaces the product with the given id using the source input.
func (c *Client) Update(ctx context.Context, id int64, in ProductInput) (*Product, error) {
	product := c.transformer.BuildProduct(in)
	product.ID = id
	path := fmt.Sprintf("/products/%d.json", id)
	product, err := c.writeProduct(ctx, "update product", http.MethodPut, path, product)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Updated Shopify product %d for %s", product.ID, in.Number)
	return product, nil
}

// CreateOrUpdate updates the product whose title equals the source number, or
// creates one when none exists. Repeated calls converge on a single product.
func (c *Client) CreateOrUpdate(ctx context.Context, in ProductInput) (*Product, error) {
	matches, err := c.SearchByTitle(ctx, in.Number)
	if err != nil {
		return nil, err
	}
	if existing := FindExact(matches, in.Number); existing != nil {
		return c.Update(ctx, existing.ID, in)
	}
	return c.Create(ctx, in)
}

func (c *Client) writeProduct(ctx context.Context, op, method, path string, product *Product) (*Product, error) {
	payload, err := json.Marshal(productEnvelope{Product: product})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal product: %w", err)
	}

	status, body, err := c.do(ctx, op, method, path, payload)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, &services.APIError{Op: op, Status: status, Body: string(body)}
	}

	var envelope productEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &services.IntegrityError{Op: op, Reason: "undecodable response", Err: err}
	}
	if envelope.Product == nil || envelope.Product.ID == 0 {
		return nil, &services.IntegrityError{Op: op, Reason: "response has no product"}
	}
	return envelope.Product, nil
}

// ListSalesChannels fetches the channels a product can be published to.
func (c *Client) ListSalesChannels(ctx context.Context) ([]SalesChannel, error) {
	const op = "list sales channels"
	status, body, err := c.do(ctx, op, http.MethodGet, "/sales_channels.json", nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, &services.TransportError{Op: op, Status: status, Body: string(body)}
	}

	var resp salesChannelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &services.DecodeError{Op: op, Err: err}
	}
	return resp.SalesChannels, nil
}

// Publish makes the product visible on one sales channel.
func (c *Client) Publish(ctx context.Context, productID, channelID int64) error {
	const op = "publish product"
	payload, err := json.Marshal(publicationEnvelope{ProductPublication: ProductPublication{
		ProductID: productID,
		ChannelID: channelID,
		Published: true,
	}})
	if err != nil {
		return fmt.Errorf("failed to marshal publication: %w", err)
	}

	status, body, err := c.do(ctx, op, http.MethodPost, "/product_publications.json", payload)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return &services.APIError{Op: op, Status: status, Body: string(body)}
	}
	return nil
}

// PublishToAllChannels publishes the product on every sales channel. It never
// fails: the report tells which channels succeeded and which did not.
func (c *Client) PublishToAllChannels(ctx context.Context, productID int64) PublicationReport {
	report := PublicationReport{ProductID: productID}

	channels, err := c.ListSalesChannels(ctx)
	if err != nil {
		c.logger.Warn("Could not list sales channels for product %d: %v", productID, err)
		report.ListErr = err
		return report
	}

	for _, channel := range channels {
		if err := c.Publish(ctx, productID, channel.ID); err != nil {
			c.logger.Warn("Failed to publish product %d to channel %s: %v", productID, channel.Name, err)
			report.Failures = append(report.Failures, ChannelFailure{Channel: channel, Err: err})
			continue
		}
		report.Published = append(report.Published, channel)
	}
	return report
}

// ExecuteRawQuery posts a GraphQL query and returns the raw response body.
func (c *Client) ExecuteRawQuery(ctx context.Context, query string) ([]byte, error) {
	const op = "graphql query"
	payload, err := json.Marshal(graphQLRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	status, body, err := c.do(ctx, op, http.MethodPost, "/graphql.json", payload)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, &services.TransportError{Op: op, Status: status, Body: string(body)}
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload []byte) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, reqBody)
	if err != nil {
		return 0, nil, &services.TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("%s %s", method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &services.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &services.TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	return resp.StatusCode, body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

// FindExact returns the first product whose title equals title exactly and
// that has an assigned id.
func FindExact(products []Product, title string) *Product {
	for i := range products {
		if products[i].Title == title && products[i].ID != 0 {
			return &products[i]
		}
	}
	return nil
}

// PublicationReport is the outcome of a best-effort publication.
type PublicationReport struct {
	ProductID int64
	Published []SalesChannel
	Failures  []ChannelFailure
	ListErr   error
}

type ChannelFailure struct {
	Channel SalesChannel
	Err     error
}

// OK reports whether every channel was published.
func (r PublicationReport) OK() bool {
	return r.ListErr == nil && len(r.Failures) == 0
}

// Err joins every publication failure, or returns nil.
func (r PublicationReport) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, 0, len(r.Failures)+1)
	if r.ListErr != nil {
		errs = append(errs, r.ListErr)
	}
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("channel %s (%d): %w", f.Channel.Name, f.Channel.ID, f.Err))
	}
	return errors.Join(errs...)
}
