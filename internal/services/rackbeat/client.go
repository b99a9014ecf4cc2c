package rackbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"catalogsync/internal/config"
	"catalogsync/internal/logger"
	"catalogsync/internal/services"
)

type Client struct {
	baseURL      string
	productsPath string
	apiToken     string
	httpClient   *http.Client
	logger       *logger.Logger
}

func NewClient(cfg config.RackbeatConfig, logger *logger.Logger) *Client {
	path := cfg.ProductsPath
	if path == "" {
		path = "/products"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		productsPath: path,
		apiToken:     cfg.APIToken,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// FetchAll fetches the whole product catalog in a single request. Rackbeat is
// expected to return every product on one page.
func (c *Client) FetchAll(ctx context.Context) ([]Product, error) {
	const op = "fetch rackbeat products"
	url := c.baseURL + c.productsPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &services.TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("GET %s", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &services.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &services.TransportError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &services.TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var productsResp ProductsResponse
	if err := json.Unmarshal(body, &productsResp); err != nil {
		return nil, &services.DecodeError{Op: op, Err: err}
	}

	if productsResp.Products == nil {
		return []Product{}, nil
	}

	c.logger.Info("Fetched %d products from Rackbeat", len(productsResp.Products))
	return productsResp.Products, nil
}
