package rackbeat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogsync/internal/config"
	"catalogsync/internal/logger"
	"catalogsync/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.RackbeatConfig{
		BaseURL:      srv.URL + "/api/",
		APIToken:     "rb-token",
		ProductsPath: "products",
	}, logger.Nop())
}

func TestFetchAll_DecodesProducts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.Equal(t, "Bearer rb-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"products":[
			{"number":"ABC-100","name":"Bracket","sales_price":49.99,"barcode":"5701234567890","stock_quantity":12},
			{"Number":"ABC-200","NAME":"Rail","Sales_Price":"123.40"},
			{"number":"ABC-300","name":"Cap","sales_price":null}
		]}`))
	})

	products, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)

	assert.Equal(t, "ABC-100", products[0].Number)
	assert.True(t, products[0].Price().Equal(decimal.RequireFromString("49.99")))
	assert.Equal(t, float64(12), products[0].StockQuantity)
	require.NotNil(t, products[0].Barcode)

	assert.Equal(t, "ABC-200", products[1].Number)
	assert.Equal(t, "Rail", products[1].Name)
	assert.True(t, products[1].Price().Equal(decimal.RequireFromString("123.40")))

	assert.False(t, products[2].SalesPrice.Valid)
	assert.True(t, products[2].Price().IsZero())
}

func TestFetchAll_EmptyOrMissingArray(t *testing.T) {
	for name, body := range map[string]string{
		"empty array":   `{"products":[]}`,
		"missing array": `{}`,
		"null array":    `{"products":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})

			products, err := client.FetchAll(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, products)
			assert.Empty(t, products)
		})
	}
}

func TestFetchAll_Errors(t *testing.T) {
	t.Run("non-success status is a transport error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})

		_, err := client.FetchAll(context.Background())
		require.Error(t, err)
		assert.True(t, services.IsTransport(err))
		assert.Equal(t, http.StatusUnauthorized, services.StatusCode(err))
	})

	t.Run("invalid json is a decode error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>maintenance</html>`))
		})

		_, err := client.FetchAll(context.Background())
		require.Error(t, err)
		assert.True(t, services.IsDecode(err))
	})

	t.Run("wrong envelope is a decode error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"number":"ABC-100"}]`))
		})

		_, err := client.FetchAll(context.Background())
		assert.True(t, services.IsDecode(err))
	})

	t.Run("trailing content after the envelope is a decode error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"products":[]}<html>`))
		})

		_, err := client.FetchAll(context.Background())
		require.Error(t, err)
		assert.True(t, services.IsDecode(err))
	})

	t.Run("unreachable host is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		client := NewClient(config.RackbeatConfig{BaseURL: url, APIToken: "x"}, logger.Nop())
		_, err := client.FetchAll(context.Background())
		require.Error(t, err)
		assert.True(t, services.IsTransport(err))
		assert.Equal(t, 0, services.StatusCode(err))
	})
}
