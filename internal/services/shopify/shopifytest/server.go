// Package shopifytest provides an in-memory Shopify admin API for tests.
package shopifytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const APIVersion = "2023-10"

// Request is one call received by the server.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// Server stores products as raw JSON objects so tests can inspect exactly what
// the client wrote.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	nextID   int64
	products []map[string]interface{}
	channels []map[string]interface{}
	requests []Request

	// PricesAsNumbers makes responses carry variant prices as JSON numbers.
	PricesAsNumbers bool
	// SearchStatus forces the status of a title search, keyed by title.
	SearchStatus map[string]int
	// CreateStatus forces the status of a create, keyed by title.
	CreateStatus map[string]int
	// ChannelStatus forces the status of a publication, keyed by channel id.
	ChannelStatus map[int64]int
	// ChannelsStatus forces the status of the sales channel listing.
	ChannelsStatus int
}

func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		nextID:        1000,
		SearchStatus:  map[string]int{},
		CreateStatus:  map[string]int{},
		ChannelStatus: map[int64]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Seed stores a product as if it had been created earlier and returns its id.
func (s *Server) Seed(title, tags, price string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.products = append(s.products, map[string]interface{}{
		"id":    s.nextID,
		"title": title,
		"tags":  tags,
		"variants": []interface{}{
			map[string]interface{}{"sku": title, "price": price},
		},
	})
	return s.nextID
}

func (s *Server) AddChannel(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append(s.channels, map[string]interface{}{"id": id, "name": name})
}

// Products returns a copy of the stored products.
func (s *Server) Products() []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]interface{}, len(s.products))
	copy(out, s.products)
	return out
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many calls matched method and path suffix.
func (s *Server) Count(method, pathSuffix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasSuffix(r.Path, pathSuffix) {
			n++
		}
	}
	return n
}

// Writes counts product creates and updates.
func (s *Server) Writes() int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == http.MethodPost && strings.HasSuffix(r.Path, "/products.json") {
			n++
		}
		if r.Method == http.MethodPut && strings.Contains(r.Path, "/products/") {
			n++
		}
	}
	return n
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})

	if r.Header.Get("X-Shopify-Access-Token") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"errors": "missing access token"})
		return
	}

	prefix := "/admin/api/" + APIVersion
	path := strings.TrimPrefix(r.URL.Path, prefix)

	switch {
	case r.Method == http.MethodGet && path == "/products.json":
		s.listProducts(w, r)
	case r.Method == http.MethodPost && path == "/products.json":
		s.createProduct(w, body)
	case r.Method == http.MethodPut && strings.HasPrefix(path, "/products/"):
		s.updateProduct(w, path, body)
	case r.Method == http.MethodGet && path == "/sales_channels.json":
		if s.ChannelsStatus != 0 {
			writeJSON(w, s.ChannelsStatus, map[string]string{"errors": "forced"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"sales_channels": s.channels})
	case r.Method == http.MethodPost && path == "/product_publications.json":
		s.publish(w, body)
	case r.Method == http.MethodPost && path == "/graphql.json":
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{"shop": map[string]string{"name": "test"}}})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"errors": "Not Found"})
	}
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if status, ok := s.SearchStatus[title]; ok && title != "" {
		writeJSON(w, status, map[string]string{"errors": "forced"})
		return
	}

	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = l
	}

	var out []map[string]interface{}
	for _, p := range s.products {
		// Shopify matches titles loosely, emulate with a substring match.
		if title != "" && !strings.Contains(strings.ToLower(p["title"].(string)), strings.ToLower(title)) {
			continue
		}
		out = append(out, s.render(p))
		if len(out) == limit {
			break
		}
	}
	if out == nil {
		out = []map[string]interface{}{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"products": out})
}

func (s *Server) createProduct(w http.ResponseWriter, body []byte) {
	product, ok := decodeProduct(w, body)
	if !ok {
		return
	}
	title, _ := product["title"].(string)
	if status, ok := s.CreateStatus[title]; ok {
		writeJSON(w, status, map[string]interface{}{"errors": map[string][]string{"title": {"forced"}}})
		return
	}

	s.nextID++
	product["id"] = s.nextID
	s.products = append(s.products, product)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"product": s.render(product)})
}

func (s *Server) updateProduct(w http.ResponseWriter, path string, body []byte) {
	idStr := strings.TrimSuffix(strings.TrimPrefix(path, "/products/"), ".json")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"errors": "Not Found"})
		return
	}
	product, ok := decodeProduct(w, body)
	if !ok {
		return
	}
	for i, p := range s.products {
		if toInt64(p["id"]) == id {
			product["id"] = id
			s.products[i] = product
			writeJSON(w, http.StatusOK, map[string]interface{}{"product": s.render(product)})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"errors": "Not Found"})
}

func (s *Server) publish(w http.ResponseWriter, body []byte) {
	var req struct {
		ProductPublication struct {
			ProductID int64 `json:"product_id"`
			ChannelID int64 `json:"channel_id"`
			Published bool  `json:"published"`
		} `json:"product_publication"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"errors": err.Error()})
		return
	}
	if status, ok := s.ChannelStatus[req.ProductPublication.ChannelID]; ok {
		writeJSON(w, status, map[string]string{"errors": "forced"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"product_publication": req.ProductPublication})
}

// render returns the product as Shopify would send it back.
func (s *Server) render(p map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		out[k] = v
	}
	variants, _ := p["variants"].([]interface{})
	rendered := make([]interface{}, 0, len(variants))
	for _, v := range variants {
		vm, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		cp := make(map[string]interface{}, len(vm))
		for k, val := range vm {
			cp[k] = val
		}
		if s.PricesAsNumbers {
			if str, ok := cp["price"].(string); ok {
				if f, err := strconv.ParseFloat(str, 64); err == nil {
					cp["price"] = f
				}
			}
		}
		rendered = append(rendered, cp)
	}
	out["variants"] = rendered
	return out
}

func decodeProduct(w http.ResponseWriter, body []byte) (map[string]interface{}, bool) {
	var envelope struct {
		Product map[string]interface{} `json:"product"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Product == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"errors": fmt.Sprintf("invalid product: %v", err)})
		return nil, false
	}
	return envelope.Product, true
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
