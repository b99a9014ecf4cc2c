package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"catalogsync/internal/logger"
	"catalogsync/internal/services"
	"catalogsync/internal/services/rackbeat"
	"catalogsync/internal/services/shopify"
	"catalogsync/internal/syncer"
)

type SourceCatalog interface {
	FetchAll(ctx context.Context) ([]rackbeat.Product, error)
}

type DestinationCatalog interface {
	ListAll(ctx context.Context, limit int) ([]shopify.Product, error)
	ExecuteRawQuery(ctx context.Context, query string) ([]byte, error)
}

// CatalogHandler exposes read access to both catalogs.
type CatalogHandler struct {
	source      SourceCatalog
	destination DestinationCatalog
	transformer *shopify.Transformer
	logger      *logger.Logger
}

func NewCatalogHandler(source SourceCatalog, destination DestinationCatalog, logger *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		source:      source,
		destination: destination,
		transformer: shopify.NewTransformer(),
		logger:      logger,
	}
}

// SourceProducts lists the Rackbeat catalog. With preview=true every product
// is returned as the Shopify payload a sync would write.
func (h *CatalogHandler) SourceProducts(c *gin.Context) {
	products, err := h.source.FetchAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to fetch source products: %v", err)
		c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
		return
	}

	if preview, _ := strconv.ParseBool(c.Query("preview")); preview {
		payloads := make([]*shopify.Product, 0, len(products))
		for i := range products {
			payloads = append(payloads, h.transformer.BuildProduct(syncer.ToInput(&products[i])))
		}
		c.JSON(http.StatusOK, gin.H{"data": payloads, "count": len(payloads)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": products, "count": len(products)})
}

func (h *CatalogHandler) DestinationProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(shopify.DefaultListLimit)))

	products, err := h.destination.ListAll(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to fetch destination products: %v", err)
		c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": products, "count": len(products)})
}

// GraphQL forwards a query to the Shopify admin GraphQL endpoint and returns
// the response body untouched.
func (h *CatalogHandler) GraphQL(c *gin.Context) {
	var request struct {
		Query string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	body, err := h.destination.ExecuteRawQuery(c.Request.Context(), request.Query)
	if err != nil {
		h.logger.Error("GraphQL passthrough failed: %v", err)
		c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "application/json", body)
}

// upstreamStatus maps a remote failure onto the status this API answers with.
// A remote that never answered is a timeout; anything else is a bad gateway.
func upstreamStatus(err error) int {
	if services.IsTransport(err) && services.StatusCode(err) == 0 {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
