package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"catalogsync/internal/api/handlers"
	"catalogsync/internal/api/middleware"
	"catalogsync/internal/config"
	"catalogsync/internal/logger"
)

type Server struct {
	config *config.Config
	logger *logger.Logger
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, syncHandler *handlers.SyncHandler, catalogHandler *handlers.CatalogHandler) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": cfg.Sync.Mode})
	})

	// Routes
	v1 := router.Group("/api/v1")
	{
		// Sync runs
		sync := v1.Group("/sync")
		{
			sync.POST("", syncHandler.Trigger)
			sync.GET("/status", syncHandler.Status)
			sync.GET("/runs", syncHandler.ListRuns)
			sync.GET("/runs/:id", syncHandler.GetRun)
		}

		// Rackbeat
		source := v1.Group("/source")
		{
			source.GET("/products", catalogHandler.SourceProducts)
		}

		// Shopify
		destination := v1.Group("/destination")
		{
			destination.GET("/products", catalogHandler.DestinationProducts)
			destination.POST("/graphql", catalogHandler.GraphQL)
		}
	}

	return &Server{
		config: cfg,
		logger: logger,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on %s", addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
