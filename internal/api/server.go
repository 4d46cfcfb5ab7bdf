// Package api exposes the ordering assistant over HTTP and websocket.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"maitred/internal/assistant"
	"maitred/internal/cart"
	"maitred/internal/evaluation"
	"maitred/internal/menu"
	"maitred/internal/monitoring"
)

// Config holds the collaborators of a Server
type Config struct {
	Assistant *assistant.Assistant
	Sessions  *cart.Sessions
	Catalog   *menu.Catalog
	Evaluator *evaluation.Evaluator
	Metrics   *monitoring.Metrics
	// JWTSecret enables bearer token auth on the API when set
	JWTSecret string
	Logger    *slog.Logger
}

// Server handles API and websocket requests
type Server struct {
	router    *gin.Engine
	assistant *assistant.Assistant
	sessions  *cart.Sessions
	catalog   *menu.Catalog
	evaluator *evaluation.Evaluator
	metrics   *monitoring.Metrics
	secret    string
	logger    *slog.Logger
}

// NewServer creates a new server instance
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))

	server := &Server{
		router:    router,
		assistant: cfg.Assistant,
		sessions:  cfg.Sessions,
		catalog:   cfg.Catalog,
		evaluator: cfg.Evaluator,
		metrics:   cfg.Metrics,
		secret:    cfg.JWTSecret,
		logger:    cfg.Logger,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "menu_items": s.catalog.Len()})
	})

	protected := s.router.Group("/")
	if s.secret != "" {
		protected.Use(AuthMiddleware(s.secret))
	}

	protected.GET("/ws", s.handleWebSocket)

	v1 := protected.Group("/api/v1")
	{
		v1.GET("/menu", s.handleMenu)

		// Sessions and carts
		v1.POST("/sessions", s.handleCreateSession)
		v1.GET("/sessions/:id/cart", s.handleGetCart)
		v1.DELETE("/sessions/:id/cart", s.handleClearCart)
		v1.POST("/sessions/:id/messages", s.handleMessage)
		v1.POST("/sessions/:id/reconcile", s.handleReconcile)
		v1.POST("/sessions/:id/checkout", s.handleCheckout)

		// Resolver evaluation
		v1.GET("/scenarios", s.handleListScenarios)
		v1.GET("/evaluation", s.handleEvaluate)
		v1.GET("/stats", s.handleStats)
	}
}

// Router returns the Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// requestLogger logs one line per request
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("api: request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
		)
	}
}
