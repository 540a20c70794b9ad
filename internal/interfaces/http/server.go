// Package http exposes the draft and review services over HTTP.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldops/field-reports/internal/application/service"
	"github.com/fieldops/field-reports/internal/review"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
	AllowedOrigins []string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxUploadBytes: 32 << 20,
		AllowedOrigins: []string{"*"},
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	drafts     service.DraftService
	reviews    service.ReviewService
	pages      *review.HTMLRenderer
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	drafts service.DraftService,
	reviews service.ReviewService,
	pages *review.HTMLRenderer,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.MaxMultipartMemory = config.MaxUploadBytes

	server := &Server{
		config:  config,
		router:  router,
		drafts:  drafts,
		reviews: reviews,
		pages:   pages,
		logger:  logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(s.corsMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowed := make(map[string]bool, len(s.config.AllowedOrigins))
	for _, o := range s.config.AllowedOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowed["*"]:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, If-Match")
		c.Header("Access-Control-Expose-Headers", "ETag")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.drafts, s.reviews, s.pages, s.logger)

	s.router.GET("/health", handlers.HealthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// server-rendered review pages
	s.router.GET("/reports/:type/review/:id", handlers.ReviewPage)
	s.router.POST("/reports/:type/review/:id/submit", handlers.SubmitPage)

	api := s.router.Group("/api/v1")
	{
		api.GET("/schemas", handlers.ListSchemas)
		api.GET("/schemas/:type", handlers.GetSchema)

		reports := api.Group("/reports/:type")
		reports.GET("/blank", handlers.BlankDraft)
		reports.GET("/drafts", handlers.ListDrafts)
		reports.POST("/drafts", handlers.CreateDraft)

		draft := reports.Group("/drafts/:id")
		draft.GET("", handlers.GetDraft)
		draft.PUT("", handlers.ReplaceDraft)
		draft.DELETE("", handlers.DeleteDraft)
		draft.PATCH("/fields", handlers.SetFields)
		draft.POST("/sections/:section/rows", handlers.AddSectionRow)
		draft.DELETE("/sections/:section/rows/:index", handlers.RemoveSectionRow)
		draft.POST("/arrays/:field/items", handlers.AddArrayItem)
		draft.DELETE("/arrays/:field/items/:index", handlers.RemoveArrayItem)
		draft.POST("/photos", handlers.AddPhoto)
		draft.DELETE("/photos/:index", handlers.RemovePhoto)
		draft.PUT("/signature", handlers.SetSignature)
		draft.DELETE("/signature", handlers.ClearSignature)
		draft.POST("/validate", handlers.ValidateDraft)
		draft.GET("/review", handlers.ReviewDraft)
		draft.GET("/export.xlsx", handlers.ExportDraft)
		draft.POST("/archive", handlers.ArchiveDraft)
		draft.POST("/submit", handlers.SubmitDraft)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
