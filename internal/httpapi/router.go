// Package httpapi is the HTTP delivery layer of the contract service.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaxBodyBytes bounds contract request bodies
const MaxBodyBytes = 1 << 20

// Options configures the router
type Options struct {
	Logger     *zap.Logger
	Production bool
	Debug      bool
	// RateLimit is requests per minute and client IP, 0 disables it
	RateLimit  int
	ServerName string
	Version    string
}

// NewRouter builds the gin engine with middleware and routes
func NewRouter(gen Generator, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(RequestID(opts.Logger))
	router.Use(Recovery())
	router.Use(RequestLogger())
	router.Use(RateLimit(opts.RateLimit, time.Minute))

	banner := fmt.Sprintf("%s %s: POST /api/contracts with a JSON body to generate a contract", opts.ServerName, opts.Version)
	h := NewHandler(gen, opts.Production, banner)

	router.GET("/", h.Banner)
	router.GET("/health", h.Health)

	api := router.Group("/api")
	api.GET("/contract-types", h.ContractTypes)

	limited := BodyLimit(MaxBodyBytes)
	api.POST("/contracts", limited, h.GenerateContract)
	router.POST("/generar-contrato", limited, h.GenerateContract)

	if opts.Debug {
		api.GET("/debug/templates/:type/fields", h.TemplateFields)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "request_id": GetRequestID(c)})
	})

	return router
}

// Server runs the router until its context is cancelled
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer wraps handler in an http.Server listening on addr
func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	return nil
}
