// Package api exposes the OpenAI-compatible HTTP surface of the bridge.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/openbridge-ai/geminibridge/internal/adapter"
	"github.com/openbridge-ai/geminibridge/internal/config"
	"github.com/openbridge-ai/geminibridge/internal/logging"
)

// Generator abstracts the upstream turn orchestrator so handlers can be
// exercised against a fake in tests.
type Generator interface {
	Generate(ctx context.Context, body []byte, stream bool, emit adapter.EmitFunc) (adapter.Summary, error)
	ListModels(ctx context.Context) ([]byte, error)
}

// Server hosts the gin engine and its route handlers.
type Server struct {
	engine   *gin.Engine
	upstream Generator
	addr     string

	mu      sync.RWMutex
	apiKeys map[string]struct{}
}

// NewServer builds the HTTP server for the given configuration.
func NewServer(cfg *config.Config, upstream Generator) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		engine:   gin.New(),
		upstream: upstream,
		addr:     cfg.Addr(),
	}
	s.SetAPIKeys(cfg.APIKeys)

	s.engine.Use(gin.Recovery(), logging.RequestIDMiddleware())
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/v1", s.authMiddleware())
	v1.POST("/chat/completions", s.chatCompletions)
	v1.GET("/models", s.listModels)
	v1.POST("/models", s.listModels)
	return s
}

// SetAPIKeys swaps the accepted API key set, used on config reload.
func (s *Server) SetAPIKeys(keys []string) {
	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key != "" {
			set[key] = struct{}{}
		}
	}
	s.mu.Lock()
	s.apiKeys = set
	s.mu.Unlock()
}

// authMiddleware enforces the configured bearer keys. An empty key set
// leaves the API open.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.RLock()
		keys := s.apiKeys
		s.mu.RUnlock()
		if len(keys) == 0 {
			c.Next()
			return
		}
		key := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if key == "" {
			key = c.GetHeader("x-api-key")
		}
		if _, ok := keys[key]; !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError("invalid API key", "invalid_request_error"))
			return
		}
		c.Next()
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("API server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler exposes the gin engine, used by tests.
func (s *Server) Handler() http.Handler { return s.engine }

func apiError(message, kind string) gin.H {
	return gin.H{"error": gin.H{"message": message, "type": kind}}
}
