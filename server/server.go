// Package server is the bot's HTTP surface: the push path webhook and its CRC
// challenge, record lookups for the page renderer and dashboard, health and metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type HTTPServer struct {
	engine *gin.Engine
	server *http.Server
}

func NewHTTPServer(port int, handlers *Handlers) *HTTPServer {
	engine := NewEngine(handlers)
	return &HTTPServer{
		engine: engine,
		server: &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
	}
}

// NewEngine mounts every route. Split out so tests can drive it with httptest.
func NewEngine(handlers *Handlers) *gin.Engine {
	engine := gin.New()
	engine.Use(requestID(), requestLogger(), recovery(http.StatusInternalServerError))

	engine.GET("/healthz", handlers.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if handlers.webhookEnabled {
		engine.GET("/webhook", handlers.CRCChallenge)
		// the push source retries anything but a 200, so even a panic is acknowledged
		engine.POST("/webhook", recovery(http.StatusOK), handlers.Webhook)
	}

	api := engine.Group("/api")
	api.GET("/records", handlers.RecentRecords)
	api.GET("/records/:shortId", handlers.RecordByShortID)
	return engine
}

func (s *HTTPServer) Start() error {
	log.WithField("addr", s.server.Addr).Info("http server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	log.Info("http server shutting down")
	return s.server.Shutdown(ctx)
}
