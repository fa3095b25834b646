// Package api exposes the trade booking system over HTTP. Handlers stay
// thin: bind, delegate to the services, map classified errors to statuses.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Aidin1998/tradebook/internal/dashboard"
	"github.com/Aidin1998/tradebook/internal/trading"
)

// Server is the HTTP API server
type Server struct {
	router    *gin.Engine
	server    *http.Server
	logger    *zap.Logger
	trades    *trading.Service
	dashboard *dashboard.Service
}

// NewServer creates the API server with injected services
func NewServer(logger *zap.Logger, trades *trading.Service, dash *dashboard.Service) *Server {
	s := &Server{
		logger:    logger,
		trades:    trades,
		dashboard: dash,
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-User-Id"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router = router
	s.registerRoutes()
	return s
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.healthCheck)

		trades := v1.Group("/trades")
		{
			trades.POST("", s.createTrade)
			trades.GET("", s.searchTrades)
			trades.GET("/:id", s.getTrade)
			trades.GET("/:id/versions", s.getTradeVersions)
			trades.PUT("/:id", s.amendTrade)
			trades.POST("/:id/terminate", s.terminateTrade)
			trades.POST("/:id/cancel", s.cancelTrade)
			trades.DELETE("/:id", s.deleteTrade)
			trades.PATCH("/:id/settlement-instructions", s.updateSettlementInstructions)
		}

		v1.GET("/my/trades", s.myTrades)
		v1.GET("/books/:name/trades", s.tradesByBook)
		v1.GET("/dashboard", s.getDashboard)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// Start serves HTTP until the context is cancelled, then shuts down
// gracefully within the given timeout.
func (s *Server) Start(ctx context.Context, addr string, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", zap.String("addr", addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(shutdownCtx)
}
