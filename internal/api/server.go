// Package api exposes a small read-only HTTP surface over the bot's
// runtime state, plus the push WebSocket endpoint.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"futures-trading-bot/internal/arbiter"
	"futures-trading-bot/internal/push"
	"futures-trading-bot/internal/risk"
)

// StatusProvider reports the bot's runtime status.
type StatusProvider interface {
	Status() map[string]interface{}
	RiskState() risk.State
}

// Server is the gin HTTP server.
type Server struct {
	addr    string
	status  StatusProvider
	arb     *arbiter.Arbiter
	riskMgr *risk.Manager
	gateway *push.Gateway
	logger  zerolog.Logger

	httpServer *http.Server
}

// NewServer wires the read-only endpoints over the given components.
func NewServer(addr string, status StatusProvider, arb *arbiter.Arbiter, riskMgr *risk.Manager, gateway *push.Gateway, logger zerolog.Logger) *Server {
	return &Server{
		addr:    addr,
		status:  status,
		arb:     arb,
		riskMgr: riskMgr,
		gateway: gateway,
		logger:  logger,
	}
}

// Start runs the HTTP server until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	api := router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/arbiter/stats", s.handleArbiterStats)
		api.GET("/risk/summary", s.handleRiskSummary)
	}
	router.GET("/ws", func(c *gin.Context) {
		s.gateway.Handler(c.Writer, c.Request)
	})

	s.httpServer = &http.Server{Addr: s.addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.addr).Msg("api server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleStatus(c *gin.Context) {
	status := s.status.Status()
	status["push_clients"] = s.gateway.ClientCount()
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleArbiterStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats":     s.arb.Stats(),
		"positions": s.arb.Positions(),
	})
}

func (s *Server) handleRiskSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.riskMgr.Summary(s.status.RiskState()))
}
