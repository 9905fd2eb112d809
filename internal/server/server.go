// Package server exposes a small read-only ops API mirroring the
// statistics the admin menu shows.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anonbox/internal/router"
)

type Server struct {
	engine *gin.Engine
	router *router.Router
	logger *zap.Logger
}

func NewServer(r *router.Router, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		router: r,
		logger: logger,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	// Ping route for health check
	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	api := s.engine.Group("/api")
	api.GET("/stats", s.getStats)
	api.GET("/blocked", s.getBlocked)
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.router.Stats()
	if err != nil {
		s.logger.Error("Failed to collect statistics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) getBlocked(c *gin.Context) {
	records, err := s.router.BlockedList()
	if err != nil {
		s.logger.Error("Failed to list blocked users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list blocked users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked": records, "count": len(records)})
}

func (s *Server) Run(addr string) error {
	s.logger.Info("Ops API listening", zap.String("addr", addr))
	return s.engine.Run(addr)
}
