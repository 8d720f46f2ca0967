package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SetupRoutes builds the gin engine with all application routes. Paths that
// match no route are served from the public directory when one is configured.
func (s *Server) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery(), requestLogger(s.logger))

	router.GET("/health", s.HealthHandler)
	router.GET("/rooms", s.RoomsHandler)
	router.GET("/ws", s.WebSocketHandler)
	router.GET("/test", TestPageHandler)

	if s.cfg.PublicDir != "" {
		router.NoRoute(gin.WrapH(http.FileServer(http.Dir(s.cfg.PublicDir))))
	}
	return router
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
