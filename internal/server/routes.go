package server

import (
	"net/http"
	"time"

	"github.com/danmuck/mirbridge/internal/bridge"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"state":   s.status.State().String(),
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		state := s.status.State()
		code := http.StatusOK
		if state != bridge.StateReady {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready":   state == bridge.StateReady,
			"state":   state.String(),
			"service": s.ID,
		})
	})

	s.router.GET("/catalog", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"topics": s.status.Catalog().Entries(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
