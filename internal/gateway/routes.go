package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/traderecks888/offline-gateway/internal/agent"
	"github.com/traderecks888/offline-gateway/internal/logger"
	"github.com/traderecks888/offline-gateway/internal/metrics"
)

// registerRoutes configures health, metrics, and admin endpoints, and routes
// every other request through the agent.
func registerRoutes(router *gin.Engine, cfg Config, a *agent.Agent, m *metrics.Metrics, log logger.Logger) {
	router.GET("/healthz", healthHandler(cfg))
	router.GET("/readyz", readyHandler(cfg, a))
	router.GET("/metrics", gin.WrapH(m.Handler()))

	admin := router.Group("/admin")
	admin.POST("/activate", activateHandler(a, log))

	// Everything else is an intercepted dashboard request
	router.NoRoute(InterceptHandler(a, log))
}

// healthHandler reports liveness.
func healthHandler(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": cfg.ServiceName,
			"version": cfg.ServiceVersion,
		})
	}
}

// readyHandler reports readiness: the gateway serves traffic only once the
// agent has activated.
func readyHandler(cfg Config, a *agent.Agent) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Active() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not ready",
				"service": cfg.ServiceName,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"service":    cfg.ServiceName,
			"generation": a.Generation(),
		})
	}
}

// activateHandler re-runs the stale-generation purge. Idempotent: activating
// when only the current generation exists deletes nothing.
func activateHandler(a *agent.Agent, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Activate(c.Request.Context()); err != nil {
			log.Error("Manual activation failed", logger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "activation_failed",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "active",
			"generation": a.Generation(),
		})
	}
}
