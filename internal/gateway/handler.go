package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/traderecks888/offline-gateway/internal/agent"
	"github.com/traderecks888/offline-gateway/internal/logger"
)

// navigateFetchMode is the Sec-Fetch-Mode value browsers send for top-level
// navigations.
const navigateFetchMode = "navigate"

// InterceptHandler routes one request through the agent and writes the
// resulting response. The X-Cache header reports the policy outcome:
// network, hit, miss, or fallback.
func InterceptHandler(a *agent.Agent, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := &agent.Request{
			URL:            c.Request.URL.RequestURI(),
			Method:         c.Request.Method,
			Accept:         c.GetHeader("Accept"),
			NavigationMode: c.GetHeader("Sec-Fetch-Mode") == navigateFetchMode,
			Destination:    c.GetHeader("Sec-Fetch-Dest"),
		}

		result, err := a.Fetch(c.Request.Context(), req)
		if err != nil {
			// Origin down and nothing stored: the request fails, exactly
			// as an offline navigation without a cached shell would.
			log.Warn("Intercepted request failed",
				logger.String("url", req.URL),
				logger.Error(err),
			)
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "origin_unreachable",
				"url":     req.URL,
				"message": "No cached copy available and the origin could not be reached.",
			})
			return
		}

		for key, value := range result.Response.Headers {
			c.Header(key, value)
		}
		c.Header("X-Cache", string(result.Outcome))

		c.Status(result.Response.Status)
		_, _ = c.Writer.Write(result.Response.Body)
	}
}
