package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lakewatch/lakes-portal-api/internal/service"
)

// Metrics observes method, route, status and latency for every request.
// Unmatched paths fall back to the raw URL so 404s still show up.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
