package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tenantrag/internal/metrics"
	"tenantrag/internal/pkg/logger"
)

// AccessLog logs every request through the service logger and records it in
// the HTTP metrics. Streaming responses are counted but not timed.
func AccessLog(log *logger.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		streaming := strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream")
		m.ObserveHTTP(c.Request.Method, route, strconv.Itoa(status), elapsed, streaming)

		kv := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"latency_ms", elapsed.Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if sk := c.GetString(ContextSessionKey); sk != "" {
			kv = append(kv, "session_key", sk)
		}
		switch {
		case status >= 500:
			log.Error("http request", kv...)
		case status >= 400:
			log.Warn("http request", kv...)
		default:
			log.Info("http request", kv...)
		}
	}
}
