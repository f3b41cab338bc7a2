package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"skills-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
		}
		if id := AccountIDFromContext(c); id > 0 {
			fields["account_id"] = id
		}
		if outcome := c.GetString("gateOutcome"); outcome != "" {
			fields["gate_outcome"] = outcome
		}
		telemetry.Info("request.complete", fields)
	}
}
