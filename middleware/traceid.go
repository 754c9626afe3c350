package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceIDKey    = "trace_id"
	TraceIDHeader = "X-Trace-ID"

	PlayerIDKey    = "player_id"
	PlayerIDHeader = "X-Player-ID"
)

// TraceID injects a UUID trace ID into every request context and response
// header, and records the calling player when the client names one.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		if p := c.GetHeader(PlayerIDHeader); p != "" {
			c.Set(PlayerIDKey, p)
		}
		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the Gin context.
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}

// GetPlayerID returns the player named by the X-Player-ID header, if any.
func GetPlayerID(c *gin.Context) string {
	return c.GetString(PlayerIDKey)
}
