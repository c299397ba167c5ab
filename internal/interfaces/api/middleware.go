package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FreePeak/nl2sql-mcp-server/internal/logger"
	"github.com/FreePeak/nl2sql-mcp-server/internal/observability"
)

// TraceMiddleware propagates the caller's trace id, or assigns one.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(observability.TraceHeader)
		if traceID == "" {
			traceID = observability.NewTraceID()
		}
		c.Request = c.Request.WithContext(observability.ContextWithTraceID(c.Request.Context(), traceID))
		c.Header(observability.TraceHeader, traceID)
		c.Next()
	}
}

// LoggerMiddleware logs every request and records the HTTP metrics.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		observability.ObserveHTTPRequest(c.Request.Method, path, strconv.Itoa(status), elapsed)
		logger.RequestLog(c.Request.Method, c.Request.URL.Path,
			observability.TraceIDFromContext(c.Request.Context()), status, elapsed.Milliseconds())
	}
}
