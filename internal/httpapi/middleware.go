package httpapi

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	logx "publishbot/pkg/logx"
)

// requestID takes X-Request-ID from the client or generates one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// accessLog logs one line per request. Health and metrics scrapes go to debug.
func accessLog(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		fields := []logx.Field{
			logx.String("method", c.Request.Method),
			logx.String("path", path),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("took", time.Since(start)),
			logx.String("client_ip", c.ClientIP()),
			logx.String("request_id", c.GetString(requestIDKey)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logx.String("errors", c.Errors.String()))
			log.Warn("http request", fields...)
			return
		}
		if path == "/health" || path == "/metrics" {
			log.Debug("http request", fields...)
			return
		}
		log.Info("http request", fields...)
	}
}

func recovery(log logx.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		log.Error("http handler panic",
			logx.Any("panic", rec),
			logx.String("path", c.Request.URL.Path),
			logx.String("request_id", c.GetString(requestIDKey)),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}
