package middleware

import (
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"

// RequestLogger tags every request with an id, logs the outcome and
// recovers panics into a 500 envelope.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		defer func() {
			if recovered := recover(); recovered != nil {
				log.Printf("request_panic request_id=%s method=%s path=%s error=%v stack=%s",
					requestID, c.Request.Method, c.Request.URL.Path, recovered, debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INTERNAL_SERVER_ERROR",
						"message": "Internal Server Error",
					},
				})
				return
			}

			status := c.Writer.Status()
			line := "request"
			if status >= http.StatusInternalServerError {
				line = "request_error"
			}
			log.Printf("%s request_id=%s status=%d method=%s path=%s client_ip=%s user_id=%d latency=%s",
				line,
				requestID,
				status,
				c.Request.Method,
				c.Request.URL.Path,
				c.ClientIP(),
				c.GetInt64(ContextUserIDKey),
				time.Since(start),
			)
		}()

		c.Next()
	}
}

// RequestID returns the id assigned by RequestLogger.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
