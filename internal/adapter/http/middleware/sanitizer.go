package middleware

import (
	"net/http"
	"strings"

	"vending-kernel/pkg/apperror"
	"vending-kernel/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize returns middleware that limits the request body size.
// Once the limit is exceeded the reader returns an error and the
// request is rejected with 413 Payload Too Large.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// RequireJSON rejects POST and PUT requests with a body that is not JSON.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut:
			if c.Request.ContentLength != 0 && !strings.HasPrefix(c.ContentType(), "application/json") {
				response.Error(c, apperror.Validation("content type must be application/json"))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
