package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/pearquote/quote-service/internal/app/reqctx"
)

// RequestScope attaches a fresh reqctx.RequestContext so services can memoize
// per-request lookups, such as the caller's settings.
func RequestScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(reqctx.WithContext(c.Request.Context(), reqctx.New()))
		c.Next()
	}
}
