package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pearquote/quote-service/internal/adapters/http/dto"
	"github.com/pearquote/quote-service/internal/adapters/http/middleware"
)

// caller returns the authenticated user ID, writing 401 when the route was mounted without RequireAuth.
func caller(c *gin.Context) (string, bool) {
	userID := middleware.UserID(c)
	if userID == "" {
		dto.AbortWithCode(c, dto.ErrorCodeUnauthorized, "authentication required")
		return "", false
	}

	return userID, true
}

// bindJSON binds and validates the body into v, writing a 400 on failure.
func bindJSON(c *gin.Context, v any) bool {
	if err := dto.BindAndValidate(c, v); err != nil {
		dto.RespondWithBindingError(c, err)
		return false
	}

	return true
}

// bindQuery binds and validates query parameters into v, writing a 400 on failure.
func bindQuery(c *gin.Context, v any) bool {
	if err := dto.BindQueryAndValidate(c, v); err != nil {
		dto.RespondWithBindingError(c, err)
		return false
	}

	return true
}
