package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meetscribe/auth"
	apperrors "github.com/kbukum/meetscribe/errors"
)

// ClaimsKey is the gin context key holding verified *auth.Claims.
const ClaimsKey = "auth_claims"

// Auth validates Bearer tokens with verifier. Paths starting with any of
// skipPaths bypass the check. Browsers cannot set headers on EventSource or
// WebSocket requests, so an access_token query parameter is accepted too.
func Auth(verifier *auth.Verifier, skipPaths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range skipPaths {
			if strings.HasPrefix(path, skip) {
				c.Next()
				return
			}
		}

		token := c.Query("access_token")
		if header := c.GetHeader("Authorization"); header != "" {
			scheme, value, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				abortWithError(c, apperrors.InvalidToken())
				return
			}
			token = strings.TrimSpace(value)
		}
		if token == "" {
			abortWithError(c, apperrors.Unauthorized("authorization required"))
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			abortWithError(c, apperrors.InvalidToken().WithCause(err))
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func abortWithError(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus, err.ToResponse())
}
