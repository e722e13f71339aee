package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/datagrid-io/transferq/internal/api/domain"
	"github.com/gin-gonic/gin"
)

const principalContextKey = "auth.principal"

// Middleware authenticates every request from the gateway headers and makes
// the principal available to the handlers. Requests without credentials are
// rejected with 401.
func Middleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := PrincipalFromHeaders(c.Request.Header)
		if err != nil {
			var reqErr *domain.RequestError
			status := http.StatusUnauthorized
			message := "Unauthorized"
			if errors.As(err, &reqErr) {
				status = reqErr.Status
				message = reqErr.Message
			}

			logger.Warn("Rejected unauthenticated request",
				slog.String("path", c.Request.URL.Path),
				slog.String("ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}

		c.Set(principalContextKey, principal)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by Middleware.
func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := v.(domain.Principal)
	return principal, ok
}
