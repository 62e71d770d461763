package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chatgate/chatgate/internal/auth"
	"github.com/chatgate/chatgate/internal/common"
)

const (
	// APIKeyContextKey holds the verified *auth.APIKey, if any.
	APIKeyContextKey = "api_key"
	APIKeyHeader     = "X-API-Key"
)

// APIKeyAuth verifies the caller's API key when one is presented, via either
// the X-API-Key header or an Authorization bearer token. Requests with no
// key at all pass through as anonymous; the handler decides what anonymous
// callers may reach. A key that is present but invalid is always a 401.
func APIKeyAuth(authn *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(APIKeyHeader))
		if raw == "" {
			if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
				raw = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			}
		}
		if raw == "" {
			c.Next()
			return
		}

		key, err := authn.Verify(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidKey) {
				common.Fail(c, http.StatusUnauthorized, 40101, "invalid api key")
			} else {
				common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			}
			c.Abort()
			return
		}

		c.Set(APIKeyContextKey, key)
		c.Next()
	}
}

// APIKeyFromContext returns the verified key set by APIKeyAuth, or nil for
// anonymous requests.
func APIKeyFromContext(c *gin.Context) *auth.APIKey {
	v, ok := c.Get(APIKeyContextKey)
	if !ok {
		return nil
	}
	key, _ := v.(*auth.APIKey)
	return key
}

// AdminRequired gates the admin surface behind a bearer JWT issued by Login.
func AdminRequired(admin *auth.AdminAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, 40102, "missing token")
			c.Abort()
			return
		}
		if err := admin.VerifyToken(strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))); err != nil {
			common.Fail(c, http.StatusUnauthorized, 40103, "invalid token")
			c.Abort()
			return
		}
		c.Next()
	}
}
