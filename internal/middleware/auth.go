package middleware

import (
	"net/http"
	"strings"

	"github.com/go-partnergate/partnergate/internal/validator"

	"github.com/gin-gonic/gin"
)

// Context keys set by RequireToken for downstream handlers.
const (
	ContextOAuth = "oauth_request"
)

// bearerToken pulls the token out of the Authorization header or, as a
// fallback, the access_token form/query parameter.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("access_token")
}

// RequireToken protects a resource endpoint with bearer-token
// validation. The request proceeds only when the presented token is
// live and covers every required scope; everything else is denied with
// 403 before the handler runs. On success the populated OAuth request
// context is stored on the gin context under ContextOAuth.
func RequireToken(v *validator.Validator, requiredScopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := &validator.Request{}
		ok, err := v.ValidateBearerToken(c.Request.Context(), req, bearerToken(c), requiredScopes)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "server_error",
			})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":             "access_denied",
				"error_description": "Invalid or insufficient bearer token.",
			})
			return
		}

		c.Set(ContextOAuth, req)
		c.Next()
	}
}

// OAuthRequest retrieves the request context stored by RequireToken.
func OAuthRequest(c *gin.Context) (*validator.Request, bool) {
	val, exists := c.Get(ContextOAuth)
	if !exists {
		return nil, false
	}
	req, ok := val.(*validator.Request)
	return req, ok
}
