package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/c360-copilot/backend/internal/auth"
)

const claimsKey = "auth.claims"

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": nil,
		},
	})
}

// Authenticate admits any request carrying a valid bearer token and stores its
// claims on the context.
func Authenticate(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			c.Header("WWW-Authenticate", "Bearer")
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated")
			return
		}
		claims, err := issuer.Verify(strings.TrimSpace(token))
		if err != nil {
			msg := "Could not validate credentials"
			if errors.Is(err, auth.ErrTokenExpired) {
				msg = "Token expired"
			}
			c.Header("WWW-Authenticate", "Bearer")
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", msg)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole must run after Authenticate.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated")
			return
		}
		if claims.Role != role {
			abort(c, http.StatusForbidden, "FORBIDDEN", "Only "+role+"s can access this endpoint")
			return
		}
		c.Next()
	}
}

func ClaimsFrom(c *gin.Context) (auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := v.(auth.Claims)
	return claims, ok
}
