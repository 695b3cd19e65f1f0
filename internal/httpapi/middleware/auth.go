package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/CijeTheCreator/consultify-assemblyai/internal/common"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "auth_user_id"

// AuthRequired validates the Bearer token and stashes its subject (the
// identity-provider user id) in the context.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, 40101, "missing bearer token")
			c.Abort()
			return
		}
		raw := strings.TrimPrefix(authz, "Bearer ")

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid token")
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid token")
			c.Abort()
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			common.Fail(c, http.StatusUnauthorized, 40103, "token missing subject")
			c.Abort()
			return
		}

		c.Set(UserIDKey, sub)
		c.Next()
	}
}
