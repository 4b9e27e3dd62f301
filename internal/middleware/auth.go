package middleware

import (
	"net/http"
	"strings"

	"assistantportal/internal/pkg/jwt"
	"assistantportal/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Context keys set by JWTAuth.
const (
	CtxUserID   = "user_id"
	CtxUserName = "user_name"
	CtxRole     = "role"
	CtxToken    = "token"
)

// JWTAuth validates the bearer token. Browsers cannot set headers on
// WebSocket upgrades, so a ?token= query parameter is accepted as well.
func JWTAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""
		header := c.GetHeader("Authorization")
		switch {
		case header != "":
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				response.Abort(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
				return
			}
			tokenStr = strings.TrimSpace(parts[1])
		case c.Query("token") != "":
			tokenStr = strings.TrimSpace(c.Query("token"))
		default:
			response.Abort(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header is required")
			return
		}

		if tokenStr == "" {
			response.Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Empty token")
			return
		}

		claims, err := jwtService.ValidateToken(tokenStr)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUserName, claims.Name)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxToken, tokenStr)
		c.Request = c.Request.WithContext(jwt.WithToken(c.Request.Context(), tokenStr))

		c.Next()
	}
}

// UserID returns the authenticated employee id or "".
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserID)
}
