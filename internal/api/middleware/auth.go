package middleware

import (
	"net/http"
	"strings"

	"fuelops-backend/internal/models"
	"fuelops-backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

var jwtUtil *jwt.JWTUtil

func init() {
	jwtUtil = jwt.NewJWTUtil()
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Handle both "Bearer token" and just "token" formats
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			// No "Bearer " prefix found, use the header as-is
			tokenString = authHeader
		}

		claims, err := jwtUtil.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// ManagerOnly rejects requests from non-manager principals. It must run
// after AuthMiddleware.
func ManagerOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != models.RoleManager {
			c.JSON(http.StatusForbidden, gin.H{"error": "Manager role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ActorFromContext resolves the authenticated principal set by
// AuthMiddleware.
func ActorFromContext(c *gin.Context) models.Actor {
	return models.Actor{
		ID:   c.GetString("user_id"),
		Role: c.GetString("role"),
	}
}

// ActorFromToken validates a raw token string, for transports that cannot
// carry an Authorization header (e.g. the WebSocket query string).
func ActorFromToken(tokenString string) (models.Actor, error) {
	claims, err := jwtUtil.ValidateToken(tokenString)
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{ID: claims.UserID, Role: claims.Role}, nil
}
