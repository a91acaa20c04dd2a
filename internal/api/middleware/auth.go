package middleware

import (
	"net/http"
	"os"
	"strings"

	"beehive/internal/api/jwt"
	"github.com/gin-gonic/gin"
)

func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "jwt missing"})
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")
		wallet, err := jwt.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set("wallet", wallet)
		c.Next()
	}
}

// AdminKey guards the operational endpoints behind a shared secret.
func AdminKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := os.Getenv("ADMIN_API_KEY")
		if key == "" || c.GetHeader("X-Admin-Key") != key {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin key invalid"})
			return
		}
		c.Next()
	}
}
