package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const contextUsername = "username"

// authMiddleware проверяет bearer-токен в заголовке Authorization.
// Отсутствующий, искажённый или просроченный токен — всегда единый 401,
// без уточнения причины.
func (rs *RestServer) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			rs.rejectUnauthorized(c)
			return
		}

		// Проверяем формат "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			rs.rejectUnauthorized(c)
			return
		}

		username, ok := rs.accounts.VerifyToken(parts[1])
		if !ok {
			rs.rejectUnauthorized(c)
			return
		}

		c.Set(contextUsername, username)
		c.Next()
	}
}

func (rs *RestServer) rejectUnauthorized(c *gin.Context) {
	rs.promMw.IncAuthFailure()
	c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	c.Abort()
}

// currentUsername достаёт имя пользователя, сохранённое authMiddleware.
func currentUsername(c *gin.Context) string {
	return c.GetString(contextUsername)
}
