package middleware

import (
	"net/http"

	"velora_back_end/internal/httpx"

	"github.com/gin-gonic/gin"
)

// RequireAdmin vérifie que l'utilisateur a le rôle "admin"
func RequireAdmin(c *gin.Context) {
	role, exists := c.Get("role")
	if !exists || role != "admin" {
		httpx.FailMsg(c, http.StatusForbidden, "Accès réservé aux administrateurs")
		c.Abort()
		return
	}
	c.Next()
}
