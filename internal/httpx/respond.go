package httpx

import (
	"net/http"

	"velora_back_end/internal/apperr"

	"github.com/gin-gonic/gin"
)

// OK enveloppe une réponse succès: {success: true, data: ...}
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Created enveloppe une création réussie.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

// OKCount enveloppe une liste avec son compte.
func OKCount(c *gin.Context, data interface{}, count int) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "count": count})
}

// Fail traduit une erreur métier en réponse {success: false, error: ...}
func Fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.JSON(apperr.HTTPStatus(kind), gin.H{"success": false, "error": apperr.MessageOf(err)})
}

// FailMsg répond une erreur avec un statut explicite.
func FailMsg(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}
