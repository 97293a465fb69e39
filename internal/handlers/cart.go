package handlers

import (
	"net/http"

	"velora_back_end/internal/cart"
	"velora_back_end/internal/httpx"

	"github.com/gin-gonic/gin"
)

type CartHandler struct {
	store *cart.Store
}

func NewCartHandler(store *cart.Store) *CartHandler {
	return &CartHandler{store: store}
}

// GET /api/cart
func (h *CartHandler) Get(c *gin.Context) {
	userID := c.GetString("user_id")

	result, err := h.store.Get(c.Request.Context(), userID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, result)
}

type addToCartInput struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

// POST /api/cart
func (h *CartHandler) Add(c *gin.Context) {
	userID := c.GetString("user_id")

	var input addToCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.FailMsg(c, http.StatusBadRequest, "product_id requis")
		return
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}

	result, err := h.store.Add(c.Request.Context(), userID, input.ProductID, input.Quantity)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, result)
}

type updateQuantityInput struct {
	Quantity int `json:"quantity"`
}

// PUT /api/cart/:productId
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	userID := c.GetString("user_id")
	productID := c.Param("productId")

	var input updateQuantityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.FailMsg(c, http.StatusBadRequest, "quantity requis")
		return
	}

	result, err := h.store.UpdateQuantity(c.Request.Context(), userID, productID, input.Quantity)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, result)
}

// DELETE /api/cart/:productId
func (h *CartHandler) Remove(c *gin.Context) {
	userID := c.GetString("user_id")

	result, err := h.store.Remove(c.Request.Context(), userID, c.Param("productId"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, result)
}

// DELETE /api/cart
func (h *CartHandler) Clear(c *gin.Context) {
	userID := c.GetString("user_id")

	if err := h.store.Clear(c.Request.Context(), userID); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"message": "Panier vidé"})
}
