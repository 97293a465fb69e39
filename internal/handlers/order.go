package handlers

import (
	"net/http"
	"strconv"

	"velora_back_end/internal/httpx"
	"velora_back_end/internal/models"
	"velora_back_end/internal/orders"
	"velora_back_end/internal/utils"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	svc *orders.Service
}

func NewOrderHandler(svc *orders.Service) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// POST /api/orders
func (h *OrderHandler) Create(c *gin.Context) {
	userID := c.GetString("user_id")

	var input orders.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.FailMsg(c, http.StatusBadRequest, "Corps de commande invalide")
		return
	}

	order, err := h.svc.Create(c.Request.Context(), userID, input)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.Created(c, order)
}

// GET /api/orders (admin)
func (h *OrderHandler) GetAll(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	list, err := h.svc.GetAll(c.Request.Context(), limit)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OKCount(c, list, len(list))
}

// GET /api/orders/myorders
func (h *OrderHandler) GetMine(c *gin.Context) {
	userID := c.GetString("user_id")

	list, err := h.svc.GetMine(c.Request.Context(), userID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OKCount(c, list, len(list))
}

// GET /api/orders/search?q= (admin)
func (h *OrderHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		httpx.FailMsg(c, http.StatusBadRequest, "Paramètre q requis")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	list, err := h.svc.Search(c.Request.Context(), query, limit)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OKCount(c, list, len(list))
}

// GET /api/orders/:id
func (h *OrderHandler) GetByID(c *gin.Context) {
	order, err := h.svc.GetByID(c.Request.Context(), c.Param("id"), c.GetString("user_id"), c.GetString("role"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, order)
}

// GET /api/orders/:id/invoice
func (h *OrderHandler) Invoice(c *gin.Context) {
	orderID := c.Param("id")

	// Le contrôle propriétaire-ou-admin passe par la lecture de la commande
	if _, err := h.svc.GetByID(c.Request.Context(), orderID, c.GetString("user_id"), c.GetString("role")); err != nil {
		httpx.Fail(c, err)
		return
	}

	pdf, err := utils.FetchInvoice(c.Request.Context(), orderID)
	if err != nil {
		httpx.FailMsg(c, http.StatusNotFound, "Facture non disponible")
		return
	}
	c.Header("Content-Disposition", "attachment; filename=facture_velora.pdf")
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// PUT /api/orders/:id/pay
func (h *OrderHandler) Pay(c *gin.Context) {
	var result models.PaymentResult
	if err := c.ShouldBindJSON(&result); err != nil {
		httpx.FailMsg(c, http.StatusBadRequest, "Résultat de paiement invalide")
		return
	}

	order, err := h.svc.MarkPaid(c.Request.Context(), c.Param("id"), result, c.GetString("user_id"), c.GetString("role"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, order)
}

// PUT /api/orders/:id/deliver (admin)
func (h *OrderHandler) Deliver(c *gin.Context) {
	order, err := h.svc.MarkDelivered(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, order)
}

type setStatusInput struct {
	Status string `json:"status" binding:"required"`
}

// PUT /api/orders/:id/status (admin)
func (h *OrderHandler) SetStatus(c *gin.Context) {
	var input setStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.FailMsg(c, http.StatusBadRequest, "status requis")
		return
	}

	order, err := h.svc.SetStatus(c.Request.Context(), c.Param("id"), input.Status)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, order)
}

// DELETE /api/orders/:id (admin)
func (h *OrderHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"message": "Commande supprimée, stock restauré"})
}
