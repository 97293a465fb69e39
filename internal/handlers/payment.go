package handlers

import (
	"net/http"

	"velora_back_end/internal/httpx"
	"velora_back_end/internal/models"
	"velora_back_end/internal/payment"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	orchestrator *payment.Orchestrator
	webhooks     *payment.WebhookProcessor
}

func NewPaymentHandler(orchestrator *payment.Orchestrator, webhooks *payment.WebhookProcessor) *PaymentHandler {
	return &PaymentHandler{orchestrator: orchestrator, webhooks: webhooks}
}

type createIntentInput struct {
	Items         []models.CartItem `json:"items" binding:"required"`
	ShippingPrice float64           `json:"shipping_price"`
}

// POST /api/payment/create-payment-intent
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	userID := c.GetString("user_id")
	email := c.GetString("email")

	var input createIntentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.FailMsg(c, http.StatusBadRequest, "items requis")
		return
	}

	handle, err := h.orchestrator.CreateIntent(c.Request.Context(), userID, email, input.Items, input.ShippingPrice)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, handle)
}

type processPaymentInput struct {
	PaymentIntentID string         `json:"payment_intent_id" binding:"required"`
	ShippingAddress models.Address `json:"shipping_address"`
}

// POST /api/payment/process-payment
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	userID := c.GetString("user_id")

	var input processPaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.FailMsg(c, http.StatusBadRequest, "payment_intent_id requis")
		return
	}

	order, err := h.orchestrator.ConfirmAndSettle(c.Request.Context(), input.PaymentIntentID, userID, input.ShippingAddress)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, order)
}

// POST /api/payment/webhook
// Corps brut obligatoire: la signature couvre les octets exacts
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		httpx.FailMsg(c, http.StatusBadRequest, "Corps illisible")
		return
	}

	if err := h.webhooks.Process(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"received": true})
}
