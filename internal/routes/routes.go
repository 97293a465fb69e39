package routes

import (
	"net/http"

	"velora_back_end/internal/handlers"
	"velora_back_end/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Register branche toutes les routes de l'API checkout
func Register(r *gin.Engine, carts *handlers.CartHandler, orders *handlers.OrderHandler, payments *handlers.PaymentHandler, inventory *handlers.InventoryHandler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(middleware.APIRateLimit())

	// --- Panier ---
	cart := api.Group("/cart")
	cart.Use(middleware.AuthRequired())
	{
		cart.GET("", carts.Get)
		cart.POST("", middleware.CartRateLimit(), carts.Add)
		cart.PUT("/:productId", carts.UpdateQuantity)
		cart.DELETE("/:productId", carts.Remove)
		cart.DELETE("", carts.Clear)
		cart.GET("/ws", carts.CartWebSocket)
	}

	// --- Commandes ---
	ord := api.Group("/orders")
	ord.Use(middleware.AuthRequired())
	{
		ord.POST("", orders.Create)
		ord.GET("", middleware.RequireAdmin, orders.GetAll)
		ord.GET("/myorders", orders.GetMine)
		ord.GET("/search", middleware.RequireAdmin, middleware.SearchRateLimit(), orders.Search)
		ord.GET("/:id", orders.GetByID)
		ord.GET("/:id/invoice", orders.Invoice)
		ord.PUT("/:id/pay", orders.Pay)
		ord.PUT("/:id/deliver", middleware.RequireAdmin, orders.Deliver)
		ord.PUT("/:id/status", middleware.RequireAdmin, orders.SetStatus)
		ord.DELETE("/:id", middleware.RequireAdmin, orders.Delete)
	}

	// --- Paiement ---
	pay := api.Group("/payment")
	{
		// Le webhook est authentifié par signature, pas par JWT
		pay.POST("/webhook", payments.Webhook)

		authed := pay.Group("")
		authed.Use(middleware.AuthRequired(), middleware.PaymentRateLimit())
		{
			authed.POST("/create-payment-intent", payments.CreateIntent)
			authed.POST("/process-payment", payments.ProcessPayment)
		}
	}

	// --- Inventaire ---
	inv := api.Group("/inventory")
	inv.Use(middleware.AuthRequired(), middleware.RequireAdmin)
	{
		inv.GET("/movements", inventory.Movements)
	}
}
