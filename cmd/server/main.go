package main

import (
	"log"
	"os"
	"strings"
	"time"

	"velora_back_end/internal/cart"
	"velora_back_end/internal/catalog"
	"velora_back_end/internal/config"
	"velora_back_end/internal/database"
	"velora_back_end/internal/handlers"
	"velora_back_end/internal/orders"
	"velora_back_end/internal/payment"
	"velora_back_end/internal/routes"
	"velora_back_end/internal/stock"
	"velora_back_end/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"
)

func main() {
	config.Load()

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	if stripe.Key == "" {
		log.Fatal("❌ Impossible d'initialiser Stripe : clé manquante")
	}
	log.Println("✅ Stripe initialisé")

	database.ConnectDatabases()
	defer database.CloseScylla()

	// --- Assemblage des services ---
	cat := catalog.NewScyllaCatalog()
	ledger := stock.NewScyllaLedger()
	carts := cart.NewStore(cart.NewRedisRepo(database.Redis), cat)

	orderSvc := orders.NewService(orders.NewScyllaRepo(), ledger, cat, carts).
		WithNotifier(utils.NotifyOrderConfirmed)
	if database.Elastic != nil {
		orderSvc.WithIndexer(orders.NewElasticIndexer(database.Elastic))
	}

	orchestrator := payment.NewOrchestrator(payment.NewStripeGateway(), cat, orderSvc)
	webhooks := payment.NewWebhookProcessor(
		payment.StripeVerifier(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		payment.NewRedisDedup(database.Redis),
		orderSvc,
	)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.Register(r,
		handlers.NewCartHandler(carts),
		handlers.NewOrderHandler(orderSvc),
		handlers.NewPaymentHandler(orchestrator, webhooks),
		handlers.NewInventoryHandler(ledger),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("🚀 Serveur Velora lancé sur le port", port)
	r.Run(":" + port)
}

func allowedOrigins() []string {
	origins := os.Getenv("CORS_ORIGINS")
	if origins == "" {
		return []string{"http://localhost:3000"}
	}
	return strings.Split(origins, ",")
}
