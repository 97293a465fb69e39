package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"velora_back_end/internal/database"
	"velora_back_end/internal/httpx"

	"github.com/gin-gonic/gin"
)

const (
	APIMaxRequests     = 100 // par minute et par IP
	PaymentMaxRequests = 10  // par minute et par utilisateur
	CartMaxRequests    = 20  // ajouts par minute et par utilisateur
	SearchMaxRequests  = 30  // par minute et par IP

	rateWindow = 1 * time.Minute
)

// APIRateLimit limite le nombre de requêtes par IP (général)
func APIRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		key := "api_requests:" + c.ClientIP()

		requests, _ := database.Redis.Get(ctx, key).Int()
		if requests >= APIMaxRequests {
			httpx.FailMsg(c, http.StatusTooManyRequests, "Trop de requêtes. Réessayez dans 1 minute")
			c.Abort()
			return
		}

		pipe := database.Redis.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rateWindow)
		pipe.Exec(ctx)

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", APIMaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", APIMaxRequests-requests-1))

		c.Next()
	}
}

// PaymentRateLimit limite les créations d'intent par utilisateur (anti-abus)
func PaymentRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.Next()
			return
		}

		ctx := context.Background()
		key := "payment_requests:" + userID

		requests, _ := database.Redis.Get(ctx, key).Int()
		if requests >= PaymentMaxRequests {
			httpx.FailMsg(c, http.StatusTooManyRequests, "Trop de tentatives de paiement. Réessayez dans 1 minute")
			c.Abort()
			return
		}

		pipe := database.Redis.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rateWindow)
		pipe.Exec(ctx)

		c.Next()
	}
}

// CartRateLimit limite les ajouts au panier (anti-spam)
func CartRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.Next()
			return
		}

		ctx := context.Background()
		key := "cart_add:" + userID

		requests, _ := database.Redis.Get(ctx, key).Int()
		if requests >= CartMaxRequests {
			httpx.FailMsg(c, http.StatusTooManyRequests, "Trop d'ajouts au panier. Ralentissez un peu")
			c.Abort()
			return
		}

		pipe := database.Redis.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rateWindow)
		pipe.Exec(ctx)

		c.Next()
	}
}

// SearchRateLimit limite les recherches de commandes (anti-spam)
func SearchRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		key := "search_requests:" + c.ClientIP()

		requests, _ := database.Redis.Get(ctx, key).Int()
		if requests >= SearchMaxRequests {
			httpx.FailMsg(c, http.StatusTooManyRequests, "Trop de recherches. Réessayez dans 1 minute")
			c.Abort()
			return
		}

		pipe := database.Redis.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rateWindow)
		pipe.Exec(ctx)

		c.Next()
	}
}
