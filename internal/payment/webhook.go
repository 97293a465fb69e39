package payment

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"velora_back_end/internal/apperr"
	"velora_back_end/internal/models"
	"velora_back_end/internal/orders"

	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

// VerifyFunc authentifie la charge utile brute du webhook et la décode.
// Injectée pour que les tests se passent de vraie signature.
type VerifyFunc func(payload []byte, sigHeader string) (stripe.Event, error)

// StripeVerifier construit la vérification de production. Sans secret
// (environnement de test Stripe CLI) on décode sans vérifier, comme le
// signale le log au démarrage.
func StripeVerifier(secret string) VerifyFunc {
	if secret == "" {
		log.Println("⚠️ STRIPE_WEBHOOK_SECRET absent: signatures webhook NON vérifiées (mode test)")
		return func(payload []byte, _ string) (stripe.Event, error) {
			var event stripe.Event
			if err := json.Unmarshal(payload, &event); err != nil {
				return stripe.Event{}, err
			}
			return event, nil
		}
	}
	return func(payload []byte, sigHeader string) (stripe.Event, error) {
		return webhook.ConstructEvent(payload, sigHeader, secret)
	}
}

// Dedup filtre les relivraisons d'événements (identifiant d'événement, pas
// d'intent — la garde métier reste la réclamation d'intent côté commandes)
type Dedup interface {
	Acquire(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

const dedupTTL = 24 * time.Hour

// RedisDedup marque les événements vus via SETNX
type RedisDedup struct {
	client *redis.Client
}

func NewRedisDedup(client *redis.Client) *RedisDedup {
	return &RedisDedup{client: client}
}

func (d *RedisDedup) Acquire(ctx context.Context, eventID string) (bool, error) {
	return d.client.SetNX(ctx, "stripe:event:"+eventID, "1", dedupTTL).Result()
}

func (d *RedisDedup) Release(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, "stripe:event:"+eventID).Err()
}

// Settler est la seule chose que le webhook sait faire d'un paiement réussi
type Settler interface {
	SettleIntent(ctx context.Context, in orders.SettleInput) (*models.Order, error)
}

// WebhookProcessor authentifie puis route les événements de la passerelle.
// Contrat avec la passerelle : on acquitte (nil) tout événement authentifié,
// même si le traitement métier échoue — sinon elle rejoue en boucle.
type WebhookProcessor struct {
	verify   VerifyFunc
	dedup    Dedup
	settler  Settler
	handlers map[string]func(ctx context.Context, event stripe.Event) error
}

func NewWebhookProcessor(verify VerifyFunc, dedup Dedup, settler Settler) *WebhookProcessor {
	p := &WebhookProcessor{verify: verify, dedup: dedup, settler: settler}
	p.handlers = map[string]func(ctx context.Context, event stripe.Event) error{
		"payment_intent.succeeded":      p.handleIntentSucceeded,
		"payment_intent.payment_failed": p.handleIntentFailed,
	}
	return p
}

// Process traite une livraison webhook. Seule une signature invalide remonte
// en erreur (→ 400) ; tout le reste est acquitté.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := p.verify(payload, sigHeader)
	if err != nil {
		return apperr.Wrap(apperr.KindWebhookSignature, "Signature webhook invalide", err)
	}

	handler, known := p.handlers[string(event.Type)]
	if !known {
		log.Printf("ℹ️ Événement %s ignoré (%s)", event.ID, event.Type)
		return nil
	}

	if p.dedup != nil {
		fresh, err := p.dedup.Acquire(ctx, event.ID)
		if err != nil {
			// Dédup indisponible : on traite quand même, la garde d'intent protège
			log.Printf("⚠️ Dédup indisponible pour %s: %v", event.ID, err)
		} else if !fresh {
			log.Printf("🔁 Événement %s déjà traité, on ignore", event.ID)
			return nil
		}
	}

	if err := handler(ctx, event); err != nil {
		// Libérer la marque pour qu'une relivraison retente
		if p.dedup != nil {
			if rerr := p.dedup.Release(ctx, event.ID); rerr != nil {
				log.Printf("❌ Libération dédup %s impossible: %v", event.ID, rerr)
			}
		}
		log.Printf("❌ Traitement événement %s (%s): %v", event.ID, event.Type, err)
	}
	return nil
}

func (p *WebhookProcessor) handleIntentSucceeded(ctx context.Context, event stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		log.Printf("❌ Intent illisible dans %s: %v", event.ID, err)
		return nil
	}

	in, err := settleInputFromIntent(&pi)
	if err != nil {
		// Intent créé hors de notre flux (pas de métadonnées) : rien à régler
		log.Printf("⚠️ Intent %s sans métadonnées exploitables: %v", pi.ID, err)
		return nil
	}

	log.Printf("📥 Webhook: paiement réussi pour intent %s (%d centimes)", pi.ID, pi.Amount)
	_, err = p.settler.SettleIntent(ctx, in)
	return err
}

func (p *WebhookProcessor) handleIntentFailed(ctx context.Context, event stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		log.Printf("❌ Intent illisible dans %s: %v", event.ID, err)
		return nil
	}

	reason := "raison inconnue"
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		reason = pi.LastPaymentError.Msg
	}
	// Rien n'a été réservé avant règlement : échec = simple trace
	log.Printf("📥 Webhook: paiement échoué pour intent %s (%s)", pi.ID, reason)
	return nil
}
