package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"velora_back_end/internal/apperr"
	"velora_back_end/internal/catalog"
	"velora_back_end/internal/models"
	"velora_back_end/internal/orders"
	"velora_back_end/internal/pricing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
)

// Orchestrator pilote le cycle de paiement : création de l'intent côté
// passerelle, vérification du statut, puis règlement via le service commandes.
type Orchestrator struct {
	gateway Gateway
	catalog catalog.Reader
	settler Settler
}

func NewOrchestrator(gateway Gateway, cat catalog.Reader, settler Settler) *Orchestrator {
	return &Orchestrator{gateway: gateway, catalog: cat, settler: settler}
}

// IntentHandle est la poignée renvoyée au front pour confirmer le paiement
type IntentHandle struct {
	ID           string  `json:"id"`
	ClientSecret string  `json:"clientSecret"`
	Amount       float64 `json:"amount"`
}

// CreateIntent vérifie le panier (existence, stock — en lecture seule, rien
// n'est réservé à ce stade), recalcule le montant côté serveur et crée
// l'intent chez la passerelle. Le panier voyage dans les métadonnées pour que
// le webhook puisse régler sans état local.
func (o *Orchestrator) CreateIntent(ctx context.Context, userID, email string, items []models.CartItem, shippingPrice float64) (*IntentHandle, error) {
	if len(items) == 0 {
		return nil, apperr.New(apperr.KindValidation, "Panier vide")
	}
	if shippingPrice < 0 {
		return nil, apperr.New(apperr.KindValidation, "Frais de livraison invalides")
	}

	// Prix et noms autoritaires depuis le catalogue, jamais ceux du client
	checked := make([]models.CartItem, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, apperr.New(apperr.KindValidation, "Quantité invalide pour "+it.ProductID)
		}
		p, err := o.catalog.Product(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Stock < it.Quantity {
			return nil, apperr.New(apperr.KindInsufficientStock,
				fmt.Sprintf("Stock insuffisant pour %s (%d demandés, %d disponibles)", p.Name, it.Quantity, p.Stock))
		}
		checked = append(checked, models.CartItem{
			ProductID: it.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  it.Quantity,
			ImageURL:  p.FirstImage(),
		})
	}

	q := pricing.QuoteCart(checked, shippingPrice)

	cartJSON, err := json.Marshal(checked)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Erreur sérialisation panier", err)
	}

	correlationID := uuid.NewString()
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(pricing.MinorUnits(q.TotalPrice)),
		Currency: stripe.String(string(stripe.CurrencyEUR)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"user_id":        userID,
			"email":          email,
			"cart":           string(cartJSON),
			"shipping":       strconv.FormatFloat(q.ShippingPrice, 'f', 2, 64),
			"correlation_id": correlationID,
		},
	}

	pi, err := o.gateway.CreateIntent(ctx, params)
	if err != nil {
		return nil, classifyGateway(err)
	}

	log.Printf("💳 Intent %s créé pour %s: %.2f€ (corrélation %s)", pi.ID, userID, q.TotalPrice, correlationID)
	return &IntentHandle{ID: pi.ID, ClientSecret: pi.ClientSecret, Amount: q.TotalPrice}, nil
}

// Verify relit l'intent chez la passerelle. Le statut renvoyé par le client
// n'est jamais cru sur parole.
func (o *Orchestrator) Verify(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	if intentID == "" {
		return nil, apperr.New(apperr.KindValidation, "ID de paiement manquant")
	}
	pi, err := o.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return nil, classifyGateway(err)
	}
	return pi, nil
}

// ConfirmAndSettle est le chemin synchrone post-paiement : le front annonce un
// succès, on revérifie chez la passerelle puis on règle. Idempotent vis-à-vis
// du webhook grâce à la réclamation d'intent côté commandes.
func (o *Orchestrator) ConfirmAndSettle(ctx context.Context, intentID, userID string, addr models.Address) (*models.Order, error) {
	pi, err := o.Verify(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, apperr.New(apperr.KindPaymentNotSuccessful,
			fmt.Sprintf("Paiement non confirmé (statut %s)", pi.Status))
	}
	if owner := pi.Metadata["user_id"]; owner != "" && owner != userID {
		return nil, apperr.New(apperr.KindForbidden, "Ce paiement ne vous appartient pas")
	}

	in, err := settleInputFromIntent(pi)
	if err != nil {
		return nil, err
	}
	in.ShippingAddress = addr

	return o.settler.SettleIntent(ctx, in)
}

// settleInputFromIntent reconstruit le règlement depuis les métadonnées de
// l'intent, partagé entre le chemin synchrone et le webhook
func settleInputFromIntent(pi *stripe.PaymentIntent) (orders.SettleInput, error) {
	cartJSON := pi.Metadata["cart"]
	if cartJSON == "" || pi.Metadata["user_id"] == "" {
		return orders.SettleInput{}, apperr.New(apperr.KindValidation, "Métadonnées de paiement incomplètes")
	}

	var items []models.CartItem
	if err := json.Unmarshal([]byte(cartJSON), &items); err != nil {
		return orders.SettleInput{}, apperr.Wrap(apperr.KindValidation, "Panier des métadonnées illisible", err)
	}

	shipping, _ := strconv.ParseFloat(pi.Metadata["shipping"], 64)

	return orders.SettleInput{
		IntentID:         pi.ID,
		UserID:           pi.Metadata["user_id"],
		Email:            pi.Metadata["email"],
		Items:            items,
		ShippingPrice:    shipping,
		AmountAuthorized: pi.Amount,
	}, nil
}

// classifyGateway traduit une erreur passerelle vers la taxonomie métier
func classifyGateway(err error) error {
	if err == nil {
		return nil
	}
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		switch sErr.Type {
		case stripe.ErrorTypeInvalidRequest:
			return apperr.Wrap(apperr.KindValidation, "Requête de paiement invalide", err)
		case stripe.ErrorTypeCard:
			return apperr.Wrap(apperr.KindPaymentNotSuccessful, "Carte refusée", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindUpstreamTimeout, "Délai passerelle de paiement dépassé", err)
	}
	return apperr.Wrap(apperr.KindUpstreamUnavailable, "Erreur passerelle de paiement", err)
}
