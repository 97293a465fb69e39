package orders

import (
	"context"
	"log"
	"time"

	"velora_back_end/internal/apperr"
	"velora_back_end/internal/models"
	"velora_back_end/internal/pricing"

	"github.com/google/uuid"
)

// SettleInput décrit un paiement confirmé par la passerelle, prêt à être
// converti en commande.
type SettleInput struct {
	IntentID         string
	UserID           string
	Email            string
	Items            []models.CartItem
	ShippingPrice    float64
	ShippingAddress  models.Address
	AmountAuthorized int64 // centimes autorisés par la passerelle
}

// SettleIntent convertit un paiement réussi en commande, exactement une fois.
// La garde d'idempotence est la réclamation atomique de l'intent : rejouer le
// même intent (webhook dupliqué, course synchrone/webhook) retourne la
// commande existante sans nouveau décrément de stock.
func (s *Service) SettleIntent(ctx context.Context, in SettleInput) (*models.Order, error) {
	if in.IntentID == "" || in.UserID == "" {
		return nil, apperr.New(apperr.KindValidation, "Règlement incomplet")
	}
	if len(in.Items) == 0 {
		return nil, apperr.New(apperr.KindValidation, "Panier du paiement vide")
	}

	// Chemin rapide : déjà réglé
	if existing, err := s.repo.ByIntent(ctx, in.IntentID); err == nil && existing != nil {
		log.Printf("🔁 Intent %s déjà réglé (commande %s), on ignore", in.IntentID, existing.ID)
		return existing, nil
	}

	orderID := uuid.NewString()
	claimed, err := s.repo.ClaimIntent(ctx, in.IntentID, orderID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Course perdue : l'autre chemin (webhook ou appel synchrone) a gagné
		existing, err := s.repo.ByIntent(ctx, in.IntentID)
		if err != nil {
			return nil, err
		}
		log.Printf("🔁 Intent %s réclamé en parallèle (commande %s)", in.IntentID, existing.ID)
		return existing, nil
	}

	items := make([]models.OrderItem, 0, len(in.Items))
	for _, ci := range in.Items {
		items = append(items, models.OrderItem{
			ProductID: ci.ProductID,
			Name:      ci.Name,
			Quantity:  ci.Quantity,
			Price:     ci.Price,
			ImageURL:  ci.ImageURL,
		})
	}

	reservations, err := s.reserveAll(ctx, items)
	if err != nil {
		// Libérer la réclamation pour qu'une relivraison du webhook retente
		if rerr := s.repo.ReleaseIntent(ctx, in.IntentID); rerr != nil {
			log.Printf("❌ Libération intent %s impossible: %v", in.IntentID, rerr)
		}
		return nil, err
	}

	q := pricing.QuoteCart(in.Items, in.ShippingPrice)
	if in.AmountAuthorized > 0 && pricing.MinorUnits(q.TotalPrice) != in.AmountAuthorized {
		log.Printf("⚠️ Écart montant intent %s: autorisé %d centimes, calculé %d",
			in.IntentID, in.AmountAuthorized, pricing.MinorUnits(q.TotalPrice))
	}

	now := time.Now()
	order := &models.Order{
		ID:              orderID,
		UserID:          in.UserID,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   "card",
		ItemsPrice:      q.ItemsPrice,
		TaxPrice:        q.TaxPrice,
		ShippingPrice:   q.ShippingPrice,
		TotalPrice:      q.TotalPrice,
		IsPaid:          true,
		PaidAt:          &now,
		Status:          models.OrderStatusProcessing,
		PaymentIntentID: in.IntentID,
		PaymentResult: &models.PaymentResult{
			TransactionID: in.IntentID,
			Status:        "succeeded",
			PaidAt:        now,
			PayerEmail:    in.Email,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, order); err != nil {
		s.releaseAll(ctx, reservations)
		if rerr := s.repo.ReleaseIntent(ctx, in.IntentID); rerr != nil {
			log.Printf("❌ Libération intent %s impossible: %v", in.IntentID, rerr)
		}
		return nil, err
	}

	s.commitAll(ctx, reservations, order.ID)

	// Le panier a pu être vidé par l'autre chemin : no-op bénin
	if s.carts != nil {
		if err := s.carts.Clear(ctx, in.UserID); err != nil {
			log.Printf("⚠️ Vidage panier %s après règlement: %v", in.UserID, err)
		} else {
			log.Printf("🧹 Panier vidé pour %s", in.UserID)
		}
	}

	s.indexAsync(*order)
	if s.notify != nil && in.Email != "" {
		go s.notify(*order, in.Email)
	}

	log.Printf("✅ Intent %s réglé → commande %s (%.2f€)", in.IntentID, order.ID, order.TotalPrice)
	return order, nil
}
