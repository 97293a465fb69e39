// Package orders coordonne le flux de commande : réservation du stock,
// persistance du snapshot, transitions de statut et règlement idempotent.
package orders

import (
	"context"
	"log"
	"time"

	"velora_back_end/internal/apperr"
	"velora_back_end/internal/cart"
	"velora_back_end/internal/catalog"
	"velora_back_end/internal/models"
	"velora_back_end/internal/pricing"
	"velora_back_end/internal/stock"

	"github.com/google/uuid"
)

const RoleAdmin = "admin"

type Service struct {
	repo    Repo
	ledger  stock.Ledger
	catalog catalog.Reader
	carts   *cart.Store
	indexer Indexer // optionnel
	// notify est appelé en goroutine après un règlement réussi
	// (e-mail de confirmation, facture). Optionnel.
	notify func(o models.Order, email string)
}

func NewService(repo Repo, ledger stock.Ledger, cat catalog.Reader, carts *cart.Store) *Service {
	return &Service{repo: repo, ledger: ledger, catalog: cat, carts: carts}
}

// WithIndexer branche l'index de recherche admin
func (s *Service) WithIndexer(idx Indexer) *Service {
	s.indexer = idx
	return s
}

// WithNotifier branche le hook post-règlement
func (s *Service) WithNotifier(fn func(o models.Order, email string)) *Service {
	s.notify = fn
	return s
}

// CreateInput est une commande itémisée (checkout hors panier)
type CreateInput struct {
	Items           []models.OrderItem `json:"items"`
	ShippingAddress models.Address     `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method"`
	ItemsPrice      float64            `json:"items_price"`
	TaxPrice        float64            `json:"tax_price"`
	ShippingPrice   float64            `json:"shipping_price"`
	TotalPrice      float64            `json:"total_price"`
}

// Create crée une commande itémisée : chaque article est réservé
// séquentiellement, le premier échec libère toutes les réservations déjà
// prises — tout ou rien.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, apperr.New(apperr.KindValidation, "Commande sans article")
	}
	for _, item := range in.Items {
		if item.Quantity < 1 {
			return nil, apperr.New(apperr.KindValidation, "Quantité invalide")
		}
	}

	// Les prix déclarés doivent correspondre à l'arithmétique du moteur :
	// le montant facturé est toujours recalculable.
	q := pricing.QuoteOrder(in.Items, in.ShippingPrice)
	if !pricing.SameAmount(q.ItemsPrice, in.ItemsPrice) ||
		!pricing.SameAmount(q.TaxPrice, in.TaxPrice) ||
		!pricing.SameAmount(q.TotalPrice, in.TotalPrice) {
		return nil, apperr.New(apperr.KindValidation, "Prix déclarés incohérents")
	}

	// Compléter le snapshot depuis le catalogue (nom, image)
	items := make([]models.OrderItem, len(in.Items))
	copy(items, in.Items)
	for i := range items {
		product, err := s.catalog.Product(ctx, items[i].ProductID)
		if err != nil {
			return nil, err
		}
		if items[i].Name == "" {
			items[i].Name = product.Name
		}
		if items[i].ImageURL == "" {
			items[i].ImageURL = product.FirstImage()
		}
	}

	reservations, err := s.reserveAll(ctx, items)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &models.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		ItemsPrice:      q.ItemsPrice,
		TaxPrice:        q.TaxPrice,
		ShippingPrice:   q.ShippingPrice,
		TotalPrice:      q.TotalPrice,
		Status:          models.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, order); err != nil {
		s.releaseAll(ctx, reservations)
		return nil, err
	}

	s.commitAll(ctx, reservations, order.ID)
	s.indexAsync(*order)

	log.Printf("✅ Commande %s créée pour %s (%.2f€)", order.ID, userID, order.TotalPrice)
	return order, nil
}

// reserveAll prend les réservations une par une ; le premier échec
// libère tout ce qui a déjà été pris.
func (s *Service) reserveAll(ctx context.Context, items []models.OrderItem) ([]stock.Reservation, error) {
	reservations := make([]stock.Reservation, 0, len(items))
	for _, item := range items {
		r, err := s.ledger.TryReserve(ctx, item.ProductID, item.Quantity)
		if err != nil {
			s.releaseAll(ctx, reservations)
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, nil
}

func (s *Service) releaseAll(ctx context.Context, reservations []stock.Reservation) {
	for _, r := range reservations {
		if err := s.ledger.Release(ctx, r); err != nil {
			log.Printf("❌ Échec libération réservation %s x%d: %v", r.ProductID, r.Quantity, err)
		}
	}
}

func (s *Service) commitAll(ctx context.Context, reservations []stock.Reservation, orderID string) {
	for _, r := range reservations {
		if err := s.ledger.Commit(ctx, r, orderID); err != nil {
			log.Printf("⚠️ Échec trace mouvement stock %s: %v", r.ProductID, err)
		}
	}
}

// GetAll liste toutes les commandes (admin)
func (s *Service) GetAll(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.All(ctx, limit)
}

// GetMine liste les commandes de l'utilisateur connecté
func (s *Service) GetMine(ctx context.Context, userID string) ([]models.Order, error) {
	return s.repo.ByUser(ctx, userID)
}

// GetByID retourne une commande si le demandeur en est le propriétaire ou admin
func (s *Service) GetByID(ctx context.Context, orderID, requesterID, role string) (*models.Order, error) {
	order, err := s.repo.ByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != requesterID && role != RoleAdmin {
		return nil, apperr.New(apperr.KindForbidden, "Commande non autorisée")
	}
	return order, nil
}

// MarkPaid enregistre le paiement. Idempotent : re-appliquer le même
// identifiant de transaction est un no-op, pas un double encaissement.
func (s *Service) MarkPaid(ctx context.Context, orderID string, result models.PaymentResult, requesterID, role string) (*models.Order, error) {
	order, err := s.GetByID(ctx, orderID, requesterID, role)
	if err != nil {
		return nil, err
	}

	if order.IsPaid {
		if order.PaymentResult != nil && order.PaymentResult.TransactionID == result.TransactionID {
			log.Printf("🔁 Paiement %s déjà enregistré pour %s, on ignore", result.TransactionID, orderID)
			return order, nil
		}
		return nil, apperr.New(apperr.KindValidation, "Commande déjà payée avec une autre transaction")
	}

	now := time.Now()
	order.IsPaid = true
	order.PaidAt = &now
	order.PaymentResult = &result
	if order.Status == models.OrderStatusPending {
		order.Status = models.OrderStatusProcessing
	}
	order.UpdatedAt = now

	if err := s.repo.Update(ctx, order); err != nil {
		return nil, err
	}
	s.indexAsync(*order)
	return order, nil
}

// MarkDelivered marque la commande livrée (admin). Une commande non payée
// ne peut pas être livrée.
func (s *Service) MarkDelivered(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.repo.ByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPaid {
		return nil, apperr.New(apperr.KindValidation, "Commande non payée")
	}
	if order.IsDelivered {
		return order, nil
	}

	now := time.Now()
	order.IsDelivered = true
	order.DeliveredAt = &now
	order.Status = models.OrderStatusDelivered
	order.UpdatedAt = now

	if err := s.repo.Update(ctx, order); err != nil {
		return nil, err
	}
	s.indexAsync(*order)
	return order, nil
}

// SetStatus applique une transition de statut. La machine à états est
// stricte : les écritures arbitraires du client sont refusées.
func (s *Service) SetStatus(ctx context.Context, orderID, status string) (*models.Order, error) {
	if !ValidStatus(status) {
		return nil, apperr.New(apperr.KindValidation, "Statut inconnu")
	}

	order, err := s.repo.ByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == status {
		return order, nil
	}
	if !CanTransition(order.Status, status) {
		return nil, apperr.New(apperr.KindValidation, "Transition de statut non autorisée")
	}

	now := time.Now()
	order.Status = status
	if status == models.OrderStatusDelivered {
		order.IsDelivered = true
		order.DeliveredAt = &now
	}
	order.UpdatedAt = now

	if err := s.repo.Update(ctx, order); err != nil {
		return nil, err
	}
	s.indexAsync(*order)
	return order, nil
}

// Delete supprime une commande (admin) et restitue le stock consommé
func (s *Service) Delete(ctx context.Context, orderID string) error {
	order, err := s.repo.ByID(ctx, orderID)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		if err := s.ledger.Restock(ctx, item.ProductID, item.Quantity, order.ID); err != nil {
			log.Printf("⚠️ Restitution stock impossible pour %s: %v", item.ProductID, err)
		}
	}

	return s.repo.Delete(ctx, order)
}

// Search interroge l'index admin
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.Order, error) {
	if s.indexer == nil {
		return nil, apperr.New(apperr.KindUpstreamUnavailable, "Recherche de commandes indisponible")
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.indexer.Search(ctx, query, limit)
}

// indexAsync pousse la commande vers l'index sans bloquer le chemin critique
func (s *Service) indexAsync(order models.Order) {
	if s.indexer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.indexer.Index(ctx, &order); err != nil {
			log.Printf("⚠️ Indexation commande %s échouée: %v", order.ID, err)
		}
	}()
}
