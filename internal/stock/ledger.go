// Package stock est la vue autoritaire du stock disponible par produit.
package stock

import (
	"context"

	"velora_back_end/internal/models"
)

// Reservation est un décrément en attente de confirmation : le stock est
// déjà décrémenté (il compte contre la disponibilité), Commit le rend
// définitif, Release le restitue.
type Reservation struct {
	ProductID string
	Quantity  int
	PrevStock int
	NewStock  int
}

// Ledger expose les opérations atomiques de réservation.
// Deux réservations concurrentes ne peuvent jamais dépasser ensemble
// le stock disponible.
type Ledger interface {
	// TryReserve décrémente atomiquement le stock, échoue avec
	// InsufficientStock si la quantité dépasse le disponible.
	TryReserve(ctx context.Context, productID string, quantity int) (Reservation, error)

	// Commit confirme la réservation (trace un mouvement "sale").
	Commit(ctx context.Context, r Reservation, orderID string) error

	// Release restitue une réservation non confirmée.
	Release(ctx context.Context, r Reservation) error

	// Restock restitue du stock déjà consommé (suppression de commande).
	Restock(ctx context.Context, productID string, quantity int, orderID string) error
}

// MovementLister liste l'historique des mouvements de stock
type MovementLister interface {
	Movements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error)
}
