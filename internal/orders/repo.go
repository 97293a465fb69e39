package orders

import (
	"context"

	"velora_back_end/internal/models"
)

// Repo persiste les commandes.
type Repo interface {
	Insert(ctx context.Context, o *models.Order) error
	ByID(ctx context.Context, orderID string) (*models.Order, error)
	ByUser(ctx context.Context, userID string) ([]models.Order, error)
	All(ctx context.Context, limit int) ([]models.Order, error)
	ByIntent(ctx context.Context, intentID string) (*models.Order, error)

	// ClaimIntent réserve un PaymentIntent pour un orderID de façon atomique.
	// Retourne false si l'intent est déjà réclamé : c'est la garde
	// d'exactement-une-commande-par-paiement.
	ClaimIntent(ctx context.Context, intentID, orderID string) (bool, error)
	ReleaseIntent(ctx context.Context, intentID string) error

	Update(ctx context.Context, o *models.Order) error
	Delete(ctx context.Context, o *models.Order) error
}

// Indexer pousse les commandes vers l'index de recherche admin.
type Indexer interface {
	Index(ctx context.Context, o *models.Order) error
	Search(ctx context.Context, query string, limit int) ([]models.Order, error)
}
