// Package cart gère le panier actif de chaque utilisateur.
package cart

import (
	"context"

	"velora_back_end/internal/apperr"
	"velora_back_end/internal/catalog"
	"velora_back_end/internal/models"
)

// Repo persiste les items d'un panier par utilisateur.
// items == nil signifie panier inexistant (créé paresseusement).
type Repo interface {
	Get(ctx context.Context, userID string) ([]models.CartItem, error)
	Save(ctx context.Context, userID string, items []models.CartItem) error
	Delete(ctx context.Context, userID string) error
}

// Store applique les règles métier du panier : re-validation du stock à
// chaque mutation, fusion des lignes, instantané de prix à l'ajout,
// recalcul du total.
type Store struct {
	repo    Repo
	catalog catalog.Reader
}

func NewStore(repo Repo, cat catalog.Reader) *Store {
	return &Store{repo: repo, catalog: cat}
}

// Get retourne le panier courant (vide si jamais créé)
func (s *Store) Get(ctx context.Context, userID string) (models.Cart, error) {
	items, err := s.repo.Get(ctx, userID)
	if err != nil {
		return models.Cart{}, err
	}
	return s.cart(userID, items), nil
}

// Add ajoute un produit au panier. Un produit déjà présent voit sa quantité
// augmentée (pas de ligne dupliquée) et son prix rafraîchi au prix catalogue
// courant — uniquement au moment de l'ajout.
func (s *Store) Add(ctx context.Context, userID, productID string, quantity int) (models.Cart, error) {
	if quantity <= 0 {
		return models.Cart{}, apperr.New(apperr.KindValidation, "Quantité invalide")
	}

	product, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return models.Cart{}, err
	}

	items, err := s.repo.Get(ctx, userID)
	if err != nil {
		return models.Cart{}, err
	}

	// Quantité demandée = existant + ajout, vérifiée contre le stock courant.
	// En cas de refus, le panier reste strictement inchangé.
	requested := quantity
	idx := -1
	for i := range items {
		if items[i].ProductID == productID {
			requested += items[i].Quantity
			idx = i
			break
		}
	}
	if requested > product.Stock {
		return models.Cart{}, apperr.New(apperr.KindInsufficientStock, "Stock insuffisant")
	}

	if idx >= 0 {
		items[idx].Quantity = requested
		items[idx].Price = product.Price
		items[idx].Name = product.Name
		items[idx].ImageURL = product.FirstImage()
	} else {
		items = append(items, models.CartItem{
			ProductID: productID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  quantity,
			ImageURL:  product.FirstImage(),
		})
	}

	if err := s.repo.Save(ctx, userID, items); err != nil {
		return models.Cart{}, err
	}
	return s.cart(userID, items), nil
}

// UpdateQuantity fixe la quantité d'une ligne. Une quantité ≤ 0 supprime la ligne.
// Le prix de la ligne n'est jamais rafraîchi ici.
func (s *Store) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (models.Cart, error) {
	items, err := s.repo.Get(ctx, userID)
	if err != nil {
		return models.Cart{}, err
	}

	idx := -1
	for i := range items {
		if items[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.Cart{}, apperr.New(apperr.KindNotFound, "Produit introuvable dans le panier")
	}

	if quantity <= 0 {
		items = append(items[:idx], items[idx+1:]...)
	} else {
		product, err := s.catalog.Product(ctx, productID)
		if err != nil {
			return models.Cart{}, err
		}
		if quantity > product.Stock {
			return models.Cart{}, apperr.New(apperr.KindInsufficientStock, "Stock insuffisant")
		}
		items[idx].Quantity = quantity
	}

	if len(items) == 0 {
		if err := s.repo.Delete(ctx, userID); err != nil {
			return models.Cart{}, err
		}
		return s.cart(userID, nil), nil
	}

	if err := s.repo.Save(ctx, userID, items); err != nil {
		return models.Cart{}, err
	}
	return s.cart(userID, items), nil
}

// Remove supprime une ligne du panier
func (s *Store) Remove(ctx context.Context, userID, productID string) (models.Cart, error) {
	items, err := s.repo.Get(ctx, userID)
	if err != nil {
		return models.Cart{}, err
	}

	newItems := make([]models.CartItem, 0, len(items))
	found := false
	for _, item := range items {
		if item.ProductID == productID {
			found = true
			continue
		}
		newItems = append(newItems, item)
	}
	if !found {
		return models.Cart{}, apperr.New(apperr.KindNotFound, "Produit introuvable dans le panier")
	}

	if len(newItems) == 0 {
		if err := s.repo.Delete(ctx, userID); err != nil {
			return models.Cart{}, err
		}
		return s.cart(userID, nil), nil
	}

	if err := s.repo.Save(ctx, userID, newItems); err != nil {
		return models.Cart{}, err
	}
	return s.cart(userID, newItems), nil
}

// Clear vide le panier. Un panier déjà vide n'est pas une erreur :
// le règlement webhook peut arriver après un vidage synchrone.
func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.repo.Delete(ctx, userID)
}

func (s *Store) cart(userID string, items []models.CartItem) models.Cart {
	if items == nil {
		items = []models.CartItem{}
	}
	return models.Cart{
		UserID:     userID,
		Items:      items,
		TotalPrice: models.CartTotal(items),
	}
}
