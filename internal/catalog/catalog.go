package catalog

import (
	"context"
	"errors"
	"time"

	"velora_back_end/internal/apperr"
	"velora_back_end/internal/database"
	"velora_back_end/internal/models"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// Reader est l'interface étroite vers le catalogue : le pipeline de commande
// ne lit que le prix, le stock, le nom et l'image d'un produit.
type Reader interface {
	Product(ctx context.Context, productID string) (*models.Product, error)
}

type ScyllaCatalog struct{}

func NewScyllaCatalog() *ScyllaCatalog {
	return &ScyllaCatalog{}
}

func (c *ScyllaCatalog) Product(ctx context.Context, productID string) (*models.Product, error) {
	uid, err := uuid.Parse(productID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "ID produit invalide")
	}

	session, err := database.GetProductsSession()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, "Erreur connexion base de données", err)
	}

	var p models.Product
	err = session.Query(database.CQLSelectProduct, gocql.UUID(uid)).
		WithContext(ctx).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.ImageURLs, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, classify(err, "Produit introuvable")
	}

	return &p, nil
}

// classify traduit une erreur gocql vers la taxonomie métier
func classify(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, gocql.ErrNotFound):
		return apperr.New(apperr.KindNotFound, notFoundMsg)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, gocql.ErrTimeoutNoResponse):
		return apperr.Wrap(apperr.KindUpstreamTimeout, "Délai base de données dépassé", err)
	default:
		return apperr.Wrap(apperr.KindUpstreamUnavailable, "Erreur base de données", err)
	}
}

const productNameCacheTTL = 10 * time.Minute

// ProductNames récupère plusieurs noms de produits, cache Redis d'abord
func ProductNames(ctx context.Context, productIDs []string) map[string]string {
	result := make(map[string]string)
	missingIDs := []string{}

	// 1. Essayer de récupérer depuis Redis
	for _, productID := range productIDs {
		key := "product_name:" + productID
		name, err := database.Redis.Get(ctx, key).Result()
		if err == nil {
			result[productID] = name
		} else {
			missingIDs = append(missingIDs, productID)
		}
	}

	// 2. Récupérer les produits manquants depuis ScyllaDB
	if len(missingIDs) > 0 {
		session, err := database.GetProductsSession()
		if err != nil {
			return result
		}
		for _, productID := range missingIDs {
			pid, err := uuid.Parse(productID)
			if err != nil {
				continue
			}
			var name string
			err = session.Query("SELECT name FROM products WHERE product_id = ?", gocql.UUID(pid)).
				WithContext(ctx).Scan(&name)
			if err == nil {
				result[productID] = name
				database.Redis.Set(ctx, "product_name:"+productID, name, productNameCacheTTL)
			}
		}
	}

	return result
}
