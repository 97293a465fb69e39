package stock

import (
	"context"
	"errors"
	"log"
	"time"

	"velora_back_end/internal/apperr"
	"velora_back_end/internal/database"
	"velora_back_end/internal/models"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// casRetries borne la boucle de décrément conditionnel sous contention
const casRetries = 8

// ScyllaLedger implémente Ledger avec les transactions légères de ScyllaDB :
// le décrément est un UPDATE ... IF stock = ?, jamais une paire
// lecture-puis-écriture côté appelant.
type ScyllaLedger struct{}

func NewScyllaLedger() *ScyllaLedger {
	return &ScyllaLedger{}
}

func (l *ScyllaLedger) TryReserve(ctx context.Context, productID string, quantity int) (Reservation, error) {
	if quantity <= 0 {
		return Reservation{}, apperr.New(apperr.KindValidation, "Quantité invalide")
	}

	uid, err := uuid.Parse(productID)
	if err != nil {
		return Reservation{}, apperr.New(apperr.KindValidation, "ID produit invalide")
	}
	pid := gocql.UUID(uid)

	session, err := database.GetProductsSession()
	if err != nil {
		return Reservation{}, apperr.Wrap(apperr.KindUpstreamUnavailable, "Erreur connexion base de données", err)
	}

	var stock int
	if err := session.Query(database.CQLSelectProductStock, pid).WithContext(ctx).Scan(&stock); err != nil {
		return Reservation{}, classify(err)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		if stock < quantity {
			return Reservation{}, apperr.New(apperr.KindInsufficientStock, "Stock insuffisant")
		}

		applied, err := session.Query(database.CQLReserveStock, stock-quantity, pid, stock).
			WithContext(ctx).
			ScanCAS(&stock)
		if err != nil {
			return Reservation{}, classify(err)
		}
		if applied {
			return Reservation{
				ProductID: productID,
				Quantity:  quantity,
				PrevStock: stock,
				NewStock:  stock - quantity,
			}, nil
		}
		// Non appliqué : ScanCAS a rechargé la valeur courante, on réessaie
	}

	return Reservation{}, apperr.New(apperr.KindUpstreamUnavailable, "Stock trop disputé, réessayez")
}

func (l *ScyllaLedger) Commit(ctx context.Context, r Reservation, orderID string) error {
	// Le stock est déjà décrémenté : confirmer = tracer le mouvement
	return l.insertMovement(ctx, r.ProductID, "sale", r.Quantity, r.PrevStock, r.NewStock, "commande confirmée", orderID)
}

func (l *ScyllaLedger) Release(ctx context.Context, r Reservation) error {
	if err := l.addBack(ctx, r.ProductID, r.Quantity); err != nil {
		return err
	}
	if err := l.insertMovement(ctx, r.ProductID, "release", r.Quantity, r.NewStock, r.NewStock+r.Quantity, "réservation annulée", ""); err != nil {
		log.Printf("⚠️ Erreur enregistrement mouvement release: %v", err)
	}
	return nil
}

func (l *ScyllaLedger) Restock(ctx context.Context, productID string, quantity int, orderID string) error {
	if err := l.addBack(ctx, productID, quantity); err != nil {
		return err
	}
	if err := l.insertMovement(ctx, productID, "return", quantity, 0, 0, "commande supprimée", orderID); err != nil {
		log.Printf("⚠️ Erreur enregistrement mouvement return: %v", err)
	}
	return nil
}

// addBack restitue une quantité avec la même boucle CAS que la réservation
func (l *ScyllaLedger) addBack(ctx context.Context, productID string, quantity int) error {
	uid, err := uuid.Parse(productID)
	if err != nil {
		return apperr.New(apperr.KindValidation, "ID produit invalide")
	}
	pid := gocql.UUID(uid)

	session, err := database.GetProductsSession()
	if err != nil {
		return apperr.Wrap(apperr.KindUpstreamUnavailable, "Erreur connexion base de données", err)
	}

	var stock int
	if err := session.Query(database.CQLSelectProductStock, pid).WithContext(ctx).Scan(&stock); err != nil {
		return classify(err)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		applied, err := session.Query(database.CQLReserveStock, stock+quantity, pid, stock).
			WithContext(ctx).
			ScanCAS(&stock)
		if err != nil {
			return classify(err)
		}
		if applied {
			return nil
		}
	}

	return apperr.New(apperr.KindUpstreamUnavailable, "Stock trop disputé, réessayez")
}

func (l *ScyllaLedger) insertMovement(ctx context.Context, productID, movType string, quantity, prev, next int, reason, orderID string) error {
	uid, err := uuid.Parse(productID)
	if err != nil {
		return apperr.New(apperr.KindValidation, "ID produit invalide")
	}

	session, err := database.GetProductsSession()
	if err != nil {
		return apperr.Wrap(apperr.KindUpstreamUnavailable, "Erreur connexion base de données", err)
	}

	return session.Query(database.CQLInsertStockMovement,
		gocql.TimeUUID(), gocql.UUID(uid), movType, quantity, prev, next, reason, orderID, time.Now(),
	).WithContext(ctx).Exec()
}

// Movements récupère l'historique des mouvements de stock
func (l *ScyllaLedger) Movements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	session, err := database.GetProductsSession()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, "Erreur connexion base de données", err)
	}

	var iter *gocql.Iter
	if productID != "" {
		uid, err := uuid.Parse(productID)
		if err != nil {
			return nil, apperr.New(apperr.KindValidation, "ID produit invalide")
		}
		iter = session.Query(database.CQLSelectMovementsByProduct, gocql.UUID(uid), limit).WithContext(ctx).Iter()
	} else {
		iter = session.Query(database.CQLSelectMovements, limit).WithContext(ctx).Iter()
	}

	var movements []models.StockMovement
	var m models.StockMovement
	for iter.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.PrevStock, &m.NewStock, &m.Reason, &m.OrderID, &m.CreatedAt) {
		movements = append(movements, m)
	}
	if err := iter.Close(); err != nil {
		return nil, classify(err)
	}

	return movements, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, gocql.ErrNotFound):
		return apperr.New(apperr.KindNotFound, "Produit introuvable")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, gocql.ErrTimeoutNoResponse):
		return apperr.Wrap(apperr.KindUpstreamTimeout, "Délai base de données dépassé", err)
	default:
		return apperr.Wrap(apperr.KindUpstreamUnavailable, "Erreur base de données", err)
	}
}
