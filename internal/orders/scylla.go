package orders

import (
	"context"
	"encoding/json"
	"errors"

	"velora_back_end/internal/apperr"
	"velora_back_end/internal/database"
	"velora_back_end/internal/models"

	"github.com/gocql/gocql"
)

// ScyllaRepo persiste les commandes dans le keyspace orders.
// Tables : orders (par id), orders_by_user (listing utilisateur),
// orders_by_intent (garde d'idempotence du règlement).
type ScyllaRepo struct{}

func NewScyllaRepo() *ScyllaRepo {
	return &ScyllaRepo{}
}

func (r *ScyllaRepo) session() (*gocql.Session, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, "Erreur connexion base de données", err)
	}
	return session, nil
}

func (r *ScyllaRepo) Insert(ctx context.Context, o *models.Order) error {
	session, err := r.session()
	if err != nil {
		return err
	}

	itemsJSON, _ := json.Marshal(o.Items)
	addressJSON, _ := json.Marshal(o.ShippingAddress)
	var resultJSON []byte
	if o.PaymentResult != nil {
		resultJSON, _ = json.Marshal(o.PaymentResult)
	}

	if err := session.Query(database.CQLInsertOrder,
		o.ID, o.UserID, string(itemsJSON), string(addressJSON), o.PaymentMethod,
		o.ItemsPrice, o.TaxPrice, o.ShippingPrice, o.TotalPrice,
		o.IsPaid, o.PaidAt, o.IsDelivered, o.DeliveredAt, o.Status,
		o.PaymentIntentID, string(resultJSON), o.CreatedAt, o.UpdatedAt,
	).WithContext(ctx).Exec(); err != nil {
		return classifyOrders(err)
	}

	if err := session.Query(database.CQLInsertOrderByUser, o.UserID, o.CreatedAt, o.ID).
		WithContext(ctx).Exec(); err != nil {
		return classifyOrders(err)
	}

	return nil
}

func (r *ScyllaRepo) ByID(ctx context.Context, orderID string) (*models.Order, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	return scanOrder(session.Query(database.CQLSelectOrder, orderID).WithContext(ctx))
}

func (r *ScyllaRepo) ByUser(ctx context.Context, userID string) ([]models.Order, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	iter := session.Query(database.CQLSelectOrdersByUser, userID).WithContext(ctx).Iter()
	var ids []string
	var id string
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		return nil, classifyOrders(err)
	}

	orders := make([]models.Order, 0, len(ids))
	for _, oid := range ids {
		o, err := r.ByID(ctx, oid)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				continue // index plus frais que la table, on tolère
			}
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

func (r *ScyllaRepo) All(ctx context.Context, limit int) ([]models.Order, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	iter := session.Query(database.CQLSelectOrdersAll, limit).WithContext(ctx).Iter()

	var orders []models.Order
	for {
		o, ok := scanOrderIter(iter)
		if !ok {
			break
		}
		orders = append(orders, *o)
	}
	if err := iter.Close(); err != nil {
		return nil, classifyOrders(err)
	}
	return orders, nil
}

func (r *ScyllaRepo) ByIntent(ctx context.Context, intentID string) (*models.Order, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	var orderID string
	err = session.Query(database.CQLSelectOrderByIntent, intentID).WithContext(ctx).Scan(&orderID)
	if err != nil {
		return nil, classifyOrders(err)
	}
	return r.ByID(ctx, orderID)
}

func (r *ScyllaRepo) ClaimIntent(ctx context.Context, intentID, orderID string) (bool, error) {
	session, err := r.session()
	if err != nil {
		return false, err
	}

	// En cas de conflit, ScanCAS relit la ligne existante (les deux colonnes)
	var existingIntent, existingOrder string
	applied, err := session.Query(database.CQLInsertOrderByIntent, intentID, orderID).
		WithContext(ctx).
		ScanCAS(&existingIntent, &existingOrder)
	if err != nil {
		return false, classifyOrders(err)
	}
	return applied, nil
}

func (r *ScyllaRepo) ReleaseIntent(ctx context.Context, intentID string) error {
	session, err := r.session()
	if err != nil {
		return err
	}
	return session.Query(database.CQLDeleteOrderByIntent, intentID).WithContext(ctx).Exec()
}

func (r *ScyllaRepo) Update(ctx context.Context, o *models.Order) error {
	session, err := r.session()
	if err != nil {
		return err
	}

	var resultJSON []byte
	if o.PaymentResult != nil {
		resultJSON, _ = json.Marshal(o.PaymentResult)
	}

	if err := session.Query(database.CQLUpdateOrder,
		o.IsPaid, o.PaidAt, o.IsDelivered, o.DeliveredAt, o.Status,
		string(resultJSON), o.UpdatedAt, o.ID,
	).WithContext(ctx).Exec(); err != nil {
		return classifyOrders(err)
	}
	return nil
}

func (r *ScyllaRepo) Delete(ctx context.Context, o *models.Order) error {
	session, err := r.session()
	if err != nil {
		return err
	}

	if err := session.Query(database.CQLDeleteOrder, o.ID).WithContext(ctx).Exec(); err != nil {
		return classifyOrders(err)
	}
	if err := session.Query(database.CQLDeleteOrderByUser, o.UserID, o.CreatedAt).
		WithContext(ctx).Exec(); err != nil {
		return classifyOrders(err)
	}
	if o.PaymentIntentID != "" {
		if err := session.Query(database.CQLDeleteOrderByIntent, o.PaymentIntentID).
			WithContext(ctx).Exec(); err != nil {
			return classifyOrders(err)
		}
	}
	return nil
}

// scanOrder lit une commande depuis une requête mono-résultat
func scanOrder(q *gocql.Query) (*models.Order, error) {
	var o models.Order
	var itemsJSON, addressJSON, resultJSON string

	err := q.Scan(
		&o.ID, &o.UserID, &itemsJSON, &addressJSON, &o.PaymentMethod,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.IsPaid, &o.PaidAt, &o.IsDelivered, &o.DeliveredAt, &o.Status,
		&o.PaymentIntentID, &resultJSON, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, classifyOrders(err)
	}

	decodeOrderJSON(&o, itemsJSON, addressJSON, resultJSON)
	return &o, nil
}

func scanOrderIter(iter *gocql.Iter) (*models.Order, bool) {
	var o models.Order
	var itemsJSON, addressJSON, resultJSON string

	if !iter.Scan(
		&o.ID, &o.UserID, &itemsJSON, &addressJSON, &o.PaymentMethod,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.IsPaid, &o.PaidAt, &o.IsDelivered, &o.DeliveredAt, &o.Status,
		&o.PaymentIntentID, &resultJSON, &o.CreatedAt, &o.UpdatedAt,
	) {
		return nil, false
	}

	decodeOrderJSON(&o, itemsJSON, addressJSON, resultJSON)
	return &o, true
}

func decodeOrderJSON(o *models.Order, itemsJSON, addressJSON, resultJSON string) {
	if itemsJSON != "" {
		_ = json.Unmarshal([]byte(itemsJSON), &o.Items)
	}
	if addressJSON != "" {
		_ = json.Unmarshal([]byte(addressJSON), &o.ShippingAddress)
	}
	if resultJSON != "" {
		var pr models.PaymentResult
		if json.Unmarshal([]byte(resultJSON), &pr) == nil {
			o.PaymentResult = &pr
		}
	}
}

func classifyOrders(err error) error {
	switch {
	case errors.Is(err, gocql.ErrNotFound):
		return apperr.New(apperr.KindNotFound, "Commande introuvable")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, gocql.ErrTimeoutNoResponse):
		return apperr.Wrap(apperr.KindUpstreamTimeout, "Délai base de données dépassé", err)
	default:
		return apperr.Wrap(apperr.KindUpstreamUnavailable, "Erreur base de données", err)
	}
}
