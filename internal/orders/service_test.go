package orders

import (
	"context"
	"sync"
	"testing"

	"velora_back_end/internal/apperr"
	"velora_back_end/internal/cart"
	"velora_back_end/internal/models"
	"velora_back_end/internal/stock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- doubles ---

type memOrdersRepo struct {
	mu      sync.Mutex
	orders  map[string]*models.Order
	intents map[string]string // intentID → orderID
}

func newMemOrdersRepo() *memOrdersRepo {
	return &memOrdersRepo{orders: map[string]*models.Order{}, intents: map[string]string{}}
}

func (r *memOrdersRepo) Insert(ctx context.Context, o *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *o
	r.orders[o.ID] = &copied
	return nil
}

func (r *memOrdersRepo) ByID(ctx context.Context, orderID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "Commande introuvable")
	}
	copied := *o
	return &copied, nil
}

func (r *memOrdersRepo) ByUser(ctx context.Context, userID string) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memOrdersRepo) All(ctx context.Context, limit int) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		out = append(out, *o)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memOrdersRepo) ByIntent(ctx context.Context, intentID string) (*models.Order, error) {
	r.mu.Lock()
	oid, ok := r.intents[intentID]
	r.mu.Unlock()
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "Commande introuvable")
	}
	return r.ByID(ctx, oid)
}

func (r *memOrdersRepo) ClaimIntent(ctx context.Context, intentID, orderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.intents[intentID]; ok {
		return false, nil
	}
	r.intents[intentID] = orderID
	return true, nil
}

func (r *memOrdersRepo) ReleaseIntent(ctx context.Context, intentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.intents, intentID)
	return nil
}

func (r *memOrdersRepo) Update(ctx context.Context, o *models.Order) error {
	return r.Insert(ctx, o)
}

func (r *memOrdersRepo) Delete(ctx context.Context, o *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, o.ID)
	if o.PaymentIntentID != "" {
		delete(r.intents, o.PaymentIntentID)
	}
	return nil
}

type fakeCatalog struct {
	products map[string]*models.Product
}

func (c *fakeCatalog) Product(ctx context.Context, productID string) (*models.Product, error) {
	p, ok := c.products[productID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "Produit introuvable")
	}
	copied := *p
	return &copied, nil
}

type memCartRepo struct {
	mu    sync.Mutex
	carts map[string][]models.CartItem
}

func (r *memCartRepo) Get(ctx context.Context, userID string) ([]models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.carts[userID], nil
}

func (r *memCartRepo) Save(ctx context.Context, userID string, items []models.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[userID] = items
	return nil
}

func (r *memCartRepo) Delete(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *memOrdersRepo
	ledger   *stock.MemoryLedger
	cartRepo *memCartRepo
}

func newFixture(stocks map[string]int, products map[string]*models.Product) *fixture {
	repo := newMemOrdersRepo()
	ledger := stock.NewMemoryLedger(stocks)
	cat := &fakeCatalog{products: products}
	cartRepo := &memCartRepo{carts: map[string][]models.CartItem{}}
	carts := cart.NewStore(cartRepo, cat)
	return &fixture{
		svc:      NewService(repo, ledger, cat, carts),
		repo:     repo,
		ledger:   ledger,
		cartRepo: cartRepo,
	}
}

func declaredPrices(items []models.OrderItem, shipping float64) (float64, float64, float64) {
	var ip float64
	for _, it := range items {
		ip += it.Price * float64(it.Quantity)
	}
	tax := ip * 0.07
	return ip, tax, ip + tax + shipping
}

// --- tests ---

func TestCreateReservesAndPersists(t *testing.T) {
	f := newFixture(
		map[string]int{"a": 5},
		map[string]*models.Product{"a": {Name: "Produit A", Price: 10.00, Stock: 5}},
	)
	items := []models.OrderItem{{ProductID: "a", Quantity: 3, Price: 10.00}}
	ip, tax, total := declaredPrices(items, 5.00)

	order, err := f.svc.Create(context.Background(), "u1", CreateInput{
		Items:         items,
		PaymentMethod: "card",
		ItemsPrice:    ip,
		TaxPrice:      tax,
		ShippingPrice: 5.00,
		TotalPrice:    total,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, f.ledger.Stock("a"))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 30.00, order.ItemsPrice)
	assert.Equal(t, 2.10, order.TaxPrice)
	assert.Equal(t, 37.10, order.TotalPrice)
	assert.Equal(t, "Produit A", order.Items[0].Name)

	stored, err := f.repo.ByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.TotalPrice, stored.TotalPrice)
}

func TestCreateAllOrNothing(t *testing.T) {
	// un article valide + un article en rupture : échec total,
	// le stock de l'article valide ne bouge pas
	f := newFixture(
		map[string]int{"a": 5, "b": 0},
		map[string]*models.Product{
			"a": {Name: "Produit A", Price: 10.00, Stock: 5},
			"b": {Name: "Produit B", Price: 25.00, Stock: 0},
		},
	)
	items := []models.OrderItem{
		{ProductID: "a", Quantity: 2, Price: 10.00},
		{ProductID: "b", Quantity: 1, Price: 25.00},
	}
	ip, tax, total := declaredPrices(items, 0)

	_, err := f.svc.Create(context.Background(), "u1", CreateInput{
		Items:      items,
		ItemsPrice: ip, TaxPrice: tax, TotalPrice: total,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))

	// aucune réservation partielle ne persiste
	assert.Equal(t, 5, f.ledger.Stock("a"))
	assert.Equal(t, 0, f.ledger.Stock("b"))
	assert.Empty(t, f.repo.orders)
}

func TestCreateRejectsInconsistentPrices(t *testing.T) {
	f := newFixture(
		map[string]int{"a": 5},
		map[string]*models.Product{"a": {Name: "Produit A", Price: 10.00, Stock: 5}},
	)

	_, err := f.svc.Create(context.Background(), "u1", CreateInput{
		Items:      []models.OrderItem{{ProductID: "a", Quantity: 1, Price: 10.00}},
		ItemsPrice: 10.00,
		TaxPrice:   0.70,
		TotalPrice: 99.99, // ne correspond pas à items + taxe + livraison
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, 5, f.ledger.Stock("a"))
}

func TestGetByIDOwnerOrAdmin(t *testing.T) {
	f := newFixture(map[string]int{}, map[string]*models.Product{})
	ctx := context.Background()
	require.NoError(t, f.repo.Insert(ctx, &models.Order{ID: "o1", UserID: "u1"}))

	_, err := f.svc.GetByID(ctx, "o1", "u1", "customer")
	assert.NoError(t, err)

	_, err = f.svc.GetByID(ctx, "o1", "admin-user", RoleAdmin)
	assert.NoError(t, err)

	_, err = f.svc.GetByID(ctx, "o1", "u2", "customer")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestMarkPaidIdempotent(t *testing.T) {
	f := newFixture(map[string]int{}, map[string]*models.Product{})
	ctx := context.Background()
	require.NoError(t, f.repo.Insert(ctx, &models.Order{
		ID: "o1", UserID: "u1", Status: models.OrderStatusPending,
	}))

	result := models.PaymentResult{TransactionID: "pi_123", Status: "succeeded"}

	o1, err := f.svc.MarkPaid(ctx, "o1", result, "u1", "customer")
	require.NoError(t, err)
	assert.True(t, o1.IsPaid)
	assert.NotNil(t, o1.PaidAt)
	assert.Equal(t, models.OrderStatusProcessing, o1.Status)

	// rejouer le même identifiant de transaction est un no-op
	o2, err := f.svc.MarkPaid(ctx, "o1", result, "u1", "customer")
	require.NoError(t, err)
	assert.Equal(t, o1.PaidAt.Unix(), o2.PaidAt.Unix())

	// un autre identifiant sur une commande payée est refusé
	_, err = f.svc.MarkPaid(ctx, "o1", models.PaymentResult{TransactionID: "pi_456"}, "u1", "customer")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSetStatusMachine(t *testing.T) {
	f := newFixture(map[string]int{}, map[string]*models.Product{})
	ctx := context.Background()
	require.NoError(t, f.repo.Insert(ctx, &models.Order{
		ID: "o1", UserID: "u1", IsPaid: true, Status: models.OrderStatusPending,
	}))

	// saut direct pending → delivered refusé
	_, err := f.svc.SetStatus(ctx, "o1", models.OrderStatusDelivered)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// chemin nominal
	for _, next := range []string{models.OrderStatusProcessing, models.OrderStatusShipped, models.OrderStatusDelivered} {
		_, err := f.svc.SetStatus(ctx, "o1", next)
		require.NoError(t, err, "transition vers %s", next)
	}

	o, err := f.repo.ByID(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, o.IsDelivered)
	assert.NotNil(t, o.DeliveredAt)

	// plus d'annulation après livraison
	_, err = f.svc.SetStatus(ctx, "o1", models.OrderStatusCancelled)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// statut hors énumération
	_, err = f.svc.SetStatus(ctx, "o1", "expédiée")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSetStatusCancelBeforeDelivery(t *testing.T) {
	f := newFixture(map[string]int{}, map[string]*models.Product{})
	ctx := context.Background()
	require.NoError(t, f.repo.Insert(ctx, &models.Order{
		ID: "o1", UserID: "u1", Status: models.OrderStatusShipped,
	}))

	o, err := f.svc.SetStatus(ctx, "o1", models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, o.Status)
}

func TestMarkDeliveredRequiresPayment(t *testing.T) {
	f := newFixture(map[string]int{}, map[string]*models.Product{})
	ctx := context.Background()
	require.NoError(t, f.repo.Insert(ctx, &models.Order{
		ID: "o1", UserID: "u1", Status: models.OrderStatusPending,
	}))

	_, err := f.svc.MarkDelivered(ctx, "o1")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDeleteRestoresStock(t *testing.T) {
	f := newFixture(
		map[string]int{"a": 5},
		map[string]*models.Product{"a": {Name: "Produit A", Price: 10.00, Stock: 5}},
	)
	ctx := context.Background()
	items := []models.OrderItem{{ProductID: "a", Quantity: 3, Price: 10.00}}
	ip, tax, total := declaredPrices(items, 0)

	order, err := f.svc.Create(ctx, "u1", CreateInput{
		Items: items, ItemsPrice: ip, TaxPrice: tax, TotalPrice: total,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, f.ledger.Stock("a"))

	require.NoError(t, f.svc.Delete(ctx, order.ID))
	assert.Equal(t, 5, f.ledger.Stock("a"))

	_, err = f.repo.ByID(ctx, order.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
