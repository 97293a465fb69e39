package payment

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"velora_back_end/internal/apperr"
	"velora_back_end/internal/models"
	"velora_back_end/internal/orders"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"
)

// ---- doubles ----

type fakeGateway struct {
	created *stripe.PaymentIntentParams
	intent  *stripe.PaymentIntent
	err     error
}

func (g *fakeGateway) CreateIntent(_ context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.created = params
	return &stripe.PaymentIntent{
		ID:           "pi_test",
		ClientSecret: "pi_test_secret",
		Amount:       *params.Amount,
		Metadata:     params.Metadata,
	}, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, intentID string) (*stripe.PaymentIntent, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.intent == nil || g.intent.ID != intentID {
		return nil, &stripe.Error{Type: stripe.ErrorTypeInvalidRequest}
	}
	return g.intent, nil
}

type fakeCatalog struct {
	products map[string]*models.Product
}

func (c *fakeCatalog) Product(_ context.Context, productID string) (*models.Product, error) {
	p, ok := c.products[productID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "Produit introuvable")
	}
	return p, nil
}

type fakeSettler struct {
	mu     sync.Mutex
	inputs []orders.SettleInput
	err    error
}

func (s *fakeSettler) SettleIntent(_ context.Context, in orders.SettleInput) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.inputs = append(s.inputs, in)
	return &models.Order{ID: "order-1", UserID: in.UserID, PaymentIntentID: in.IntentID, IsPaid: true}, nil
}

func (s *fakeSettler) calls() []orders.SettleInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]orders.SettleInput(nil), s.inputs...)
}

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemDedup() *memDedup {
	return &memDedup{seen: map[string]bool{}}
}

func (d *memDedup) Acquire(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[eventID] {
		return false, nil
	}
	d.seen[eventID] = true
	return true, nil
}

func (d *memDedup) Release(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	return nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[string]*models.Product{
		"p1": {Name: "Produit A", Price: 25.00, Stock: 5},
		"p2": {Name: "Produit B", Price: 9.90, Stock: 1},
	}}
}

// ---- CreateIntent ----

func TestCreateIntentComputesAmountServerSide(t *testing.T) {
	gw := &fakeGateway{}
	o := NewOrchestrator(gw, testCatalog(), &fakeSettler{})

	// Le client annonce un prix fantaisiste : il doit être ignoré
	items := []models.CartItem{{ProductID: "p1", Price: 0.01, Quantity: 2}}
	handle, err := o.CreateIntent(context.Background(), "user-1", "user@velora.shop", items, 5.00)
	require.NoError(t, err)

	// 2×25.00 + 7% taxe + 5.00 livraison = 58.50 → 5850 centimes
	assert.Equal(t, int64(5850), *gw.created.Amount)
	assert.Equal(t, "eur", *gw.created.Currency)
	assert.Equal(t, 58.50, handle.Amount)
	assert.Equal(t, "pi_test", handle.ID)
	assert.NotEmpty(t, handle.ClientSecret)

	assert.Equal(t, "user-1", gw.created.Metadata["user_id"])
	assert.NotEmpty(t, gw.created.Metadata["correlation_id"])

	var cart []models.CartItem
	require.NoError(t, json.Unmarshal([]byte(gw.created.Metadata["cart"]), &cart))
	require.Len(t, cart, 1)
	assert.Equal(t, 25.00, cart[0].Price)
	assert.Equal(t, "Produit A", cart[0].Name)
}

func TestCreateIntentEmptyCart(t *testing.T) {
	o := NewOrchestrator(&fakeGateway{}, testCatalog(), &fakeSettler{})

	_, err := o.CreateIntent(context.Background(), "user-1", "", nil, 5.00)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateIntentInsufficientStock(t *testing.T) {
	gw := &fakeGateway{}
	o := NewOrchestrator(gw, testCatalog(), &fakeSettler{})

	items := []models.CartItem{{ProductID: "p2", Quantity: 3}}
	_, err := o.CreateIntent(context.Background(), "user-1", "", items, 5.00)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))
	assert.Nil(t, gw.created, "aucun intent ne doit être créé")
}

func TestCreateIntentUnknownProduct(t *testing.T) {
	o := NewOrchestrator(&fakeGateway{}, testCatalog(), &fakeSettler{})

	items := []models.CartItem{{ProductID: "ghost", Quantity: 1}}
	_, err := o.CreateIntent(context.Background(), "user-1", "", items, 5.00)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

// ---- ConfirmAndSettle ----

func succeededIntent(userID string) *stripe.PaymentIntent {
	cart, _ := json.Marshal([]models.CartItem{{ProductID: "p1", Name: "Produit A", Price: 25.00, Quantity: 2}})
	return &stripe.PaymentIntent{
		ID:     "pi_ok",
		Status: stripe.PaymentIntentStatusSucceeded,
		Amount: 5850,
		Metadata: map[string]string{
			"user_id":  userID,
			"email":    "user@velora.shop",
			"cart":     string(cart),
			"shipping": "5.00",
		},
	}
}

func TestConfirmAndSettleVerifiesThenSettles(t *testing.T) {
	gw := &fakeGateway{intent: succeededIntent("user-1")}
	settler := &fakeSettler{}
	o := NewOrchestrator(gw, testCatalog(), settler)

	addr := models.Address{Street: "1 rue de la Paix", City: "Bruxelles", PostalCode: "1000", Country: "BE"}
	order, err := o.ConfirmAndSettle(context.Background(), "pi_ok", "user-1", addr)
	require.NoError(t, err)
	assert.True(t, order.IsPaid)

	calls := settler.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "pi_ok", calls[0].IntentID)
	assert.Equal(t, "user-1", calls[0].UserID)
	assert.Equal(t, int64(5850), calls[0].AmountAuthorized)
	assert.Equal(t, "Bruxelles", calls[0].ShippingAddress.City)
	assert.Equal(t, 5.00, calls[0].ShippingPrice)
}

func TestConfirmAndSettleRefusesUnpaidIntent(t *testing.T) {
	pi := succeededIntent("user-1")
	pi.Status = stripe.PaymentIntentStatusRequiresPaymentMethod
	settler := &fakeSettler{}
	o := NewOrchestrator(&fakeGateway{intent: pi}, testCatalog(), settler)

	_, err := o.ConfirmAndSettle(context.Background(), "pi_ok", "user-1", models.Address{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPaymentNotSuccessful, apperr.KindOf(err))
	assert.Empty(t, settler.calls())
}

func TestConfirmAndSettleRefusesForeignIntent(t *testing.T) {
	o := NewOrchestrator(&fakeGateway{intent: succeededIntent("user-1")}, testCatalog(), &fakeSettler{})

	_, err := o.ConfirmAndSettle(context.Background(), "pi_ok", "user-2", models.Address{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

// ---- Webhook ----

func stubVerify(events map[string]stripe.Event) VerifyFunc {
	return func(payload []byte, sigHeader string) (stripe.Event, error) {
		if sigHeader != "sig-ok" {
			return stripe.Event{}, errors.New("signature invalide")
		}
		event, ok := events[string(payload)]
		if !ok {
			return stripe.Event{}, errors.New("charge inconnue")
		}
		return event, nil
	}
}

func succeededEvent(id string) stripe.Event {
	raw, _ := json.Marshal(succeededIntent("user-1"))
	return stripe.Event{
		ID:   id,
		Type: "payment_intent.succeeded",
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestWebhookSettlesSucceededIntent(t *testing.T) {
	settler := &fakeSettler{}
	events := map[string]stripe.Event{"body": succeededEvent("evt_1")}
	p := NewWebhookProcessor(stubVerify(events), newMemDedup(), settler)

	require.NoError(t, p.Process(context.Background(), []byte("body"), "sig-ok"))

	calls := settler.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "pi_ok", calls[0].IntentID)
	assert.Equal(t, "user-1", calls[0].UserID)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	settler := &fakeSettler{}
	p := NewWebhookProcessor(stubVerify(nil), newMemDedup(), settler)

	err := p.Process(context.Background(), []byte("body"), "sig-ko")
	require.Error(t, err)
	assert.Equal(t, apperr.KindWebhookSignature, apperr.KindOf(err))
	assert.Empty(t, settler.calls())
}

func TestWebhookIgnoresDuplicateEvent(t *testing.T) {
	settler := &fakeSettler{}
	events := map[string]stripe.Event{"body": succeededEvent("evt_dup")}
	p := NewWebhookProcessor(stubVerify(events), newMemDedup(), settler)

	require.NoError(t, p.Process(context.Background(), []byte("body"), "sig-ok"))
	require.NoError(t, p.Process(context.Background(), []byte("body"), "sig-ok"))

	assert.Len(t, settler.calls(), 1, "la relivraison du même événement ne doit pas rerégler")
}

func TestWebhookAcksUnknownEventType(t *testing.T) {
	settler := &fakeSettler{}
	events := map[string]stripe.Event{"body": {ID: "evt_x", Type: "charge.refunded", Data: &stripe.EventData{Raw: []byte("{}")}}}
	p := NewWebhookProcessor(stubVerify(events), newMemDedup(), settler)

	require.NoError(t, p.Process(context.Background(), []byte("body"), "sig-ok"))
	assert.Empty(t, settler.calls())
}

func TestWebhookAcksFailedIntentWithoutSettling(t *testing.T) {
	settler := &fakeSettler{}
	raw, _ := json.Marshal(&stripe.PaymentIntent{ID: "pi_fail"})
	events := map[string]stripe.Event{"body": {ID: "evt_f", Type: "payment_intent.payment_failed", Data: &stripe.EventData{Raw: raw}}}
	p := NewWebhookProcessor(stubVerify(events), newMemDedup(), settler)

	require.NoError(t, p.Process(context.Background(), []byte("body"), "sig-ok"))
	assert.Empty(t, settler.calls())
}

func TestWebhookReleaseDedupOnSettleFailure(t *testing.T) {
	settler := &fakeSettler{err: errors.New("base indisponible")}
	dedup := newMemDedup()
	events := map[string]stripe.Event{"body": succeededEvent("evt_retry")}
	p := NewWebhookProcessor(stubVerify(events), dedup, settler)

	// Échec métier : acquitté quand même, mais la marque est libérée
	require.NoError(t, p.Process(context.Background(), []byte("body"), "sig-ok"))
	assert.False(t, dedup.seen["evt_retry"])

	// La relivraison retrouve un système sain et règle
	settler.err = nil
	require.NoError(t, p.Process(context.Background(), []byte("body"), "sig-ok"))
	assert.Len(t, settler.calls(), 1)
}

func TestWebhookAcksIntentWithoutMetadata(t *testing.T) {
	settler := &fakeSettler{}
	raw, _ := json.Marshal(&stripe.PaymentIntent{ID: "pi_ext", Status: stripe.PaymentIntentStatusSucceeded})
	events := map[string]stripe.Event{"body": {ID: "evt_ext", Type: "payment_intent.succeeded", Data: &stripe.EventData{Raw: raw}}}
	p := NewWebhookProcessor(stubVerify(events), newMemDedup(), settler)

	require.NoError(t, p.Process(context.Background(), []byte("body"), "sig-ok"))
	assert.Empty(t, settler.calls())
}
