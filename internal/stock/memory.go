package stock

import (
	"context"
	"sync"
	"time"

	"velora_back_end/internal/apperr"
	"velora_back_end/internal/models"

	"github.com/gocql/gocql"
)

// MemoryLedger est l'implémentation en mémoire du Ledger, utilisée par les
// tests des services qui en dépendent. Mêmes invariants que ScyllaLedger.
type MemoryLedger struct {
	mu        sync.Mutex
	stocks    map[string]int
	movements []models.StockMovement
}

func NewMemoryLedger(stocks map[string]int) *MemoryLedger {
	copied := make(map[string]int, len(stocks))
	for k, v := range stocks {
		copied[k] = v
	}
	return &MemoryLedger{stocks: copied}
}

// Stock retourne le stock courant d'un produit
func (l *MemoryLedger) Stock(productID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stocks[productID]
}

func (l *MemoryLedger) TryReserve(ctx context.Context, productID string, quantity int) (Reservation, error) {
	if quantity <= 0 {
		return Reservation{}, apperr.New(apperr.KindValidation, "Quantité invalide")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.stocks[productID]
	if !ok {
		return Reservation{}, apperr.New(apperr.KindNotFound, "Produit introuvable")
	}
	if current < quantity {
		return Reservation{}, apperr.New(apperr.KindInsufficientStock, "Stock insuffisant")
	}

	l.stocks[productID] = current - quantity
	return Reservation{
		ProductID: productID,
		Quantity:  quantity,
		PrevStock: current,
		NewStock:  current - quantity,
	}, nil
}

func (l *MemoryLedger) Commit(ctx context.Context, r Reservation, orderID string) error {
	l.record("sale", r.ProductID, r.Quantity, r.PrevStock, r.NewStock, orderID)
	return nil
}

func (l *MemoryLedger) Release(ctx context.Context, r Reservation) error {
	l.mu.Lock()
	l.stocks[r.ProductID] += r.Quantity
	l.mu.Unlock()
	l.record("release", r.ProductID, r.Quantity, r.NewStock, r.NewStock+r.Quantity, "")
	return nil
}

func (l *MemoryLedger) Restock(ctx context.Context, productID string, quantity int, orderID string) error {
	l.mu.Lock()
	if _, ok := l.stocks[productID]; !ok {
		l.mu.Unlock()
		return apperr.New(apperr.KindNotFound, "Produit introuvable")
	}
	l.stocks[productID] += quantity
	l.mu.Unlock()
	l.record("return", productID, quantity, 0, 0, orderID)
	return nil
}

func (l *MemoryLedger) Movements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.StockMovement
	for _, m := range l.movements {
		if productID != "" && m.ProductID.String() != productID {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (l *MemoryLedger) record(movType, productID string, quantity, prev, next int, orderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var pid gocql.UUID
	if parsed, err := gocql.ParseUUID(productID); err == nil {
		pid = parsed
	}
	l.movements = append(l.movements, models.StockMovement{
		ID:        gocql.TimeUUID(),
		ProductID: pid,
		Type:      movType,
		Quantity:  quantity,
		PrevStock: prev,
		NewStock:  next,
		OrderID:   orderID,
		CreatedAt: time.Now(),
	})
}
