package stock

import (
	"context"
	"sync"
	"testing"

	"velora_back_end/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryReserveInsufficient(t *testing.T) {
	l := NewMemoryLedger(map[string]int{"p1": 5})

	_, err := l.TryReserve(context.Background(), "p1", 6)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))
	// le stock ne bouge pas sur un refus
	assert.Equal(t, 5, l.Stock("p1"))
}

func TestTryReserveUnknownProduct(t *testing.T) {
	l := NewMemoryLedger(nil)

	_, err := l.TryReserve(context.Background(), "inconnu", 1)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestReserveThenRelease(t *testing.T) {
	l := NewMemoryLedger(map[string]int{"p1": 5})
	ctx := context.Background()

	r, err := l.TryReserve(ctx, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Stock("p1"))
	assert.Equal(t, 5, r.PrevStock)
	assert.Equal(t, 2, r.NewStock)

	require.NoError(t, l.Release(ctx, r))
	assert.Equal(t, 5, l.Stock("p1"))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	// 40 clients se disputent 10 unités : au plus 10 réservations passent,
	// le stock ne devient jamais négatif.
	l := NewMemoryLedger(map[string]int{"p1": 10})
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.TryReserve(ctx, "p1", 1); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted)
	assert.Equal(t, 0, l.Stock("p1"))
	assert.GreaterOrEqual(t, l.Stock("p1"), 0)
}

func TestRestockAfterDeletion(t *testing.T) {
	l := NewMemoryLedger(map[string]int{"p1": 4})
	ctx := context.Background()

	r, err := l.TryReserve(ctx, "p1", 4)
	require.NoError(t, err)
	require.NoError(t, l.Commit(ctx, r, "order-1"))
	assert.Equal(t, 0, l.Stock("p1"))

	require.NoError(t, l.Restock(ctx, "p1", 4, "order-1"))
	assert.Equal(t, 4, l.Stock("p1"))

	movements, err := l.Movements(ctx, "", 10)
	require.NoError(t, err)
	var types []string
	for _, m := range movements {
		types = append(types, m.Type)
	}
	assert.Equal(t, []string{"sale", "return"}, types)
}
