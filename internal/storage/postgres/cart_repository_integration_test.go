package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestCartRepository_PostgresLifecycle(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewCartRepository(store)
	ctx := context.Background()
	now := time.Now().UTC().Round(time.Microsecond)

	_, err := repo.Get(ctx, "user-1")
	require.ErrorIs(t, err, domain.ErrCartNotFound)

	cart := domain.NewCart("user-1", now)
	require.NoError(t, repo.Create(ctx, cart))
	require.ErrorIs(t, repo.Create(ctx, cart), domain.ErrCartAlreadyExists)

	cart.Lines = append(cart.Lines,
		domain.CartLine{ID: "line-b", ProductID: "2", Quantity: 1, AddedAt: now},
		domain.CartLine{ID: "line-a", ProductID: "1", Quantity: 3, AddedAt: now},
	)
	require.NoError(t, repo.Save(ctx, cart))

	stored, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.Version)
	require.Len(t, stored.Lines, 2)
	require.Equal(t, "line-b", stored.Lines[0].ID, "lines keep insertion order")
	require.Equal(t, int32(3), stored.Lines[1].Quantity)

	// Устаревшая версия отклоняется.
	require.ErrorIs(t, repo.Save(ctx, cart), domain.ErrCartVersionConflict)

	stored.Lines = stored.Lines[:0]
	require.NoError(t, repo.Save(ctx, stored))
	empty, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, empty.IsEmpty())
	require.Equal(t, int64(2), empty.Version)

	require.ErrorIs(t, repo.Save(ctx, domain.NewCart("ghost", now)), domain.ErrCartNotFound)
}

func TestCheckoutRepository_PostgresPlaceOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	carts := NewCartRepository(store)
	orders := NewOrderRepository(store)
	outbox := NewOutboxRepository(store)
	checkout := NewCheckoutRepository(store)
	ctx := context.Background()
	now := time.Now().UTC().Round(time.Microsecond)

	cart := domain.NewCart("user-1", now)
	cart.Lines = []domain.CartLine{{ID: "line-1", ProductID: "1", Quantity: 1, AddedAt: now}}
	require.NoError(t, carts.Create(ctx, cart))

	order := sampleOrder("order-checkout", "user-1", now)
	cmd := domain.PlaceOrderCommand{
		Order:       order,
		CartVersion: 0,
		Events: []domain.OutboxMessage{{
			AggregateType: domain.AggregateOrder,
			AggregateID:   order.ID,
			EventType:     domain.EventOrderCreated,
			Payload:       []byte(`{"id":"order-checkout"}`),
		}},
	}

	stale := cmd
	stale.CartVersion = 7
	require.ErrorIs(t, checkout.PlaceOrder(ctx, stale), domain.ErrCartVersionConflict)
	_, err := orders.Get(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound, "stale checkout must not create the order")

	require.NoError(t, checkout.PlaceOrder(ctx, cmd))

	stored, err := orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.Number, stored.Number)

	cleared, err := carts.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, cleared.IsEmpty())
	require.Equal(t, int64(1), cleared.Version)

	pending, err := outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, domain.EventOrderCreated, pending[0].EventType)

	// Повтор с той же версией корзины конфликтует и не дублирует заказ.
	require.ErrorIs(t, checkout.PlaceOrder(ctx, cmd), domain.ErrCartVersionConflict)
}
