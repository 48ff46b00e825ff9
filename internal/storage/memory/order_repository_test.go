package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newOrder(id, userID string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:     id,
		Number: "ORD-" + id,
		UserID: userID,
		Items: []domain.OrderItem{
			{ID: "item-" + id, ProductID: "p1", Title: "Mouse", PriceMinor: 2500, Qty: 2, SubtotalMinor: 5000},
		},
		SubtotalMinor: 5000,
		ShippingMinor: 999,
		TaxMinor:      400,
		TotalMinor:    6399,
		PaymentMethod: domain.DefaultPaymentMethod,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "user-1", time.Now().UTC())

	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Number != order.Number || len(stored.Items) != 1 {
		t.Fatalf("unexpected stored order: %+v", stored)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	dup := newOrder("order-2", "user-1", time.Now().UTC())
	dup.Number = order.Number
	if err := repo.Create(ctx, dup); !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("expected duplicate number to be rejected, got %v", err)
	}
}

func TestOrderRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	base := time.Now().UTC()

	for i, spec := range []struct{ id, user string }{
		{"o1", "user-1"}, {"o2", "user-2"}, {"o3", "user-1"},
	} {
		if err := repo.Create(ctx, newOrder(spec.id, spec.user, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	all, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "o3" || all[2].ID != "o1" {
		t.Fatalf("unexpected order of all orders: %v", ids(all))
	}

	own, err := repo.ListByUser(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("list by user failed: %v", err)
	}
	if len(own) != 2 || own[0].ID != "o3" {
		t.Fatalf("unexpected user orders: %v", ids(own))
	}

	limited, _ := repo.List(ctx, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit 1, got %d", len(limited))
	}
}

func TestOrderRepository_Save(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "user-1", time.Now().UTC())
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, _ := repo.Get(ctx, order.ID)
	stored.Status = domain.OrderStatusConfirmed
	stored.TotalMinor = 1
	if err := repo.Save(ctx, stored); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	updated, _ := repo.Get(ctx, order.ID)
	if updated.Version != 1 {
		t.Fatalf("expected version 1, got %d", updated.Version)
	}
	if updated.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", updated.Status)
	}
	if updated.TotalMinor != order.TotalMinor {
		t.Fatal("totals must not change on save")
	}

	// Старая версия должна получить конфликт.
	if err := repo.Save(ctx, stored); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func ids(orders []domain.Order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID)
	}
	return out
}
