package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:     "order-1",
		Number: "ORD-01HZX0000A-0000000000000000",
		UserID: "user-1",
		Items: []domain.OrderItem{
			{
				ID:            "item-1",
				ProductID:     "product-1",
				Title:         "Headphones",
				PriceMinor:    5000,
				Qty:           2,
				SubtotalMinor: 10000,
			},
		},
		SubtotalMinor: 10000,
		ShippingMinor: 999,
		TaxMinor:      800,
		TotalMinor:    11799,
		PaymentMethod: domain.DefaultPaymentMethod,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
	if order.ItemCount() != 2 {
		t.Fatalf("expected item count 2, got %d", order.ItemCount())
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no user",
			mut: func(o *domain.Order) {
				o.UserID = ""
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Qty = 0
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Items[0].PriceMinor = -5
			},
		},
		{
			name: "total mismatch",
			mut: func(o *domain.Order) {
				o.TotalMinor = 999
			},
		},
		{
			name: "unknown status",
			mut: func(o *domain.Order) {
				o.Status = "lost"
			},
		},
		{
			name: "unknown payment status",
			mut: func(o *domain.Order) {
				o.PaymentStatus = "authorized"
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)

			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to domain.OrderStatus
		want     bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusConfirmed, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusShipped, false},
		{domain.OrderStatusConfirmed, domain.OrderStatusShipped, true},
		{domain.OrderStatusConfirmed, domain.OrderStatusCancelled, true},
		{domain.OrderStatusShipped, domain.OrderStatusDelivered, true},
		{domain.OrderStatusShipped, domain.OrderStatusCancelled, false},
		{domain.OrderStatusDelivered, domain.OrderStatusPending, false},
		{domain.OrderStatusCancelled, domain.OrderStatusConfirmed, false},
		{domain.OrderStatusDelivered, domain.OrderStatusDelivered, true},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
				t.Fatalf("CanTransitionTo=%v, want %v", got, tc.want)
			}
		})
	}

	if !domain.OrderStatusDelivered.Terminal() || !domain.OrderStatusCancelled.Terminal() {
		t.Fatal("delivered and cancelled must be terminal")
	}
	if domain.OrderStatusShipped.Terminal() {
		t.Fatal("shipped must not be terminal")
	}
}

func TestPaymentStatusValid(t *testing.T) {
	for _, s := range []domain.PaymentStatus{
		domain.PaymentStatusPending, domain.PaymentStatusPaid,
		domain.PaymentStatusFailed, domain.PaymentStatusRefunded,
	} {
		if !s.Valid() {
			t.Fatalf("status %q should be valid", s)
		}
	}
	if domain.PaymentStatus("captured").Valid() {
		t.Fatal("captured must not be valid")
	}
}
