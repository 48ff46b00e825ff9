package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CheckoutRepository выполняет оформление заказа под блокировками всех
// задействованных хранилищ: либо записаны заказ, очистка корзины и события, либо ничего.
type CheckoutRepository struct {
	carts  *CartRepository
	orders *OrderRepository
	outbox *OutboxRepository
}

// NewCheckoutRepository связывает in-memory хранилища в одну единицу работы.
func NewCheckoutRepository(carts *CartRepository, orders *OrderRepository, outbox *OutboxRepository) *CheckoutRepository {
	return &CheckoutRepository{carts: carts, orders: orders, outbox: outbox}
}

// PlaceOrder сохраняет заказ и очищает корзину при совпадении её версии.
func (r *CheckoutRepository) PlaceOrder(_ context.Context, cmd domain.PlaceOrderCommand) error {
	// Порядок захвата фиксирован: корзины, заказы, outbox.
	r.carts.mu.Lock()
	defer r.carts.mu.Unlock()
	r.orders.mu.Lock()
	defer r.orders.mu.Unlock()
	r.outbox.mu.Lock()
	defer r.outbox.mu.Unlock()

	cart, ok := r.carts.items[cmd.Order.UserID]
	if !ok {
		return domain.ErrCartNotFound
	}
	if cart.Version != cmd.CartVersion {
		return domain.ErrCartVersionConflict
	}
	if _, exists := r.orders.items[cmd.Order.ID]; exists {
		return domain.ErrOrderAlreadyExists
	}
	if _, exists := r.orders.byNumber[cmd.Order.Number]; exists {
		return domain.ErrOrderAlreadyExists
	}

	now := time.Now().UTC()
	if err := r.orders.createLocked(cmd.Order); err != nil {
		return err
	}
	cart.Lines = []domain.CartLine{}
	if err := r.carts.saveLocked(cart, now); err != nil {
		return err
	}
	for _, msg := range cmd.Events {
		r.outbox.enqueueLocked(msg, now)
	}
	return nil
}

var _ domain.CheckoutRepository = (*CheckoutRepository)(nil)
