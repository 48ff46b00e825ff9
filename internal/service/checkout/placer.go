package checkout

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CompensatingPlacer оформляет заказ, когда корзины и заказы лежат в разных хранилищах
// (корзины в Redis). Корзина очищается первой с проверкой версии, затем создаётся заказ.
// Если заказ записать не удалось, позиции корзины восстанавливаются.
type CompensatingPlacer struct {
	carts  domain.CartRepository
	orders domain.OrderRepository
	outbox domain.OutboxRepository
	logger *log.Entry
}

// NewCompensatingPlacer создаёт placer для раздельных хранилищ.
func NewCompensatingPlacer(carts domain.CartRepository, orders domain.OrderRepository, outbox domain.OutboxRepository, logger *log.Entry) *CompensatingPlacer {
	if logger == nil {
		logger = log.New().WithField("component", "checkout-placer")
	}
	return &CompensatingPlacer{carts: carts, orders: orders, outbox: outbox, logger: logger}
}

func (p *CompensatingPlacer) PlaceOrder(ctx context.Context, cmd domain.PlaceOrderCommand) error {
	userID := cmd.Order.UserID

	cart, err := p.carts.Get(ctx, userID)
	if err != nil {
		return err
	}
	if cart.Version != cmd.CartVersion {
		return domain.ErrCartVersionConflict
	}

	previous := cart.Clone()
	cleared := cart.Clone()
	cleared.Lines = cleared.Lines[:0]
	if err := p.carts.Save(ctx, cleared); err != nil {
		return err
	}

	if err := p.orders.Create(ctx, cmd.Order); err != nil {
		p.restore(ctx, previous)
		return fmt.Errorf("create order: %w", err)
	}

	for _, msg := range cmd.Events {
		if _, err := p.outbox.Enqueue(ctx, msg); err != nil {
			// Заказ уже создан: событие теряется, но корзину не откатываем.
			p.logger.WithError(err).WithFields(log.Fields{
				"order_id": cmd.Order.ID,
				"event":    msg.EventType,
			}).Error("enqueue checkout event failed")
		}
	}
	return nil
}

// restore возвращает позиции корзины после неудачного создания заказа.
// Если пользователь уже успел изменить корзину, восстановление пропускается.
func (p *CompensatingPlacer) restore(ctx context.Context, previous domain.Cart) {
	logger := p.logger.WithField("user_id", previous.UserID)

	current, err := p.carts.Get(ctx, previous.UserID)
	if err != nil {
		logger.WithError(err).Error("restore cart: reload failed")
		return
	}
	if !current.IsEmpty() || current.Version != previous.Version+1 {
		logger.WithField("version", current.Version).Warn("restore cart skipped: cart changed after clear")
		return
	}

	current.Lines = append(current.Lines[:0], previous.Lines...)
	if err := p.carts.Save(ctx, current); err != nil {
		logger.WithError(err).Error("restore cart failed")
		return
	}
	logger.WithField("lines", len(previous.Lines)).Info("cart restored after failed checkout")
}

var _ domain.CheckoutRepository = (*CompensatingPlacer)(nil)
