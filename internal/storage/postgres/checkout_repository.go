package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type checkoutRepository struct {
	db *sql.DB
}

// NewCheckoutRepository создаёт репозиторий оформления заказа: заказ, очистка корзины
// и события outbox пишутся одной транзакцией.
func NewCheckoutRepository(store *Store) domain.CheckoutRepository {
	return &checkoutRepository{db: store.DB()}
}

func (r *checkoutRepository) PlaceOrder(ctx context.Context, cmd domain.PlaceOrderCommand) error {
	return withTx(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		now := time.Now().UTC()

		// Версия проверяется первой: параллельное изменение корзины отменяет оформление.
		if err := bumpCartVersionTx(ctx, tx, cmd.Order.UserID, cmd.CartVersion, now); err != nil {
			return err
		}
		if err := insertOrderTx(ctx, tx, cmd.Order); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, cmd.Order.UserID); err != nil {
			return err
		}
		for _, msg := range cmd.Events {
			if _, err := insertOutboxTx(ctx, tx, msg, now); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ domain.CheckoutRepository = (*checkoutRepository)(nil)
