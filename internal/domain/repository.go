package domain

import "context"

// ProductRepository описывает требования к хранилищу каталога.
type ProductRepository interface {
	// List возвращает все товары в порядке создания.
	List(ctx context.Context) ([]Product, error)
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// Create сохраняет новый товар.
	Create(ctx context.Context, product Product) error
	// Update перезаписывает товар или возвращает ErrProductNotFound.
	Update(ctx context.Context, product Product) error
	// Delete удаляет товар или возвращает ErrProductNotFound.
	Delete(ctx context.Context, id string) error
	// Count возвращает количество товаров (для первичного наполнения каталога).
	Count(ctx context.Context) (int, error)
}

// CartRepository описывает хранилище корзин с optimistic locking.
type CartRepository interface {
	// Get возвращает корзину пользователя или ErrCartNotFound.
	Get(ctx context.Context, userID string) (Cart, error)
	// Create сохраняет новую корзину; ErrCartAlreadyExists, если она уже есть.
	Create(ctx context.Context, cart Cart) error
	// Save перезаписывает корзину, если версия совпадает, и увеличивает её.
	// Иначе возвращает ErrCartVersionConflict.
	Save(ctx context.Context, cart Cart) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. ErrOrderAlreadyExists при дубле id или номера.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// List возвращает все заказы, новые первыми.
	List(ctx context.Context, limit int) ([]Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
}

// UserRepository: доступ к пользователям (только чтение плюс служебный Upsert).
type UserRepository interface {
	Get(ctx context.Context, id string) (User, error)
	Upsert(ctx context.Context, user User) error
}

// PlaceOrderCommand: всё, что должно быть записано одной единицей работы при оформлении.
type PlaceOrderCommand struct {
	Order Order
	// CartVersion: версия корзины, из которой собран заказ. Несовпадение отменяет оформление.
	CartVersion int64
	Events      []OutboxMessage
}

// CheckoutRepository атомарно создаёт заказ, очищает корзину и ставит события в outbox.
type CheckoutRepository interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) error
}
