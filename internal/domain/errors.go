package domain

import "errors"

var (
	// Ошибка некорректного количества товара в корзине.
	ErrQuantityInvalid = errors.New("quantity must be at least 1")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product id is required")
	// Ошибка отсутствующего названия товара.
	ErrTitleRequired = errors.New("product title is required")
	// Ошибка отрицательной цены товара.
	ErrPriceNegative = errors.New("price must be non-negative")
	// Ошибка отрицательного остатка на складе.
	ErrStockNegative = errors.New("stock quantity must be non-negative")
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserIDRequired = errors.New("user id is required")
	// Ошибка неизвестного статуса заказа.
	ErrStatusInvalid = errors.New("invalid order status")
	// Ошибка неизвестного статуса оплаты.
	ErrPaymentStatusInvalid = errors.New("invalid payment status")
	// Ошибка пустого запроса на изменение статуса.
	ErrStatusUpdateEmpty = errors.New("status or paymentStatus is required")
	// Ошибка отсутствия позиций в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка несоответствия итоговой суммы заказа слагаемым.
	ErrTotalMismatch = errors.New("order total does not match lines, shipping and tax")

	// ErrUnknownProduct: в корзину добавляют товар, которого нет в каталоге.
	ErrUnknownProduct = errors.New("product does not exist")

	// ErrEmptyCart возвращается при попытке оформить заказ из пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrUnauthenticated: запрос без токена или с токеном, который не удалось разобрать.
	ErrUnauthenticated = errors.New("no token, authorization denied")
	// ErrTokenInvalid: подпись или формат токена некорректны.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired: срок действия токена истёк.
	ErrTokenExpired = errors.New("token expired")
	// ErrUserInactive: пользователь не найден или деактивирован.
	ErrUserInactive = errors.New("user not found or inactive")
	// ErrForbidden: у актора нет прав на операцию.
	ErrForbidden = errors.New("access denied")

	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrCartNotFound возвращается, если у пользователя ещё нет корзины.
	ErrCartNotFound = errors.New("cart not found")
	// ErrCartLineNotFound возвращается, если в корзине нет позиции с таким id.
	ErrCartLineNotFound = errors.New("cart item not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")

	// ErrCartAlreadyExists: корзина пользователя уже создана параллельным запросом.
	ErrCartAlreadyExists = errors.New("cart already exists")
	// ErrCartVersionConflict сигнализирует о конфликте версий корзины при сохранении.
	ErrCartVersionConflict = errors.New("cart was modified concurrently")
	// ErrOrderVersionConflict сигнализирует о конфликте версий заказа при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOrderAlreadyExists: заказ с таким id или номером уже сохранён.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrInvalidTransition: переход статуса заказа запрещён машиной состояний.
	ErrInvalidTransition = errors.New("order status transition is not allowed")

	// ErrIdempotencyKeyRequired: пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired: пустой хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists: ключ уже использован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch: ключ использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key is already used with different request payload")
	// ErrIdempotencyKeyNotFound: запись по ключу не найдена.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyInProgress: запрос с тем же ключом ещё обрабатывается.
	ErrIdempotencyInProgress = errors.New("request with the same idempotency key is already processing")

	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ErrorKind группирует ошибки по классам, которые транспорт переводит в коды ответа.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
)

var kindTable = []struct {
	kind ErrorKind
	errs []error
}{
	{KindValidation, []error{
		ErrQuantityInvalid, ErrProductIDRequired, ErrTitleRequired, ErrPriceNegative,
		ErrStockNegative, ErrUserIDRequired, ErrStatusInvalid, ErrPaymentStatusInvalid,
		ErrStatusUpdateEmpty, ErrItemsRequired, ErrEmptyCart, ErrUnknownProduct, ErrIdempotencyKeyRequired,
		ErrTimelineEventInvalid,
	}},
	{KindUnauthenticated, []error{ErrUnauthenticated, ErrTokenInvalid, ErrTokenExpired, ErrUserInactive}},
	{KindForbidden, []error{ErrForbidden}},
	{KindNotFound, []error{
		ErrProductNotFound, ErrCartNotFound, ErrCartLineNotFound, ErrOrderNotFound, ErrUserNotFound,
	}},
	{KindConflict, []error{
		ErrCartVersionConflict, ErrOrderVersionConflict, ErrCartAlreadyExists, ErrOrderAlreadyExists,
		ErrInvalidTransition, ErrIdempotencyHashMismatch, ErrIdempotencyInProgress,
	}},
}

// KindOf классифицирует ошибку. Всё, что не распознано, считается внутренней ошибкой.
func KindOf(err error) ErrorKind {
	kind, _ := Classify(err)
	return kind
}

// Classify возвращает класс ошибки и сентинел, по которому она распознана.
func Classify(err error) (ErrorKind, error) {
	if err == nil {
		return KindInternal, nil
	}
	for _, group := range kindTable {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.kind, target
			}
		}
	}
	return KindInternal, nil
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий корзины или заказа.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrCartVersionConflict) || errors.Is(err, ErrOrderVersionConflict)
}
