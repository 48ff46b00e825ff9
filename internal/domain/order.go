package domain

import "time"

// OrderStatus описывает жизненный цикл исполнения заказа.
type OrderStatus string

const (
	// OrderStatusPending: заказ создан и ждёт подтверждения.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed: заказ подтверждён магазином.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipped: заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered: заказ получен клиентом.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled: заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что из статуса нет переходов.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo проверяет ребро машины состояний. Переход в тот же статус разрешён.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ShippingAddress: адрес доставки, все поля необязательны.
type ShippingAddress struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

// DefaultPaymentMethod используется, если клиент не передал способ оплаты.
const DefaultPaymentMethod = "credit_card"

// OrderItem: неизменяемый снимок позиции корзины на момент оформления.
type OrderItem struct {
	ID            string
	ProductID     string
	Title         string
	PriceMinor    int64
	Qty           int32
	SubtotalMinor int64
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID              string
	Number          string
	UserID          string
	Items           []OrderItem
	SubtotalMinor   int64
	ShippingMinor   int64
	TaxMinor        int64
	TotalMinor      int64
	ShippingAddress ShippingAddress
	PaymentMethod   string
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	IdempotencyKey  string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserIDRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrStatusInvalid)
	}
	if !o.PaymentStatus.Valid() {
		errs = append(errs, ErrPaymentStatusInvalid)
	}

	// Сверяем итог: сумма позиций + доставка + налог.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrQuantityInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrPriceNegative)
		}
		calc += int64(item.Qty) * item.PriceMinor
	}
	if calc != o.SubtotalMinor || o.SubtotalMinor+o.ShippingMinor+o.TaxMinor != o.TotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// ItemCount возвращает суммарное количество единиц товара.
func (o *Order) ItemCount() int {
	var n int
	for _, item := range o.Items {
		n += int(item.Qty)
	}
	return n
}

// OrderOwner: публичные данные владельца заказа для ответа API.
type OrderOwner struct {
	FirstName string
	LastName  string
	Email     string
}

// OrderView: заказ вместе с данными владельца.
type OrderView struct {
	Order Order
	Owner OrderOwner
}
