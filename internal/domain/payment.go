package domain

// PaymentStatus описывает состояние оплаты заказа. Платёж не проводится,
// статус только фиксируется администратором.
type PaymentStatus string

const (
	// PaymentStatusPending: оплата ещё не получена.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid: оплата получена.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed: оплата не прошла.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded: деньги возвращены клиенту.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}
