package checkout

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewOrderNumber формирует номер заказа ORD-<10 символов времени>-<16 случайных символов>.
// Номера монотонны по времени создания и уникальны без обращения к хранилищу.
func NewOrderNumber(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	return "ORD-" + id[:10] + "-" + id[10:]
}
