package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrTimelineEventInvalid: у события истории нет заказа или типа.
var ErrTimelineEventInvalid = errors.New("timeline event requires order id and type")

// TimelineEvent описывает запись в истории заказа (создание, смена статуса или оплаты).
// ActorID хранит пользователя, инициировавшего изменение.
type TimelineEvent struct {
	OrderID  string
	Type     string
	ActorID  string
	Reason   string
	Occurred time.Time
}

// Validate проверяет обязательные поля события.
func (e TimelineEvent) Validate() error {
	if strings.TrimSpace(e.OrderID) == "" || strings.TrimSpace(e.Type) == "" {
		return ErrTimelineEventInvalid
	}
	return nil
}
