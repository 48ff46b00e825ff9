// Package checkout превращает корзину в заказ и управляет статусами заказов.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/retry"
)

// CreateOrderInput: данные, которые клиент передаёт при оформлении.
// Цены и состав берутся только из корзины и каталога.
type CreateOrderInput struct {
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
	IdempotencyKey  string
}

// StatusUpdate: изменение статусов заказа администратором. nil означает «не менять».
type StatusUpdate struct {
	Status        *domain.OrderStatus
	PaymentStatus *domain.PaymentStatus
}

// Dependencies: хранилища, с которыми работает сервис.
type Dependencies struct {
	Carts    domain.CartRepository
	Products domain.ProductRepository
	Orders   domain.OrderRepository
	Users    domain.UserRepository
	Timeline domain.TimelineRepository
	Outbox   domain.OutboxRepository
	Placer   domain.CheckoutRepository
}

// Service: оркестратор оформления заказов.
type Service struct {
	deps               Dependencies
	logger             *log.Entry
	metrics            *metrics.CheckoutMetrics
	retry              retry.Config
	enforceTransitions bool
	lookupLimit        int
	listLimit          int
	now                func() time.Time
	newNumber          func(time.Time) string
}

// Option настраивает Service.
type Option func(*Service)

func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEnforcedTransitions включает проверку переходов статусов по машине состояний.
func WithEnforcedTransitions(enabled bool) Option {
	return func(s *Service) {
		s.enforceTransitions = enabled
	}
}

func WithRetryConfig(cfg retry.Config) Option {
	return func(s *Service) {
		s.retry = cfg
	}
}

// WithListLimit ограничивает количество заказов в списке (0: без ограничения).
func WithListLimit(limit int) Option {
	return func(s *Service) {
		if limit >= 0 {
			s.listLimit = limit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOrderNumberGenerator подменяет генератор номеров (тесты).
func WithOrderNumberGenerator(gen func(time.Time) string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newNumber = gen
		}
	}
}

// NewService создаёт оркестратор. Placer обязателен: он определяет атомарность оформления.
func NewService(deps Dependencies, logger *log.Entry, opts ...Option) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	s := &Service{
		deps:        deps,
		logger:      logger,
		retry:       retry.DefaultConfig(),
		lookupLimit: 8,
		now:         func() time.Time { return time.Now().UTC() },
		newNumber:   NewOrderNumber,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder оформляет заказ из корзины актора.
func (s *Service) CreateOrder(ctx context.Context, actor domain.Actor, input CreateOrderInput) (domain.OrderView, error) {
	if actor.UserID == "" {
		return domain.OrderView{}, domain.ErrUnauthenticated
	}

	started := s.now()
	if s.metrics != nil {
		s.metrics.RecordCheckoutStarted()
		defer func() { s.metrics.RecordCheckoutFinished(time.Since(started)) }()
	}

	logger := s.logger.WithField("user_id", actor.UserID)

	var order domain.Order
	err := retry.OnConflict(ctx, s.retry, logger, "checkout.create_order", func(attempt int) error {
		if attempt > 1 && s.metrics != nil {
			s.metrics.RecordVersionRetry("cart")
		}
		placed, err := s.placeOnce(ctx, actor.UserID, input)
		if err != nil {
			return err
		}
		order = placed
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordCheckoutFailed(kindLabel(err))
		}
		if domain.KindOf(err) == domain.KindInternal {
			logger.WithError(err).Error("checkout failed")
		}
		return domain.OrderView{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderPlaced(order.TotalMinor)
		s.metrics.RecordOutboxEvent()
	}
	s.appendTimeline(ctx, domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     domain.EventOrderCreated,
		ActorID:  actor.UserID,
		Reason:   order.Number,
		Occurred: order.CreatedAt,
	})

	logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.Number,
		"total_minor":  order.TotalMinor,
		"items":        order.ItemCount(),
	}).Info("order placed")

	return domain.OrderView{Order: order, Owner: s.owner(ctx, actor.UserID)}, nil
}

// placeOnce делает одну попытку: читает корзину, пересчитывает цены и атомарно пишет заказ.
func (s *Service) placeOnce(ctx context.Context, userID string, input CreateOrderInput) (domain.Order, error) {
	userCart, err := s.deps.Carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrCartNotFound) {
			return domain.Order{}, domain.ErrEmptyCart
		}
		return domain.Order{}, err
	}
	if userCart.IsEmpty() {
		return domain.Order{}, domain.ErrEmptyCart
	}

	products, err := cart.ResolveProducts(ctx, s.deps.Products, userCart.Lines, s.lookupLimit)
	if err != nil {
		return domain.Order{}, err
	}

	items := make([]domain.OrderItem, 0, len(userCart.Lines))
	lines := make([]pricing.Line, 0, len(userCart.Lines))
	for i, line := range userCart.Lines {
		product, ok := products[i]
		if !ok {
			continue
		}
		pl := pricing.Line{UnitPriceMinor: product.PriceMinor, Quantity: line.Quantity}
		lines = append(lines, pl)
		items = append(items, domain.OrderItem{
			ID:            uuid.NewString(),
			ProductID:     product.ID,
			Title:         product.Title,
			PriceMinor:    product.PriceMinor,
			Qty:           line.Quantity,
			SubtotalMinor: pl.Subtotal(),
		})
	}
	if len(items) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}

	summary := pricing.Calculate(lines)
	now := s.now()
	paymentMethod := strings.TrimSpace(input.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = domain.DefaultPaymentMethod
	}

	order := domain.Order{
		ID:              uuid.NewString(),
		Number:          s.newNumber(now),
		UserID:          userID,
		Items:           items,
		SubtotalMinor:   summary.SubtotalMinor,
		ShippingMinor:   summary.ShippingMinor,
		TaxMinor:        summary.TaxMinor,
		TotalMinor:      summary.TotalMinor,
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   paymentMethod,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		IdempotencyKey:  input.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("build order: %w", errors.Join(errs...))
	}

	event, err := newOrderEvent(domain.EventOrderCreated, order, "")
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.deps.Placer.PlaceOrder(ctx, domain.PlaceOrderCommand{
		Order:       order,
		CartVersion: userCart.Version,
		Events:      []domain.OutboxMessage{event},
	}); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// ListOrders возвращает все заказы для администратора и только свои для остальных.
func (s *Service) ListOrders(ctx context.Context, actor domain.Actor) ([]domain.OrderView, error) {
	var (
		orders []domain.Order
		err    error
	)
	if actor.IsAdmin() {
		orders, err = s.deps.Orders.List(ctx, s.listLimit)
	} else {
		orders, err = s.deps.Orders.ListByUser(ctx, actor.UserID, s.listLimit)
	}
	if err != nil {
		return nil, err
	}

	owners := make(map[string]domain.OrderOwner)
	views := make([]domain.OrderView, 0, len(orders))
	for _, order := range orders {
		owner, ok := owners[order.UserID]
		if !ok {
			owner = s.owner(ctx, order.UserID)
			owners[order.UserID] = owner
		}
		views = append(views, domain.OrderView{Order: order, Owner: owner})
	}
	return views, nil
}

// GetOrder возвращает заказ владельцу или администратору.
func (s *Service) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (domain.OrderView, error) {
	order, err := s.authorizedOrder(ctx, actor, orderID)
	if err != nil {
		return domain.OrderView{}, err
	}
	return domain.OrderView{Order: order, Owner: s.owner(ctx, order.UserID)}, nil
}

// Timeline возвращает историю заказа владельцу или администратору.
func (s *Service) Timeline(ctx context.Context, actor domain.Actor, orderID string) ([]domain.TimelineEvent, error) {
	if _, err := s.authorizedOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	if s.deps.Timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return s.deps.Timeline.List(ctx, orderID)
}

// UpdateOrderStatus меняет статус и/или статус оплаты. Только для администратора.
func (s *Service) UpdateOrderStatus(ctx context.Context, actor domain.Actor, orderID string, update StatusUpdate) (domain.OrderView, error) {
	if !actor.IsAdmin() {
		return domain.OrderView{}, domain.ErrForbidden
	}
	if update.Status == nil && update.PaymentStatus == nil {
		return domain.OrderView{}, domain.ErrStatusUpdateEmpty
	}
	if update.Status != nil && !update.Status.Valid() {
		return domain.OrderView{}, domain.ErrStatusInvalid
	}
	if update.PaymentStatus != nil && !update.PaymentStatus.Valid() {
		return domain.OrderView{}, domain.ErrPaymentStatusInvalid
	}

	logger := s.logger.WithFields(log.Fields{"order_id": orderID, "actor": actor.UserID})

	var (
		saved      domain.Order
		prevStatus domain.OrderStatus
		prevPay    domain.PaymentStatus
	)
	err := retry.OnConflict(ctx, s.retry, logger, "checkout.update_status", func(attempt int) error {
		if attempt > 1 && s.metrics != nil {
			s.metrics.RecordVersionRetry("order")
		}

		order, err := s.deps.Orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		prevStatus, prevPay = order.Status, order.PaymentStatus

		if update.Status != nil {
			if s.enforceTransitions && !order.Status.CanTransitionTo(*update.Status) {
				return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, *update.Status)
			}
			order.Status = *update.Status
		}
		if update.PaymentStatus != nil {
			order.PaymentStatus = *update.PaymentStatus
		}
		order.UpdatedAt = s.now()

		if err := s.deps.Orders.Save(ctx, order); err != nil {
			return err
		}
		order.Version++
		saved = order
		return nil
	})
	if err != nil {
		return domain.OrderView{}, err
	}

	if saved.Status != prevStatus {
		s.recordChange(ctx, actor, saved, domain.EventOrderStatusChanged, fmt.Sprintf("%s -> %s", prevStatus, saved.Status))
		if s.metrics != nil {
			s.metrics.RecordStatusTransition(string(prevStatus), string(saved.Status))
		}
	}
	if saved.PaymentStatus != prevPay {
		s.recordChange(ctx, actor, saved, domain.EventPaymentChanged, fmt.Sprintf("%s -> %s", prevPay, saved.PaymentStatus))
	}

	logger.WithFields(log.Fields{
		"status":         saved.Status,
		"payment_status": saved.PaymentStatus,
		"version":        saved.Version,
	}).Info("order status updated")

	return domain.OrderView{Order: saved, Owner: s.owner(ctx, saved.UserID)}, nil
}

func (s *Service) authorizedOrder(ctx context.Context, actor domain.Actor, orderID string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order, err := s.deps.Orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !actor.CanAccess(order.UserID) {
		return domain.Order{}, domain.ErrForbidden
	}
	return order, nil
}

// recordChange пишет событие в outbox и timeline. Ошибки только логируются:
// статус уже сохранён.
func (s *Service) recordChange(ctx context.Context, actor domain.Actor, order domain.Order, eventType, reason string) {
	logger := s.logger.WithFields(log.Fields{"order_id": order.ID, "event": eventType})

	if s.deps.Outbox != nil {
		msg, err := newOrderEvent(eventType, order, reason)
		if err == nil {
			_, err = s.deps.Outbox.Enqueue(ctx, msg)
		}
		if err != nil {
			logger.WithError(err).Error("enqueue event failed")
		} else if s.metrics != nil {
			s.metrics.RecordOutboxEvent()
		}
	}

	s.appendTimeline(ctx, domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     eventType,
		ActorID:  actor.UserID,
		Reason:   reason,
		Occurred: order.UpdatedAt,
	})
}

func (s *Service) appendTimeline(ctx context.Context, event domain.TimelineEvent) {
	if s.deps.Timeline == nil {
		return
	}
	if err := s.deps.Timeline.Append(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": event.OrderID,
			"event":    event.Type,
		}).Warn("append timeline event failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordTimelineEvent()
	}
}

// owner возвращает данные владельца заказа; неизвестный пользователь даёт пустые поля.
func (s *Service) owner(ctx context.Context, userID string) domain.OrderOwner {
	if s.deps.Users == nil {
		return domain.OrderOwner{}
	}
	user, err := s.deps.Users.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.logger.WithError(err).WithField("user_id", userID).Warn("load order owner failed")
		}
		return domain.OrderOwner{}
	}
	return user.Owner()
}

// OrderEvent: полезная нагрузка событий заказа в outbox.
type OrderEvent struct {
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	UserID        string    `json:"user_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	TotalMinor    int64     `json:"total_minor"`
	ItemCount     int       `json:"item_count"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func newOrderEvent(eventType string, order domain.Order, reason string) (domain.OutboxMessage, error) {
	payload, err := json.Marshal(OrderEvent{
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalMinor:    order.TotalMinor,
		ItemCount:     order.ItemCount(),
		Reason:        reason,
		OccurredAt:    order.UpdatedAt,
	})
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: domain.AggregateOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

func kindLabel(err error) string {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return "validation"
	case domain.KindUnauthenticated:
		return "unauthenticated"
	case domain.KindForbidden:
		return "forbidden"
	case domain.KindNotFound:
		return "not_found"
	case domain.KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}
