package checkout

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/retry"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

var (
	customer = domain.Actor{UserID: "user-1", Role: domain.RoleCustomer}
	other    = domain.Actor{UserID: "user-2", Role: domain.RoleCustomer}
	admin    = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
)

type CheckoutSuite struct {
	suite.Suite

	ctx      context.Context
	carts    *memory.CartRepository
	products *memory.ProductRepository
	orders   *memory.OrderRepository
	outbox   *memory.OutboxRepository
	timeline *memory.TimelineRepository
	users    *memory.UserRepository
	cartSvc  *cart.Service
	svc      *Service
	clock    time.Time
}

func (s *CheckoutSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.carts = memory.NewCartRepository()
	s.products = memory.NewProductRepository()
	s.orders = memory.NewOrderRepository()
	s.outbox = memory.NewOutboxRepository()
	s.timeline = memory.NewTimelineRepository()
	s.users = memory.NewUserRepository()

	for _, p := range []domain.Product{
		{ID: "p-50", Title: "Desk Lamp", PriceMinor: 5000, InStock: true, StockQuantity: 20},
		{ID: "p-60", Title: "Bluetooth Speaker", PriceMinor: 6000, InStock: true},
	} {
		s.Require().NoError(s.products.Create(s.ctx, p))
	}
	for _, u := range []domain.User{
		{ID: "user-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Role: domain.RoleCustomer, Active: true},
		{ID: "user-2", FirstName: "Alan", LastName: "Turing", Email: "alan@example.com", Role: domain.RoleCustomer, Active: true},
		{ID: "admin-1", FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", Role: domain.RoleAdmin, Active: true},
	} {
		s.Require().NoError(s.users.Upsert(s.ctx, u))
	}

	s.cartSvc = cart.NewService(s.carts, s.products, nil)
	s.svc = s.newService(memory.NewCheckoutRepository(s.carts, s.orders, s.outbox))
}

func (s *CheckoutSuite) newService(placer domain.CheckoutRepository, opts ...Option) *Service {
	opts = append([]Option{
		WithMetrics(metrics.NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())),
		WithRetryConfig(retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2}),
		WithClock(s.tick),
	}, opts...)
	return NewService(Dependencies{
		Carts:    s.carts,
		Products: s.products,
		Orders:   s.orders,
		Users:    s.users,
		Timeline: s.timeline,
		Outbox:   s.outbox,
		Placer:   placer,
	}, nil, opts...)
}

// tick сдвигает часы на секунду при каждом вызове.
func (s *CheckoutSuite) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *CheckoutSuite) addToCart(userID, productID string, qty int32) {
	_, err := s.cartSvc.AddLine(s.ctx, userID, productID, qty)
	s.Require().NoError(err)
}

func (s *CheckoutSuite) TestPaidShippingAtThreshold() {
	s.addToCart("user-1", "p-50", 2)

	view, err := s.svc.CreateOrder(s.ctx, customer, CreateOrderInput{})
	s.Require().NoError(err)

	order := view.Order
	s.Equal(int64(10000), order.SubtotalMinor)
	s.Equal(int64(999), order.ShippingMinor)
	s.Equal(int64(800), order.TaxMinor)
	s.Equal(int64(11799), order.TotalMinor)
	s.Equal(domain.OrderStatusPending, order.Status)
	s.Equal(domain.PaymentStatusPending, order.PaymentStatus)
	s.Equal(domain.DefaultPaymentMethod, order.PaymentMethod)
	s.Equal("Ada", view.Owner.FirstName)
	s.Equal("ada@example.com", view.Owner.Email)

	cart, err := s.carts.Get(s.ctx, "user-1")
	s.Require().NoError(err)
	s.True(cart.IsEmpty(), "checkout must clear the cart")

	pending := s.outbox.AllPending()
	s.Require().Len(pending, 1)
	s.Equal(domain.EventOrderCreated, pending[0].EventType)
	s.Equal(order.ID, pending[0].AggregateID)

	events, err := s.svc.Timeline(s.ctx, customer, order.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(domain.EventOrderCreated, events[0].Type)
	s.Equal("user-1", events[0].ActorID)
}

func (s *CheckoutSuite) TestFreeShippingAboveThreshold() {
	s.addToCart("user-1", "p-60", 2)

	view, err := s.svc.CreateOrder(s.ctx, customer, CreateOrderInput{
		ShippingAddress: domain.ShippingAddress{City: "London"},
		PaymentMethod:   "paypal",
	})
	s.Require().NoError(err)

	s.Equal(int64(12000), view.Order.SubtotalMinor)
	s.Equal(int64(0), view.Order.ShippingMinor)
	s.Equal(int64(960), view.Order.TaxMinor)
	s.Equal(int64(12960), view.Order.TotalMinor)
	s.Equal("paypal", view.Order.PaymentMethod)
	s.Equal("London", view.Order.ShippingAddress.City)
}

func (s *CheckoutSuite) TestPricesComeFromCatalogAtCheckout() {
	s.addToCart("user-1", "p-50", 1)

	product, err := s.products.Get(s.ctx, "p-50")
	s.Require().NoError(err)
	product.PriceMinor = 7000
	s.Require().NoError(s.products.Update(s.ctx, product))

	view, err := s.svc.CreateOrder(s.ctx, customer, CreateOrderInput{})
	s.Require().NoError(err)
	s.Equal(int64(7000), view.Order.Items[0].PriceMinor)
	s.Equal("Desk Lamp", view.Order.Items[0].Title)

	// Изменение каталога после оформления не трогает заказ.
	product.PriceMinor = 1
	product.Title = "Renamed"
	s.Require().NoError(s.products.Update(s.ctx, product))
	got, err := s.svc.GetOrder(s.ctx, customer, view.Order.ID)
	s.Require().NoError(err)
	s.Equal(int64(7000), got.Order.Items[0].PriceMinor)
	s.Equal("Desk Lamp", got.Order.Items[0].Title)
}

func (s *CheckoutSuite) TestEmptyCartPlacesNothing() {
	_, err := s.svc.CreateOrder(s.ctx, customer, CreateOrderInput{})
	s.ErrorIs(err, domain.ErrEmptyCart)

	_, err = s.cartSvc.GetOrCreate(s.ctx, "user-1")
	s.Require().NoError(err)
	_, err = s.svc.CreateOrder(s.ctx, customer, CreateOrderInput{})
	s.ErrorIs(err, domain.ErrEmptyCart)

	orders, err := s.orders.List(s.ctx, 0)
	s.Require().NoError(err)
	s.Empty(orders)
	s.Empty(s.outbox.AllPending())
}

func (s *CheckoutSuite) TestOnlyOrphanLinesIsEmptyCart() {
	s.addToCart("user-1", "p-50", 1)
	s.Require().NoError(s.products.Delete(s.ctx, "p-50"))

	_, err := s.svc.CreateOrder(s.ctx, customer, CreateOrderInput{})
	s.ErrorIs(err, domain.ErrEmptyCart)
}

func (s *CheckoutSuite) TestRetryAfterSuccessDoesNotDuplicate() {
	s.addToCart("user-1", "p-50", 1)

	_, err := s.svc.CreateOrder(s.ctx, customer, CreateOrderInput{})
	s.Require().NoError(err)
	_, err = s.svc.CreateOrder(s.ctx, customer, CreateOrderInput{})
	s.ErrorIs(err, domain.ErrEmptyCart)

	orders, err := s.orders.ListByUser(s.ctx, "user-1", 0)
	s.Require().NoError(err)
	s.Len(orders, 1)
}

func (s *CheckoutSuite) TestForeignOrderIsForbidden() {
	s.addToCart("user-1", "p-50", 1)
	view, err := s.svc.CreateOrder(s.ctx, customer, CreateOrderInput{})
	s.Require().NoError(err)

	_, err = s.svc.GetOrder(s.ctx, other, view.Order.ID)
	s.ErrorIs(err, domain.ErrForbidden)
	_, err = s.svc.Timeline(s.ctx, other, view.Order.ID)
	s.ErrorIs(err, domain.ErrForbidden)

	got, err := s.svc.GetOrder(s.ctx, admin, view.Order.ID)
	s.Require().NoError(err)
	s.Equal("Lovelace", got.Owner.LastName)

	_, err = s.svc.GetOrder(s.ctx, customer, "not-a-real-id")
	s.ErrorIs(err, domain.ErrOrderNotFound)
}

func (s *CheckoutSuite) TestListOrdersScopesByRole() {
	s.addToCart("user-1", "p-50", 1)
	_, err := s.svc.CreateOrder(s.ctx, customer, CreateOrderInput{})
	s.Require().NoError(err)
	s.addToCart("user-2", "p-60", 1)
	_, err = s.svc.CreateOrder(s.ctx, other, CreateOrderInput{})
	s.Require().NoError(err)

	own, err := s.svc.ListOrders(s.ctx, customer)
	s.Require().NoError(err)
	s.Require().Len(own, 1)
	s.Equal("user-1", own[0].Order.UserID)

	all, err := s.svc.ListOrders(s.ctx, admin)
	s.Require().NoError(err)
	s.Len(all, 2)
	s.Equal("user-2", all[0].Order.UserID, "newest first")
	s.Equal("Turing", all[0].Owner.LastName)
}

func (s *CheckoutSuite) TestUpdateOrderStatus() {
	s.addToCart("user-1", "p-50", 1)
	view, err := s.svc.CreateOrder(s.ctx, customer, CreateOrderInput{})
	s.Require().NoError(err)
	id := view.Order.ID

	shipped := domain.OrderStatusShipped
	paid := domain.PaymentStatusPaid

	_, err = s.svc.UpdateOrderStatus(s.ctx, customer, id, StatusUpdate{Status: &shipped})
	s.ErrorIs(err, domain.ErrForbidden)

	_, err = s.svc.UpdateOrderStatus(s.ctx, admin, id, StatusUpdate{})
	s.ErrorIs(err, domain.ErrStatusUpdateEmpty)

	bogus := domain.OrderStatus("teleported")
	_, err = s.svc.UpdateOrderStatus(s.ctx, admin, id, StatusUpdate{Status: &bogus})
	s.ErrorIs(err, domain.ErrStatusInvalid)

	_, err = s.svc.UpdateOrderStatus(s.ctx, admin, "missing", StatusUpdate{Status: &shipped})
	s.ErrorIs(err, domain.ErrOrderNotFound)

	updated, err := s.svc.UpdateOrderStatus(s.ctx, admin, id, StatusUpdate{Status: &shipped, PaymentStatus: &paid})
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusShipped, updated.Order.Status)
	s.Equal(domain.PaymentStatusPaid, updated.Order.PaymentStatus)
	s.Equal(view.Order.TotalMinor, updated.Order.TotalMinor)
	s.Equal(int64(1), updated.Order.Version)

	events, err := s.svc.Timeline(s.ctx, customer, id)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal(domain.EventOrderStatusChanged, events[1].Type)
	s.Equal("pending -> shipped", events[1].Reason)
	s.Equal(domain.EventPaymentChanged, events[2].Type)

	// Разрешающий режим по умолчанию: любой переход допустим.
	pending := domain.OrderStatusPending
	_, err = s.svc.UpdateOrderStatus(s.ctx, admin, id, StatusUpdate{Status: &pending})
	s.NoError(err)
}

func (s *CheckoutSuite) TestEnforcedTransitions() {
	svc := s.newService(memory.NewCheckoutRepository(s.carts, s.orders, s.outbox), WithEnforcedTransitions(true))
	s.addToCart("user-1", "p-50", 1)
	view, err := svc.CreateOrder(s.ctx, customer, CreateOrderInput{})
	s.Require().NoError(err)

	delivered := domain.OrderStatusDelivered
	_, err = svc.UpdateOrderStatus(s.ctx, admin, view.Order.ID, StatusUpdate{Status: &delivered})
	s.ErrorIs(err, domain.ErrInvalidTransition)
	s.Equal(domain.KindConflict, domain.KindOf(err))

	for _, next := range []domain.OrderStatus{domain.OrderStatusConfirmed, domain.OrderStatusShipped, domain.OrderStatusDelivered} {
		st := next
		_, err = svc.UpdateOrderStatus(s.ctx, admin, view.Order.ID, StatusUpdate{Status: &st})
		s.Require().NoError(err)
	}

	pending := domain.OrderStatusPending
	_, err = svc.UpdateOrderStatus(s.ctx, admin, view.Order.ID, StatusUpdate{Status: &pending})
	s.ErrorIs(err, domain.ErrInvalidTransition)
}

// conflictOncePlacer имитирует параллельное изменение корзины между чтением и записью.
type conflictOncePlacer struct {
	next    domain.CheckoutRepository
	onFirst func()
	calls   int
}

func (p *conflictOncePlacer) PlaceOrder(ctx context.Context, cmd domain.PlaceOrderCommand) error {
	p.calls++
	if p.calls == 1 {
		p.onFirst()
	}
	return p.next.PlaceOrder(ctx, cmd)
}

func (s *CheckoutSuite) TestConcurrentCartEditIsNotDropped() {
	s.addToCart("user-1", "p-50", 1)

	placer := &conflictOncePlacer{
		next: memory.NewCheckoutRepository(s.carts, s.orders, s.outbox),
		onFirst: func() {
			s.addToCart("user-1", "p-60", 1)
		},
	}
	svc := s.newService(placer)

	view, err := svc.CreateOrder(s.ctx, customer, CreateOrderInput{})
	s.Require().NoError(err)
	s.Equal(2, placer.calls)
	s.Len(view.Order.Items, 2, "the retried checkout must include the concurrent edit")
	s.Equal(int64(11000), view.Order.SubtotalMinor)
}

func TestCheckoutSuite(t *testing.T) {
	suite.Run(t, new(CheckoutSuite))
}

func TestNewOrderNumberFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD-[0-9A-HJKMNP-TV-Z]{10}-[0-9A-HJKMNP-TV-Z]{16}$`)
	now := time.Now()

	first := NewOrderNumber(now)
	second := NewOrderNumber(now)
	assert.Regexp(t, pattern, first)
	assert.NotEqual(t, first, second)
	assert.Equal(t, first[:14], second[:14], "same millisecond shares the time prefix")
}

type failingOrders struct {
	domain.OrderRepository
	err error
}

func (f failingOrders) Create(context.Context, domain.Order) error {
	return f.err
}

func TestCompensatingPlacer(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	newCart := func(t *testing.T) *memory.CartRepository {
		t.Helper()
		carts := memory.NewCartRepository()
		c := domain.NewCart("user-1", now)
		c.Lines = []domain.CartLine{{ID: "l1", ProductID: "p-50", Quantity: 2, AddedAt: now}}
		require.NoError(t, carts.Create(ctx, c))
		return carts
	}
	cmd := domain.PlaceOrderCommand{
		Order:       domain.Order{ID: "o-1", Number: "ORD-1", UserID: "user-1"},
		CartVersion: 0,
		Events:      []domain.OutboxMessage{{AggregateType: domain.AggregateOrder, AggregateID: "o-1", EventType: domain.EventOrderCreated}},
	}

	t.Run("success clears cart and enqueues", func(t *testing.T) {
		carts := newCart(t)
		orders := memory.NewOrderRepository()
		outbox := memory.NewOutboxRepository()
		placer := NewCompensatingPlacer(carts, orders, outbox, nil)

		require.NoError(t, placer.PlaceOrder(ctx, cmd))

		c, err := carts.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, c.IsEmpty())
		_, err = orders.Get(ctx, "o-1")
		assert.NoError(t, err)
		assert.Len(t, outbox.AllPending(), 1)
	})

	t.Run("stale version aborts before any write", func(t *testing.T) {
		carts := newCart(t)
		placer := NewCompensatingPlacer(carts, memory.NewOrderRepository(), memory.NewOutboxRepository(), nil)

		stale := cmd
		stale.CartVersion = 5
		require.ErrorIs(t, placer.PlaceOrder(ctx, stale), domain.ErrCartVersionConflict)

		c, err := carts.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Len(t, c.Lines, 1)
	})

	t.Run("failed order restores cart", func(t *testing.T) {
		carts := newCart(t)
		boom := errors.New("orders unavailable")
		outbox := memory.NewOutboxRepository()
		placer := NewCompensatingPlacer(carts, failingOrders{err: boom}, outbox, nil)

		require.ErrorIs(t, placer.PlaceOrder(ctx, cmd), boom)

		c, err := carts.Get(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, c.Lines, 1)
		assert.Equal(t, int32(2), c.Lines[0].Quantity)
		assert.Empty(t, outbox.AllPending())
	})
}
