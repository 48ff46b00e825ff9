// Package cart реализует операции над корзиной пользователя с optimistic locking.
package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/service/retry"
)

const defaultLookupLimit = 8

// LineView: позиция корзины, дополненная актуальными данными каталога.
type LineView struct {
	LineID        string
	ProductID     string
	Title         string
	Image         string
	Category      string
	PriceMinor    int64
	Quantity      int32
	InStock       bool
	MaxQuantity   int32
	SubtotalMinor int64
	AddedAt       time.Time
}

// View описывает корзину для отображения, с позициями и итогами.
type View struct {
	UserID  string
	Version int64
	Lines   []LineView
	Summary pricing.Summary
}

// Service управляет корзинами.
type Service struct {
	carts       domain.CartRepository
	products    domain.ProductRepository
	logger      *log.Entry
	metrics     *metrics.CheckoutMetrics
	retry       retry.Config
	lookupLimit int
	now         func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics включает метрики мутаций корзины.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRetryConfig переопределяет политику повторов при конфликте версий.
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *Service) {
		s.retry = cfg
	}
}

// WithLookupLimit ограничивает число параллельных запросов к каталогу.
func WithLookupLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.lookupLimit = limit
		}
	}
}

// WithClock подменяет источник времени (тесты).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService создаёт сервис корзины.
func NewService(carts domain.CartRepository, products domain.ProductRepository, logger *log.Entry, opts ...Option) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "cart")
	}
	s := &Service{
		carts:       carts,
		products:    products,
		logger:      logger,
		retry:       retry.DefaultConfig(),
		lookupLimit: defaultLookupLimit,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate возвращает корзину пользователя, создавая пустую при первом обращении.
// Параллельные вызовы сходятся на одной корзине.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, domain.ErrUserIDRequired
	}

	cart, err := s.carts.Get(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return domain.Cart{}, err
	}

	cart = domain.NewCart(userID, s.now())
	if err := s.carts.Create(ctx, cart); err != nil {
		if errors.Is(err, domain.ErrCartAlreadyExists) {
			return s.carts.Get(ctx, userID)
		}
		return domain.Cart{}, err
	}
	return cart, nil
}

// AddLine добавляет товар. Для существующей позиции количество увеличивается,
// в обоих случаях оно ограничено Product.MaxQuantity.
func (s *Service) AddLine(ctx context.Context, userID, productID string, qty int32) (View, error) {
	if qty < 1 {
		return View{}, domain.ErrQuantityInvalid
	}
	if productID == "" {
		return View{}, domain.ErrProductIDRequired
	}

	product, err := s.products.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return View{}, domain.ErrUnknownProduct
		}
		return View{}, err
	}
	limit := product.MaxQuantity()

	cart, err := s.mutate(ctx, userID, "add", true, func(cart *domain.Cart) error {
		if idx := cart.LineIndexByProduct(productID); idx >= 0 {
			cart.Lines[idx].Quantity = domain.AddQuantity(cart.Lines[idx].Quantity, qty, limit)
			return nil
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			ID:        uuid.NewString(),
			ProductID: productID,
			Quantity:  domain.ClampQuantity(qty, limit),
			AddedAt:   s.now(),
		})
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, cart)
}

// SetLineQuantity задаёт количество позиции. qty <= 0 удаляет позицию.
func (s *Service) SetLineQuantity(ctx context.Context, userID, lineID string, qty int32) (View, error) {
	cart, err := s.mutate(ctx, userID, "set", false, func(cart *domain.Cart) error {
		idx := cart.LineIndex(lineID)
		if idx < 0 {
			return domain.ErrCartLineNotFound
		}
		if qty <= 0 {
			cart.RemoveLine(idx)
			return nil
		}

		var limit int32 = domain.DefaultMaxLineQuantity
		product, err := s.products.Get(ctx, cart.Lines[idx].ProductID)
		switch {
		case err == nil:
			limit = product.MaxQuantity()
		case !errors.Is(err, domain.ErrProductNotFound):
			return err
		}
		cart.Lines[idx].Quantity = domain.ClampQuantity(qty, limit)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, cart)
}

// RemoveLine удаляет позицию по её id.
func (s *Service) RemoveLine(ctx context.Context, userID, lineID string) error {
	_, err := s.mutate(ctx, userID, "remove", false, func(cart *domain.Cart) error {
		idx := cart.LineIndex(lineID)
		if idx < 0 {
			return domain.ErrCartLineNotFound
		}
		cart.RemoveLine(idx)
		return nil
	})
	return err
}

// Clear удаляет все позиции корзины.
func (s *Service) Clear(ctx context.Context, userID string) error {
	_, err := s.mutate(ctx, userID, "clear", true, func(cart *domain.Cart) error {
		cart.Lines = cart.Lines[:0]
		return nil
	})
	return err
}

func (s *Service) load(ctx context.Context, userID string, create bool) (domain.Cart, error) {
	if create {
		return s.GetOrCreate(ctx, userID)
	}
	return s.carts.Get(ctx, userID)
}

// View возвращает корзину с данными каталога и итогами.
func (s *Service) View(ctx context.Context, userID string) (View, error) {
	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, cart)
}

// mutate выполняет read-modify-write с проверкой версии и повтором при конфликте.
// create=false означает, что отсутствующая корзина: ErrCartNotFound.
func (s *Service) mutate(ctx context.Context, userID, op string, create bool, apply func(cart *domain.Cart) error) (domain.Cart, error) {
	var saved domain.Cart
	err := retry.OnConflict(ctx, s.retry, s.logger.WithField("user_id", userID), "cart."+op, func(attempt int) error {
		if attempt > 1 && s.metrics != nil {
			s.metrics.RecordVersionRetry("cart")
		}

		cart, err := s.load(ctx, userID, create)
		if err != nil {
			return err
		}
		next := cart.Clone()
		if err := apply(&next); err != nil {
			return err
		}
		next.UpdatedAt = s.now()
		if err := s.carts.Save(ctx, next); err != nil {
			return err
		}
		next.Version = cart.Version + 1
		saved = next
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordCartMutation(op)
	}
	s.logger.WithFields(log.Fields{
		"user_id": userID,
		"op":      op,
		"lines":   len(saved.Lines),
		"version": saved.Version,
	}).Debug("cart updated")
	return saved, nil
}

// view присоединяет к позициям товары каталога. Позиции с удалёнными товарами пропускаются.
func (s *Service) view(ctx context.Context, cart domain.Cart) (View, error) {
	products, err := ResolveProducts(ctx, s.products, cart.Lines, s.lookupLimit)
	if err != nil {
		return View{}, err
	}

	result := View{
		UserID:  cart.UserID,
		Version: cart.Version,
		Lines:   make([]LineView, 0, len(cart.Lines)),
	}
	priced := make([]pricing.Line, 0, len(cart.Lines))
	for i, line := range cart.Lines {
		product, ok := products[i]
		if !ok {
			continue
		}
		pl := pricing.Line{UnitPriceMinor: product.PriceMinor, Quantity: line.Quantity}
		priced = append(priced, pl)
		result.Lines = append(result.Lines, LineView{
			LineID:        line.ID,
			ProductID:     line.ProductID,
			Title:         product.Title,
			Image:         product.Image,
			Category:      product.Category,
			PriceMinor:    product.PriceMinor,
			Quantity:      line.Quantity,
			InStock:       product.InStock,
			MaxQuantity:   product.MaxQuantity(),
			SubtotalMinor: pl.Subtotal(),
			AddedAt:       line.AddedAt,
		})
	}
	result.Summary = pricing.Calculate(priced)
	return result, nil
}

// ResolveProducts параллельно загружает товары для позиций корзины.
// Результат индексирован номером позиции; отсутствующие в каталоге товары в него не попадают.
func ResolveProducts(ctx context.Context, repo domain.ProductRepository, lines []domain.CartLine, limit int) (map[int]domain.Product, error) {
	if limit <= 0 {
		limit = defaultLookupLimit
	}

	found := make([]*domain.Product, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for idx := range lines {
		g.Go(func() error {
			product, err := repo.Get(gctx, lines[idx].ProductID)
			if err != nil {
				if errors.Is(err, domain.ErrProductNotFound) {
					return nil
				}
				return err
			}
			found[idx] = &product
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[int]domain.Product, len(lines))
	for idx, product := range found {
		if product != nil {
			result[idx] = *product
		}
	}
	return result, nil
}
