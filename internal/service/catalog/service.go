// Package catalog управляет товарами витрины: чтение, админские изменения и стартовое наполнение.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ProductPatch: частичное обновление товара. nil означает «не менять».
type ProductPatch struct {
	Title          *string
	Description    *string
	PriceMinor     *int64
	Image          *string
	Category       *string
	Rating         *float64
	InStock        *bool
	StockQuantity  *int32
	Features       []string
	Specifications map[string]string
}

// Service: чтение каталога для всех и изменение для администраторов.
type Service struct {
	products domain.ProductRepository
	logger   *log.Entry
	now      func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService создаёт сервис каталога.
func NewService(products domain.ProductRepository, logger *log.Entry, opts ...Option) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	s := &Service{
		products: products,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.products.List(ctx)
}

// Get возвращает товар. Пустой или неизвестный id даёт ErrProductNotFound.
func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return s.products.Get(ctx, id)
}

// Create добавляет товар в каталог.
func (s *Service) Create(ctx context.Context, actor domain.Actor, product domain.Product) (domain.Product, error) {
	if !actor.IsAdmin() {
		return domain.Product{}, domain.ErrForbidden
	}

	now := s.now()
	product.ID = uuid.NewString()
	product.Title = strings.TrimSpace(product.Title)
	product.CreatedAt = now
	product.UpdatedAt = now
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	if err := s.products.Create(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"actor":      actor.UserID,
	}).Info("product created")
	return product, nil
}

// Update применяет патч к существующему товару.
func (s *Service) Update(ctx context.Context, actor domain.Actor, id string, patch ProductPatch) (domain.Product, error) {
	if !actor.IsAdmin() {
		return domain.Product{}, domain.ErrForbidden
	}

	product, err := s.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	patch.ApplyTo(&product)
	product.UpdatedAt = s.now()
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	if err := s.products.Update(ctx, product); err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"actor":      actor.UserID,
	}).Info("product updated")
	return product, nil
}

// Delete удаляет товар. Позиции корзин с этим товаром перестают отображаться.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ErrProductNotFound
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.WithFields(log.Fields{
		"product_id": id,
		"actor":      actor.UserID,
	}).Info("product deleted")
	return nil
}

// ApplyTo переносит заданные поля патча в товар.
func (p ProductPatch) ApplyTo(product *domain.Product) {
	if p.Title != nil {
		product.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.PriceMinor != nil {
		product.PriceMinor = *p.PriceMinor
	}
	if p.Image != nil {
		product.Image = *p.Image
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Rating != nil {
		product.Rating = *p.Rating
	}
	if p.InStock != nil {
		product.InStock = *p.InStock
	}
	if p.StockQuantity != nil {
		product.StockQuantity = *p.StockQuantity
	}
	if p.Features != nil {
		product.Features = append([]string(nil), p.Features...)
	}
	if p.Specifications != nil {
		product.Specifications = make(map[string]string, len(p.Specifications))
		for k, v := range p.Specifications {
			product.Specifications[k] = v
		}
	}
}
