package domain

import (
	"strings"
	"time"
)

// DefaultMaxLineQuantity ограничивает количество в позиции, если у товара не задан остаток.
const DefaultMaxLineQuantity = 10

// Product описывает товар каталога. Цена хранится в центах.
type Product struct {
	ID             string
	Title          string
	Description    string
	PriceMinor     int64
	Image          string
	Category       string
	Rating         float64
	InStock        bool
	StockQuantity  int32
	Features       []string
	Specifications map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MaxQuantity возвращает верхнюю границу количества в одной позиции корзины.
// Остаток используется только для отображения и ограничения, но не списывается.
func (p Product) MaxQuantity() int32 {
	if p.StockQuantity > 0 {
		return p.StockQuantity
	}
	return DefaultMaxLineQuantity
}

// Validate проверяет поля товара перед сохранением.
func (p *Product) Validate() []error {
	var errs []error

	if strings.TrimSpace(p.Title) == "" {
		errs = append(errs, ErrTitleRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrPriceNegative)
	}
	if p.StockQuantity < 0 {
		errs = append(errs, ErrStockNegative)
	}

	return errs
}

// Clone возвращает копию без общих срезов и карт.
func (p Product) Clone() Product {
	dst := p
	dst.Features = append([]string(nil), p.Features...)
	if p.Specifications != nil {
		dst.Specifications = make(map[string]string, len(p.Specifications))
		for k, v := range p.Specifications {
			dst.Specifications[k] = v
		}
	}
	return dst
}
