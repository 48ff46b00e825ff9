package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
)

// HealthResponse: ответ /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ErrorResponse: тело любого ответа с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse: подтверждение операции без данных.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ProductResponse: товар каталога.
type ProductResponse struct {
	ID             string            `json:"_id"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Price          pricing.Money     `json:"price"`
	Image          string            `json:"image"`
	Category       string            `json:"category"`
	Rating         float64           `json:"rating"`
	InStock        bool              `json:"inStock"`
	StockQuantity  int32             `json:"stockQuantity"`
	Features       []string          `json:"features"`
	Specifications map[string]string `json:"specifications"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// ProductRequest: тело POST/PUT /products. Отсутствующие поля при PUT не меняются.
type ProductRequest struct {
	Title          *string           `json:"title"`
	Description    *string           `json:"description"`
	Price          *pricing.Money    `json:"price"`
	Image          *string           `json:"image"`
	Category       *string           `json:"category"`
	Rating         *float64          `json:"rating"`
	InStock        *bool             `json:"inStock"`
	StockQuantity  *int32            `json:"stockQuantity"`
	Features       []string          `json:"features"`
	Specifications map[string]string `json:"specifications"`
}

// ProductEnvelope: ответ на изменение товара.
type ProductEnvelope struct {
	Success bool            `json:"success"`
	Product ProductResponse `json:"product"`
}

// AddToCartRequest: тело POST /cart.
type AddToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int32 `json:"quantity"`
}

// UpdateCartLineRequest: тело PUT /cart/:lineId.
type UpdateCartLineRequest struct {
	Quantity *int32 `json:"quantity"`
}

// CartItemResponse: позиция корзины с данными каталога.
type CartItemResponse struct {
	ID          string        `json:"id"`
	ProductID   string        `json:"productId"`
	Title       string        `json:"title"`
	Price       pricing.Money `json:"price"`
	Quantity    int32         `json:"quantity"`
	Image       string        `json:"image"`
	Category    string        `json:"category"`
	InStock     bool          `json:"inStock"`
	MaxQuantity int32         `json:"maxQuantity"`
	Subtotal    pricing.Money `json:"subtotal"`
}

// SummaryResponse: итоги корзины.
type SummaryResponse struct {
	Subtotal              pricing.Money `json:"subtotal"`
	Shipping              pricing.Money `json:"shipping"`
	Tax                   pricing.Money `json:"tax"`
	Total                 pricing.Money `json:"total"`
	ItemCount             int           `json:"itemCount"`
	FreeShippingThreshold pricing.Money `json:"freeShippingThreshold"`
	FreeShippingRemaining pricing.Money `json:"freeShippingRemaining"`
}

// CartResponse: ответ GET /cart.
type CartResponse struct {
	Items   []CartItemResponse `json:"items"`
	Summary SummaryResponse    `json:"summary"`
}

// CartEnvelope: ответ на изменение корзины.
type CartEnvelope struct {
	Success bool         `json:"success"`
	Cart    CartResponse `json:"cart"`
}

// CreateOrderRequest: тело POST /orders. Цены и позиции берутся только из корзины.
type CreateOrderRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
}

// UpdateOrderRequest: тело PUT /orders/:id.
type UpdateOrderRequest struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"paymentStatus"`
}

// OwnerResponse: владелец заказа.
type OwnerResponse struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// OrderItemResponse: снимок позиции заказа.
type OrderItemResponse struct {
	ID           string        `json:"id"`
	ProductID    string        `json:"productId"`
	ProductTitle string        `json:"productTitle"`
	ProductPrice pricing.Money `json:"productPrice"`
	Quantity     int32         `json:"quantity"`
	Subtotal     pricing.Money `json:"subtotal"`
}

// OrderResponse: заказ с владельцем, владелец отдаётся в поле userId.
type OrderResponse struct {
	ID              string                 `json:"_id"`
	OrderNumber     string                 `json:"orderNumber"`
	User            OwnerResponse          `json:"userId"`
	Status          domain.OrderStatus     `json:"status"`
	PaymentStatus   domain.PaymentStatus   `json:"paymentStatus"`
	PaymentMethod   string                 `json:"paymentMethod"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	Items           []OrderItemResponse    `json:"items"`
	Subtotal        pricing.Money          `json:"subtotal"`
	Shipping        pricing.Money          `json:"shipping"`
	Tax             pricing.Money          `json:"tax"`
	TotalAmount     pricing.Money          `json:"totalAmount"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// OrderEnvelope: ответ на создание или изменение заказа.
type OrderEnvelope struct {
	Success bool          `json:"success"`
	Order   OrderResponse `json:"order"`
}

// TimelineEventResponse: событие истории заказа.
type TimelineEventResponse struct {
	Type       string    `json:"type"`
	ActorID    string    `json:"actorId,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func toProductResponse(p domain.Product) ProductResponse {
	features := p.Features
	if features == nil {
		features = []string{}
	}
	specs := p.Specifications
	if specs == nil {
		specs = map[string]string{}
	}
	return ProductResponse{
		ID:             p.ID,
		Title:          p.Title,
		Description:    p.Description,
		Price:          pricing.Money(p.PriceMinor),
		Image:          p.Image,
		Category:       p.Category,
		Rating:         p.Rating,
		InStock:        p.InStock,
		StockQuantity:  p.StockQuantity,
		Features:       features,
		Specifications: specs,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// toProduct собирает новый товар; inStock по умолчанию true.
func (r ProductRequest) toProduct() domain.Product {
	p := domain.Product{InStock: true}
	r.patch().ApplyTo(&p)
	return p
}

func (r ProductRequest) patch() catalog.ProductPatch {
	patch := catalog.ProductPatch{
		Title:          r.Title,
		Description:    r.Description,
		Image:          r.Image,
		Category:       r.Category,
		Rating:         r.Rating,
		InStock:        r.InStock,
		StockQuantity:  r.StockQuantity,
		Features:       r.Features,
		Specifications: r.Specifications,
	}
	if r.Price != nil {
		minor := int64(*r.Price)
		patch.PriceMinor = &minor
	}
	return patch
}

func toCartResponse(view cart.View) CartResponse {
	items := make([]CartItemResponse, 0, len(view.Lines))
	for _, line := range view.Lines {
		items = append(items, CartItemResponse{
			ID:          line.LineID,
			ProductID:   line.ProductID,
			Title:       line.Title,
			Price:       pricing.Money(line.PriceMinor),
			Quantity:    line.Quantity,
			Image:       line.Image,
			Category:    line.Category,
			InStock:     line.InStock,
			MaxQuantity: line.MaxQuantity,
			Subtotal:    pricing.Money(line.SubtotalMinor),
		})
	}
	sum := view.Summary
	return CartResponse{
		Items: items,
		Summary: SummaryResponse{
			Subtotal:              pricing.Money(sum.SubtotalMinor),
			Shipping:              pricing.Money(sum.ShippingMinor),
			Tax:                   pricing.Money(sum.TaxMinor),
			Total:                 pricing.Money(sum.TotalMinor),
			ItemCount:             sum.ItemCount,
			FreeShippingThreshold: pricing.Money(sum.FreeShippingThresholdMinor),
			FreeShippingRemaining: pricing.Money(sum.FreeShippingRemainingMinor),
		},
	}
}

func toOrderResponse(view domain.OrderView) OrderResponse {
	o := view.Order
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemResponse{
			ID:           item.ID,
			ProductID:    item.ProductID,
			ProductTitle: item.Title,
			ProductPrice: pricing.Money(item.PriceMinor),
			Quantity:     item.Qty,
			Subtotal:     pricing.Money(item.SubtotalMinor),
		})
	}
	return OrderResponse{
		ID:          o.ID,
		OrderNumber: o.Number,
		User: OwnerResponse{
			ID:        o.UserID,
			FirstName: view.Owner.FirstName,
			LastName:  view.Owner.LastName,
			Email:     view.Owner.Email,
		},
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		PaymentMethod:   o.PaymentMethod,
		ShippingAddress: o.ShippingAddress,
		Items:           items,
		Subtotal:        pricing.Money(o.SubtotalMinor),
		Shipping:        pricing.Money(o.ShippingMinor),
		Tax:             pricing.Money(o.TaxMinor),
		TotalAmount:     pricing.Money(o.TotalMinor),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toTimelineResponse(events []domain.TimelineEvent) []TimelineEventResponse {
	out := make([]TimelineEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, TimelineEventResponse{
			Type:       e.Type,
			ActorID:    e.ActorID,
			Reason:     e.Reason,
			OccurredAt: e.Occurred,
		})
	}
	return out
}
