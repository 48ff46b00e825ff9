package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.deps.Catalog.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.deps.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.IsAdmin() {
		s.writeError(w, r, domain.ErrForbidden)
		return
	}
	var req ProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	product, err := s.deps.Catalog.Create(r.Context(), actor, req.toProduct())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ProductEnvelope{Success: true, Product: toProductResponse(product)})
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.IsAdmin() {
		s.writeError(w, r, domain.ErrForbidden)
		return
	}
	var req ProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	product, err := s.deps.Catalog.Update(r.Context(), actor, chi.URLParam(r, "id"), req.patch())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProductEnvelope{Success: true, Product: toProductResponse(product)})
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Catalog.Delete(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Product deleted successfully"})
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Carts.View(r.Context(), actorFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		s.writeError(w, r, domain.ErrProductIDRequired)
		return
	}
	qty := int32(1)
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	view, err := s.deps.Carts.AddLine(r.Context(), actorFrom(r.Context()).UserID, productID, qty)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CartEnvelope{Success: true, Cart: toCartResponse(view)})
}

// updateCartLine выставляет количество; quantity <= 0 удаляет позицию.
func (s *Server) updateCartLine(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartLineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Quantity == nil {
		s.writeError(w, r, domain.ErrQuantityInvalid)
		return
	}

	view, err := s.deps.Carts.SetLineQuantity(r.Context(), actorFrom(r.Context()).UserID, chi.URLParam(r, "lineID"), *req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CartEnvelope{Success: true, Cart: toCartResponse(view)})
}

func (s *Server) removeCartLine(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Carts.RemoveLine(r.Context(), actorFrom(r.Context()).UserID, chi.URLParam(r, "lineID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Item removed from cart"})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	views, err := s.deps.Checkout.ListOrders(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]OrderResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toOrderResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Checkout.GetOrder(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(view))
}

func (s *Server) orderTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := s.deps.Checkout.Timeline(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimelineResponse(events))
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.deps.Checkout.CreateOrder(r.Context(), actorFrom(r.Context()), checkout.CreateOrderInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, OrderEnvelope{Success: true, Order: toOrderResponse(view)})
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.IsAdmin() {
		s.writeError(w, r, domain.ErrForbidden)
		return
	}
	var req UpdateOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var update checkout.StatusUpdate
	if req.Status != nil && *req.Status != "" {
		st := domain.OrderStatus(*req.Status)
		update.Status = &st
	}
	if req.PaymentStatus != nil && *req.PaymentStatus != "" {
		ps := domain.PaymentStatus(*req.PaymentStatus)
		update.PaymentStatus = &ps
	}

	view, err := s.deps.Checkout.UpdateOrderStatus(r.Context(), actor, chi.URLParam(r, "id"), update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OrderEnvelope{Success: true, Order: toOrderResponse(view)})
}
