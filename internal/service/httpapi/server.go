// Package httpapi: HTTP/JSON API магазина под префиксом /api.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

const maxBodyBytes = 1 << 20

// Authenticator превращает заголовок Authorization в актора.
type Authenticator interface {
	Resolve(ctx context.Context, header string) (domain.Actor, error)
}

// Dependencies: сервисы, которые обслуживает API.
type Dependencies struct {
	Catalog  *catalog.Service
	Carts    *cart.Service
	Checkout *checkout.Service
	Auth     Authenticator
	// Idempotency включает повтор ответа POST /orders по заголовку Idempotency-Key. Может быть nil.
	Idempotency domain.IdempotencyRepository
}

// Server собирает chi-роутер поверх сервисов.
type Server struct {
	deps    Dependencies
	logger  *log.Entry
	metrics *metrics.HTTPMetrics
	version string
	now     func() time.Time
}

// Option настраивает Server.
type Option func(*Server)

// WithMetrics включает метрики запросов.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithVersion задаёт версию, которую отдаёт /api/health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithClock подменяет источник времени (тесты).
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewServer создаёт HTTP API.
func NewServer(deps Dependencies, logger *log.Entry, opts ...Option) *Server {
	if logger == nil {
		logger = log.New().WithField("component", "http-api")
	}
	s := &Server{
		deps:    deps,
		logger:  logger,
		version: "dev",
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler возвращает корневой http.Handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	// Браузерный клиент ходит в API с другого origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", idempotencyKeyHeader},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.listProducts)
			r.Get("/{id}", s.getProduct)
			r.Group(func(r chi.Router) {
				r.Use(s.authenticate)
				r.Post("/", s.createProduct)
				r.Put("/{id}", s.updateProduct)
				r.Delete("/{id}", s.deleteProduct)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/", s.getCart)
			r.Post("/", s.addToCart)
			r.Put("/{lineID}", s.updateCartLine)
			r.Delete("/{lineID}", s.removeCartLine)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/", s.listOrders)
			r.With(s.idempotent).Post("/", s.createOrder)
			r.Get("/{id}", s.getOrder)
			r.Put("/{id}", s.updateOrder)
			r.Get("/{id}/timeline", s.orderTimeline)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "OK",
		Message:   "Server is running",
		Timestamp: s.now(),
		Version:   s.version,
	})
}
