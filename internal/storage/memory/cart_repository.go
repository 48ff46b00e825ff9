package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CartRepository: in-memory хранилище корзин с проверкой версии.
type CartRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Cart
}

// NewCartRepository создаёт in-memory реализацию CartRepository.
func NewCartRepository() *CartRepository {
	return &CartRepository{items: make(map[string]domain.Cart)}
}

// Get возвращает копию корзины пользователя.
func (r *CartRepository) Get(_ context.Context, userID string) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.items[userID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cart.Clone(), nil
}

// Create сохраняет новую корзину, если у пользователя её ещё нет.
func (r *CartRepository) Create(_ context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[cart.UserID]; exists {
		return domain.ErrCartAlreadyExists
	}
	r.items[cart.UserID] = cart.Clone()
	return nil
}

// Save перезаписывает корзину, проверяя версию (optimistic locking).
func (r *CartRepository) Save(_ context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.saveLocked(cart, time.Now().UTC())
}

func (r *CartRepository) saveLocked(cart domain.Cart, now time.Time) error {
	current, ok := r.items[cart.UserID]
	if !ok {
		return domain.ErrCartNotFound
	}
	if current.Version != cart.Version {
		return domain.ErrCartVersionConflict
	}
	cart.Version++
	cart.UpdatedAt = now
	r.items[cart.UserID] = cart.Clone()
	return nil
}

var _ domain.CartRepository = (*CartRepository)(nil)
