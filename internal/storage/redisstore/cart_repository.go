// Package redisstore хранит корзины в Redis как JSON-документы.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultKeyPrefix = "storefront:cart"

type cartDocument struct {
	UserID    string         `json:"userId"`
	Lines     []lineDocument `json:"lines"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type lineDocument struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Quantity  int32     `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// CartRepository: реализация domain.CartRepository поверх Redis.
// Save использует WATCH/MULTI: конкурентная запись приводит к ErrCartVersionConflict.
type CartRepository struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option настраивает CartRepository.
type Option func(*CartRepository)

// WithTTL задаёт время жизни корзины. Ноль означает хранение без срока.
func WithTTL(ttl time.Duration) Option {
	return func(r *CartRepository) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithKeyPrefix переопределяет префикс ключей.
func WithKeyPrefix(prefix string) Option {
	return func(r *CartRepository) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewCartRepository создаёт репозиторий корзин на переданном клиенте.
func NewCartRepository(client redis.UniversalClient, opts ...Option) *CartRepository {
	r := &CartRepository{
		client: client,
		prefix: defaultKeyPrefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewClient открывает подключение к Redis и проверяет его.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (r *CartRepository) key(userID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, userID)
}

func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	raw, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	return decodeCart(raw)
}

func (r *CartRepository) Create(ctx context.Context, cart domain.Cart) error {
	data, err := encodeCart(cart)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.key(cart.UserID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("create cart: %w", err)
	}
	if !ok {
		return domain.ErrCartAlreadyExists
	}
	return nil
}

func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	key := r.key(cart.UserID)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrCartNotFound
		}
		if err != nil {
			return fmt.Errorf("get cart: %w", err)
		}
		current, err := decodeCart(raw)
		if err != nil {
			return err
		}
		if current.Version != cart.Version {
			return domain.ErrCartVersionConflict
		}

		next := cart.Clone()
		next.Version = current.Version + 1
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = r.now()
		data, err := encodeCart(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrCartVersionConflict
	}
	return err
}

// Ping проверяет доступность Redis (используется health-check).
func (r *CartRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func encodeCart(cart domain.Cart) ([]byte, error) {
	doc := cartDocument{
		UserID:    cart.UserID,
		Lines:     make([]lineDocument, 0, len(cart.Lines)),
		Version:   cart.Version,
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, line := range cart.Lines {
		doc.Lines = append(doc.Lines, lineDocument(line))
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode cart: %w", err)
	}
	return data, nil
}

func decodeCart(raw []byte) (domain.Cart, error) {
	var doc cartDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	cart := domain.Cart{
		UserID:    doc.UserID,
		Lines:     make([]domain.CartLine, 0, len(doc.Lines)),
		Version:   doc.Version,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, line := range doc.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine(line))
	}
	return cart, nil
}

var _ domain.CartRepository = (*CartRepository)(nil)
