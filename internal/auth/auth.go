// Package auth проверяет bearer-токены и превращает их в domain.Actor.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const bearerPrefix = "Bearer "

// Claims: полезная нагрузка токена. userId совпадает с форматом, который выдаёт сервис учётных записей.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Authenticator проверяет HS256-токены и загружает пользователя.
type Authenticator struct {
	secret []byte
	users  domain.UserRepository
	now    func() time.Time
}

// Option настраивает Authenticator.
type Option func(*Authenticator)

// WithClock подменяет источник времени при проверке exp.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAuthenticator создаёт проверку токенов с общим секретом.
func NewAuthenticator(secret string, users domain.UserRepository, opts ...Option) (*Authenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	a := &Authenticator{
		secret: []byte(secret),
		users:  users,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Resolve разбирает заголовок Authorization и возвращает актора.
// Все отказы классифицируются как KindUnauthenticated.
func (a *Authenticator) Resolve(ctx context.Context, header string) (domain.Actor, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	raw := strings.TrimSpace(header[len(bearerPrefix):])
	if raw == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, a.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Actor{}, domain.ErrTokenExpired
		}
		return domain.Actor{}, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if claims.UserID == "" {
		return domain.Actor{}, domain.ErrTokenInvalid
	}

	user, err := a.users.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Actor{}, domain.ErrUserInactive
		}
		return domain.Actor{}, fmt.Errorf("load user: %w", err)
	}
	if !user.Active {
		return domain.Actor{}, domain.ErrUserInactive
	}

	role := user.Role
	if role != domain.RoleAdmin {
		role = domain.RoleCustomer
	}
	return domain.Actor{UserID: user.ID, Role: role}, nil
}

// Issue выпускает токен для пользователя (cmd/issue-token и тесты).
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", domain.ErrUserIDRequired
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (a *Authenticator) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return a.secret, nil
}
