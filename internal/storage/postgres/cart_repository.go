package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
// Версия хранится в carts.version, позиции: в cart_items.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

func (r *cartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cart := domain.Cart{UserID: userID}
	err := r.db.QueryRowContext(ctx, `
		SELECT version, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`, userID).Scan(&cart.Version, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("select cart: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, added_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY position ASC
	`, userID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	cart.Lines = make([]domain.CartLine, 0)
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ID, &line.ProductID, &line.Quantity, &line.AddedAt); err != nil {
			return domain.Cart{}, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("iterate cart items: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) Create(ctx context.Context, cart domain.Cart) error {
	return withTx(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO carts (user_id, version, created_at, updated_at)
			VALUES ($1,$2,$3,$4)
		`, cart.UserID, cart.Version, cart.CreatedAt, cart.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrCartAlreadyExists
			}
			return fmt.Errorf("insert cart: %w", err)
		}
		return insertCartItemsTx(ctx, tx, cart)
	})
}

func (r *cartRepository) Save(ctx context.Context, cart domain.Cart) error {
	return withTx(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := bumpCartVersionTx(ctx, tx, cart.UserID, cart.Version, time.Now().UTC()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, cart.UserID); err != nil {
			return fmt.Errorf("delete cart items: %w", err)
		}
		return insertCartItemsTx(ctx, tx, cart)
	})
}

// bumpCartVersionTx увеличивает версию корзины, если она совпадает с ожидаемой.
func bumpCartVersionTx(ctx context.Context, tx *sql.Tx, userID string, expected int64, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE carts
		SET version = version + 1,
		    updated_at = $3
		WHERE user_id = $1
		  AND version = $2
	`, userID, expected, now)
	if err != nil {
		return fmt.Errorf("update cart version: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM carts WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("check cart exists: %w", err)
	}
	if !exists {
		return domain.ErrCartNotFound
	}
	return domain.ErrCartVersionConflict
}

func insertCartItemsTx(ctx context.Context, tx *sql.Tx, cart domain.Cart) error {
	for i, line := range cart.Lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (id, user_id, product_id, quantity, position, added_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, line.ID, cart.UserID, line.ProductID, line.Quantity, i, line.AddedAt); err != nil {
			return fmt.Errorf("insert cart item: %w", err)
		}
	}
	return nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
