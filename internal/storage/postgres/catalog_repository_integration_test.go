package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestProductRepository_PostgresCRUD(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)
	ctx := context.Background()
	now := time.Now().UTC().Round(time.Microsecond)

	product := domain.Product{
		ID:             "1",
		Title:          "Wireless Headphones",
		PriceMinor:     9999,
		Category:       "Electronics",
		Rating:         4.5,
		InStock:        true,
		StockQuantity:  15,
		Features:       []string{"Noise cancellation"},
		Specifications: map[string]string{"Battery": "30h"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, repo.Create(ctx, product))

	got, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, product.Features, got.Features)
	require.Equal(t, "30h", got.Specifications["Battery"])
	require.Equal(t, int32(15), got.StockQuantity)

	got.PriceMinor = 8999
	require.NoError(t, repo.Update(ctx, got))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, int64(8999), list[0].PriceMinor)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, repo.Delete(ctx, "1"))
	require.ErrorIs(t, repo.Delete(ctx, "1"), domain.ErrProductNotFound)
	_, err = repo.Get(ctx, "1")
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestUserRepository_PostgresUpsert(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewUserRepository(store)
	ctx := context.Background()

	_, err := repo.Get(ctx, "u-1")
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	user := domain.User{ID: "u-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Role: domain.RoleCustomer, Active: true}
	require.NoError(t, repo.Upsert(ctx, user))

	user.Role = domain.RoleAdmin
	require.NoError(t, repo.Upsert(ctx, user))

	got, err := repo.Get(ctx, "u-1")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, got.Role)
	require.True(t, got.Active)
}
