package app

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Демо-пользователи для локального запуска: токены для них выпускает cmd/issue-token.
const (
	DemoAdminID    = "admin"
	DemoCustomerID = "customer"
)

// DemoUsers возвращает учётные записи, создаваемые при seed_users.
func DemoUsers() []domain.User {
	return []domain.User{
		{
			ID:        DemoAdminID,
			FirstName: "Admin",
			LastName:  "User",
			Email:     "admin@fashionstore.com",
			Role:      domain.RoleAdmin,
			Active:    true,
		},
		{
			ID:        DemoCustomerID,
			FirstName: "Demo",
			LastName:  "Customer",
			Email:     "customer@fashionstore.com",
			Role:      domain.RoleCustomer,
			Active:    true,
		},
	}
}

func seedUsers(ctx context.Context, users domain.UserRepository) error {
	for _, user := range DemoUsers() {
		if err := users.Upsert(ctx, user); err != nil {
			return fmt.Errorf("seed user %s: %w", user.ID, err)
		}
	}
	return nil
}
