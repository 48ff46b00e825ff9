package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestRun_TokenResolvesToUser(t *testing.T) {
	users := memory.NewUserRepository()
	require.NoError(t, users.Upsert(context.Background(), domain.User{ID: "u-42", Role: domain.RoleAdmin, Active: true}))

	var out bytes.Buffer
	require.NoError(t, run([]string{"-user", "u-42", "-secret", "s3cret", "-ttl", "1h"}, func(string) string { return "" }, &out))

	authenticator, err := auth.NewAuthenticator("s3cret", users)
	require.NoError(t, err)
	actor, err := authenticator.Resolve(context.Background(), "Bearer "+strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{UserID: "u-42", Role: domain.RoleAdmin}, actor)
}

func TestParseOptions_SecretFallbacks(t *testing.T) {
	opts, err := parseOptions(nil, func(string) string { return "" })
	require.NoError(t, err)
	assert.Equal(t, app.DefaultJWTSecret, opts.secret)
	assert.Equal(t, app.DemoCustomerID, opts.userID)
	assert.Equal(t, 24*time.Hour, opts.ttl)

	opts, err = parseOptions(nil, func(key string) string {
		if key == "STOREFRONT_JWT_SECRET" {
			return "from-env"
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, "from-env", opts.secret)
}

func TestRun_RejectsBadInput(t *testing.T) {
	noEnv := func(string) string { return "" }
	var out bytes.Buffer

	assert.Error(t, run([]string{"-ttl", "0s"}, noEnv, &out))
	assert.Error(t, run([]string{"-user", ""}, noEnv, &out))
	assert.Error(t, run([]string{"-unknown"}, noEnv, &out))
	assert.Empty(t, out.String())
}
