package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "app-test")
}

func memoryConfig() Config {
	cfg := DefaultConfig()
	cfg.MetricsAddr = ""
	cfg.GRPCAddr = ""
	return cfg
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func bearer(t *testing.T, a *App, userID string) string {
	t.Helper()
	authenticator, err := auth.NewAuthenticator(a.cfg.JWTSecret, a.deps.users)
	require.NoError(t, err)
	token, err := authenticator.Issue(userID, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func call(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestNew_MemoryEndToEnd(t *testing.T) {
	a := newTestApp(t, memoryConfig())
	handler := a.Handler()
	ctx := context.Background()

	health := call(t, handler, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, health.Code)

	list := call(t, handler, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var products []struct {
		ID    string  `json:"_id"`
		Price float64 `json:"price"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &products))
	require.Len(t, products, 18)

	token := bearer(t, a, DemoCustomerID)
	added := call(t, handler, http.MethodPost, "/api/cart", token, map[string]any{
		"productId": products[0].ID,
		"quantity":  1,
	})
	require.Equal(t, http.StatusOK, added.Code, added.Body.String())

	placed := call(t, handler, http.MethodPost, "/api/orders", token, map[string]any{
		"paymentMethod": "credit_card",
	})
	require.Equal(t, http.StatusCreated, placed.Code, placed.Body.String())
	assert.Contains(t, placed.Body.String(), `"orderNumber":"ORD-`)

	sent := a.outbox.ProcessOnce(ctx)
	assert.Equal(t, 1, sent, "order.created goes through the log publisher")

	forbidden := call(t, handler, http.MethodPost, "/api/products", token, map[string]any{"title": "x", "price": 1})
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	created := call(t, handler, http.MethodPost, "/api/products", bearer(t, a, DemoAdminID), map[string]any{
		"title": "Linen Shirt",
		"price": 45.5,
	})
	assert.Equal(t, http.StatusCreated, created.Code, created.Body.String())
}

func TestNew_OpsHandler(t *testing.T) {
	a := newTestApp(t, memoryConfig())
	ops := a.OpsHandler()

	_ = call(t, a.Handler(), http.MethodGet, "/api/products", "", nil)

	metricsResp := call(t, ops, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, metricsResp.Code)
	assert.Contains(t, metricsResp.Body.String(), "storefront_http_requests_total")
	assert.Contains(t, metricsResp.Body.String(), "go_goroutines")

	assert.Equal(t, http.StatusOK, call(t, ops, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, call(t, ops, http.MethodGet, "/livez", "", nil).Code)
	ready := call(t, ops, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, "ready", ready.Body.String())
}

func TestNew_SkipsSeedWhenDisabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.SeedCatalog = false
	cfg.SeedUsers = false
	a := newTestApp(t, cfg)

	list := call(t, a.Handler(), http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, "[]", strings.TrimSpace(list.Body.String()))

	_, err := a.deps.users.Get(context.Background(), DemoAdminID)
	assert.Error(t, err)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.StorageDriver = "sqlite"
	_, err := New(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	deps, err := initRuntimeDependencies(context.Background(), memoryConfig(), testLogger())
	require.NoError(t, err)
	defer func() { _ = deps.Close() }()

	assert.IsType(t, &memory.CheckoutRepository{}, deps.placer)
	assert.NotNil(t, deps.idempotency)
	assert.Empty(t, deps.checkers)
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	cfg := memoryConfig()
	cfg.StorageDriver = StorageDriverPostgres
	_, err := initRuntimeDependencies(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}

func TestInitRuntimeDependencies_RedisCarts(t *testing.T) {
	srv := miniredis.RunT(t)

	cfg := memoryConfig()
	cfg.CartDriver = CartDriverRedis
	cfg.RedisAddr = srv.Addr()

	deps, err := initRuntimeDependencies(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer func() { _ = deps.Close() }()

	assert.IsType(t, &checkout.CompensatingPlacer{}, deps.placer)
	require.Contains(t, deps.checkers, "redis")
	assert.Equal(t, "healthy", string(deps.checkers["redis"].Check(context.Background()).Status))
}

func TestInitRuntimeDependencies_RedisUnavailable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	cfg := memoryConfig()
	cfg.CartDriver = CartDriverRedis
	cfg.RedisAddr = addr

	_, err := initRuntimeDependencies(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := memoryConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	a := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
