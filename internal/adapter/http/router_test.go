package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/entryledger/internal/adapter/http/dto"
	"github.com/iho/entryledger/internal/adapter/http/handler"
	apimiddleware "github.com/iho/entryledger/internal/adapter/http/middleware"
	"github.com/iho/entryledger/internal/adapter/repository/memory"
	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/infrastructure/auth"
	"github.com/iho/entryledger/internal/infrastructure/idgen"
	"github.com/iho/entryledger/internal/infrastructure/metrics"
	"github.com/iho/entryledger/internal/usecase"
)

func newRouterConfig(opts ...func(*RouterConfig)) RouterConfig {
	store := memory.NewStore(time.Second)
	uow := memory.NewTxManager(store)
	accounts := memory.NewAccountRepository(store)
	entries := memory.NewEntryRepository(store)
	outbox := memory.NewOutboxRepository(store)
	ids := idgen.NewULIDGenerator()

	coordinator := usecase.NewCoordinator(usecase.CoordinatorConfig{
		UnitOfWork:   uow,
		Accounts:     accounts,
		Ledger:       entries,
		Transactions: memory.NewTransactionRepository(store),
		Outbox:       outbox,
		IDGen:        ids,
	})

	cfg := RouterConfig{
		AccountHandler:     handler.NewAccountHandler(usecase.NewAccountUseCase(uow, accounts, entries, outbox, ids, nil, zerolog.Nop())),
		TransactionHandler: handler.NewTransactionHandler(coordinator),
		LedgerHandler:      handler.NewLedgerHandler(usecase.NewLedgerUseCase(memory.NewLedgerRepository(store))),
		HealthHandler:      handler.NewHealthHandler(),
		Logger:             zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type apiClient struct {
	t      *testing.T
	router http.Handler
	token  string
}

func (c *apiClient) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func (c *apiClient) openAccount(currency string) string {
	c.t.Helper()

	rec := c.do(http.MethodPost, "/api/v1/accounts", dto.CreateAccountRequest{UserID: "user-1", AccountType: "checking", Currency: currency})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())

	var acc dto.AccountResponse
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &acc))
	return acc.ID
}

func (c *apiClient) balance(id string) decimal.Decimal {
	c.t.Helper()

	rec := c.do(http.MethodGet, "/api/v1/accounts/"+id+"/balance", nil)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())

	var b dto.BalanceResponse
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &b))
	return b.Balance
}

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRouter_ReadinessReportsFailingCheck(t *testing.T) {
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.HealthHandler = handler.NewHealthHandler(handler.ReadinessCheck{
			Name:  "database",
			Check: func(context.Context) error { return errors.New("down") },
		})
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.MetricsHandler = promhttp.Handler()
	}))

	chiRoutes, ok := router.(chi.Routes)
	require.True(t, ok, "router does not implement chi.Routes")

	seen := map[string]bool{}
	require.NoError(t, chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}))

	expected := []string{
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"POST /api/v1/accounts/",
		"GET /api/v1/accounts/",
		"GET /api/v1/accounts/{id}",
		"GET /api/v1/accounts/{id}/balance",
		"GET /api/v1/accounts/{id}/ledger",
		"GET /api/v1/accounts/{id}/transactions",
		"POST /api/v1/accounts/{id}/freeze",
		"POST /api/v1/accounts/{id}/unfreeze",
		"POST /api/v1/deposits",
		"POST /api/v1/withdrawals",
		"POST /api/v1/transfers",
		"GET /api/v1/transactions/{id}",
		"GET /api/v1/ledger/consistency",
	}

	for _, route := range expected {
		assert.True(t, seen[route], "expected route %s to be registered", route)
	}
}

func TestNewRouter_MoneyMovementEndToEnd(t *testing.T) {
	c := &apiClient{t: t, router: NewRouter(newRouterConfig())}

	a := c.openAccount("USD")
	b := c.openAccount("USD")

	rec := c.do(http.MethodPost, "/api/v1/deposits", dto.DepositRequest{Amount: decimal.NewFromInt(100), Currency: "USD", DestinationAccountID: a})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/api/v1/transfers", dto.TransferRequest{Amount: decimal.NewFromInt(40), Currency: "USD", SourceAccountID: a, DestinationAccountID: b})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var transfer dto.TransactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transfer))
	assert.Equal(t, string(domain.TransactionStatusCompleted), transfer.Status)

	assert.True(t, c.balance(a).Equal(decimal.NewFromInt(60)))
	assert.True(t, c.balance(b).Equal(decimal.NewFromInt(40)))

	// Overdraft is recorded as a failed transaction and changes nothing.
	rec = c.do(http.MethodPost, "/api/v1/withdrawals", dto.WithdrawRequest{Amount: decimal.NewFromInt(500), Currency: "USD", SourceAccountID: b})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var failure dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failure))
	require.NotEmpty(t, failure.TransactionID)

	rec = c.do(http.MethodGet, "/api/v1/transactions/"+failure.TransactionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var failed dto.TransactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	assert.Equal(t, string(domain.TransactionStatusFailed), failed.Status)
	assert.Empty(t, failed.Entries)
	assert.True(t, c.balance(b).Equal(decimal.NewFromInt(40)))

	rec = c.do(http.MethodGet, "/api/v1/ledger/consistency", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/api/v1/accounts/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewRouter_IdempotentDepositAppliesOnce(t *testing.T) {
	c := &apiClient{t: t, router: NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.IdempotencyStore = newRouterIdempotencyStore()
	}))}

	acc := c.openAccount("EUR")
	deposit := dto.DepositRequest{Amount: decimal.NewFromInt(25), Currency: "EUR", DestinationAccountID: acc}

	first := c.do(http.MethodPost, "/api/v1/deposits", deposit, apimiddleware.IdempotencyKeyHeader, "dep-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := c.do(http.MethodPost, "/api/v1/deposits", deposit, apimiddleware.IdempotencyKeyHeader, "dep-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(apimiddleware.IdempotencyReplayHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	assert.True(t, c.balance(acc).Equal(decimal.NewFromInt(25)))
}

func TestNewRouter_RolesGateOperations(t *testing.T) {
	mgr := auth.NewJWTManager("router-secret", time.Hour)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.TokenVerifier = mgr
	}))

	tokenFor := func(role domain.Role) string {
		token, err := mgr.Generate(domain.Principal{Subject: string(role) + "-1", Role: role})
		require.NoError(t, err)
		return token
	}

	anonymous := &apiClient{t: t, router: router}
	rec := anonymous.do(http.MethodGet, "/api/v1/accounts", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	operator := &apiClient{t: t, router: router, token: tokenFor(domain.RoleOperator)}
	acc := operator.openAccount("USD")

	viewer := &apiClient{t: t, router: router, token: tokenFor(domain.RoleViewer)}
	rec = viewer.do(http.MethodGet, "/api/v1/accounts/"+acc, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = viewer.do(http.MethodPost, "/api/v1/deposits", dto.DepositRequest{Amount: decimal.NewFromInt(1), Currency: "USD", DestinationAccountID: acc})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = operator.do(http.MethodPost, "/api/v1/accounts/"+acc+"/freeze", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := &apiClient{t: t, router: router, token: tokenFor(domain.RoleAdmin)}
	rec = admin.do(http.MethodPost, "/api/v1/accounts/"+acc+"/freeze", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = operator.do(http.MethodPost, "/api/v1/deposits", dto.DepositRequest{Amount: decimal.NewFromInt(1), Currency: "USD", DestinationAccountID: acc})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.Metrics = m
		cfg.RateLimiter = apimiddleware.NewRateLimiter(1, 1, m.RateLimitHits)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "1.2.3.4:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

type routerIdempotencyStore struct {
	values map[string][]byte
}

func newRouterIdempotencyStore() *routerIdempotencyStore {
	return &routerIdempotencyStore{values: map[string][]byte{}}
}

func (s *routerIdempotencyStore) CheckAndSet(_ context.Context, key string, placeholder []byte, _ time.Duration) (bool, []byte, error) {
	if v, ok := s.values[key]; ok {
		return true, v, nil
	}
	s.values[key] = placeholder
	return false, nil, nil
}

func (s *routerIdempotencyStore) Update(_ context.Context, key string, response []byte, _ time.Duration) error {
	s.values[key] = response
	return nil
}

func (s *routerIdempotencyStore) Release(_ context.Context, key string) error {
	delete(s.values, key)
	return nil
}
