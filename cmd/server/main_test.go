package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/entryledger/internal/infrastructure/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		StoreDriver:         config.StoreDriverMemory,
		LeaseTimeout:        time.Second,
		TransactionTimeout:  5 * time.Second,
		HTTPPort:            "0",
		HTTPShutdownTimeout: time.Second,
		IdempotencyTTL:      time.Minute,
		EventsEnabled:       true,
		EventsInterval:      10 * time.Millisecond,
		EventsBatchSize:     10,
		RateLimitRPS:        1000,
		RateLimitBurst:      1000,
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreDriver = "sqlite"

	_, err := openStore(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
}

func TestNewAppServesMemoryLedger(t *testing.T) {
	a, err := newApp(context.Background(), memoryConfig(), zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.close()

	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/accounts", "application/json",
		strings.NewReader(`{"user_id":"user-1","account_type":"checking","currency":"USD"}`))
	require.NoError(t, err)
	var account struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&account))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/deposits", "application/json",
		strings.NewReader(`{"amount":"12.50","currency":"USD","destination_account_id":"`+account.ID+`"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "entryledger_operations_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNewAppWithRedisAndAuth(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := memoryConfig()
	cfg.RedisEnabled = true
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.AuthEnabled = true
	cfg.JWTSecret = "test-secret"
	cfg.JWTExpiration = time.Hour

	a, err := newApp(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.close()

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewAppRedisUnavailable(t *testing.T) {
	cfg := memoryConfig()
	cfg.RedisEnabled = true
	cfg.RedisURL = "redis://127.0.0.1:1"

	_, err := newApp(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, memoryConfig(), zerolog.Nop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

type ctxMarker struct{}

func TestHTTPServerRequestsOutliveShutdownSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxMarker{}, "app"))
	server := newHTTPServer(ctx, memoryConfig(), http.NotFoundHandler())
	cancel()

	base := server.BaseContext(nil)
	require.NoError(t, base.Err(), "request context must survive the shutdown signal")
	assert.Equal(t, "app", base.Value(ctxMarker{}))
	assert.Equal(t, ":"+memoryConfig().HTTPPort, server.Addr)
}
