package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/entryledger/internal/adapter/http"
	"github.com/iho/entryledger/internal/adapter/http/handler"
	"github.com/iho/entryledger/internal/adapter/http/middleware"
	"github.com/iho/entryledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/entryledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/entryledger/internal/adapter/repository/redis"
	"github.com/iho/entryledger/internal/infrastructure/auth"
	"github.com/iho/entryledger/internal/infrastructure/config"
	"github.com/iho/entryledger/internal/infrastructure/eventpublisher"
	"github.com/iho/entryledger/internal/infrastructure/idgen"
	"github.com/iho/entryledger/internal/infrastructure/metrics"
	"github.com/iho/entryledger/internal/infrastructure/postgres"
	"github.com/iho/entryledger/internal/infrastructure/redis"
	"github.com/iho/entryledger/internal/usecase"
)

const (
	limiterCleanupInterval = time.Minute
	limiterIdleTimeout     = 3 * time.Minute
)

// storeSet is one backend behind the usecase interfaces.
type storeSet struct {
	uow          usecase.UnitOfWorkManager
	accounts     usecase.AccountStore
	entries      usecase.LedgerStore
	transactions usecase.TransactionRepository
	outbox       usecase.OutboxRepository
	ledger       usecase.LedgerRepository
	retrier      usecase.Retrier
	checks       []handler.ReadinessCheck
	close        func()
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storeSet, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := memory.NewStore(cfg.LeaseTimeout)
		logger.Warn().Msg("using in-memory store, data is lost on exit")

		return &storeSet{
			uow:          memory.NewTxManager(store),
			accounts:     memory.NewAccountRepository(store),
			entries:      memory.NewEntryRepository(store),
			transactions: memory.NewTransactionRepository(store),
			outbox:       memory.NewOutboxRepository(store),
			ledger:       memory.NewLedgerRepository(store),
			close:        func() {},
		}, nil

	case config.StoreDriverPostgres:
		if cfg.RunMigrations {
			if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
				return nil, err
			}
		}

		connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
		defer cancel()

		pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		logger.Info().Msg("connected to postgres")

		return &storeSet{
			uow:          postgresRepo.NewTxManager(pool, cfg.LeaseTimeout),
			accounts:     postgresRepo.NewAccountRepository(pool),
			entries:      postgresRepo.NewEntryRepository(pool),
			transactions: postgresRepo.NewTransactionRepository(pool),
			outbox:       postgresRepo.NewOutboxRepository(pool),
			ledger:       postgresRepo.NewLedgerRepository(pool),
			retrier:      postgresRepo.NewRetrier(logger),
			checks:       []handler.ReadinessCheck{{Name: "postgres", Check: pingPool(pool)}},
			close:        pool.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func pingPool(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}

// app is the fully wired server. Background workers are started by run.
type app struct {
	handler http.Handler
	relay   *eventpublisher.EventPublisher
	limiter *middleware.RateLimiter
	close   func()
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, reg *prometheus.Registry) (*app, error) {
	stores, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	closers := []func(){stores.close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	checks := stores.checks
	var (
		idempotencyStore usecase.IdempotencyStore
		publisher        eventpublisher.Publisher = eventpublisher.NewLogPublisher(logger)
	)

	if cfg.RedisEnabled {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		logger.Info().Msg("connected to redis")

		idempotencyStore = redisRepo.NewIdempotencyStore(client)
		publisher = redisRepo.NewEventPublisher(client, cfg.EventsChannel)
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Check: redisReady(client)})
	} else {
		logger.Warn().Msg("redis disabled, idempotency keys are ignored")
	}

	ids := idgen.NewULIDGenerator()
	coordinator := usecase.NewCoordinator(usecase.CoordinatorConfig{
		UnitOfWork:   stores.uow,
		Accounts:     stores.accounts,
		Ledger:       stores.entries,
		Transactions: stores.transactions,
		Outbox:       stores.outbox,
		IDGen:        ids,
		Retrier:      stores.retrier,
		Metrics:      m,
		Logger:       &logger,
		Timeout:      cfg.TransactionTimeout,
	})
	accountUC := usecase.NewAccountUseCase(stores.uow, stores.accounts, stores.entries, stores.outbox, ids, m, logger)
	ledgerUC := usecase.NewLedgerUseCase(stores.ledger)

	routerCfg := httpAdapter.RouterConfig{
		AccountHandler:     handler.NewAccountHandler(accountUC),
		TransactionHandler: handler.NewTransactionHandler(coordinator),
		LedgerHandler:      handler.NewLedgerHandler(ledgerUC),
		HealthHandler:      handler.NewHealthHandler(checks...),
		IdempotencyStore:   idempotencyStore,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		Metrics:            m,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:             logger,
	}

	if cfg.AuthEnabled {
		routerCfg.TokenVerifier = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	a := &app{close: closeAll}
	if cfg.RateLimitRPS > 0 {
		a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m.RateLimitHits)
		routerCfg.RateLimiter = a.limiter
	}

	if cfg.EventsEnabled {
		a.relay = eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: stores.outbox,
			Publisher:  publisher,
			Recorder:   m,
			Logger:     logger,
			BatchSize:  cfg.EventsBatchSize,
			Interval:   cfg.EventsInterval,
			Retention:  cfg.EventsRetention,
		})
	}

	a.handler = httpAdapter.NewRouter(routerCfg)
	return a, nil
}

func redisReady(client goredis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error { return redis.Ready(ctx, client) }
}

// newHTTPServer builds the listener-facing server. Request contexts keep the
// values of ctx but not its cancellation, so Shutdown can drain in-flight work.
func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	base := context.WithoutCancel(ctx)
	return &http.Server{
		Addr:         net.JoinHostPort("", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return base },
	}
}

// run serves HTTP and the background workers until ctx is cancelled or one of
// them fails.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := newApp(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.close()

	server := newHTTPServer(ctx, cfg, a.handler)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("store", cfg.StoreDriver).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if a.relay != nil {
		g.Go(func() error {
			if err := a.relay.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if a.limiter != nil {
		g.Go(func() error {
			return a.limiter.Run(gctx, limiterCleanupInterval, limiterIdleTimeout)
		})
	}

	return g.Wait()
}
