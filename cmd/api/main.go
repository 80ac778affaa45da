package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-bakery-orders/internal/auth"
	"github.com/ariefcatur/go-bakery-orders/internal/catalog"
	"github.com/ariefcatur/go-bakery-orders/internal/config"
	"github.com/ariefcatur/go-bakery-orders/internal/httpx"
	"github.com/ariefcatur/go-bakery-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-bakery-orders/internal/kafka"
	"github.com/ariefcatur/go-bakery-orders/internal/locker"
	"github.com/ariefcatur/go-bakery-orders/internal/logging"
	"github.com/ariefcatur/go-bakery-orders/internal/memstore"
	"github.com/ariefcatur/go-bakery-orders/internal/orders"
	"github.com/ariefcatur/go-bakery-orders/internal/pickup"
	"github.com/ariefcatur/go-bakery-orders/internal/postgres"
	"github.com/ariefcatur/go-bakery-orders/internal/redisx"
)

// store is what the API needs from a backing store.
type store interface {
	orders.Store
	catalog.Repo
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: cfg.ServiceName})
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("config")
	}
	if dev := cfg.DevSecrets(); len(dev) > 0 {
		logging.Warn().Strs("vars", dev).Msg("using development signing secrets, tokens and pickup codes can be forged")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	var st store
	switch cfg.StoreDriver {
	case "memory":
		logging.Warn().Msg("using in-memory store, data is lost on restart")
		st = memstore.New()
	default:
		db, err := postgres.Connect(ctx, postgres.PoolConfig{
			DSN:              cfg.PostgresDSN,
			MaxConns:         int32(cfg.PostgresMaxConns),
			StatementTimeout: cfg.RequestTimeout,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("db connect")
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			logging.Fatal().Err(err).Msg("db migrate")
		}
		st = postgres.New(db)
	}

	// Redis: shared day lease and caches. Without it a single node uses
	// in-process day locks.
	var (
		rdb   *redis.Client
		locks locker.DayLocker = locker.NewLocalLocks()
	)
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logging.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping")
		}
		locks = &redisx.DayLease{Redis: rdb, TTL: cfg.LockerLeaseTTL}
	} else {
		logging.Warn().Msg("REDIS_ADDR not set, locker day locks are process-local")
	}

	// Kafka producer
	var (
		prod      *kafkax.Producer
		publisher orders.Publisher
	)
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024)
		prod.Start(ctx)
		publisher = prod
	} else {
		logging.Warn().Msg("KAFKA_BROKERS not set, events are not published")
	}

	loc := cfg.Location()
	svc := &orders.Service{
		Store:       st,
		Locker:      locker.NewManager(locks, loc),
		Issuer:      pickup.NewIssuer(cfg.PickupSigningKey),
		Publisher:   publisher,
		Fees:        orders.Fees{Delivery: cfg.DeliveryFee, Locker: cfg.LockerFee},
		Location:    loc,
		Timeout:     cfg.RequestTimeout,
		ServiceName: cfg.ServiceName,
	}
	api := &httpx.API{
		Orders:          svc,
		Catalog:         &catalog.Service{Repo: st},
		Inventory:       &inventory.Service{Ledger: st, Catalog: st},
		Auth:            auth.NewVerifier(cfg.JWTSecret),
		RateLimitPerMin: cfg.RateLimitPerMin,
	}
	if rdb != nil {
		api.Carts = &redisx.CartSessions{Redis: rdb}
		api.Idempotency = &redisx.Idempotency{Redis: rdb}
		api.Status = &redisx.StatusCache{Redis: rdb}
	}

	router := httpx.NewRouter(httpx.RouterConfig{CORSOrigins: cfg.CORSOrigins, Timeout: 3 * cfg.RequestTimeout})
	api.Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.StoreDriver).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info().Msg("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	err := g.Wait()

	if prod != nil {
		prod.Close()      // stop accepting, flush queue
		prod.WaitClosed() // drain
	}
	if err != nil {
		logging.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}
