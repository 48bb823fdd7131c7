package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/auth"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/cart"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/checkout"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/config"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/events"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/httpx"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/inventory"
	kafkax "github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/kafka"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/logx"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/memstore"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/postgres"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/pricing"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/ratelimit"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/redisx"
)

// backend is every storage port the API needs. Both memstore and postgres
// satisfy it.
type backend interface {
	orders.Store
	inventory.Ledger
	inventory.CatalogAdmin
	inventory.ReservationRepo
	cart.Store
	pricing.ConfigStore
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logx.New(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// store
	var store backend
	switch cfg.StoreBackend {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		store = memstore.New()
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		store = postgres.New(db, log)
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	// redis (optional)
	var rdb *redis.Client
	var cache *redisx.Cache
	if cfg.RedisAddr != "" {
		c, err := redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer c.Close()
		rdb = c
		cache = redisx.NewCache(rdb)
	}

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	switch {
	case cfg.CartRateLimit == 0:
	case rdb != nil:
		limiter = redisx.NewLimiter(rdb, "cart", cfg.CartRateLimit, cfg.CartRateWindow)
	default:
		limiter = ratelimit.NewMemory(cfg.CartRateLimit, cfg.CartRateWindow)
	}

	// events: kafka (optional) + status cache
	notifier := events.Fanout{&events.StatusCache{Cache: cache, Log: log}}
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
		prod.Start()
		notifier = append(notifier, &events.Bus{Pub: prod, Producer: cfg.ServiceName, Log: log})
	}

	prices := &pricing.Service{Store: store, DefaultFee: cfg.DefaultShippingFee}
	inv := &inventory.Service{Repo: store, Catalog: store, Ledger: store, TTL: cfg.ReservationTTL, Log: log}
	carts := &cart.Service{Store: store, Catalog: store, Limiter: limiter, Log: log}
	if cfg.CartHolds {
		carts.Holds = inv
		carts.HoldTTL = cfg.ReservationTTL
	}

	api := &httpx.API{
		Auth:      auth.NewProvider(cfg.JWTSecret, cfg.TokenTTL),
		Checkout:  &checkout.Coordinator{Store: store, Pricing: prices, Events: notifier, Log: log},
		Orders:    &orders.Machine{Store: store, Events: notifier, Log: log},
		Cart:      carts,
		Inventory: inv,
		Catalog:   store,
		Pricing:   prices,
		Cache:     cache,
		Log:       log,
	}
	router := httpx.NewRouter(log)
	api.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errc:
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if prod != nil {
		// close inbox, then wait for the loop to flush and close the writer
		prod.Close()
		if err := prod.WaitClosed(sctx); err != nil {
			log.Warn("producer drain", zap.Error(err))
		}
	}
	return runErr
}
