package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/config"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/events"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/inventory"
	kafkax "github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/kafka"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/logx"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/payments"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/postgres"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/redisx"
)

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
		log.Fatal("worker stopped", zap.Error(err))
	}
}

// run consumes payment confirmations and sweeps expired reservations until
// a signal arrives or either loop fails.
func run(cfg config.Config, log *zap.Logger) error {
	if cfg.StoreBackend != "postgres" {
		return fmt.Errorf("worker needs STORE_BACKEND=postgres, got %q", cfg.StoreBackend)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, log)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	store := postgres.New(db, log)

	var cache *redisx.Cache
	if cfg.RedisAddr != "" {
		rdb, err := redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		cache = redisx.NewCache(rdb)
	} else {
		log.Warn("REDIS_ADDR not set; payment events are not deduplicated")
	}

	notifier := events.Fanout{&events.StatusCache{Cache: cache, Log: log}}
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 256, log)
		prod.Start()
		notifier = append(notifier, &events.Bus{Pub: prod, Producer: cfg.ServiceName + "-worker", Log: log})
	}

	inv := &inventory.Service{Repo: store, Catalog: store, Ledger: store, TTL: cfg.ReservationTTL, Log: log}
	sweeper := &inventory.Sweeper{Service: inv, Interval: cfg.SweepInterval, Log: log}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("reservation sweeper started", zap.Duration("interval", cfg.SweepInterval))
		return sweeper.Run(gctx)
	})

	if len(cfg.KafkaBrokers) > 0 {
		h := &payments.Handler{
			Orders: &orders.Machine{Store: store, Events: notifier, Log: log},
			Log:    log,
		}
		if cache != nil {
			h.Dedup = cache
		}
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, orders.TopicPaymentConfirmed, cfg.WorkerConcurrency, log)
		g.Go(func() error {
			log.Info("payment consumer started",
				zap.String("group", cfg.WorkerGroup),
				zap.String("topic", orders.TopicPaymentConfirmed),
				zap.Int("workers", cfg.WorkerConcurrency),
			)
			return cons.Start(gctx, h.HandlePaymentConfirmed)
		})
	} else {
		log.Warn("KAFKA_BROKERS not set; payment consumer disabled")
	}

	err = g.Wait()
	log.Info("worker shutting down", zap.Error(err))
	if prod != nil {
		prod.Close()
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if werr := prod.WaitClosed(dctx); werr != nil {
			log.Warn("producer drain", zap.Error(werr))
		}
	}
	return err
}
