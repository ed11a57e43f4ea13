package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/storefront-labs/order-core/internal/checkout"
	"github.com/storefront-labs/order-core/internal/config"
	kafkax "github.com/storefront-labs/order-core/internal/kafka"
	"github.com/storefront-labs/order-core/internal/logx"
	"github.com/storefront-labs/order-core/internal/orders"
	"github.com/storefront-labs/order-core/internal/postgres"
	"github.com/storefront-labs/order-core/internal/redisx"
	"github.com/storefront-labs/order-core/internal/stock"
)

// Settlement worker: consumes payment gateway results and settles or deletes
// the matching orders.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logx.New(cfg.ServiceName+"-settlement", cfg.Development)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, log)
	prod.Start(ctx)

	ledger := &stock.Ledger{DB: db}
	repo := &orders.Repo{DB: db, Ledger: ledger}
	svc := &checkout.Service{
		Orders:      repo,
		Stock:       ledger,
		Events:      prod,
		Log:         log,
		ServiceName: cfg.ServiceName + "-settlement",
	}

	handler := &checkout.SettlementConsumer{Service: svc, Redis: rdb, Log: log}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.SettlementGroup,
		orders.TopicPaymentResults, cfg.SettlementWorkers, log)

	go func() {
		log.Info("settlement consumer started",
			zap.String("group", cfg.SettlementGroup),
			zap.String("topic", orders.TopicPaymentResults),
			zap.Int("workers", cfg.SettlementWorkers))
		if err := cons.Start(ctx, handler.HandlePaymentResult); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}
