package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/storefront-labs/order-core/internal/checkout"
	"github.com/storefront-labs/order-core/internal/config"
	"github.com/storefront-labs/order-core/internal/httpx"
	kafkax "github.com/storefront-labs/order-core/internal/kafka"
	"github.com/storefront-labs/order-core/internal/logx"
	"github.com/storefront-labs/order-core/internal/orders"
	"github.com/storefront-labs/order-core/internal/postgres"
	"github.com/storefront-labs/order-core/internal/redisx"
	"github.com/storefront-labs/order-core/internal/stock"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logx.New(cfg.ServiceName, cfg.Development)
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
		Cart:        &checkout.RedisCart{Client: rdb},
		Payments:    &checkout.RedirectGateway{BaseURL: cfg.PaymentBaseURL},
		Events:      prod,
		Log:         log,
		ServiceName: cfg.ServiceName,
	}

	router := httpx.NewRouter()
	h := &httpx.Handler{
		Checkout: svc,
		Orders:   repo,
		Stock:    ledger,
		Events:   prod,
		Redis:    rdb,
		Log:      log,
		Service:  cfg.ServiceName,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush queued events, then exit the loop
	prod.WaitClosed()
}
