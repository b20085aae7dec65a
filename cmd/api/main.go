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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/toko-order-engine.git/internal/config"
	"github.com/ariefcatur/toko-order-engine.git/internal/httpx"
	"github.com/ariefcatur/toko-order-engine.git/internal/inventory"
	"github.com/ariefcatur/toko-order-engine.git/internal/invoices"
	kafkax "github.com/ariefcatur/toko-order-engine.git/internal/kafka"
	"github.com/ariefcatur/toko-order-engine.git/internal/logx"
	"github.com/ariefcatur/toko-order-engine.git/internal/metrics"
	"github.com/ariefcatur/toko-order-engine.git/internal/policy"
	"github.com/ariefcatur/toko-order-engine.git/internal/postgres"
	"github.com/ariefcatur/toko-order-engine.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logx.New(cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers: satu per topic lifecycle
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, invoices.TopicInvoiceCreated, 1024, log)
	pCreated.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, invoices.TopicInvoiceStatus, 1024, log)
	pStatus.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, invoices.TopicInvoiceCancelled, 1024, log)
	pCancelled.Start(ctx)

	m := metrics.NewEngineMetrics("api")
	repo := &invoices.Repo{DB: db, Ledger: &inventory.Ledger{DB: db}}
	pol := &policy.Store{DB: db}

	router := httpx.NewRouter()
	ih := &httpx.InvoicesHandler{
		Engine: repo,
		Events: httpx.EventSinks{
			Created:   pCreated,
			Status:    pStatus,
			Cancelled: pCancelled,
		},
		Redis:   rdb,
		Metrics: m,
		Service: cfg.ServiceName,
	}
	ih.Register(router)
	(&httpx.AdminHandler{Policy: pol}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	msrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
		if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		_ = msrv.Shutdown(sctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server exit", zap.Error(err))
	}

	log.Info("shutting down, flushing producers")
	pCreated.Close()
	pStatus.Close()
	pCancelled.Close()
	pCreated.WaitClosed()
	pStatus.WaitClosed()
	pCancelled.WaitClosed()
}
