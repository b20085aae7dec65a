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
	"github.com/ariefcatur/toko-order-engine.git/internal/inventory"
	"github.com/ariefcatur/toko-order-engine.git/internal/invoices"
	"github.com/ariefcatur/toko-order-engine.git/internal/logx"
	"github.com/ariefcatur/toko-order-engine.git/internal/metrics"
	"github.com/ariefcatur/toko-order-engine.git/internal/policy"
	"github.com/ariefcatur/toko-order-engine.git/internal/postgres"
	"github.com/ariefcatur/toko-order-engine.git/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logx.New(cfg.ServiceName + "-sweeper")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	m := metrics.NewEngineMetrics("sweeper")
	repo := &invoices.Repo{DB: db, Ledger: &inventory.Ledger{DB: db}}
	sw := &scheduler.Sweeper{
		Policy:   &policy.Store{DB: db},
		Orders:   repo,
		Machine:  repo,
		Interval: cfg.SweepInterval,
		Log:      log,
		Metrics:  m,
	}

	msrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sw.Run(gctx) })
	g.Go(func() error {
		if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = msrv.Shutdown(sctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal("sweeper exit", zap.Error(err))
	}
}
