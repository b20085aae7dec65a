package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/toko-order-engine.git/internal/config"
	"github.com/ariefcatur/toko-order-engine.git/internal/invoices"
	kafkax "github.com/ariefcatur/toko-order-engine.git/internal/kafka"
	"github.com/ariefcatur/toko-order-engine.git/internal/logx"
	"github.com/ariefcatur/toko-order-engine.git/internal/redisx"
)

// notifier: consume event status dan segarkan cache status di Redis, supaya
// GET /invoices/{id} tetap hot walau transisi terjadi di proses lain
// (sweeper, kasir di cabang lain).
type notifier struct {
	rdb *redis.Client
	log *zap.Logger
}

func (n *notifier) handle(ctx context.Context, m kafkago.Message) error {
	var env invoices.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != invoices.EventStatusChanged {
		return nil // ignore
	}

	// dedup via event_id
	dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
	if exists, _ := redisx.Exists(ctx, n.rdb, dkey); exists {
		return nil
	}
	_ = n.rdb.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[invoices.StatusChangedPayload](env.Payload)
	if err != nil {
		return err
	}

	key := fmt.Sprintf(redisx.KeyInvoiceStatus, p.InvoiceID)
	body, _ := json.Marshal(map[string]any{
		"invoice_id": p.InvoiceID,
		"status":     p.NewStatus,
		"label":      invoices.DisplayLabel(p.Channel, p.NewStatus),
	})
	if err := n.rdb.Set(ctx, key, body, redisx.TTLStatusCache).Err(); err != nil {
		return err
	}
	n.log.Debug("status cache refreshed",
		zap.String("invoice_id", p.InvoiceID), zap.String("status", string(p.NewStatus)))
	return nil
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logx.New(cfg.ServiceName + "-notifier")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	group := getenv("NOTIFIER_GROUP", "invoice-notifier")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, invoices.TopicInvoiceStatus, workers, log)

	n := &notifier{rdb: rdb, log: log}
	log.Info("notifier consumer started",
		zap.String("group", group), zap.Int("workers", workers))
	if err := cons.Start(ctx, n.handle); err != nil {
		log.Fatal("consumer exit", zap.Error(err))
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
