package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/toko-order-engine.git/internal/invoices"
	"github.com/ariefcatur/toko-order-engine.git/internal/metrics"
)

// PolicySource dibaca fresh tiap sweep; perubahan timeout berlaku tick depan.
type PolicySource interface {
	CurrentTimeoutHours(ctx context.Context) (float64, error)
}

// OverdueSource mendaftar invoice awaiting_payment yang melewati cutoff.
type OverdueSource interface {
	Overdue(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Transitioner: pembatalan sweeper lewat jalur transisi normal, tanpa bypass.
type Transitioner interface {
	Transition(ctx context.Context, invoiceID string, target invoices.Status, actor invoices.Actor, reason string) error
}

// Sweeper membatalkan order yang belum dibayar melewati deadline. Tiap tick
// satu sweep; konflik per invoice (keburu dibayar / sudah dibatalkan sweep
// lain) di-skip, hanya error infrastruktur yang menghentikan sweep — dicoba
// lagi di tick berikutnya.
type Sweeper struct {
	Policy   PolicySource
	Orders   OverdueSource
	Machine  Transitioner
	Interval time.Duration
	Log      *zap.Logger
	Metrics  *metrics.EngineMetrics

	// Now bisa di-inject di test; nil = time.Now.
	Now func() time.Time
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run blokir sampai ctx selesai.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	s.Log.Info("deadline sweeper started", zap.Duration("interval", s.Interval))
	for {
		select {
		case <-ctx.Done():
			s.Log.Info("deadline sweeper stopped")
			return nil
		case <-t.C:
			if err := s.Sweep(ctx); err != nil {
				// datastore down dkk: log, jangan crash, tunggu tick depan
				s.Log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep menjalankan satu putaran scan-and-cancel.
func (s *Sweeper) Sweep(ctx context.Context) error {
	if s.Metrics != nil {
		s.Metrics.SweepRuns.Inc()
	}

	hours, err := s.Policy.CurrentTimeoutHours(ctx)
	if err != nil {
		return err
	}
	cutoff := s.now().Add(-time.Duration(hours * float64(time.Hour)))

	ids, err := s.Orders.Overdue(ctx, cutoff)
	if err != nil {
		return err
	}

	var cancelled, skipped int
	for _, id := range ids {
		err := s.Machine.Transition(ctx, id, invoices.StatusCancelled,
			invoices.SystemTimeout, "payment deadline exceeded")
		switch {
		case err == nil:
			cancelled++
			if s.Metrics != nil {
				s.Metrics.SweepCancelled.Inc()
			}
			s.Log.Info("invoice auto-cancelled",
				zap.String("invoice_id", id), zap.Float64("timeout_hours", hours))
		case errors.Is(err, invoices.ErrAlreadyCancelled),
			errors.Is(err, invoices.ErrInvalidTransition):
			// race normal: invoice berubah state antara query dan transisi
			skipped++
			if s.Metrics != nil {
				s.Metrics.SweepSkipped.Inc()
			}
		default:
			// infrastruktur: hentikan sweep ini, sisa id dicoba tick depan
			return err
		}
	}

	if cancelled > 0 || skipped > 0 {
		s.Log.Info("sweep done",
			zap.Int("overdue", len(ids)),
			zap.Int("cancelled", cancelled),
			zap.Int("skipped", skipped))
	}
	return nil
}
