package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics: counter inti lifecycle order. Label seminimal mungkin
// (status target, hasil) biar kardinalitas aman.
type EngineMetrics struct {
	InvoicesCreated  prometheus.Counter
	StockRejections  prometheus.Counter
	Transitions      *prometheus.CounterVec
	SweepRuns        prometheus.Counter
	SweepCancelled   prometheus.Counter
	SweepSkipped     prometheus.Counter
	PaymentsAccepted prometheus.Counter
}

func NewEngineMetrics(service string) *EngineMetrics {
	m := &EngineMetrics{
		InvoicesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "toko", Subsystem: service,
			Name: "invoices_created_total",
			Help: "Invoices successfully created (stock reserved).",
		}),
		StockRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "toko", Subsystem: service,
			Name: "stock_rejections_total",
			Help: "Order attempts rejected for insufficient stock.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toko", Subsystem: service,
			Name: "status_transitions_total",
			Help: "Successful status transitions by target status.",
		}, []string{"target"}),
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "toko", Subsystem: service,
			Name: "deadline_sweeps_total",
			Help: "Payment-deadline sweeps executed.",
		}),
		SweepCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "toko", Subsystem: service,
			Name: "deadline_cancellations_total",
			Help: "Invoices auto-cancelled by the deadline sweeper.",
		}),
		SweepSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "toko", Subsystem: service,
			Name: "deadline_skips_total",
			Help: "Overdue invoices skipped because they changed state mid-sweep.",
		}),
		PaymentsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "toko", Subsystem: service,
			Name: "payments_accepted_total",
			Help: "Payment submissions accepted.",
		}),
	}
	prometheus.MustRegister(m.InvoicesCreated, m.StockRejections, m.Transitions,
		m.SweepRuns, m.SweepCancelled, m.SweepSkipped, m.PaymentsAccepted)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}
