package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: длительность операций протокола
	OpDuration *prometheus.HistogramVec

	// Traffic: общее кол-во операций с исходом
	OpsTotal *prometheus.CounterVec

	// Errors: классификация отказов по таксономии домена
	ErrorsTotal *prometheus.CounterVec

	// Saturation: непровисшие события в outbox (backlog)
	OutboxBacklog prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern — если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		OpDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_op_duration_seconds",
			Help:    "Histogram of ledger operation latencies.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op", "outcome"}),

		OpsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_ops_total",
			Help: "Total number of processed ledger operations.",
		}, []string{"op"}),

		ErrorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_errors_total",
			Help: "Total number of protocol errors by kind.",
		}, []string{"op", "kind"}), // kinds: VALIDATION, PROOF, STATE, DUPLICATE, NOT_FOUND, INTERNAL

		OutboxBacklog: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ledger_outbox_backlog",
			Help: "Current number of unpublished settlement events in the outbox.",
		}),
	}
}
