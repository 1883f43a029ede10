package metrics

import (
	"context"
	"net/http"
	"strconv"

	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/qubic/go-bridge-coordinator/events"
)

const namespace = "bridge_coordinator"

// Metrics owns a private registry with the coordinator's event counters and the gRPC server metrics.
// It is an events.Emitter so it can sit next to the log emitter and the broker.
type Metrics struct {
	registry *prometheus.Registry

	events          *prometheus.CounterVec
	finalized       *prometheus.CounterVec
	handlerFailures prometheus.Counter
	deposits        *prometheus.CounterVec
	rpcErrors       *prometheus.CounterVec

	grpc *grpcprom.ServerMetrics
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Emitted events by kind.",
		}, []string{"kind"}),
		finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_finalized_total",
			Help:      "Proposal status changes to passed, executed or cancelled.",
		}, []string{"status"}),
		handlerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_execution_failures_total",
			Help:      "Handler failures recovered by keeping the proposal passed.",
		}),
		deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposits_total",
			Help:      "Recorded deposits by destination domain.",
		}, []string{"destination"}),
		rpcErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_errors_total",
			Help:      "Failed rpc calls by error class.",
		}, []string{"class"}),
		grpc: grpcprom.NewServerMetrics(
			grpcprom.WithServerHandlingTimeHistogram(
				grpcprom.WithHistogramBuckets([]float64{0.001, 0.01, 0.1, 0.3, 0.6, 1, 3, 6, 9, 20, 30, 60, 90, 120}),
			),
		),
	}

	m.registry.MustRegister(
		m.events,
		m.finalized,
		m.handlerFailures,
		m.deposits,
		m.rpcErrors,
		m.grpc,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Emit(_ context.Context, e events.Event) {
	m.events.WithLabelValues(string(e.Kind)).Inc()

	switch e.Kind {
	case events.ProposalFinalized:
		m.finalized.WithLabelValues(e.Status.String()).Inc()
	case events.HandlerExecutionFailed:
		m.handlerFailures.Inc()
	case events.DepositRecorded:
		if e.Deposit != nil {
			m.deposits.WithLabelValues(strconv.Itoa(int(e.Deposit.DestinationDomain))).Inc()
		}
	}
}

func (m *Metrics) ObserveRPCError(class string) {
	m.rpcErrors.WithLabelValues(class).Inc()
}

// RegisterCounter exposes a monotonic count kept elsewhere, such as the broker's dropped events.
func (m *Metrics) RegisterCounter(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// RegisterGauge exposes a value computed at scrape time, such as the current block height.
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

func (m *Metrics) ServerMetrics() *grpcprom.ServerMetrics {
	return m.grpc
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
