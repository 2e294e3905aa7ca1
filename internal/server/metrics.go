package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the server's Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	EntriesRecordedTotal *prometheus.CounterVec
	StoreErrorsTotal     *prometheus.CounterVec
	GroupedEntries       prometheus.Histogram
	ConnectedClients     prometheus.Gauge
	RoomClients          *prometheus.GaugeVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
}

// NewMetrics creates all metrics on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		EntriesRecordedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomlog_entries_recorded_total",
				Help: "Total number of action log entries recorded",
			},
			[]string{"type"},
		),

		StoreErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomlog_store_errors_total",
				Help: "Total number of failed store operations",
			},
			[]string{"operation"},
		),

		GroupedEntries: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "roomlog_group_size",
				Help:    "Number of entries merged into each served group",
				Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
			},
		),

		ConnectedClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "roomlog_connected_clients",
				Help: "Number of open websocket connections",
			},
		),

		RoomClients: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "roomlog_room_clients",
				Help: "Number of clients joined to each room",
			},
			[]string{"room_id"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomlog_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "roomlog_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
