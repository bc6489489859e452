package http

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type metrics struct {
	registry   *prometheus.Registry
	duration   *prometheus.HistogramVec
	broadcasts *prometheus.CounterVec
	recipients *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tidings",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tidings",
			Name:      "broadcasts_total",
			Help:      "Broadcast requests received over HTTP by outcome.",
		}, []string{"outcome"}),
		recipients: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tidings",
			Name:      "broadcast_recipients_total",
			Help:      "Recipients handed to the mail transport by topic.",
		}, []string{"topic"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.duration,
		m.broadcasts,
		m.recipients,
	)
	return m
}

func (m *metrics) observeRequest(method, route string, status int, d time.Duration) {
	m.duration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
