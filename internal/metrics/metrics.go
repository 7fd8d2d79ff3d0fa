// Package metrics exposes Prometheus metrics for the health journal server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/healthjournal/internal/conversation"
	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	RecordsCreated   *prometheus.CounterVec
	MessagesSent     prometheus.Counter
	Replies          *prometheus.CounterVec
	RateLimited      prometheus.Counter
	ActiveWorkspaces prometheus.Gauge
}

// NewCollector creates a collector with its own registry, so several can
// coexist in one process.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RecordsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_created_total",
				Help:      "Total number of health records stored",
			},
			[]string{"kind"},
		),
		MessagesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_sent_total",
				Help:      "Total number of user chat messages",
			},
		),
		Replies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assistant_replies_total",
				Help:      "Assistant replies by outcome",
			},
			[]string{"outcome"},
		),
		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the per-user rate limiter",
			},
		),
		ActiveWorkspaces: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_workspaces",
				Help:      "Conversation workspaces held in memory",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.RecordsCreated,
		c.MessagesSent,
		c.Replies,
		c.RateLimited,
		c.ActiveWorkspaces,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordCreated counts a stored health record.
func (c *Collector) RecordCreated(kind domain.RecordKind) {
	c.RecordsCreated.WithLabelValues(string(kind)).Inc()
}

// Publish implements conversation.Publisher.
func (c *Collector) Publish(e conversation.Event) {
	switch e.Type {
	case conversation.EventMessageAppended:
		if e.Message == nil {
			return
		}
		if e.Message.IsUser {
			c.MessagesSent.Inc()
		} else {
			c.Replies.WithLabelValues("delivered").Inc()
		}
	case conversation.EventReplyFailed:
		c.Replies.WithLabelValues("failed").Inc()
	}
}
