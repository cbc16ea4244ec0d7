// Package metrics exposes Prometheus metrics for task operations, the HTTP
// API and the analytics summary.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kairon/backend"
	"kairon/internal/analytics"
)

// Source supplies values read on every scrape.
type Source interface {
	Analytics() analytics.Summary
	PendingReminders() int
}

// Recorder owns a private registry so tests and multiple app instances
// never collide on the global one.
type Recorder struct {
	registry *prometheus.Registry
	ops      *prometheus.CounterVec
	requests *prometheus.HistogramVec
}

// New creates a Recorder. source may be nil, in which case no gauges are registered.
func New(source Source) *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	r := &Recorder{
		registry: reg,
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kairon_task_operations_total",
			Help: "Store operations by kind and outcome.",
		}, []string{"op", "result"}),
		requests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kairon_http_request_duration_seconds",
			Help:    "Duration of local API requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	if source == nil {
		return r
	}

	gauge := func(name, help string, value func(analytics.Summary) int) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return float64(value(source.Analytics()))
		})
	}
	gauge("kairon_tasks_total", "Tasks in the collection.", func(s analytics.Summary) int { return s.Total })
	gauge("kairon_tasks_active", "Active tasks.", func(s analytics.Summary) int { return s.Active })
	gauge("kairon_tasks_completed", "Completed tasks.", func(s analytics.Summary) int { return s.Completed })
	gauge("kairon_completion_rate_percent", "Completed tasks as a percentage of all tasks.", func(s analytics.Summary) int { return s.CompletionRate })
	gauge("kairon_on_time_rate_percent", "Tasks completed by their due time as a percentage of completed tasks.", func(s analytics.Summary) int { return s.OnTimeRate })
	gauge("kairon_time_accuracy_percent", "Mean time accuracy of completed tasks.", func(s analytics.Summary) int { return s.TimeAccuracy })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "kairon_reminders_pending",
		Help: "Reminders scheduled and not yet fired.",
	}, func() float64 { return float64(source.PendingReminders()) })
	return r
}

// Result classifies an operation error for the result label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case backend.IsValidation(err):
		return "invalid"
	case errors.Is(err, backend.ErrNotFound):
		return "not_found"
	case backend.IsPersistence(err):
		return "storage_error"
	default:
		return "error"
	}
}

// ObserveOp counts one store operation.
func (r *Recorder) ObserveOp(op string, err error) {
	if r == nil {
		return
	}
	r.ops.WithLabelValues(op, Result(err)).Inc()
}

// ObserveRequest records one API request.
func (r *Recorder) ObserveRequest(route, method string, d time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(route, method).Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
