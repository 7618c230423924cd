// Package metrics exposes execution counters for the HTTP server.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caffeineduck/pyrunner/executor"
)

const namespace = "pyrunner"

type Metrics struct {
	registry *prometheus.Registry

	executions    *prometheus.CounterVec
	duration      prometheus.Histogram
	installs      *prometheus.CounterVec
	producedFiles prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Execute calls by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Execute call latency, including package installation.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}),
		installs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "package_installs_total",
			Help:      "Package install attempts by result.",
		}, []string{"result"}),
		producedFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "produced_files",
			Help:      "Files in the session's produced file set.",
		}),
	}

	m.registry.MustRegister(
		m.executions,
		m.duration,
		m.installs,
		m.producedFiles,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one Execute result.
func (m *Metrics) Observe(res executor.Result) {
	m.executions.WithLabelValues(Outcome(res.Error)).Inc()
	m.duration.Observe(res.Duration.Seconds())
	m.installs.WithLabelValues("installed").Add(float64(len(res.Packages.Installed)))
	m.installs.WithLabelValues("failed").Add(float64(len(res.Packages.Failed)))
	if res.Files != nil {
		m.producedFiles.Set(float64(len(res.Files)))
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Outcome labels an Execute error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, executor.ErrExecution):
		return "exception"
	case errors.Is(err, executor.ErrSessionBusy):
		return "busy"
	case errors.Is(err, executor.ErrEmptySource):
		return "empty_source"
	case errors.Is(err, executor.ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, executor.ErrRuntimeExited):
		return "runtime_exited"
	case errors.Is(err, executor.ErrSessionClosed):
		return "closed"
	default:
		return "error"
	}
}
