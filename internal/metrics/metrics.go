// Package metrics exposes Prometheus instrumentation for the language
// service lifecycle. All methods are safe on a nil *Metrics, which records
// nothing.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cadencehost"

// Metrics holds the host's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	state        *prometheus.GaugeVec
	generation   prometheus.Gauge
	restarts     prometheus.Counter
	failures     *prometheus.CounterVec
	pollAttempts prometheus.Histogram
	readyLatency prometheus.Histogram
	diagnostics  prometheus.Counter
	reloads      *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lifecycle_state",
			Help:      "1 for the current lifecycle state, 0 otherwise.",
		}, []string{"state"}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lifecycle_generation",
			Help:      "Current lifecycle generation.",
		}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_restarts_total",
			Help:      "Number of pipeline restarts.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_failures_total",
			Help:      "Generation failures by stage.",
		}, []string{"stage"}),
		pollAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "readiness_poll_attempts",
			Help:      "Readiness checks needed before the service was ready.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 300},
		}),
		readyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "client_ready_seconds",
			Help:      "Time from generation start to a ready client.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		diagnostics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_published_total",
			Help:      "Diagnostics forwarded to the editor.",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_reloads_total",
			Help:      "Contract registry reloads by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.state, m.generation, m.restarts, m.failures,
		m.pollAttempts, m.readyLatency, m.diagnostics, m.reloads,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SetState marks current as the active state among states.
func (m *Metrics) SetState(current string, states []string) {
	if m == nil {
		return
	}
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}

// SetGeneration records the current generation.
func (m *Metrics) SetGeneration(gen uint64) {
	if m == nil {
		return
	}
	m.generation.Set(float64(gen))
}

// IncRestarts counts a restart.
func (m *Metrics) IncRestarts() {
	if m == nil {
		return
	}
	m.restarts.Inc()
}

// IncFailure counts a generation failure at stage.
func (m *Metrics) IncFailure(stage string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(stage).Inc()
}

// ObservePollAttempts records how many readiness checks were needed.
func (m *Metrics) ObservePollAttempts(n int) {
	if m == nil {
		return
	}
	m.pollAttempts.Observe(float64(n))
}

// ObserveReady records the time to a ready client.
func (m *Metrics) ObserveReady(d time.Duration) {
	if m == nil {
		return
	}
	m.readyLatency.Observe(d.Seconds())
}

// AddDiagnostics counts forwarded diagnostics.
func (m *Metrics) AddDiagnostics(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.diagnostics.Add(float64(n))
}

// IncReload counts a registry reload.
func (m *Metrics) IncReload(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloads.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx ends.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.serve(ctx, ln)
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
