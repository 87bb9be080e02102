package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultPort = 2112

// Config contains telemetry server configuration.
type Config struct {
	Port int `yaml:"port"` // Port of the /metrics endpoint, 2112 if zero.
}

// Measurements collects measurements for prometheus.
// Entities are identified by name and are created once, recreating them is a no-op.
type Measurements struct {
	mux        sync.RWMutex
	registry   *prometheus.Registry
	factory    promauto.Factory
	histograms map[string]prometheus.Histogram
	gauges     map[string]prometheus.Gauge
}

// New creates Measurements backed by its own registry.
func New() *Measurements {
	reg := prometheus.NewRegistry()
	return &Measurements{
		registry:   reg,
		factory:    promauto.With(reg),
		histograms: make(map[string]prometheus.Histogram),
		gauges:     make(map[string]prometheus.Gauge),
	}
}

// CreateUpdateObservableHistogram creates observable histogram if it does not exist yet.
func (m *Measurements) CreateUpdateObservableHistogram(name, description string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.histograms[name]; ok {
		return
	}
	m.histograms[name] = m.factory.NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    description,
		Buckets: prometheus.ExponentialBuckets(1, 2, 20),
	})
}

// RecordHistogramTime records histogram time in milliseconds if entity with given name exists.
func (m *Measurements) RecordHistogramTime(name string, t time.Duration) bool {
	return m.RecordHistogramValue(name, float64(t.Milliseconds()))
}

// RecordHistogramValue records histogram value if entity with given name exists.
func (m *Measurements) RecordHistogramValue(name string, f float64) bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if v, ok := m.histograms[name]; ok {
		v.Observe(f)
		return true
	}
	return false
}

// CreateUpdateObservableGauge creates observable gauge if it does not exist yet.
func (m *Measurements) CreateUpdateObservableGauge(name, description string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.gauges[name]; ok {
		return
	}
	m.gauges[name] = m.factory.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: description,
	})
}

// AddToGauge adds to gauge the value if entity with given name exists.
func (m *Measurements) AddToGauge(name string, f float64) bool {
	return m.withGauge(name, func(g prometheus.Gauge) { g.Add(f) })
}

// RemoveFromGauge subtracts from gauge the value if entity with given name exists.
func (m *Measurements) RemoveFromGauge(name string, f float64) bool {
	return m.withGauge(name, func(g prometheus.Gauge) { g.Sub(f) })
}

// IncrementGauge increments gauge the value if entity with given name exists.
func (m *Measurements) IncrementGauge(name string) bool {
	return m.withGauge(name, func(g prometheus.Gauge) { g.Inc() })
}

// DecrementGauge decrements gauge the value if entity with given name exists.
func (m *Measurements) DecrementGauge(name string) bool {
	return m.withGauge(name, func(g prometheus.Gauge) { g.Dec() })
}

// SetGauge sets the gauge to the value if entity with given name exists.
func (m *Measurements) SetGauge(name string, f float64) bool {
	return m.withGauge(name, func(g prometheus.Gauge) { g.Set(f) })
}

// SetToCurrentTimeGauge sets the gauge to the current time if entity with given name exists.
func (m *Measurements) SetToCurrentTimeGauge(name string) bool {
	return m.withGauge(name, func(g prometheus.Gauge) { g.SetToCurrentTime() })
}

func (m *Measurements) withGauge(name string, f func(prometheus.Gauge)) bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if v, ok := m.gauges[name]; ok {
		f(v)
		return true
	}
	return false
}

// Handler returns http handler exposing collected metrics.
func (m *Measurements) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Run starts the server with prometheus telemetry endpoint for given measurements.
// It cancels the context if the server fails. Default port of 2112 is used if port value is set to 0.
func Run(ctx context.Context, cancel context.CancelFunc, cfg Config, m *Measurements) error {
	port := cfg.Port
	if port > 65535 || port < 0 {
		return fmt.Errorf("port range allowed is from 1 to 65535, received %d", port)
	}
	if port == 0 {
		port = defaultPort
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cancel()
		}
	}()

	go func() {
		<-ctx.Done()
		ctxx, cancelx := context.WithTimeout(context.Background(), time.Second*5)
		defer cancelx()
		srv.Shutdown(ctxx)
	}()

	return nil
}
