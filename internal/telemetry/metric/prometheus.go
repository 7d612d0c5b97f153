// Package metric exposes kvobserve metrics in Prometheus format.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/kvobserve-go/pkg/kvstore"
	"github.com/yndnr/kvobserve-go/pkg/observable"
)

const namespace = "kvobserve"

// Registry holds the application metrics. It implements
// observable.Metrics.
type Registry struct {
	reg *prometheus.Registry

	ObserversActive prometheus.Gauge
	ObserverLeaks   prometheus.Counter
	Notifications   *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	Writes          *prometheus.CounterVec
}

var _ observable.Metrics = (*Registry)(nil)

// NewRegistry creates the metrics and registers them, together with the Go
// runtime and process collectors, on a fresh Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		ObserversActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers_active",
			Help:      "Number of registered observer handles",
		}),
		ObserverLeaks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observer_leaks_total",
			Help:      "Observer handles reclaimed without Close",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Change notifications by kind",
		}, []string{"kind"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Observer callbacks invoked by notification kind",
		}, []string{"kind"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Store mutations by operation and result (ok or error code)",
		}, []string{"op", "result"}),
	}

	r.reg.MustRegister(
		r.ObserversActive,
		r.ObserverLeaks,
		r.Notifications,
		r.Deliveries,
		r.Writes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registerer returns the underlying registry for additional collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Gatherer returns the underlying registry for scraping.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserverAdded implements observable.Metrics.
func (r *Registry) ObserverAdded() {
	r.ObserversActive.Inc()
}

// ObserverRemoved implements observable.Metrics.
func (r *Registry) ObserverRemoved(leaked bool) {
	r.ObserversActive.Dec()
	if leaked {
		r.ObserverLeaks.Inc()
	}
}

// Notified implements observable.Metrics.
func (r *Registry) Notified(kind string, delivered int) {
	r.Notifications.WithLabelValues(kind).Inc()
	r.Deliveries.WithLabelValues(kind).Add(float64(delivered))
}

// Write implements observable.Metrics.
func (r *Registry) Write(op string, err error) {
	r.Writes.WithLabelValues(op, result(err)).Inc()
}

// result labels a write by its error code.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	if code := kvstore.Code(err); code != "" {
		return code
	}
	return "error"
}
