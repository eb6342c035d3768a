package refresh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "authclient"

// Metrics counts refresh flights and the callers that joined them.
// The coordinator records through a nil *Metrics as a no-op; the exported
// accessors need a value from NewMetrics.
type Metrics struct {
	flights  *prometheus.CounterVec
	waiters  prometheus.Counter
	inFlight prometheus.Gauge
	duration prometheus.Histogram
}

// NewMetrics builds the collectors and registers them with reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		flights: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "refresh",
			Name:      "flights_total",
			Help:      "Refresh network calls by result.",
		}, []string{"result"}),
		waiters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "refresh",
			Name:      "waiters_total",
			Help:      "Callers that joined an in-flight refresh instead of starting one.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "refresh",
			Name:      "in_flight",
			Help:      "1 while a refresh call is outstanding.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Refresh flight duration.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.flights, m.waiters, m.inFlight, m.duration)
	}
	return m
}

func (m *Metrics) flightStarted() {
	if m == nil {
		return
	}
	m.inFlight.Set(1)
}

func (m *Metrics) waiterJoined() {
	if m == nil {
		return
	}
	m.waiters.Inc()
}

func (m *Metrics) flightFinished(err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.flights.WithLabelValues(result).Inc()
	m.duration.Observe(took.Seconds())
	m.inFlight.Set(0)
}

// Flights returns the counter for result ("success" or "failure")
func (m *Metrics) Flights(result string) prometheus.Counter {
	return m.flights.WithLabelValues(result)
}

func (m *Metrics) Waiters() prometheus.Counter {
	return m.waiters
}

func (m *Metrics) InFlight() prometheus.Gauge {
	return m.inFlight
}
