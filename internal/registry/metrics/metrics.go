package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module.
type Metrics struct {
	NamesRegistered      prometheus.Counter
	RegistrationFailures *prometheus.CounterVec
	FeeUpdates           prometheus.Counter
	RegisterDuration     prometheus.Histogram
	OwnerCacheHits       prometheus.Counter
	OwnerCacheMisses     prometheus.Counter
}

// New creates a new Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		NamesRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_names_registered_total",
			Help: "Total number of names successfully registered",
		}),
		RegistrationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_registration_failures_total",
			Help: "Registration attempts that failed, by error code",
		}, []string{"code"}),
		FeeUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_fee_updates_total",
			Help: "Total number of successful fee updates",
		}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_register_duration_seconds",
			Help:    "Duration of register operations (registration critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		OwnerCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_owner_cache_hits_total",
			Help: "Owner lookups served from the cache",
		}),
		OwnerCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_owner_cache_misses_total",
			Help: "Owner lookups that fell through to the store",
		}),
	}
}

// IncrementNamesRegistered records a successful registration.
func (m *Metrics) IncrementNamesRegistered() {
	m.NamesRegistered.Inc()
}

// IncrementRegistrationFailure records a failed registration by error code.
func (m *Metrics) IncrementRegistrationFailure(code string) {
	m.RegistrationFailures.WithLabelValues(code).Inc()
}

// IncrementFeeUpdates records a successful fee change.
func (m *Metrics) IncrementFeeUpdates() {
	m.FeeUpdates.Inc()
}

// ObserveRegister records the duration of a register operation.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}
