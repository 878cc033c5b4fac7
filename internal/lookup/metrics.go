package lookup

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/corrlookup/internal/ir"
)

// Metrics holds Prometheus counters for lookups.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	entries *prometheus.CounterVec // Resolved entries by table kind
	clamped *prometheus.CounterVec // Out-of-range coordinates by axis
	errors  *prometheus.CounterVec // Failed lookups by error code
}

// NewMetrics creates lookup metrics and registers them with reg.
// Returns nil metrics (disabled) when reg is nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corrlookup",
			Subsystem: "lookup",
			Name:      "entries_total",
			Help:      "Total number of resolved lookup entries",
		}, []string{"kind"}),

		clamped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corrlookup",
			Subsystem: "lookup",
			Name:      "clamped_total",
			Help:      "Total number of coordinates clamped into the first or last bin",
		}, []string{"axis"}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corrlookup",
			Subsystem: "lookup",
			Name:      "errors_total",
			Help:      "Total number of failed lookups",
		}, []string{"code"}),
	}

	for _, c := range []prometheus.Collector{m.entries, m.clamped, m.errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) recordEntries(t *ir.Table, n int, clamped []int) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(t.Kind().String()).Add(float64(n))
	for d, c := range clamped {
		if c > 0 {
			m.clamped.WithLabelValues(t.Axis(d).Name()).Add(float64(c))
		}
	}
}

func (m *Metrics) recordError(err error) {
	if m == nil {
		return
	}
	code := string(ir.CodeOf(err))
	if code == "" {
		code = "UNKNOWN"
	}
	m.errors.WithLabelValues(code).Inc()
}
