// Package metrics exposes Prometheus counters for the synchronization
// bookkeeping. A nil *Metrics is valid and records nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "gophsync"

type Metrics struct {
	DirtyMarks    prometheus.Counter
	Patches       prometheus.Counter
	Pushes        *prometheus.CounterVec
	CascadeMisses prometheus.Counter
}

// New creates the counters and registers them on reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DirtyMarks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dirty_marks_total",
			Help:      "Entity states transitioned to dirty.",
		}),
		Patches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patches_total",
			Help:      "Patches appended to entity states.",
		}),
		Pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_total",
			Help:      "Best-effort pushes to the remote transport by result.",
		}, []string{"result"}),
		CascadeMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_misses_total",
			Help:      "Rows that vanished before cascade delete could read them.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.DirtyMarks, m.Patches, m.Pushes, m.CascadeMisses)
	}
	return m
}

func (m *Metrics) DirtyMarked() {
	if m != nil {
		m.DirtyMarks.Inc()
	}
}

func (m *Metrics) PatchAdded() {
	if m != nil {
		m.Patches.Inc()
	}
}

// Pushed records a push outcome; err == nil counts as "ok".
func (m *Metrics) Pushed(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Pushes.WithLabelValues(result).Inc()
}

func (m *Metrics) CascadeMissed() {
	if m != nil {
		m.CascadeMisses.Inc()
	}
}
