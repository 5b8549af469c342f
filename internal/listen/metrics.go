package listen

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes and loop exit reasons used as metric labels.
const (
	outcomeDispatched = "dispatched"
	outcomeUnmatched  = "unmatched"

	exitStopped = "stopped"
	exitInvalid = "invalid"
	exitFatal   = "fatal"
)

// Metrics holds the Prometheus collectors a listener updates.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Events    *prometheus.CounterVec
	Batches   prometheus.Counter
	LoopExits *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dirlisten",
			Name:      "events_total",
			Help:      "Filesystem events seen by the listener, by kind and dispatch outcome.",
		}, []string{"kind", "outcome"}),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dirlisten",
			Name:      "batches_total",
			Help:      "Event batches received from the platform source.",
		}),
		LoopExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dirlisten",
			Name:      "loop_exits_total",
			Help:      "Watch loop terminations, by reason.",
		}, []string{"reason"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Events, m.Batches, m.LoopExits} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) event(kind EventKind, outcome string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) batch() {
	if m == nil {
		return
	}
	m.Batches.Inc()
}

func (m *Metrics) exit(reason string) {
	if m == nil {
		return
	}
	m.LoopExits.WithLabelValues(reason).Inc()
}
