package pass

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// PassMetrics is one pass's contribution to a pipeline run: how long it
// took, how many warnings it raised, and a correlation ID a trace sink can
// join against its own event stream. NodesVisited and NodesChanged are not
// filled in by the pipeline; they are always zero.
type PassMetrics struct {
	TraceID      string
	Name         string
	Iteration    int
	Duration     time.Duration
	NodesVisited int
	NodesChanged int
	Warnings     int
}

// Metrics aggregates PassMetrics across a pipeline run. It is guarded by a
// deadlock-detecting mutex rather than a plain sync.Mutex: the pipeline is
// single-threaded today, but passes are allowed to run their own internal
// worker pools (e.g. a future parallel SMT-query fan-out), and go-deadlock
// turns a lock-ordering bug there into an immediate diagnosis instead of a
// hang.
type Metrics struct {
	mu    deadlock.Mutex
	runs  []PassMetrics
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Record(pm PassMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, pm)
}

func (m *Metrics) All() []PassMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PassMetrics, len(m.runs))
	copy(out, m.runs)
	return out
}

// TotalDuration sums every recorded pass's wall-clock time.
func (m *Metrics) TotalDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total time.Duration
	for _, r := range m.runs {
		total += r.Duration
	}
	return total
}
