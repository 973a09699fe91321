package testfixture

import (
	deadlock "github.com/sasha-s/go-deadlock"

	"deobf/internal/source"
)

// RecordingSink collects every TraceEvent handed to it in order, so tests
// can assert against the trace a pipeline run produced instead of wiring
// up a real metrics backend.
type RecordingSink struct {
	mu     deadlock.Mutex
	Events []source.TraceEvent
}

func (s *RecordingSink) Record(ev source.TraceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
}

// ByPass returns the events recorded for a single pass name, in recording
// order.
func (s *RecordingSink) ByPass(name string) []source.TraceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []source.TraceEvent
	for _, ev := range s.Events {
		if ev.Pass == name {
			out = append(out, ev)
		}
	}
	return out
}

var _ source.TraceSink = (*RecordingSink)(nil)
