package journal

import (
	"sync"

	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/engine"
)

// MemorySink captures lifecycle events in memory. Used by replay
// verification and tests that need the raw stream without storage.
type MemorySink struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

// Compile-time interface check.
var _ engine.EventSink = (*MemorySink)(nil)

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Emit appends the event.
func (s *MemorySink) Emit(ev domain.LifecycleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns a copy of everything captured so far.
func (s *MemorySink) Events() []domain.LifecycleEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LifecycleEvent, len(s.events))
	copy(out, s.events)
	return out
}
