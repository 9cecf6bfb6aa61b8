package lifecycle

import (
	"context"
	"sync"
)

// CaptureHook records delivered events for assertions in tests. Err, when
// set, is returned from every Notify so fan-out failure paths can be
// exercised.
type CaptureHook struct {
	Err error

	mu     sync.Mutex
	events []Event
}

// Notify records the event and returns any configured error.
func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, NormalizeEvent(event))
	return h.Err
}

// Recorded returns a copy of the events seen so far.
func (h *CaptureHook) Recorded() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.events))
	copy(out, h.events)
	return out
}

// CountByVerb tallies recorded events per verb.
func (h *CaptureHook) CountByVerb() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	counts := make(map[string]int, len(h.events))
	for _, event := range h.events {
		counts[event.Verb]++
	}
	return counts
}
