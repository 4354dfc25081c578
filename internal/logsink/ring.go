package logsink

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DefaultRingSize matches how much history the log screen used to keep.
const DefaultRingSize = 100

// Ring keeps the most recent events in memory.
type Ring struct {
	mu     sync.Mutex
	size   int
	events []Event
	now    func() time.Time
}

// NewRing returns a Ring holding at most size events. Non-positive sizes use
// DefaultRingSize.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{size: size, now: time.Now}
}

// Append records msg, evicting the oldest event once the ring is full.
func (r *Ring) Append(msg string, sev Severity) {
	ev := Event{Time: r.now(), Message: msg, Severity: sev}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) >= r.size {
		copy(r.events, r.events[1:])
		r.events = r.events[:len(r.events)-1]
	}
	r.events = append(r.events, ev)
}

// Events returns a copy of the buffered events, oldest first.
func (r *Ring) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Clear drops all buffered events.
func (r *Ring) Clear() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// ServeHTTP writes the buffered events as plain text, one per line.
func (r *Ring) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodDelete {
		r.Clear()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, ev := range r.Events() {
		_, _ = fmt.Fprintf(w, "%s %-7s %s\n", ev.Time.Format(time.RFC3339), ev.Severity, ev.Message)
	}
}
