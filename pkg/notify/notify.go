// Package notify provides the process-wide transient banner slot.
// It is constructed once at application start and injected by reference
// into every component that reports outcomes; screens only read it.
package notify

import "sync"

// Status classifies a notice for rendering.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Notice is one transient user-facing message.
type Notice struct {
	Status  Status
	Message string
}

// Sink holds at most one unread notice. Opening a new notice replaces
// any unread one; reading is destructive. Auto-dismiss timing and
// rendering belong to the renderer, not the sink.
type Sink struct {
	mu      sync.Mutex
	current *Notice
}

// NewSink returns an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Open sets the most recent notice, discarding any unread one.
func (s *Sink) Open(status Status, message string) {
	s.mu.Lock()
	s.current = &Notice{Status: status, Message: message}
	s.mu.Unlock()
}

// Take returns the pending notice and clears the slot. The second
// return is false when no notice is pending.
func (s *Sink) Take() (Notice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Notice{}, false
	}
	n := *s.current
	s.current = nil
	return n, true
}
