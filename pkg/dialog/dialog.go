// Package dialog implements the single global confirmation gate that
// suspends a destructive action until the user confirms or cancels.
package dialog

import "sync"

// Gate holds at most one pending confirmation. Requesting while one is
// pending replaces it: the prior action is discarded, never queued or
// invoked. Confirm and Cancel while idle are no-ops since the renderer
// may double-fire on fast clicks.
type Gate struct {
	mu      sync.Mutex
	message string
	action  func() error
}

// NewGate returns an idle gate.
func NewGate() *Gate {
	return &Gate{}
}

// Request opens the gate with a message and the action to run on
// confirmation, replacing any pending request.
func (g *Gate) Request(message string, action func() error) {
	g.mu.Lock()
	g.message = message
	g.action = action
	g.mu.Unlock()
}

// Confirm invokes the pending action exactly once and closes the gate.
// The gate returns to idle even when the action fails; the error
// belongs to the caller's own handling path, never to a re-opened
// dialog.
func (g *Gate) Confirm() error {
	g.mu.Lock()
	action := g.action
	g.message = ""
	g.action = nil
	g.mu.Unlock()

	if action == nil {
		return nil
	}
	return action()
}

// Cancel discards the pending action and closes the gate.
func (g *Gate) Cancel() {
	g.mu.Lock()
	g.message = ""
	g.action = nil
	g.mu.Unlock()
}

// Pending returns the dialog message when a confirmation is awaited.
func (g *Gate) Pending() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.message, g.action != nil
}
