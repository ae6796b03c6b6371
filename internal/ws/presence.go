package ws

import "sync"

// Pusher is a live connection handle that can receive outbound events.
type Pusher interface {
	// Push delivers one named event. At-most-once; an error means the
	// event was dropped.
	Push(event string, data any) error
	// HandleID identifies this particular connection, so a replaced
	// connection cannot detach its successor.
	HandleID() string
}

// Presence maps user ids to their current live connection. It is the only
// shared mutable state in the system and is safe for concurrent use.
// One entry per user, last writer wins.
type Presence struct {
	mu      sync.RWMutex
	handles map[uint]Pusher
}

func NewPresence() *Presence {
	return &Presence{handles: make(map[uint]Pusher)}
}

// Attach registers the connection for the user, displacing any previous
// one. The displaced handle is returned so the caller may close it.
func (p *Presence) Attach(userID uint, handle Pusher) Pusher {
	p.mu.Lock()
	previous := p.handles[userID]
	p.handles[userID] = handle
	p.mu.Unlock()
	return previous
}

// Detach removes the user's entry, but only if it still points at the
// given handle. A detach from a replaced connection is a no-op.
func (p *Presence) Detach(userID uint, handle Pusher) {
	p.mu.Lock()
	if current, ok := p.handles[userID]; ok && current.HandleID() == handle.HandleID() {
		delete(p.handles, userID)
	}
	p.mu.Unlock()
}

// Send pushes an event to the user's current connection. Returns false
// when the user is offline or the push failed; there is no queuing and
// no retry.
func (p *Presence) Send(userID uint, event string, data any) bool {
	p.mu.RLock()
	handle, ok := p.handles[userID]
	p.mu.RUnlock()
	if !ok {
		return false
	}
	return handle.Push(event, data) == nil
}

// Online reports whether the user has a live connection.
func (p *Presence) Online(userID uint) bool {
	p.mu.RLock()
	_, ok := p.handles[userID]
	p.mu.RUnlock()
	return ok
}
