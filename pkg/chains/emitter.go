package chains

import "sync"

// Listener receives the payload passed to Emit
type Listener func(payload any)

// Subscription identifies a registered listener. Removal is by identity.
type Subscription struct {
	event string
	fn    Listener
	once  bool
}

// Event returns the event the subscription listens to
func (s *Subscription) Event() string {
	return s.event
}

// Emitter is an observer list keyed by event name
// Emit iterates over the listener sequence as it was when Emit started,
// so listeners may subscribe or unsubscribe while being invoked.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[string][]*Subscription
}

// NewEmitter creates an empty emitter
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[string][]*Subscription)}
}

// On registers fn for event
func (e *Emitter) On(event string, fn Listener) *Subscription {
	return e.add(&Subscription{event: event, fn: fn})
}

// Once registers fn for the next emission of event only
func (e *Emitter) Once(event string, fn Listener) *Subscription {
	return e.add(&Subscription{event: event, fn: fn, once: true})
}

func (e *Emitter) add(sub *Subscription) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[string][]*Subscription)
	}

	// Copy on write keeps snapshots taken by Emit stable
	current := e.listeners[sub.event]
	next := make([]*Subscription, len(current), len(current)+1)
	copy(next, current)
	e.listeners[sub.event] = append(next, sub)
	return sub
}

// Off removes sub. It reports whether the subscription was registered.
func (e *Emitter) Off(sub *Subscription) bool {
	if sub == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.listeners[sub.event]
	for i, s := range current {
		if s != sub {
			continue
		}
		next := make([]*Subscription, 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		if len(next) == 0 {
			delete(e.listeners, sub.event)
		} else {
			e.listeners[sub.event] = next
		}
		return true
	}
	return false
}

// Emit calls every listener of event with payload and reports whether any
// listener was registered
func (e *Emitter) Emit(event string, payload any) bool {
	e.mu.RLock()
	snapshot := e.listeners[event]
	e.mu.RUnlock()

	for _, sub := range snapshot {
		if sub.once && !e.Off(sub) {
			// Already consumed by a concurrent emission
			continue
		}
		sub.fn(payload)
	}
	return len(snapshot) > 0
}

// ListenerCount returns the number of listeners registered for event
func (e *Emitter) ListenerCount(event string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[event])
}

// RemoveAllListeners drops every listener of event
func (e *Emitter) RemoveAllListeners(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners, event)
}
