package client

import "sync"

// Handler consumes one event payload.
type Handler func(data any)

// Dispatcher routes named events to subscribed handlers. Subscribing
// returns a disposer; callers release their subscription instead of
// relying on anything ambient.
type Dispatcher struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]map[int]Handler),
	}
}

// On subscribes a handler to an event name. The returned function
// removes the subscription and is safe to call more than once.
func (d *Dispatcher) On(event string, h Handler) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	if d.handlers[event] == nil {
		d.handlers[event] = make(map[int]Handler)
	}
	d.handlers[event][id] = h
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			if hs := d.handlers[event]; hs != nil {
				delete(hs, id)
				if len(hs) == 0 {
					delete(d.handlers, event)
				}
			}
			d.mu.Unlock()
		})
	}
}

// Emit delivers data to every handler subscribed to the event. Handlers
// run synchronously on the caller's goroutine; order across handlers is
// not guaranteed.
func (d *Dispatcher) Emit(event string, data any) {
	d.mu.RLock()
	hs := make([]Handler, 0, len(d.handlers[event]))
	for _, h := range d.handlers[event] {
		hs = append(hs, h)
	}
	d.mu.RUnlock()

	for _, h := range hs {
		h(data)
	}
}
