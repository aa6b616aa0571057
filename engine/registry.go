package engine

import (
	"fmt"
	"sync"

	"github.com/samaelod/callsim/types"
)

// Listener receives emitted events.
type Listener func(types.Event)

// LifecycleListener receives connect/disconnect signals.
type LifecycleListener func(Signal, types.ConnectionStatus)

type Signal string

const (
	SignalConnected    Signal = "connected"
	SignalDisconnected Signal = "disconnected"
)

// wildcard is the channel of listeners that receive every event type.
const wildcard types.EventType = "*"

// ListenerError reports a listener that panicked during delivery.
type ListenerError struct {
	Channel string
	Value   any
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener on %q panicked: %v", e.Channel, e.Value)
}

type subscription struct {
	id   uint64
	fn   Listener
	once bool
}

type lifecycleSubscription struct {
	id uint64
	fn LifecycleListener
}

// Registry maps event types (plus a wildcard channel) to ordered listener
// lists. It may be shared between simulators; it is safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	nextID    uint64
	channels  map[types.EventType][]subscription
	lifecycle []lifecycleSubscription
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[types.EventType][]subscription)}
}

// OnEvent registers fn for every emitted event. The returned func
// unregisters it.
func (r *Registry) OnEvent(fn Listener) func() {
	return r.add(wildcard, fn, false)
}

// OnEventType registers fn for events of type t only.
func (r *Registry) OnEventType(t types.EventType, fn Listener) func() {
	return r.add(t, fn, false)
}

// OnceEvent registers fn for the next emitted event of any type.
func (r *Registry) OnceEvent(fn Listener) func() {
	return r.add(wildcard, fn, true)
}

func (r *Registry) OnLifecycle(fn LifecycleListener) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.lifecycle = append(r.lifecycle, lifecycleSubscription{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, sub := range r.lifecycle {
			if sub.id == id {
				r.lifecycle = append(r.lifecycle[:i:i], r.lifecycle[i+1:]...)
				return
			}
		}
	}
}

func (r *Registry) add(ch types.EventType, fn Listener, once bool) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.channels[ch] = append(r.channels[ch], subscription{id: id, fn: fn, once: once})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.remove(ch, id)
	}
}

// remove must be called with r.mu held.
func (r *Registry) remove(ch types.EventType, id uint64) bool {
	subs := r.channels[ch]
	for i, sub := range subs {
		if sub.id == id {
			r.channels[ch] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// take snapshots a channel's listeners, dropping once-listeners from the
// registry so they fire exactly one time. Must be called with r.mu held.
func (r *Registry) take(ch types.EventType) []subscription {
	subs := r.channels[ch]
	if len(subs) == 0 {
		return nil
	}
	out := make([]subscription, len(subs))
	copy(out, subs)

	kept := subs[:0:0]
	for _, sub := range subs {
		if !sub.once {
			kept = append(kept, sub)
		}
	}
	r.channels[ch] = kept
	return out
}

// Notify delivers ev to the wildcard listeners and then to the listeners of
// ev.Type. A panicking listener does not stop delivery; each recovered
// panic is returned as a *ListenerError.
func (r *Registry) Notify(ev types.Event) []error {
	r.mu.Lock()
	generic := r.take(wildcard)
	var typed []subscription
	if ev.Type != wildcard {
		typed = r.take(ev.Type)
	}
	r.mu.Unlock()

	var errs []error
	for _, sub := range generic {
		if err := deliver("*", func() { sub.fn(ev) }); err != nil {
			errs = append(errs, err)
		}
	}
	for _, sub := range typed {
		if err := deliver(string(ev.Type), func() { sub.fn(ev) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// NotifyLifecycle delivers a connection signal to lifecycle listeners.
func (r *Registry) NotifyLifecycle(sig Signal, status types.ConnectionStatus) []error {
	r.mu.Lock()
	subs := make([]lifecycleSubscription, len(r.lifecycle))
	copy(subs, r.lifecycle)
	r.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := deliver(string(sig), func() { sub.fn(sig, status) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func deliver(channel string, call func()) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &ListenerError{Channel: channel, Value: v}
		}
	}()
	call()
	return nil
}

// Len returns the number of registered event listeners, all channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, subs := range r.channels {
		n += len(subs)
	}
	return n
}

// Clear removes every listener, lifecycle listeners included.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = make(map[types.EventType][]subscription)
	r.lifecycle = nil
}
