// Package events is a small typed publish-subscribe bus. Subscribers are keyed by the Go type of
// the event, so every event type gets its own set of listeners.
package events

import (
	"reflect"
	"sync"
)

type Event any

var (
	subscriptions   = make(map[reflect.Type]map[*subscription]func(any))
	subscriptionsMu sync.RWMutex
)

type subscription struct{}

// Subscription allows unsubscribing from an event.
type Subscription[T Event] struct {
	s *subscription
}

func typeOf[T Event]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Subscribe registers callback for every event of type T.
func Subscribe[T Event](callback func(evt T)) *Subscription[T] {
	subscriptionsMu.Lock()
	defer subscriptionsMu.Unlock()
	key := typeOf[T]()
	if subscriptions[key] == nil {
		subscriptions[key] = make(map[*subscription]func(any))
	}
	s := &subscription{}
	subscriptions[key][s] = func(e any) { callback(e.(T)) }
	return &Subscription[T]{s: s}
}

// Unsubscribe removes the given subscription.
func Unsubscribe[T Event](sub *Subscription[T]) {
	if sub == nil {
		return
	}
	subscriptionsMu.Lock()
	defer subscriptionsMu.Unlock()
	key := typeOf[T]()
	if subs, ok := subscriptions[key]; ok {
		delete(subs, sub.s)
		if len(subs) == 0 {
			delete(subscriptions, key)
		}
	}
}

// Emit notifies all subscribers of the event. Callbacks run in their own goroutines.
func Emit[T Event](evt T) {
	for _, cb := range listeners[T]() {
		go cb(evt)
	}
}

// EmitSync notifies all subscribers of the event and returns once every callback has returned.
func EmitSync[T Event](evt T) {
	for _, cb := range listeners[T]() {
		cb(evt)
	}
}

func listeners[T Event]() []func(any) {
	subscriptionsMu.RLock()
	defer subscriptionsMu.RUnlock()
	subs := subscriptions[typeOf[T]()]
	out := make([]func(any), 0, len(subs))
	for _, cb := range subs {
		out = append(out, cb)
	}
	return out
}
