package store

import (
	"github.com/fivetwenty-io/apiq/pkg/apiq"
	"github.com/google/uuid"
)

// Event describes one state transition observed by the store. Query
// and mutation transitions set Result; paged transitions set Paged.
// An invalidation event sets neither.
type Event struct {
	// Key identifies the state that changed.
	Key apiq.Key
	// Result is the state after a query or mutation transition.
	Result *apiq.Result
	// Paged is the state after a paged query transition.
	Paged *apiq.PagedResult
}

// Listener receives state transition events.
type Listener func(Event)

type subscription struct {
	prefix apiq.Key
	fn     Listener
}

// Subscribe registers a listener for state transitions under a key
// prefix. An empty prefix observes every key. Listeners run
// synchronously on the goroutine driving the transition, so they
// should hand heavy work off. The returned function removes the
// listener and is safe to call more than once.
func (s *Store) Subscribe(prefix apiq.Key, fn Listener) func() {
	id := uuid.NewString()

	s.mu.Lock()
	s.subs[id] = &subscription{prefix: prefix.Clone(), fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(key apiq.Key, result *apiq.Result) {
	s.deliver(Event{Key: key.Clone(), Result: result})
}

func (s *Store) notifyPaged(key apiq.Key, result *apiq.PagedResult) {
	s.deliver(Event{Key: key.Clone(), Paged: result})
}

// deliver hands an event to every listener whose prefix matches. The
// store lock is not held while listeners run, so they may call back
// into the store.
func (s *Store) deliver(event Event) {
	s.mu.Lock()

	var matched []Listener

	for _, sub := range s.subs {
		if event.Key.HasPrefix(sub.prefix) {
			matched = append(matched, sub.fn)
		}
	}

	s.mu.Unlock()

	for _, fn := range matched {
		fn(event)
	}
}
