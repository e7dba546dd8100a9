package store

import (
	"time"

	"github.com/fivetwenty-io/apiq/pkg/apiq"
)

// StateSnapshot is a point-in-time copy of settled success states,
// taken with Snapshot and replayed with Restore. Optimistic updates
// use the pair to roll back a Seed when the mutation behind it fails.
type StateSnapshot struct {
	entries []snapshotEntry
}

type snapshotEntry struct {
	key  apiq.Key
	data []byte
}

// Len reports how many states the snapshot holds.
func (snap *StateSnapshot) Len() int {
	return len(snap.entries)
}

// Keys lists the captured keys in capture order.
func (snap *StateSnapshot) Keys() []apiq.Key {
	keys := make([]apiq.Key, len(snap.entries))
	for i, entry := range snap.entries {
		keys[i] = entry.key.Clone()
	}

	return keys
}

// Snapshot copies every settled success state under prefix. Pending
// and failed states are not captured. The copy is independent of the
// store; later invalidations or refetches do not touch it.
func (s *Store) Snapshot(prefix apiq.Key) *StateSnapshot {
	snap := &StateSnapshot{}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, state := range s.queries {
		if !state.key.HasPrefix(prefix) {
			continue
		}

		if state.result == nil || state.result.Status != apiq.StatusSuccess {
			continue
		}

		data := make([]byte, len(state.result.Data))
		copy(data, state.result.Data)

		snap.entries = append(snap.entries, snapshotEntry{key: state.key.Clone(), data: data})
	}

	return snap
}

// Restore seeds the snapshot's states back into the store. Each
// restored state gets a fresh UpdatedAt, so freshness runs from the
// restore. Keys with a fetch in flight keep the fetch's outcome
// instead, per Seed.
func (s *Store) Restore(snap *StateSnapshot) {
	for _, entry := range snap.entries {
		data := make([]byte, len(entry.data))
		copy(data, entry.data)

		s.Seed(entry.key, data)
	}
}

// SeedAt is Seed with an explicit timestamp, letting tests and replay
// tooling control freshness.
func (s *Store) SeedAt(key apiq.Key, data []byte, updatedAt time.Time) {
	result := &apiq.Result{
		Key:       key.Clone(),
		Status:    apiq.StatusSuccess,
		Data:      data,
		UpdatedAt: updatedAt,
	}

	s.mu.Lock()

	state, ok := s.queries[key.Encode()]
	if ok && state.inFlight != nil {
		s.mu.Unlock()

		return
	}

	s.queries[key.Encode()] = &queryState{key: result.Key, result: result}
	s.mu.Unlock()

	s.notify(key, result)
}
