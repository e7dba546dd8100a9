package apiq

import (
	"context"

	"github.com/google/uuid"
)

// InvalidationKeys computes the key prefixes a successful mutation at
// path invalidates, in application order. A path ending in a ":"
// parameter addresses a single resource: both the resource's own
// states and the owning collection's are stale afterwards. Any other
// path invalidates itself only. Deeper ancestors are never implied;
// callers invalidate those explicitly through the utils tree.
func InvalidationKeys(path Path) []Key {
	if path.IsResource() {
		return []Key{PathKey(path), PathKey(path.Parent())}
	}

	return []Key{PathKey(path)}
}

// Mutation is a write binding at one path for one method. It is
// created by Proxy.Mutation and configured fluently. Each run flows
// through the store so its pending/settled state is observable, and
// the store applies the path-derived invalidations before the
// OnSuccess callback fires.
type Mutation struct {
	client    *Client
	path      Path
	method    Method
	denied    error
	onSuccess func(data []byte, input *Input)
	onError   func(err error, input *Input)
}

// OnSuccess registers a callback invoked after a successful run, once
// the invalidations have been applied. data is the raw response
// payload; input is the input the run was triggered with.
func (m *Mutation) OnSuccess(fn func(data []byte, input *Input)) *Mutation {
	m.onSuccess = fn

	return m
}

// OnError registers a callback invoked when a run fails. No
// invalidation happens on failure.
func (m *Mutation) OnError(fn func(err error, input *Input)) *Mutation {
	m.onError = fn

	return m
}

// Invalidations returns the key prefixes a successful run will
// invalidate, in order.
func (m *Mutation) Invalidations() []Key {
	return InvalidationKeys(m.path)
}

// Mutate runs the mutation and blocks until it settles. The error
// mirrors Result.Err on failure.
func (m *Mutation) Mutate(ctx context.Context, input *Input) (*Result, error) {
	if m.denied != nil {
		if m.onError != nil {
			m.onError(m.denied, input)
		}

		return nil, m.denied
	}

	req, err := m.request(input)
	if err != nil {
		return nil, err
	}

	return m.client.store.Mutate(ctx, req)
}

// Start fires the mutation without waiting for it to settle. Outcome
// observation happens through the OnSuccess/OnError callbacks or the
// store.
func (m *Mutation) Start(ctx context.Context, input *Input) {
	go func() {
		_, _ = m.Mutate(ctx, input)
	}()
}

// request assembles the store request for one run. Each run gets its
// own key: the path, the raw-surface method marker, the canonical
// input, and a fresh run ID. The marker segment keeps run states out
// of the addressable key space, so they can never collide with query
// state.
func (m *Mutation) request(input *Input) (*MutationRequest, error) {
	suffix, err := CanonicalJSON(input)
	if err != nil {
		return nil, err
	}

	key := PathKey(m.path)
	key = append(key, methodSigil+string(m.method), suffix, uuid.NewString())

	req := &MutationRequest{
		Key:           key,
		Invalidations: InvalidationKeys(m.path),
		Run:           m.client.dispatchFunc(m.path, m.method, input),
	}

	if m.onSuccess != nil {
		onSuccess := m.onSuccess
		req.OnSuccess = func(data []byte) { onSuccess(data, input) }
	}

	if m.onError != nil {
		onError := m.onError
		req.OnError = func(err error) { onError(err, input) }
	}

	return req, nil
}
