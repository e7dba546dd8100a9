package apiq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of one stored call.
type Status string

// Call lifecycle states. A call is created pending and settles exactly
// once into success or failure; settled results never change.
const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Settled reports whether the status is a terminal one.
func (s Status) Settled() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Result is an immutable snapshot of one call's outcome. Data is the
// raw success payload; Err is the failure cause. Exactly one of the
// two is meaningful once the result is settled.
type Result struct {
	Key       Key
	Status    Status
	Data      []byte
	Err       error
	UpdatedAt time.Time
}

// Decode unmarshals the success payload into a value of type T. It
// fails when the result is not a success.
func Decode[T any](res *Result) (T, error) {
	var out T

	if res == nil || res.Status != StatusSuccess {
		return out, fmt.Errorf("decoding result: %w", errResultNotSuccessful(res))
	}

	if err := json.Unmarshal(res.Data, &out); err != nil {
		return out, fmt.Errorf("decoding result for %s: %w", res.Key, err)
	}

	return out, nil
}

func errResultNotSuccessful(res *Result) error {
	if res != nil && res.Err != nil {
		return res.Err
	}

	return ErrResultNotSettled
}

// FetchFunc produces the payload for one query execution.
type FetchFunc func(ctx context.Context) ([]byte, error)

// PageFetchFunc produces one page of a paged query. cursor is "" for
// the first page; later pages receive the cursor extracted from their
// predecessor.
type PageFetchFunc func(ctx context.Context, cursor string) ([]byte, error)

// NextCursorFunc derives the cursor for the page after the given one.
// ok=false means the given page is the last.
type NextCursorFunc func(page []byte) (cursor string, ok bool)

// QueryRequest asks the store to serve a keyed query. The store runs
// fetch when it holds no fresh state for the key, deduplicating
// concurrent requests for the same key into a single execution.
type QueryRequest struct {
	Key   Key
	Fetch FetchFunc
	// TTL bounds how long a settled success stays fresh. Zero means
	// the store default; negative means never fresh (always refetch).
	TTL time.Duration
	// Refresh forces a fetch even when fresh state exists.
	Refresh bool
}

// PagedQueryRequest asks the store to serve a keyed paged query.
type PagedQueryRequest struct {
	Key        Key
	FetchPage  PageFetchFunc
	NextCursor NextCursorFunc
	TTL        time.Duration
	Refresh    bool
}

// PagedResult is the snapshot of a paged query: the pages fetched so
// far in order, and whether a further page is known to exist.
type PagedResult struct {
	Key       Key
	Status    Status
	Pages     [][]byte
	Err       error
	HasMore   bool
	UpdatedAt time.Time
}

// MutationRequest asks the store to run one mutation. On success the
// store applies Invalidations in order, then calls OnSuccess, then
// settles the mutation state; on failure it calls OnError and settles
// as failed. Callbacks may be nil.
type MutationRequest struct {
	Key Key
	Run FetchFunc
	// Invalidations are key prefixes to invalidate after a successful
	// run, in order.
	Invalidations []Key
	OnSuccess     func(data []byte)
	OnError       func(err error)
}

// Store is the async-state store the engine drives. Implementations
// own the full call lifecycle: pending states, settlement, freshness,
// and prefix invalidation. github.com/fivetwenty-io/apiq/pkg/store
// provides the canonical implementation.
type Store interface {
	// Query serves a keyed query, blocking until the state settles or
	// ctx is done. The error mirrors Result.Err when the call failed,
	// so callers can use either.
	Query(ctx context.Context, req *QueryRequest) (*Result, error)
	// PagedQuery serves the first page of a keyed paged query (or the
	// cached pages when fresh).
	PagedQuery(ctx context.Context, req *PagedQueryRequest) (*PagedResult, error)
	// FetchNextPage extends a previously served paged query by one
	// page. It fails with ErrNoNextPage when the last served page had
	// no cursor.
	FetchNextPage(ctx context.Context, req *PagedQueryRequest) (*PagedResult, error)
	// Mutate runs a mutation, blocking until it settles. The returned
	// result reflects the settled state; err mirrors Result.Err for
	// failures so callers can use either.
	Mutate(ctx context.Context, req *MutationRequest) (*Result, error)
	// Invalidate removes every stored state whose key begins with
	// prefix, returning how many entries were dropped.
	Invalidate(ctx context.Context, prefix Key) (int, error)
}
