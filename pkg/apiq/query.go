package apiq

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Query is a read binding at one path. It is created by Proxy.Query
// and configured fluently; Fetch serves the call through the store so
// deduplication, freshness, and retry policy apply.
type Query struct {
	client *Client
	path   Path
	denied error
	ttl    time.Duration
}

// WithTTL bounds how long a fetched result stays fresh before a later
// Fetch re-dispatches. Zero keeps the store default.
func (q *Query) WithTTL(ttl time.Duration) *Query {
	q.ttl = ttl

	return q
}

// Key returns the cache key a Fetch with this input would be stored
// under.
func (q *Query) Key(input *Input) (Key, error) {
	return KeyFor(q.path, input)
}

// Fetch serves the query: fresh stored state is returned as is,
// otherwise the endpoint is resolved and dispatched and the settled
// result returned. The error mirrors Result.Err when the call failed.
func (q *Query) Fetch(ctx context.Context, input *Input) (*Result, error) {
	return q.fetch(ctx, input, false)
}

// Refetch forces a dispatch even when fresh state exists.
func (q *Query) Refetch(ctx context.Context, input *Input) (*Result, error) {
	return q.fetch(ctx, input, true)
}

func (q *Query) fetch(ctx context.Context, input *Input, refresh bool) (*Result, error) {
	if q.denied != nil {
		return nil, q.denied
	}

	key, err := KeyFor(q.path, input)
	if err != nil {
		return nil, err
	}

	req := &QueryRequest{
		Key:     key,
		TTL:     q.ttl,
		Refresh: refresh,
		Fetch:   q.client.fetchFunc(q.path, input),
	}

	return q.client.store.Query(ctx, req)
}

// InfiniteQuery is a paged read binding at one path. The input never
// carries the page cursor; the engine threads the store-tracked cursor
// into the query parameters under the configured page parameter.
type InfiniteQuery struct {
	client     *Client
	path       Path
	denied     error
	ttl        time.Duration
	pageParam  string
	nextCursor NextCursorFunc
}

// WithTTL bounds how long fetched pages stay fresh. Zero keeps the
// store default.
func (q *InfiniteQuery) WithTTL(ttl time.Duration) *InfiniteQuery {
	q.ttl = ttl

	return q
}

// WithPageParam overrides the query parameter the cursor is sent
// under. The default is the client's page parameter ("page" unless
// configured otherwise).
func (q *InfiniteQuery) WithPageParam(name string) *InfiniteQuery {
	q.pageParam = name

	return q
}

// WithNextCursor supplies the extractor that derives the next page's
// cursor from a fetched page. Fetching fails without one.
func (q *InfiniteQuery) WithNextCursor(fn NextCursorFunc) *InfiniteQuery {
	q.nextCursor = fn

	return q
}

// Key returns the cache key the paged state is stored under. The
// cursor is not part of the key; all pages live under one key.
func (q *InfiniteQuery) Key(input *Input) (Key, error) {
	return KeyFor(q.path, input)
}

// Fetch serves the first page, or the already-fetched pages when the
// stored state is fresh.
func (q *InfiniteQuery) Fetch(ctx context.Context, input *Input) (*PagedResult, error) {
	req, err := q.request(input, false)
	if err != nil {
		return nil, err
	}

	return q.client.store.PagedQuery(ctx, req)
}

// Refetch drops the stored pages and fetches the first page again.
func (q *InfiniteQuery) Refetch(ctx context.Context, input *Input) (*PagedResult, error) {
	req, err := q.request(input, true)
	if err != nil {
		return nil, err
	}

	return q.client.store.PagedQuery(ctx, req)
}

// FetchNext extends the paged state by one page, using the cursor
// extracted from the last fetched page. It fails with ErrNoNextPage
// when the last page was final.
func (q *InfiniteQuery) FetchNext(ctx context.Context, input *Input) (*PagedResult, error) {
	req, err := q.request(input, false)
	if err != nil {
		return nil, err
	}

	return q.client.store.FetchNextPage(ctx, req)
}

func (q *InfiniteQuery) request(input *Input, refresh bool) (*PagedQueryRequest, error) {
	if q.denied != nil {
		return nil, q.denied
	}

	if q.nextCursor == nil {
		return nil, fmt.Errorf("paged query at %s: %w", q.path, ErrNextCursorMissing)
	}

	key, err := KeyFor(q.path, input)
	if err != nil {
		return nil, err
	}

	return &PagedQueryRequest{
		Key:        key,
		TTL:        q.ttl,
		Refresh:    refresh,
		NextCursor: q.nextCursor,
		FetchPage:  q.pageFetchFunc(input),
	}, nil
}

// pageFetchFunc builds the per-page fetch closure. The first page
// dispatches the input untouched; later pages get the cursor merged
// into a cloned input's query parameters.
func (q *InfiniteQuery) pageFetchFunc(input *Input) PageFetchFunc {
	client := q.client
	path := q.path
	pageParam := q.pageParam

	return func(ctx context.Context, cursor string) ([]byte, error) {
		pageInput := input
		if cursor != "" {
			pageInput = input.Clone()
			if pageInput.Query == nil {
				pageInput.Query = url.Values{}
			}

			pageInput.Query.Set(pageParam, cursor)
		}

		node, err := Resolve(client.base, path)
		if err != nil {
			return nil, err
		}

		return Dispatch(ctx, node, MethodGet, path, pageInput)
	}
}
