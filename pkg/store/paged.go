package store

import (
	"context"
	"time"

	"github.com/fivetwenty-io/apiq/pkg/apiq"
)

type pagedState struct {
	key    apiq.Key
	result *apiq.PagedResult
	// cursor addresses the page after the last fetched one; it is
	// meaningful while result.HasMore holds.
	cursor   string
	inFlight chan struct{}
}

// PagedQuery implements apiq.Store. It serves the stored pages when
// they are fresh and otherwise resets the state and fetches the first
// page. Concurrent paged queries for one key share a single fetch.
func (s *Store) PagedQuery(ctx context.Context, req *apiq.PagedQueryRequest) (*apiq.PagedResult, error) {
	encoded := req.Key.Encode()

	s.stats.queries.Add(1)

	s.mu.Lock()

	state, ok := s.paged[encoded]
	if ok && state.inFlight != nil {
		return s.joinPaged(ctx, state)
	}

	if ok && !req.Refresh && s.pagedFresh(state.result, req.TTL) {
		result := state.result
		s.mu.Unlock()

		s.stats.hits.Add(1)

		return result, nil
	}

	state = &pagedState{
		key:      req.Key.Clone(),
		result:   pendingPagedResult(req.Key, nil),
		inFlight: make(chan struct{}),
	}
	s.paged[encoded] = state
	s.mu.Unlock()

	s.stats.misses.Add(1)
	s.notifyPaged(req.Key, state.result)

	return s.runPageFetch(ctx, state, req, "", nil)
}

// FetchNextPage implements apiq.Store. A key with no stored pages is
// served its first page; a state whose last page was final fails with
// ErrNoNextPage.
func (s *Store) FetchNextPage(ctx context.Context, req *apiq.PagedQueryRequest) (*apiq.PagedResult, error) {
	encoded := req.Key.Encode()

	s.stats.queries.Add(1)

	s.mu.Lock()

	state, ok := s.paged[encoded]
	if ok && state.inFlight != nil {
		return s.joinPaged(ctx, state)
	}

	if !ok || state.result == nil || len(state.result.Pages) == 0 {
		state = &pagedState{
			key:      req.Key.Clone(),
			result:   pendingPagedResult(req.Key, nil),
			inFlight: make(chan struct{}),
		}
		s.paged[encoded] = state
		s.mu.Unlock()

		s.notifyPaged(req.Key, state.result)

		return s.runPageFetch(ctx, state, req, "", nil)
	}

	if !state.result.HasMore {
		result := state.result
		s.mu.Unlock()

		return result, apiq.ErrNoNextPage
	}

	cursor := state.cursor
	prev := state.result.Pages
	state.inFlight = make(chan struct{})
	state.result = pendingPagedResult(req.Key, prev)
	s.mu.Unlock()

	s.notifyPaged(req.Key, state.result)

	return s.runPageFetch(ctx, state, req, cursor, prev)
}

// joinPaged waits out the fetch already running for a state and shares
// its outcome. Callers hold the store lock; joinPaged releases it.
func (s *Store) joinPaged(ctx context.Context, state *pagedState) (*apiq.PagedResult, error) {
	waitCh := state.inFlight
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-waitCh:
	}

	s.mu.Lock()
	result := state.result
	s.mu.Unlock()

	s.stats.hits.Add(1)

	return result, result.Err
}

// runPageFetch fetches one page and settles the state. A failed fetch
// keeps the pages already held; when it was a next-page fetch the
// cursor survives too, so a later FetchNextPage retries the same page.
func (s *Store) runPageFetch(ctx context.Context, state *pagedState, req *apiq.PagedQueryRequest, cursor string, prev [][]byte) (*apiq.PagedResult, error) {
	s.stats.fetches.Add(1)

	page, err := Retry(ctx, s.retry, func() ([]byte, error) {
		return req.FetchPage(ctx, cursor)
	})

	result := &apiq.PagedResult{Key: state.key, UpdatedAt: time.Now()}

	var nextCursor string

	if err != nil {
		result.Status = apiq.StatusFailure
		result.Err = err
		result.Pages = prev
		result.HasMore = cursor != ""
		nextCursor = cursor

		s.stats.errors.Add(1)
		s.debug("page fetch failed", map[string]interface{}{"key": state.key.String(), "error": err.Error()})
	} else {
		pages := make([][]byte, 0, len(prev)+1)
		pages = append(pages, prev...)
		pages = append(pages, page)

		result.Status = apiq.StatusSuccess
		result.Pages = pages

		if next, ok := req.NextCursor(page); ok {
			nextCursor = next
			result.HasMore = true
		}
	}

	s.mu.Lock()
	state.result = result
	state.cursor = nextCursor
	close(state.inFlight)
	state.inFlight = nil
	s.mu.Unlock()

	s.notifyPaged(state.key, result)

	return result, err
}

func (s *Store) pagedFresh(result *apiq.PagedResult, ttl time.Duration) bool {
	if result == nil || result.Status != apiq.StatusSuccess {
		return false
	}

	switch {
	case ttl < 0:
		return false
	case ttl == 0:
		ttl = s.ttl
	}

	return time.Since(result.UpdatedAt) < ttl
}

// PeekPaged returns the stored paged state for a key without fetching.
func (s *Store) PeekPaged(key apiq.Key) (*apiq.PagedResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.paged[key.Encode()]
	if !ok {
		return nil, false
	}

	return state.result, true
}

func pendingPagedResult(key apiq.Key, pages [][]byte) *apiq.PagedResult {
	return &apiq.PagedResult{
		Key:       key.Clone(),
		Status:    apiq.StatusPending,
		Pages:     pages,
		HasMore:   len(pages) > 0,
		UpdatedAt: time.Now(),
	}
}
