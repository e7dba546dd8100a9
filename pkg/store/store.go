package store

import (
	"context"
	"sync"
	"time"

	"github.com/fivetwenty-io/apiq/internal/constants"
	"github.com/fivetwenty-io/apiq/pkg/apiq"
)

// Store is the canonical apiq.Store implementation. The zero value is
// not usable; create stores with New.
type Store struct {
	mu      sync.Mutex
	queries map[string]*queryState
	paged   map[string]*pagedState
	subs    map[string]*subscription

	ttl      time.Duration
	retry    RetryConfig
	logger   apiq.Logger
	cache    Cache
	cacheTTL time.Duration

	stats statCounters
}

type queryState struct {
	key      apiq.Key
	result   *apiq.Result
	inFlight chan struct{}
	// dropped is set when an invalidation removes the state while its
	// fetch is still running; the settled result then stays out of the
	// snapshot cache.
	dropped bool
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the default freshness window for stored successes.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithRetry sets the retry policy applied to query fetches.
func WithRetry(cfg RetryConfig) Option {
	return func(s *Store) {
		s.retry = cfg
	}
}

// WithLogger installs a structured logger for state transitions.
func WithLogger(logger apiq.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithCache installs a snapshot cache for settled query payloads.
func WithCache(cache Cache) Option {
	return func(s *Store) {
		s.cache = cache
	}
}

// WithCacheTTL sets the lifetime of written-through snapshot entries.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.cacheTTL = ttl
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		queries:  make(map[string]*queryState),
		paged:    make(map[string]*pagedState),
		subs:     make(map[string]*subscription),
		ttl:      constants.DefaultQueryTTL,
		cacheTTL: constants.DefaultSnapshotTTL,
		retry:    DefaultRetryConfig(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Query implements apiq.Store. Fresh stored successes are served
// without fetching; concurrent queries for one key share a single
// fetch and its outcome, failures included.
func (s *Store) Query(ctx context.Context, req *apiq.QueryRequest) (*apiq.Result, error) {
	encoded := req.Key.Encode()

	s.stats.queries.Add(1)

	if !req.Refresh {
		s.maybeHydrate(req.Key)
	}

	s.mu.Lock()

	state, ok := s.queries[encoded]
	if ok && state.inFlight != nil {
		// Join the fetch already running for this key and share its
		// outcome.
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

	if ok && !req.Refresh && s.fresh(state.result, req.TTL) {
		result := state.result
		s.mu.Unlock()

		s.stats.hits.Add(1)

		return result, nil
	}

	// This caller fetches; queries arriving meanwhile join the
	// channel.
	state = &queryState{
		key:      req.Key.Clone(),
		result:   pendingResult(req.Key),
		inFlight: make(chan struct{}),
	}
	s.queries[encoded] = state
	s.mu.Unlock()

	s.stats.misses.Add(1)
	s.notify(req.Key, state.result)

	return s.runFetch(ctx, state, req)
}

func (s *Store) runFetch(ctx context.Context, state *queryState, req *apiq.QueryRequest) (*apiq.Result, error) {
	s.stats.fetches.Add(1)

	data, err := Retry(ctx, s.retry, func() ([]byte, error) {
		return req.Fetch(ctx)
	})

	result := &apiq.Result{Key: state.key, UpdatedAt: time.Now()}
	if err != nil {
		result.Status = apiq.StatusFailure
		result.Err = err

		s.stats.errors.Add(1)
		s.debug("query failed", map[string]interface{}{"key": state.key.String(), "error": err.Error()})
	} else {
		result.Status = apiq.StatusSuccess
		result.Data = data
	}

	s.mu.Lock()
	state.result = result
	close(state.inFlight)
	state.inFlight = nil
	cacheable := err == nil && !state.dropped
	s.mu.Unlock()

	if cacheable {
		s.writeThrough(state.key, data)
	}

	s.notify(state.key, result)

	return result, err
}

// fresh reports whether a settled result can be served without
// fetching. Only successes are ever fresh.
func (s *Store) fresh(result *apiq.Result, ttl time.Duration) bool {
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

// maybeHydrate materializes a cold key's state from the snapshot
// cache. The cache read happens outside the store lock; a state that
// appeared meanwhile wins.
func (s *Store) maybeHydrate(key apiq.Key) {
	if s.cache == nil {
		return
	}

	encoded := key.Encode()

	s.mu.Lock()
	_, exists := s.queries[encoded]
	s.mu.Unlock()

	if exists {
		return
	}

	entry, err := s.cache.Get(context.Background(), encoded)
	if err != nil || entry == nil || entry.Expired() {
		return
	}

	result := &apiq.Result{
		Key:       key.Clone(),
		Status:    apiq.StatusSuccess,
		Data:      entry.Data,
		UpdatedAt: time.Now(),
	}

	s.mu.Lock()
	if _, exists := s.queries[encoded]; !exists {
		s.queries[encoded] = &queryState{key: result.Key, result: result}
	}
	s.mu.Unlock()

	s.debug("hydrated from snapshot cache", map[string]interface{}{"key": key.String()})
}

func (s *Store) writeThrough(key apiq.Key, data []byte) {
	if s.cache == nil {
		return
	}

	entry := &CacheEntry{
		Data:      data,
		ExpiresAt: time.Now().Add(s.cacheTTL),
	}

	err := s.cache.Set(context.Background(), key.Encode(), entry)
	if err != nil {
		s.debug("snapshot write failed", map[string]interface{}{"key": key.String(), "error": err.Error()})
	}
}

// Invalidate implements apiq.Store: every stored query and paged state
// whose key begins with prefix is dropped and its subscribers told.
// States with a fetch still in flight are dropped from the map too;
// the fetch settles detached, visible only to its joined callers, and
// the next query starts clean.
func (s *Store) Invalidate(_ context.Context, prefix apiq.Key) (int, error) {
	var dropped []apiq.Key

	s.mu.Lock()

	for encoded, state := range s.queries {
		if state.key.HasPrefix(prefix) {
			delete(s.queries, encoded)

			state.dropped = true
			dropped = append(dropped, state.key)
		}
	}

	for encoded, state := range s.paged {
		if state.key.HasPrefix(prefix) {
			delete(s.paged, encoded)

			dropped = append(dropped, state.key)
		}
	}

	s.mu.Unlock()

	for _, key := range dropped {
		if s.cache != nil {
			_ = s.cache.Delete(context.Background(), key.Encode())
		}

		s.notify(key, nil)
	}

	s.stats.invalidated.Add(int64(len(dropped)))
	s.debug("invalidated", map[string]interface{}{"prefix": prefix.String(), "count": len(dropped)})

	return len(dropped), nil
}

// Peek returns the stored state for a key without fetching.
func (s *Store) Peek(key apiq.Key) (*apiq.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.queries[key.Encode()]
	if !ok {
		return nil, false
	}

	return state.result, true
}

// Seed stores a success state directly, as optimistic updates do. The
// seeded state is subject to the same freshness and invalidation rules
// as a fetched one. Seeding a key with an in-flight fetch is a no-op;
// the fetch outcome wins.
func (s *Store) Seed(key apiq.Key, data []byte) {
	s.SeedAt(key, data, time.Now())
}

// Keys lists the stored keys under a prefix, in no particular order.
func (s *Store) Keys(prefix apiq.Key) []apiq.Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []apiq.Key

	for _, state := range s.queries {
		if state.key.HasPrefix(prefix) {
			keys = append(keys, state.key)
		}
	}

	for _, state := range s.paged {
		if state.key.HasPrefix(prefix) {
			keys = append(keys, state.key)
		}
	}

	return keys
}

// Len reports how many states the store holds.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queries) + len(s.paged)
}

func pendingResult(key apiq.Key) *apiq.Result {
	return &apiq.Result{Key: key.Clone(), Status: apiq.StatusPending, UpdatedAt: time.Now()}
}

func (s *Store) debug(msg string, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, fields)
	}
}
