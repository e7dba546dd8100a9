package store_test

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/apiq/pkg/apiq"
	"github.com/fivetwenty-io/apiq/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetch returns a fetch that serves data and counts calls.
func countingFetch(data string, calls *atomic.Int32) apiq.FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		calls.Add(1)

		return []byte(data), nil
	}
}

func TestStore_Query_FetchesAndSettles(t *testing.T) {
	t.Parallel()

	s := store.New()
	key := apiq.NewKey("posts", "null")

	var calls atomic.Int32

	res, err := s.Query(context.Background(), &apiq.QueryRequest{
		Key:   key,
		Fetch: countingFetch(`[{"id":1}]`, &calls),
	})
	require.NoError(t, err)
	assert.Equal(t, apiq.StatusSuccess, res.Status)
	assert.JSONEq(t, `[{"id":1}]`, string(res.Data))
	assert.Equal(t, int32(1), calls.Load())

	peeked, ok := s.Peek(key)
	require.True(t, ok)
	assert.Equal(t, res, peeked)
}

func TestStore_Query_ServesFreshStateWithoutFetching(t *testing.T) {
	t.Parallel()

	s := store.New()
	key := apiq.NewKey("posts", "null")

	var calls atomic.Int32

	req := &apiq.QueryRequest{Key: key, Fetch: countingFetch(`"first"`, &calls)}

	_, err := s.Query(context.Background(), req)
	require.NoError(t, err)

	res, err := s.Query(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, `"first"`, string(res.Data))

	stats := s.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestStore_Query_NegativeTTLAlwaysRefetches(t *testing.T) {
	t.Parallel()

	s := store.New()
	key := apiq.NewKey("posts", "null")

	var calls atomic.Int32

	req := &apiq.QueryRequest{Key: key, Fetch: countingFetch(`"data"`, &calls), TTL: -1}

	_, err := s.Query(context.Background(), req)
	require.NoError(t, err)

	_, err = s.Query(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStore_Query_StaleStateRefetches(t *testing.T) {
	t.Parallel()

	s := store.New()
	key := apiq.NewKey("posts", "null")
	s.SeedAt(key, []byte(`"stale"`), time.Now().Add(-time.Hour))

	var calls atomic.Int32

	res, err := s.Query(context.Background(), &apiq.QueryRequest{
		Key:   key,
		Fetch: countingFetch(`"fresh"`, &calls),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, `"fresh"`, string(res.Data))
}

func TestStore_Query_RefreshForcesFetch(t *testing.T) {
	t.Parallel()

	s := store.New()
	key := apiq.NewKey("posts", "null")

	var calls atomic.Int32

	_, err := s.Query(context.Background(), &apiq.QueryRequest{
		Key:   key,
		Fetch: countingFetch(`"one"`, &calls),
	})
	require.NoError(t, err)

	res, err := s.Query(context.Background(), &apiq.QueryRequest{
		Key:     key,
		Fetch:   countingFetch(`"two"`, &calls),
		Refresh: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, `"two"`, string(res.Data))
}

func TestStore_Query_FailureSettlesAndIsNeverFresh(t *testing.T) {
	t.Parallel()

	s := store.New()
	key := apiq.NewKey("posts", ":id", `{"params":{"id":"9"}}`)

	var calls atomic.Int32

	fetch := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)

		return nil, apiq.NewRequestError(http.StatusNotFound, "Not Found", nil)
	}

	res, err := s.Query(context.Background(), &apiq.QueryRequest{Key: key, Fetch: fetch})
	require.Error(t, err)
	assert.Equal(t, apiq.StatusFailure, res.Status)
	assert.Equal(t, res.Err, err)
	assert.True(t, apiq.IsNotFound(err))
	assert.Equal(t, int32(1), calls.Load(), "client errors are terminal, not retried")

	// A settled failure never counts as fresh; the next query fetches
	// again.
	_, err = s.Query(context.Background(), &apiq.QueryRequest{Key: key, Fetch: fetch})
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStore_Query_DeduplicatesConcurrentFetches(t *testing.T) {
	t.Parallel()

	s := store.New()
	key := apiq.NewKey("posts", "null")
	release := make(chan struct{})

	var calls atomic.Int32

	fetch := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		<-release

		return []byte(`"shared"`), nil
	}

	const workers = 8

	results := make([]*apiq.Result, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		i := i

		wg.Add(1)

		go func() {
			defer wg.Done()

			results[i], errs[i] = s.Query(context.Background(), &apiq.QueryRequest{Key: key, Fetch: fetch})
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent queries share one fetch")

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, apiq.StatusSuccess, results[i].Status)
		assert.Equal(t, `"shared"`, string(results[i].Data))
	}
}

func TestStore_Query_JoinedCallersShareFailure(t *testing.T) {
	t.Parallel()

	s := store.New()
	key := apiq.NewKey("posts", "null")
	release := make(chan struct{})

	var calls atomic.Int32

	fetch := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		<-release

		return nil, apiq.NewRequestError(http.StatusBadRequest, "Bad Request", nil)
	}

	var wg sync.WaitGroup

	errs := make([]error, 2)

	for i := 0; i < 2; i++ {
		i := i

		wg.Add(1)

		go func() {
			defer wg.Done()

			_, errs[i] = s.Query(context.Background(), &apiq.QueryRequest{Key: key, Fetch: fetch})
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	for _, err := range errs {
		require.Error(t, err)

		_, ok := apiq.IsRequestError(err)
		assert.True(t, ok)
	}
}

func TestStore_Invalidate_DropsMatchingStates(t *testing.T) {
	t.Parallel()

	s := store.New()
	postList := apiq.NewKey("posts", "null")
	postOne := apiq.NewKey("posts", ":id", `{"params":{"id":"1"}}`)
	userList := apiq.NewKey("users", "null")

	s.Seed(postList, []byte(`[1,2]`))
	s.Seed(postOne, []byte(`{"id":1}`))
	s.Seed(userList, []byte(`[]`))

	count, err := s.Invalidate(context.Background(), apiq.NewKey("posts"))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, ok := s.Peek(postList)
	assert.False(t, ok)
	_, ok = s.Peek(postOne)
	assert.False(t, ok)
	_, ok = s.Peek(userList)
	assert.True(t, ok)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, int64(2), s.GetStats().Invalidated)
}

func TestStore_Invalidate_DuringFetchDropsState(t *testing.T) {
	t.Parallel()

	s := store.New()
	key := apiq.NewKey("posts", "null")
	release := make(chan struct{})

	var calls atomic.Int32

	fetch := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		<-release

		return []byte(`"late"`), nil
	}

	done := make(chan *apiq.Result, 1)

	go func() {
		res, _ := s.Query(context.Background(), &apiq.QueryRequest{Key: key, Fetch: fetch})
		done <- res
	}()

	time.Sleep(20 * time.Millisecond)

	count, err := s.Invalidate(context.Background(), apiq.NewKey("posts"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	close(release)

	res := <-done
	assert.Equal(t, apiq.StatusSuccess, res.Status, "the joined caller still gets its result")

	// The settled state did not survive the invalidation; the next
	// query fetches again.
	_, ok := s.Peek(key)
	assert.False(t, ok)

	_, err = s.Query(context.Background(), &apiq.QueryRequest{Key: key, Fetch: fetch, Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStore_SeedAndPeek(t *testing.T) {
	t.Parallel()

	s := store.New()
	key := apiq.NewKey("posts", "null")
	s.Seed(key, []byte(`[1]`))

	res, ok := s.Peek(key)
	require.True(t, ok)
	assert.Equal(t, apiq.StatusSuccess, res.Status)
	assert.Equal(t, `[1]`, string(res.Data))

	// Seeded states serve queries like fetched ones.
	var calls atomic.Int32

	served, err := s.Query(context.Background(), &apiq.QueryRequest{
		Key:   key,
		Fetch: countingFetch(`"never"`, &calls),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, `[1]`, string(served.Data))
}

func TestStore_SnapshotAndRestore(t *testing.T) {
	t.Parallel()

	s := store.New()
	postList := apiq.NewKey("posts", "null")
	postOne := apiq.NewKey("posts", ":id", `{"params":{"id":"1"}}`)
	s.Seed(postList, []byte(`[1,2]`))
	s.Seed(postOne, []byte(`{"id":1}`))

	snap := s.Snapshot(apiq.NewKey("posts"))
	require.Equal(t, 2, snap.Len())

	_, err := s.Invalidate(context.Background(), apiq.NewKey("posts"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	s.Restore(snap)
	assert.Equal(t, 2, s.Len())

	res, ok := s.Peek(postList)
	require.True(t, ok)
	assert.Equal(t, `[1,2]`, string(res.Data))
}

func TestStore_Keys(t *testing.T) {
	t.Parallel()

	s := store.New()
	s.Seed(apiq.NewKey("posts", "null"), []byte(`[]`))
	s.Seed(apiq.NewKey("users", "null"), []byte(`[]`))

	keys := s.Keys(apiq.NewKey("posts"))
	require.Len(t, keys, 1)
	assert.True(t, keys[0].Equal(apiq.NewKey("posts", "null")))

	assert.Len(t, s.Keys(apiq.Key{}), 2)
}

func TestStore_SnapshotCache_WriteThroughAndHydrate(t *testing.T) {
	t.Parallel()

	cache := store.NewMemoryCache(10)
	key := apiq.NewKey("posts", "null")

	first := store.New(store.WithCache(cache))

	var calls atomic.Int32

	_, err := first.Query(context.Background(), &apiq.QueryRequest{
		Key:   key,
		Fetch: countingFetch(`[1,2,3]`, &calls),
	})
	require.NoError(t, err)
	assert.True(t, cache.Has(context.Background(), key.Encode()))

	// A second store on the same cache serves the key without
	// fetching.
	second := store.New(store.WithCache(cache))

	res, err := second.Query(context.Background(), &apiq.QueryRequest{
		Key: key,
		Fetch: func(ctx context.Context) ([]byte, error) {
			t.Fatal("hydrated query must not fetch")

			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `[1,2,3]`, string(res.Data))
	assert.Equal(t, int32(1), calls.Load())
}

func TestStore_SnapshotCache_InvalidateDeletesEntry(t *testing.T) {
	t.Parallel()

	cache := store.NewMemoryCache(10)
	key := apiq.NewKey("posts", "null")
	s := store.New(store.WithCache(cache))

	var calls atomic.Int32

	_, err := s.Query(context.Background(), &apiq.QueryRequest{
		Key:   key,
		Fetch: countingFetch(`[1]`, &calls),
	})
	require.NoError(t, err)
	require.True(t, cache.Has(context.Background(), key.Encode()))

	_, err = s.Invalidate(context.Background(), apiq.NewKey("posts"))
	require.NoError(t, err)
	assert.False(t, cache.Has(context.Background(), key.Encode()))
}
