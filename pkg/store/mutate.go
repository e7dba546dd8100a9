package store

import (
	"context"
	"time"

	"github.com/fivetwenty-io/apiq/pkg/apiq"
)

// Mutate implements apiq.Store. The run executes exactly once; unlike
// query fetches it is never retried. On success the request's
// invalidation prefixes are applied in order, then OnSuccess runs,
// then the settled state goes out to subscribers. On failure OnError
// runs and nothing is invalidated.
//
// Mutation states are not retained: once settled they exist only as
// events, so a later mutation under the same key starts clean.
func (s *Store) Mutate(ctx context.Context, req *apiq.MutationRequest) (*apiq.Result, error) {
	s.stats.mutations.Add(1)
	s.notify(req.Key, pendingResult(req.Key))

	data, err := req.Run(ctx)

	result := &apiq.Result{Key: req.Key.Clone(), UpdatedAt: time.Now()}

	if err != nil {
		result.Status = apiq.StatusFailure
		result.Err = err

		s.stats.errors.Add(1)
		s.debug("mutation failed", map[string]interface{}{"key": req.Key.String(), "error": err.Error()})

		if req.OnError != nil {
			req.OnError(err)
		}

		s.notify(req.Key, result)

		return result, err
	}

	result.Status = apiq.StatusSuccess
	result.Data = data

	for _, prefix := range req.Invalidations {
		_, _ = s.Invalidate(ctx, prefix)
	}

	if req.OnSuccess != nil {
		req.OnSuccess(data)
	}

	s.notify(req.Key, result)

	return result, nil
}
