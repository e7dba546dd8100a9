package apiq_test

import (
	"context"
	"testing"

	"github.com/fivetwenty-io/apiq/pkg/apiq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidationKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path apiq.Path
		want []apiq.Key
	}{
		{
			name: "resource path invalidates itself and its collection",
			path: apiq.NewPath("users", ":id"),
			want: []apiq.Key{{"users", ":id"}, {"users"}},
		},
		{
			name: "collection path invalidates itself only",
			path: apiq.NewPath("users"),
			want: []apiq.Key{{"users"}},
		},
		{
			name: "nested resource stops at its own collection",
			path: apiq.NewPath("users", ":id", "posts", ":postId"),
			want: []apiq.Key{{"users", ":id", "posts", ":postId"}, {"users", ":id", "posts"}},
		},
		{
			name: "nested collection invalidates itself only",
			path: apiq.NewPath("users", ":id", "posts"),
			want: []apiq.Key{{"users", ":id", "posts"}},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := apiq.InvalidationKeys(testCase.path)
			require.Len(t, got, len(testCase.want))

			for i := range testCase.want {
				assert.True(t, got[i].Equal(testCase.want[i]),
					"key %d: want %s, got %s", i, testCase.want[i], got[i])
			}
		})
	}
}

func TestMutation_SuccessAppliesInvalidationsBeforeCallback(t *testing.T) {
	t.Parallel()

	tree := NewMockTree()
	tree.Route("posts", ":id").HandleJSON(apiq.MethodPatch, 200, map[string]string{"id": "1", "title": "x"})

	store := NewMockStore()
	client := newTestClient(t, tree, store)

	var callbackData []byte

	var callbackInput *apiq.Input

	input := &apiq.Input{
		Params: map[string]string{"id": "1"},
		Body:   map[string]string{"title": "x"},
	}

	res, err := client.At("posts", ":id").
		Mutation(apiq.MethodPatch).
		OnSuccess(func(data []byte, in *apiq.Input) {
			callbackData = data
			callbackInput = in
		}).
		Mutate(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, apiq.StatusSuccess, res.Status)

	// Both invalidations land, resource first, then the collection,
	// and only then the success callback.
	require.Len(t, store.Invalidated, 2)
	assert.Equal(t, apiq.Key{"posts", ":id"}, store.Invalidated[0])
	assert.Equal(t, apiq.Key{"posts"}, store.Invalidated[1])

	require.Len(t, store.Events, 3)
	assert.Equal(t, "invalidate posts/:id", store.Events[0])
	assert.Equal(t, "invalidate posts", store.Events[1])
	assert.Equal(t, "onSuccess", store.Events[2])

	assert.JSONEq(t, `{"id":"1","title":"x"}`, string(callbackData))
	assert.Equal(t, input, callbackInput)
}

func TestMutation_CollectionPathInvalidatesItselfOnly(t *testing.T) {
	t.Parallel()

	tree := NewMockTree()
	tree.Route("posts").HandleJSON(apiq.MethodPost, 201, map[string]string{"id": "9"})

	store := NewMockStore()
	client := newTestClient(t, tree, store)

	_, err := client.At("posts").Mutation(apiq.MethodPost).Mutate(context.Background(), &apiq.Input{
		Body: map[string]string{"title": "new"},
	})
	require.NoError(t, err)

	require.Len(t, store.Invalidated, 1)
	assert.Equal(t, apiq.Key{"posts"}, store.Invalidated[0])
}

func TestMutation_FailureSkipsInvalidation(t *testing.T) {
	t.Parallel()

	tree := NewMockTree()
	tree.Route("posts", ":id").HandleJSON(apiq.MethodPatch, 422, map[string]string{"message": "bad title"})

	store := NewMockStore()
	client := newTestClient(t, tree, store)

	var callbackErr error

	succeeded := false

	res, err := client.At("posts", ":id").
		Mutation(apiq.MethodPatch).
		OnSuccess(func([]byte, *apiq.Input) { succeeded = true }).
		OnError(func(err error, _ *apiq.Input) { callbackErr = err }).
		Mutate(context.Background(), &apiq.Input{Params: map[string]string{"id": "1"}})
	require.Error(t, err)

	assert.Equal(t, apiq.StatusFailure, res.Status)
	assert.Empty(t, store.Invalidated)
	assert.False(t, succeeded)

	reqErr, ok := apiq.IsRequestError(callbackErr)
	require.True(t, ok)
	assert.Equal(t, 422, reqErr.StatusCode)
	assert.Equal(t, map[string]any{"message": "bad title"}, reqErr.Payload)
}

func TestMutation_RunKeysAreOutsideAddressableSpace(t *testing.T) {
	t.Parallel()

	tree := NewMockTree()
	tree.Route("posts").HandleJSON(apiq.MethodPost, 201, nil)

	store := NewMockStore()
	client := newTestClient(t, tree, store)

	binding := client.At("posts").Mutation(apiq.MethodPost)

	_, err := binding.Mutate(context.Background(), nil)
	require.NoError(t, err)

	_, err = binding.Mutate(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, store.MutationKeys, 2)
	// Run keys carry the raw-surface marker and a per-run ID, so they
	// can never collide with each other or with query keys.
	assert.Equal(t, "posts", store.MutationKeys[0][0])
	assert.Equal(t, "$post", store.MutationKeys[0][1])
	assert.False(t, store.MutationKeys[0].Equal(store.MutationKeys[1]))

	queryKey, err := apiq.KeyFor(apiq.NewPath("posts"), nil)
	require.NoError(t, err)
	assert.False(t, store.MutationKeys[0].Equal(queryKey))
}

func TestMutation_Invalidations(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, NewMockTree(), NewMockStore())

	binding := client.At("users", ":id").Mutation(apiq.MethodDelete)

	keys := binding.Invalidations()
	require.Len(t, keys, 2)
	assert.Equal(t, apiq.Key{"users", ":id"}, keys[0])
	assert.Equal(t, apiq.Key{"users"}, keys[1])
}

func TestMutation_DeniedInvokesOnError(t *testing.T) {
	t.Parallel()

	routes, err := apiq.ParseRoutesYAML([]byte(routesDoc))
	require.NoError(t, err)

	client := newTestClient(t, NewMockTree(), NewMockStore(), apiq.WithRoutes(routes))

	var callbackErr error

	_, err = client.At("health").
		Mutation(apiq.MethodDelete).
		OnError(func(err error, _ *apiq.Input) { callbackErr = err }).
		Mutate(context.Background(), nil)
	require.Error(t, err)

	assert.True(t, apiq.IsUnsupportedMethod(err))
	assert.Equal(t, err, callbackErr)
}
