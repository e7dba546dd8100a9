// Package apiq derives query and mutation bindings, cache keys, and
// cache-invalidation rules from the shape of a REST-like API. There is
// no code generation step: a path expression alone is enough to
// address an endpoint, and the path's shape alone decides what a
// successful mutation invalidates.
//
// # Overview
//
// The package is the engine only. It consumes two capabilities through
// interfaces: a transport object graph (Node) whose leaves expose
// per-method callables, and an async-state store (Store) that owns
// call lifecycles and prefix invalidation. The restclient package
// wires both to concrete implementations; most consumers should start
// there.
//
// Addressing an endpoint
//
//	import (
//	  "context"
//
//	  "github.com/fivetwenty-io/apiq/pkg/apiq"
//	)
//
//	func example(ctx context.Context, client *apiq.Client) error {
//	  posts := client.At("users", ":id", "posts")
//
//	  res, err := posts.Query().Fetch(ctx, &apiq.Input{
//	    Params: map[string]string{"id": "1"},
//	  })
//	  if err != nil { return err }
//	  _ = res
//
//	  _, err = posts.Mutation(apiq.MethodPost).Mutate(ctx, &apiq.Input{
//	    Body: map[string]string{"title": "hello"},
//	  })
//	  return err
//	}
//
// Each At derives a new immutable proxy; equal chains address equal
// endpoints, so proxies can be built once and shared freely.
//
// # Cache keys
//
// A query at path is stored under the path's segments followed by a
// canonical encoding of its input. The encoding sorts map keys at
// every level, so structurally equal inputs always land on the same
// key; a nil input keys as "null".
//
// # Invalidation
//
// After a successful mutation the engine derives invalidation prefixes
// from the path alone: a path ending in a ":" parameter invalidates
// itself and its parent collection, any other path invalidates itself
// only. The store applies the prefixes before the mutation's OnSuccess
// callback runs. The Utils tree exposes the same prefix invalidation
// for manual use at any path.
//
// # Errors
//
// Addressing problems surface as ResolutionError and
// UnsupportedMethodError when a binding runs. Completed calls with a
// non-success status are normalized into RequestError, whose payload
// is the decoded error body or a {"message": <status text>} fallback
// when the body is not JSON. Helpers such as IsNotFound and
// IsRequestError make branching cheap.
package apiq
