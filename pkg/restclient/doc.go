// Package restclient provides the primary entry point for constructing
// a proxy client over a remote REST API.
//
// It layers configuration, HTTP transport, authentication, and the
// query store on top of the engine defined in the apiq package. Most
// applications should import restclient to build a client, then use the
// returned *apiq.Client to derive bindings with At and the terminal
// builders Query, InfiniteQuery, and Mutation.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/apiq/pkg/apiq"
//	  "github.com/fivetwenty-io/apiq/pkg/restclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  routes := []byte(`
//	routes:
//	  - path: /posts
//	    methods: [get, post]
//	  - path: /posts/:id
//	    methods: [get, patch, delete]
//	`)
//
//	  // Minimal: an endpoint and a route table (no auth).
//	  cli, err := restclient.New(&apiq.Config{
//	    BaseURL:    "https://api.example.com",
//	    RoutesYAML: routes,
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with an access token you already have:
//	  cli, err = restclient.New(&apiq.Config{
//	    BaseURL:     "https://api.example.com",
//	    RoutesYAML:  routes,
//	    AccessToken: "eyJhbGciOi...", // bearer token
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Derive a binding and run it. Repeated fetches inside the TTL
//	  // are served from the store without touching the wire.
//	  posts := cli.At("posts").Query()
//	  result, err := posts.Fetch(ctx, nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = result
//	}
//
// # Caching across processes
//
// By default settled query data lives in process memory. WithCache and
// WithCacheConfig install a snapshot cache behind the store (in-memory
// or NATS KV) so fresh results survive restarts or are shared between
// processes.
//
// # Helpers
//
// The package also provides the convenience constructor NewWithToken
// that wraps New with the appropriate configuration.
package restclient
