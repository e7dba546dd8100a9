package apiq

import (
	"context"
	"fmt"
	"strings"
)

// Client is the root of the proxy surface. It owns the base transport
// node, the store, and the optional route table, and hands out
// path-scoped proxies via At. Clients are safe for concurrent use.
type Client struct {
	base      Node
	store     Store
	routes    *Routes
	logger    Logger
	pageParam string
}

// Option configures a Client.
type Option func(*Client)

// WithRoutes installs a route table. Bindings at paths the table does
// not declare are denied before any dispatch; without a table the
// transport's capabilities alone decide.
func WithRoutes(routes *Routes) Option {
	return func(c *Client) {
		c.routes = routes
	}
}

// WithLogger installs a structured logger for engine debug logging.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithPageParam overrides the default query parameter paged queries
// send their cursor under.
func WithPageParam(name string) Option {
	return func(c *Client) {
		c.pageParam = name
	}
}

// New creates a Client over a transport object graph and a store.
func New(base Node, store Store, opts ...Option) (*Client, error) {
	if base == nil {
		return nil, ErrNilBaseNode
	}

	if store == nil {
		return nil, ErrNilStore
	}

	client := &Client{
		base:      base,
		store:     store,
		pageParam: DefaultPageParam,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// At returns a proxy scoped to the given path segments.
func (c *Client) At(segments ...string) *Proxy {
	return (&Proxy{client: c}).At(segments...)
}

// Utils returns the invalidation tree rooted at the client's base.
func (c *Client) Utils() *Utils {
	return &Utils{client: c}
}

// Store returns the store the client was built over.
func (c *Client) Store() Store {
	return c.store
}

// Routes returns the installed route table, or nil.
func (c *Client) Routes() *Routes {
	return c.routes
}

// Proxy is an immutable path accumulator. Each At derives a new proxy
// with the segments appended; the terminal methods Query,
// InfiniteQuery, and Mutation bind the accumulated path to an
// operation. Traversal itself never fails: addressing problems
// surface when the binding runs.
type Proxy struct {
	client *Client
	path   Path
}

// At returns a new proxy with the given segments appended. The
// receiver is unchanged, so intermediate proxies can be kept and
// extended in several directions.
func (p *Proxy) At(segments ...string) *Proxy {
	return &Proxy{
		client: p.client,
		path:   p.path.Extend(segments...),
	}
}

// Path returns the accumulated path.
func (p *Proxy) Path() Path {
	return p.path.Clone()
}

// Query binds a read operation at the proxy's path.
func (p *Proxy) Query() *Query {
	return &Query{
		client: p.client,
		path:   p.path.Clone(),
		denied: p.client.deny(p.path, MethodGet),
	}
}

// InfiniteQuery binds a paged read operation at the proxy's path.
func (p *Proxy) InfiniteQuery() *InfiniteQuery {
	return &InfiniteQuery{
		client:    p.client,
		path:      p.path.Clone(),
		denied:    p.client.deny(p.path, MethodGet),
		pageParam: p.client.pageParam,
	}
}

// Mutation binds a write operation at the proxy's path for the given
// method.
func (p *Proxy) Mutation(method Method) *Mutation {
	denied := p.client.deny(p.path, method)
	if denied == nil && !method.IsMutation() {
		denied = &UnsupportedMethodError{Path: p.path.Clone(), Method: method}
	}

	return &Mutation{
		client: p.client,
		path:   p.path.Clone(),
		method: method,
		denied: denied,
	}
}

// deny decides ahead of any dispatch whether a binding at path for
// method can exist. Paths that touch the raw callable surface are
// unresolvable; with a route table installed, undeclared paths and
// undeclared methods are denied too. A nil return means the binding
// may proceed to the runtime capability check.
func (c *Client) deny(path Path, method Method) error {
	for _, segment := range path {
		if strings.HasPrefix(segment, methodSigil) {
			return &ResolutionError{Path: path.Clone(), Segment: segment}
		}
	}

	if c.routes == nil {
		return nil
	}

	if !c.routes.OnRoute(path) {
		return &ResolutionError{Path: path.Clone(), Segment: c.firstOffRouteSegment(path)}
	}

	if !c.routes.Allows(path, method) {
		return &UnsupportedMethodError{Path: path.Clone(), Method: method}
	}

	return nil
}

// firstOffRouteSegment finds the first segment at which the path
// leaves the declared route tree.
func (c *Client) firstOffRouteSegment(path Path) string {
	for i := 1; i <= len(path); i++ {
		if !c.routes.OnRoute(path[:i]) {
			return path[i-1]
		}
	}

	return path.Last()
}

// fetchFunc builds the closure a query hands to the store. The
// endpoint is re-resolved on every execution so transports may evolve
// their graph between calls.
func (c *Client) fetchFunc(path Path, input *Input) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		node, err := Resolve(c.base, path)
		if err != nil {
			return nil, err
		}

		c.debugf("dispatching query", map[string]interface{}{"path": path.String()})

		return Dispatch(ctx, node, MethodGet, path, input)
	}
}

// dispatchFunc builds the closure a mutation hands to the store.
func (c *Client) dispatchFunc(path Path, method Method, input *Input) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		node, err := Resolve(c.base, path)
		if err != nil {
			return nil, err
		}

		c.debugf("dispatching mutation", map[string]interface{}{
			"path":   path.String(),
			"method": string(method),
		})

		return Dispatch(ctx, node, method, path, input)
	}
}

func (c *Client) debugf(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, fields)
	}
}

// Utils is the invalidation companion of the proxy: the same path
// traversal, with Invalidate instead of call bindings. Invalidation
// at a path drops every stored state whose key starts with it,
// whatever input it was fetched with.
type Utils struct {
	client *Client
	path   Path
}

// At returns a new utils handle with the given segments appended.
func (u *Utils) At(segments ...string) *Utils {
	return &Utils{
		client: u.client,
		path:   u.path.Extend(segments...),
	}
}

// Path returns the accumulated path.
func (u *Utils) Path() Path {
	return u.path.Clone()
}

// Key returns the invalidation prefix the handle stands for.
func (u *Utils) Key() Key {
	return PathKey(u.path)
}

// Invalidate drops all stored states under the handle's path,
// returning how many were removed.
func (u *Utils) Invalidate(ctx context.Context) (int, error) {
	count, err := u.client.store.Invalidate(ctx, PathKey(u.path))
	if err != nil {
		return 0, fmt.Errorf("invalidating %s: %w", u.path, err)
	}

	return count, nil
}
