package apiq

import "context"

type contextKey struct{}

// NewContext returns a context carrying the client, for code that is
// composed far from where the client is built. The client travels with
// the context explicitly; there is no package-level default.
func NewContext(ctx context.Context, client *Client) context.Context {
	return context.WithValue(ctx, contextKey{}, client)
}

// FromContext retrieves the client a NewContext call put into the
// context. It fails with ErrContextMissing when no client is present.
func FromContext(ctx context.Context) (*Client, error) {
	client, ok := ctx.Value(contextKey{}).(*Client)
	if !ok || client == nil {
		return nil, ErrContextMissing
	}

	return client, nil
}

// UtilsFromContext retrieves the invalidation tree of the client in
// the context.
func UtilsFromContext(ctx context.Context) (*Utils, error) {
	client, err := FromContext(ctx)
	if err != nil {
		return nil, err
	}

	return client.Utils(), nil
}
