package apiq

import (
	"context"
	"time"
)

// DefaultPageParam is the query parameter paged queries send their
// cursor under unless overridden per client or per binding.
const DefaultPageParam = "page"

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// TokenFunc supplies a bearer token for outgoing requests. It is
// called per request, so implementations may renew expired tokens.
type TokenFunc func(ctx context.Context) (string, error)

// Config describes a fully wired client for
// github.com/fivetwenty-io/apiq/pkg/restclient.New. Only BaseURL and a
// route source are required; everything else has defaults.
//
// # Authentication
//
// AccessToken, when set, is sent as a static Bearer token. TokenFunc
// takes precedence over AccessToken and is consulted per request. With
// neither set, requests go out unauthenticated.
//
// # Timeouts and retries
//
// Per-call deadlines belong in the context passed to bindings.
// RetryMax/RetryWaitMin/RetryWaitMax tune the store's retry of failed
// query fetches (5xx, 429, connection errors); mutations are never
// retried regardless of these settings. QueryTTL is the store-side
// freshness default and has nothing to do with retries.
type Config struct {
	// BaseURL is the root of the remote API, e.g.
	// "https://api.example.com". A missing scheme defaults to https;
	// a trailing slash is trimmed.
	BaseURL string

	// Routes is the compiled route table. Exactly one of Routes and
	// RoutesYAML must be provided.
	Routes *Routes
	// RoutesYAML is a YAML route document in ParseRoutesYAML form,
	// compiled during wiring.
	RoutesYAML []byte

	// AccessToken is a static Bearer token.
	AccessToken string
	// TokenFunc supplies tokens dynamically; it wins over AccessToken.
	TokenFunc TokenFunc

	// HTTPTimeout bounds a single HTTP attempt. Zero means the
	// transport default.
	HTTPTimeout time.Duration
	// RetryMax is the maximum number of retries for a failed query
	// fetch. Zero means the store default.
	RetryMax int
	// RetryWaitMin is the initial backoff between retries.
	RetryWaitMin time.Duration
	// RetryWaitMax is the maximum backoff between retries.
	RetryWaitMax time.Duration

	// QueryTTL is the default freshness window for stored query
	// results. Zero means the store default.
	QueryTTL time.Duration
	// PageParam overrides the cursor query parameter for paged
	// queries. Empty means DefaultPageParam.
	PageParam string

	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// Debug enables request/response logging when a Logger is set.
	Debug bool
	// Logger receives structured engine and transport logs.
	Logger Logger
}
