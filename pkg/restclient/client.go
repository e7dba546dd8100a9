package restclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fivetwenty-io/apiq/internal/auth"
	"github.com/fivetwenty-io/apiq/internal/transport"
	"github.com/fivetwenty-io/apiq/pkg/apiq"
	"github.com/fivetwenty-io/apiq/pkg/store"
)

// Static errors for err113 compliance.
var (
	ErrConfigRequired  = errors.New("config is required")
	ErrBaseURLRequired = errors.New("base URL is required")
	ErrRoutesRequired  = errors.New("a route table is required: set Routes or RoutesYAML")
	ErrRoutesConflict  = errors.New("Routes and RoutesYAML are mutually exclusive")
)

// Option adjusts how the client is assembled.
type Option func(*builder)

type builder struct {
	store       apiq.Store
	cache       store.Cache
	cacheConfig *store.CacheConfig
}

// WithStore substitutes a pre-built store, bypassing the store options
// derived from the config.
func WithStore(s apiq.Store) Option {
	return func(b *builder) {
		b.store = s
	}
}

// WithCache installs a snapshot cache behind the store, so settled
// query data survives process restarts or is shared across processes.
func WithCache(cache store.Cache) Option {
	return func(b *builder) {
		b.cache = cache
	}
}

// WithCacheConfig builds the snapshot cache from a declarative config
// (memory, NATS KV, none).
func WithCacheConfig(config *store.CacheConfig) Option {
	return func(b *builder) {
		b.cacheConfig = config
	}
}

// New assembles a ready-to-use client from the config: token source,
// HTTP transport, route tree, and query store. The returned client is
// safe for concurrent use.
//
// Wire-level retries are disabled on the transport; the store retries
// failed query fetches under its own policy, and mutations reach the
// wire exactly once.
func New(config *apiq.Config, opts ...Option) (*apiq.Client, error) {
	if config == nil {
		return nil, ErrConfigRequired
	}

	if config.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}

	routes, err := resolveRoutes(config)
	if err != nil {
		return nil, err
	}

	assembly := &builder{}
	for _, opt := range opts {
		opt(assembly)
	}

	queryStore, err := assembly.buildStore(config)
	if err != nil {
		return nil, err
	}

	httpClient := transport.NewClient(normalizeBaseURL(config.BaseURL), tokenManager(config), transportOptions(config)...)

	engineOpts := []apiq.Option{apiq.WithRoutes(routes)}
	if config.Logger != nil {
		engineOpts = append(engineOpts, apiq.WithLogger(config.Logger))
	}

	if config.PageParam != "" {
		engineOpts = append(engineOpts, apiq.WithPageParam(config.PageParam))
	}

	client, err := apiq.New(transport.Tree(httpClient, routes), queryStore, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("assembling client: %w", err)
	}

	return client, nil
}

// NewWithToken creates a client for the API at baseURL using a static
// bearer token and a YAML route document.
func NewWithToken(baseURL, token string, routesYAML []byte) (*apiq.Client, error) {
	return New(&apiq.Config{
		BaseURL:     baseURL,
		AccessToken: token,
		RoutesYAML:  routesYAML,
	})
}

// resolveRoutes compiles the route table from whichever source the
// config carries, requiring exactly one.
func resolveRoutes(config *apiq.Config) (*apiq.Routes, error) {
	switch {
	case config.Routes != nil && config.RoutesYAML != nil:
		return nil, ErrRoutesConflict
	case config.Routes != nil:
		return config.Routes, nil
	case config.RoutesYAML != nil:
		routes, err := apiq.ParseRoutesYAML(config.RoutesYAML)
		if err != nil {
			return nil, fmt.Errorf("compiling routes: %w", err)
		}

		return routes, nil
	default:
		return nil, ErrRoutesRequired
	}
}

// normalizeBaseURL trims the trailing slash and defaults a missing
// scheme to https.
func normalizeBaseURL(baseURL string) string {
	normalized := strings.TrimSuffix(baseURL, "/")
	if !strings.HasPrefix(normalized, "http://") && !strings.HasPrefix(normalized, "https://") {
		normalized = "https://" + normalized
	}

	return normalized
}

// tokenManager picks the token source from the config. TokenFunc wins
// over AccessToken; with neither, requests go out unauthenticated.
func tokenManager(config *apiq.Config) auth.TokenManager {
	if config.TokenFunc != nil {
		return &tokenFuncManager{fn: config.TokenFunc}
	}

	if config.AccessToken != "" {
		return auth.NewStaticTokenManager(config.AccessToken)
	}

	return nil
}

// transportOptions builds the HTTP client options from the config. The
// retry budget is pinned to zero: the store owns retry policy, and a
// replayed mutation must never leave this layer.
func transportOptions(config *apiq.Config) []transport.Option {
	opts := []transport.Option{
		transport.WithRetryConfig(0, 0, 0),
	}

	if config.Logger != nil {
		opts = append(opts, transport.WithLogger(&loggerAdapter{logger: config.Logger}))
	}

	if config.Debug {
		opts = append(opts, transport.WithDebug(true))
	}

	if config.UserAgent != "" {
		opts = append(opts, transport.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		opts = append(opts, transport.WithTimeout(config.HTTPTimeout))
	}

	return opts
}

// buildStore assembles the query store, unless one was supplied.
func (b *builder) buildStore(config *apiq.Config) (apiq.Store, error) {
	if b.store != nil {
		return b.store, nil
	}

	var storeOpts []store.Option

	if config.QueryTTL != 0 {
		storeOpts = append(storeOpts, store.WithTTL(config.QueryTTL))
	}

	if config.Logger != nil {
		storeOpts = append(storeOpts, store.WithLogger(config.Logger))
	}

	if config.RetryMax > 0 {
		storeOpts = append(storeOpts, store.WithRetry(retryConfig(config)))
	}

	cache, err := b.buildCache()
	if err != nil {
		return nil, err
	}

	if cache != nil {
		storeOpts = append(storeOpts, store.WithCache(cache))

		if b.cacheConfig != nil && b.cacheConfig.Options != nil && b.cacheConfig.Options.TTL > 0 {
			storeOpts = append(storeOpts, store.WithCacheTTL(b.cacheConfig.Options.TTL))
		}
	}

	return store.New(storeOpts...), nil
}

// buildCache materializes the snapshot cache from whichever option was
// given. A config wins over a pre-built instance being absent; with
// neither, the store runs without a snapshot cache.
func (b *builder) buildCache() (store.Cache, error) {
	if b.cache != nil {
		return b.cache, nil
	}

	if b.cacheConfig == nil {
		return nil, nil
	}

	cache, err := store.NewCacheFromConfig(b.cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("building snapshot cache: %w", err)
	}

	return cache, nil
}

// retryConfig maps the config's retry knobs onto the store's policy.
// RetryMax counts retries, so the attempt budget is one higher.
func retryConfig(config *apiq.Config) store.RetryConfig {
	cfg := store.DefaultRetryConfig()
	cfg.MaxAttempts = config.RetryMax + 1

	if config.RetryWaitMin > 0 {
		cfg.InitialBackoff = config.RetryWaitMin
	}

	if config.RetryWaitMax > 0 {
		cfg.MaxBackoff = config.RetryWaitMax
	}

	return cfg
}

// tokenFuncManager adapts a TokenFunc to the transport's token source;
// the function is consulted on every request.
type tokenFuncManager struct {
	fn apiq.TokenFunc
}

func (m *tokenFuncManager) GetToken(ctx context.Context) (string, error) {
	token, err := m.fn(ctx)
	if err != nil {
		return "", fmt.Errorf("token func: %w", err)
	}

	return token, nil
}

func (m *tokenFuncManager) RefreshToken(ctx context.Context) error {
	// The next request consults the function again.
	return nil
}

func (m *tokenFuncManager) SetToken(token string, expiresAt time.Time) {
}

// loggerAdapter adapts apiq.Logger to transport.Logger.
type loggerAdapter struct {
	logger apiq.Logger
}

func (l *loggerAdapter) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, fields)
}

func (l *loggerAdapter) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, fields)
}

func (l *loggerAdapter) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, fields)
}

func (l *loggerAdapter) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, fields)
}
