package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits and backoff windows.
const (
	// DefaultRetryMax is the default maximum number of HTTP-level retries.
	DefaultRetryMax = 3

	// DefaultRetryAttempts is the default number of fetch attempts,
	// the first included.
	DefaultRetryAttempts = 3

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 100 * time.Millisecond

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Query state freshness.
const (
	// DefaultQueryTTL is how long a settled success stays fresh before
	// a later query refetches.
	DefaultQueryTTL = 30 * time.Second

	// DefaultSnapshotTTL is the lifetime of snapshot cache entries.
	DefaultSnapshotTTL = 5 * time.Minute
)

// Cache sizing and naming.
const (
	// DefaultCacheSize is the default cache size limit.
	DefaultCacheSize = 1000

	// DefaultSnapshotBucket is the default NATS KV bucket name.
	DefaultSnapshotBucket = "apiq-snapshots"

	// MaxCacheValueSize is the maximum size for cached values (1MB).
	MaxCacheValueSize = 1024 * 1024
)

// Authentication constants.
const (
	// TokenExpirationBuffer is the buffer time before token expiration.
	TokenExpirationBuffer = 30 * time.Second
)

// Pagination limits.
const (
	// DefaultPageSize is the default number of items per page.
	DefaultPageSize = 50

	// MaxPages bounds pagination loops.
	MaxPages = 50
)

// Output format constants.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"
)

// Display constants.
const (
	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"

	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"
)
