package constants

import "errors"

// API and configuration errors.
var (
	ErrNoAPIConfigured    = errors.New("no API configured, use 'apiq login' or set base_url in the config")
	ErrNoRoutesConfigured = errors.New("no routes configured, point routes_file at a route table")
	ErrNoTokenConfigured  = errors.New("no access token configured")
)

// Validation errors.
var (
	ErrInvalidOutputFormat  = errors.New("invalid output format, expected table, json, or yaml")
	ErrPathRequired         = errors.New("a path argument is required")
	ErrBodyAndFileExclusive = errors.New("--body and --body-file are mutually exclusive")
)

// File system errors.
var (
	ErrNotRegularFile = errors.New("path is not a regular file")
)
