package runsearch

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*resolvedOptions)

// resolvedOptions holds all settings after applying options.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	trackingURI  string
	token        string
	username     string
	password     string
	httpClient   *http.Client
	timeout      time.Duration
	userAgent    string
	maxResults   int
	fetchParents bool
	newID        func() string
	logger       *slog.Logger
	runService   RunService
}

// WithTrackingURI sets the base URL of the tracking server. Required unless
// WithRunService is used.
func WithTrackingURI(uri string) Option {
	return func(o *resolvedOptions) { o.trackingURI = uri }
}

// WithToken authenticates with a bearer token.
func WithToken(token string) Option {
	return func(o *resolvedOptions) { o.token = token }
}

// WithBasicAuth authenticates with a username and password. Ignored when a
// token is set.
func WithBasicAuth(username, password string) Option {
	return func(o *resolvedOptions) {
		o.username = username
		o.password = password
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *resolvedOptions) { o.httpClient = c }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *resolvedOptions) { o.timeout = d }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *resolvedOptions) { o.userAgent = ua }
}

// WithMaxResults sets the page size used when a request leaves MaxResults at
// zero. Defaults to 100.
func WithMaxResults(n int) Option {
	return func(o *resolvedOptions) { o.maxResults = n }
}

// WithFetchParents makes SearchRuns and LoadMoreRuns backfill lineage parents
// for every request, in addition to requests that set ShouldFetchParents.
func WithFetchParents(enabled bool) Option {
	return func(o *resolvedOptions) { o.fetchParents = enabled }
}

// WithIDGenerator replaces the random UUID request id generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *resolvedOptions) { o.newID = fn }
}

// WithLogger sets the structured logger. If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithRunService replaces the HTTP transport with another implementation of
// the tracking service. Transport options are then ignored.
func WithRunService(s RunService) Option {
	return func(o *resolvedOptions) { o.runService = s }
}
