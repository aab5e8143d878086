// Package tracking is the HTTP transport to the remote experiment-tracking
// service. It is the only place where raw HTTP and service failures are
// turned into classified *model.Error values.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashita-ai/runsearch/internal/model"
)

const (
	searchRunsPath = "/api/2.0/mlflow/runs/search"
	getRunPath     = "/api/2.0/mlflow/runs/get"

	defaultUserAgent = "runsearch-go/0.1.0"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// TrackingURI is the root URL of the tracking server (e.g. "http://localhost:5000").
	TrackingURI string

	// Token is sent as a bearer token when set.
	Token string

	// Username and Password enable basic auth when Token is empty.
	Username string
	Password string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with Timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration

	UserAgent string
}

// Client calls the run search and get-by-id endpoints.
// All methods are safe for concurrent use.
type Client struct {
	baseURL   string
	client    *http.Client
	auth      authorizer
	userAgent string
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.TrackingURI == "" {
		return nil, fmt.Errorf("tracking: TrackingURI is required")
	}
	u, err := url.Parse(cfg.TrackingURI)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("tracking: invalid TrackingURI %q", cfg.TrackingURI)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.TrackingURI, "/"),
		client:    httpClient,
		auth:      newAuthorizer(cfg.Token, cfg.Username, cfg.Password),
		userAgent: userAgent,
	}, nil
}

// SearchRuns executes one search query.
func (c *Client) SearchRuns(ctx context.Context, q model.SearchQuery) (*model.SearchRunsResponse, error) {
	var resp model.SearchRunsResponse
	if err := c.post(ctx, searchRunsPath, q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRun fetches a single run by id. A response without a run body is
// reported as KindNotFound.
func (c *Client) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	params := url.Values{}
	params.Set("run_id", runID)

	var resp model.GetRunResponse
	if err := c.get(ctx, getRunPath+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Run == nil {
		return nil, &model.Error{
			Kind:       model.KindNotFound,
			StatusCode: http.StatusOK,
			Code:       model.ErrorCodeResourceDoesNotExist,
			Message:    fmt.Sprintf("run %q missing from response", runID),
		}
	}
	return resp.Run, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiErrorBody is the service's error response body.
type apiErrorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("tracking: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("tracking: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("tracking: create request: %w", err)
	}

	return c.doRequest(req, dest)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	if err := c.auth.authorize(req); err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &model.Error{
			Kind:    model.KindUnknown,
			Message: req.Method + " " + req.URL.Path,
			Err:     err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(req, resp, dest)
}

func handleResponse(req *http.Request, resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.Error{
			Kind:       model.KindUnknown,
			StatusCode: resp.StatusCode,
			Message:    "read response body",
			Err:        err,
		}
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	if dest == nil || len(bodyBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return &model.Error{
			Kind:       model.KindUnknown,
			StatusCode: resp.StatusCode,
			Message:    "decode " + req.URL.Path + " response",
			Err:        err,
		}
	}
	return nil
}

// parseErrorResponse classifies a failed call. Only the service's
// RESOURCE_DOES_NOT_EXIST code counts as an absence; a bare 404 from a proxy
// or a wrong base path stays a hard failure.
func parseErrorResponse(statusCode int, body []byte) *model.Error {
	apiErr := &model.Error{StatusCode: statusCode}

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.ErrorCode == "" {
		apiErr.Kind = model.KindUnknown
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}

	apiErr.Code = parsed.ErrorCode
	apiErr.Message = parsed.Message
	if parsed.ErrorCode == model.ErrorCodeResourceDoesNotExist {
		apiErr.Kind = model.KindNotFound
	} else {
		apiErr.Kind = model.KindService
	}
	return apiErr
}
