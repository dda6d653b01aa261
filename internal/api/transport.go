// Package api provides low-level HTTP transport for TI API calls.
package api

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talvisto/go-tia/internal/auth"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	defaultMaxBodySize = 64 * 1024 * 1024 // feed pages can run large
)

// Transport handles HTTP communication with the TI API. All API calls are
// GET requests with URL-encoded query parameters.
type Transport struct {
	BaseURL     *url.URL
	HTTPClient  *http.Client
	Credentials *auth.Credentials
	UserAgent   string

	// TraceRequests stamps every outgoing request with a generated
	// X-Request-ID unless the caller supplied one.
	TraceRequests bool
}

// NewTransport creates a Transport with the given configuration.
func NewTransport(baseURL string, creds *auth.Credentials, httpClient *http.Client) (*Transport, error) {
	if creds == nil {
		return nil, fmt.Errorf("credentials must be provided")
	}

	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultHTTPTimeout,
			// The API never redirects legitimately; a 301/302 means the
			// caller's IP is not whitelisted and must surface as-is.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	return &Transport{
		BaseURL:     u,
		HTTPClient:  httpClient,
		Credentials: creds,
		UserAgent:   "go-tia/1.0",
	}, nil
}

// Request represents one API call.
type Request struct {
	// Endpoint is the path below the API root, e.g.
	// "compromised/account/updated".
	Endpoint string

	// Params are the query parameters. Empty values are dropped before
	// encoding.
	Params url.Values

	Headers http.Header
}

// Response represents an API response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Do executes an API request and returns the raw response.
func (t *Transport) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := t.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := t.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	// Bound the body read so a misbehaving server cannot exhaust memory.
	limitedReader := io.LimitReader(httpResp.Body, defaultMaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if int64(len(body)) > defaultMaxBodySize {
		return nil, fmt.Errorf("response too large: exceeds %d bytes", defaultMaxBodySize)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Headers:    httpResp.Header,
	}, nil
}

func (t *Transport) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	u := t.BaseURL.JoinPath(req.Endpoint)

	query := url.Values{}
	for key, values := range req.Params {
		for _, v := range values {
			if v != "" {
				query.Add(key, v)
			}
		}
	}
	u.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Accept", "*/*")
	httpReq.Header.Set("User-Agent", t.UserAgent)

	t.Credentials.Apply(httpReq)

	maps.Copy(httpReq.Header, req.Headers)

	if t.TraceRequests && httpReq.Header.Get("X-Request-ID") == "" {
		httpReq.Header.Set("X-Request-ID", uuid.NewString())
	}

	return httpReq, nil
}
