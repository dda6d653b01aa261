package tia

import (
	"net/http"
	"time"
)

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL       string
	username      string
	apiKey        string
	httpClient    *http.Client
	timeout       time.Duration
	userAgent     string
	proxyURL      string
	insecureTLS   bool
	traceRequests bool
}

// WithBaseURL sets the TI API base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithCredentials sets the portal login and API key.
func WithCredentials(username, apiKey string) ClientOption {
	return func(c *clientConfig) {
		c.username = username
		c.apiKey = apiKey
	}
}

// WithHTTPClient sets a custom HTTP client. Use this to install retry
// round-trippers, custom TLS configuration or connection pooling; the
// engine itself never retries.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the default request timeout.
// Note: this option is ignored when WithHTTPClient is used;
// set the timeout directly on the provided client instead.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithUserAgent sets a custom User-Agent header, typically
// "product/version" of the integrating application.
func WithUserAgent(ua string) ClientOption {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// WithProxy routes all requests through the given proxy URL. Ignored when
// WithHTTPClient is used.
func WithProxy(proxyURL string) ClientOption {
	return func(c *clientConfig) {
		c.proxyURL = proxyURL
	}
}

// WithInsecureSkipVerify disables TLS certificate verification. Ignored when
// WithHTTPClient is used. Intended for local development only.
func WithInsecureSkipVerify() ClientOption {
	return func(c *clientConfig) {
		c.insecureTLS = true
	}
}

// WithRequestTracing stamps every outgoing request with a generated
// X-Request-ID header for correlation with provider-side logs.
func WithRequestTracing() ClientOption {
	return func(c *clientConfig) {
		c.traceRequests = true
	}
}

// RequestOption configures individual API requests.
type RequestOption func(*requestConfig)

type requestConfig struct {
	headers http.Header
}

func newRequestConfig() *requestConfig {
	return &requestConfig{
		headers: make(http.Header),
	}
}

func (r *requestConfig) apply(opts ...RequestOption) {
	for _, opt := range opts {
		opt(r)
	}
}

// WithHeader adds a custom header to a request.
func WithHeader(key, value string) RequestOption {
	return func(r *requestConfig) {
		r.headers.Set(key, value)
	}
}

// WithHeaders adds multiple custom headers to a request.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *requestConfig) {
		for k, v := range headers {
			r.headers.Set(k, v)
		}
	}
}

// WithRequestID sets the X-Request-ID header for tracing.
func WithRequestID(id string) RequestOption {
	return WithHeader("X-Request-ID", id)
}
