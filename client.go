// Package tia provides a Go client for a collection-oriented threat
// intelligence feed API.
//
// Basic usage:
//
//	client, err := tia.NewClient(
//	    tia.WithCredentials("user@example.com", apiKey),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client.SetKeys("attacks/ddos", tia.Object{
//	    {Key: "ips", Value: tia.Path("iocs.network.ip")},
//	})
//
//	for portion, err := range client.Feeds.Updates(ctx, "attacks/ddos", nil) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    parsed, err := portion.Parse(nil)
//	    ...
//	}
package tia

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/talvisto/go-tia/internal/api"
	"github.com/talvisto/go-tia/internal/auth"
)

// Default configuration values.
const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://tap.group-ib.com/api/v2/"

	defaultTimeout = 60 * time.Second
)

// Client is the TI API client.
type Client struct {
	// Feeds provides paginated traversal and lookup of feed collections.
	Feeds FeedService

	// Lookup provides global search and graph lookups.
	Lookup LookupService

	transport *api.Transport

	mu       sync.RWMutex
	keys     map[string]Object
	iocsKeys map[string]Object
}

// NewClient creates a new TI client with the given options.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		baseURL: DefaultBaseURL,
		timeout: defaultTimeout,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.username == "" || cfg.apiKey == "" {
		return nil, ErrNoCredentials
	}

	creds := &auth.Credentials{
		Username: cfg.username,
		APIKey:   cfg.apiKey,
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		var err error
		httpClient, err = buildHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
	}

	transport, err := api.NewTransport(cfg.baseURL, creds, httpClient)
	if err != nil {
		return nil, &InputError{Message: err.Error()}
	}

	if cfg.userAgent != "" {
		transport.UserAgent = cfg.userAgent
	}
	transport.TraceRequests = cfg.traceRequests

	client := &Client{
		transport: transport,
		keys:      make(map[string]Object),
		iocsKeys:  make(map[string]Object),
	}

	// Initialize services
	client.Feeds = newFeedService(transport, client)
	client.Lookup = newLookupService(transport)

	return client, nil
}

// buildHTTPClient assembles the default HTTP client, honoring the proxy and
// TLS options.
func buildHTTPClient(cfg *clientConfig) (*http.Client, error) {
	httpTransport := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.proxyURL != "" {
		proxy, err := url.Parse(cfg.proxyURL)
		if err != nil {
			return nil, &InputError{Message: "invalid proxy URL: " + err.Error()}
		}
		httpTransport.Proxy = http.ProxyURL(proxy)
	}

	if cfg.insecureTLS {
		if httpTransport.TLSClientConfig == nil {
			httpTransport.TLSClientConfig = &tls.Config{}
		}
		httpTransport.TLSClientConfig.InsecureSkipVerify = true
	}

	return &http.Client{
		Timeout:   cfg.timeout,
		Transport: httpTransport,
		// The API never redirects legitimately; a 301/302 means the
		// caller's IP is not whitelisted and must surface as-is.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}

// SetKeys binds a template set to a collection. Generators constructed
// afterwards hand the set to every Portion they yield; Parse calls on those
// portions use it unless overridden per call.
func (c *Client) SetKeys(collection string, keys Object) error {
	if err := validateCollection(collection, false); err != nil {
		return err
	}
	if _, err := compileObject(keys, false); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[collection] = keys
	return nil
}

// SetIOCKeys binds an IOC template set to a collection. IOC sets must be
// flat path fields; nested objects and injections are rejected.
func (c *Client) SetIOCKeys(collection string, keys Object) error {
	if err := validateCollection(collection, false); err != nil {
		return err
	}
	if _, err := compileObject(keys, true); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.iocsKeys[collection] = keys
	return nil
}

// boundKeys snapshots the template sets configured for a collection.
func (c *Client) boundKeys(collection string) (keys, iocsKeys Object) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys[collection], c.iocsKeys[collection]
}
