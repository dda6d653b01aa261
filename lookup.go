package tia

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/talvisto/go-tia/internal/api"
)

// LookupService provides search and enrichment operations that are not tied
// to a single collection traversal.
type LookupService interface {
	// Global searches across all collections and returns per-collection
	// match summaries.
	Global(ctx context.Context, query string, opts ...RequestOption) ([]map[string]any, error)

	// GraphIP returns WHOIS information for an IP from the graph API.
	GraphIP(ctx context.Context, ip string, opts ...RequestOption) ([]map[string]any, error)

	// GraphDomain returns WHOIS information for a domain from the graph API.
	GraphDomain(ctx context.Context, domain string, opts ...RequestOption) ([]map[string]any, error)
}

// lookupService implements LookupService.
type lookupService struct {
	transport *api.Transport
}

func newLookupService(transport *api.Transport) *lookupService {
	return &lookupService{transport: transport}
}

// Global searches across all collections.
func (s *lookupService) Global(ctx context.Context, query string, opts ...RequestOption) ([]map[string]any, error) {
	if query == "" {
		return nil, &InputError{Message: "search query cannot be empty"}
	}
	params := url.Values{}
	params.Set("q", query)
	return s.lookup(ctx, "search", params, opts)
}

// GraphIP returns WHOIS information for an IP.
func (s *lookupService) GraphIP(ctx context.Context, ip string, opts ...RequestOption) ([]map[string]any, error) {
	if ip == "" {
		return nil, &InputError{Message: "ip cannot be empty"}
	}
	params := url.Values{}
	params.Set("ip", ip)
	return s.lookup(ctx, "utils/graph/ip", params, opts)
}

// GraphDomain returns WHOIS information for a domain.
func (s *lookupService) GraphDomain(ctx context.Context, domain string, opts ...RequestOption) ([]map[string]any, error) {
	if domain == "" {
		return nil, &InputError{Message: "domain cannot be empty"}
	}
	params := url.Values{}
	params.Set("domain", domain)
	return s.lookup(ctx, "utils/graph/domain", params, opts)
}

func (s *lookupService) lookup(ctx context.Context, endpoint string, params url.Values, opts []RequestOption) ([]map[string]any, error) {
	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	resp, err := s.transport.Do(ctx, &api.Request{
		Endpoint: endpoint,
		Params:   params,
		Headers:  reqCfg.headers,
	})
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	var results []map[string]any
	if err := json.Unmarshal(resp.Body, &results); err != nil {
		return nil, &ParserError{Message: "decoding lookup results", Err: err}
	}
	return results, nil
}
