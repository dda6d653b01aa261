package tia

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/talvisto/go-tia/internal/api"
)

const defaultLimit = 200

// FeedQuery bounds a feed traversal. All fields are optional.
type FeedQuery struct {
	// DateFrom and DateTo restrict the session to a date range, in one of
	// the layouts the collection accepts.
	DateFrom string
	DateTo   string

	// Query is a search query applied server-side.
	Query string

	// Limit is the page size. Zero means the default; most collections cap
	// it server-side.
	Limit int

	// SeqUpdate resumes an update session strictly after this cursor value.
	// Zero starts from the earliest available record. Ignored by Search.
	SeqUpdate int64

	// ApplyHuntingRules asks the server to pre-filter records through the
	// account's hunting rules. Only some collections honor it; see
	// HuntingRulesCollections.
	ApplyHuntingRules bool
}

// FeedService provides paginated traversal and lookup of feed collections.
type FeedService interface {
	// Updates returns a lazy sequence of portions in ascending cursor order.
	// Each portion advances the traversal watermark before it is yielded, so
	// the last yielded portion's SeqUpdate is always a valid resumption
	// point. The sequence ends when the server has no further records.
	Updates(ctx context.Context, collection string, q *FeedQuery, opts ...RequestOption) (iter.Seq2[*Portion, error], error)

	// Search returns a lazy sequence of portions in descending order. Search
	// sessions surface full change history and have no resumable cursor;
	// the sequence ends when the advertised remaining count is consumed.
	Search(ctx context.Context, collection string, q *FeedQuery, opts ...RequestOption) (iter.Seq2[*Portion, error], error)

	// Get retrieves a single feed by ID, wrapped as a one-record portion.
	Get(ctx context.Context, collection, feedID string, opts ...RequestOption) (*Portion, error)

	// File downloads a binary artifact attached to a feed.
	File(ctx context.Context, collection, feedID, fileID string, opts ...RequestOption) ([]byte, error)

	// Action executes a REST action on a feed and returns the raw response.
	Action(ctx context.Context, collection, feedID, action string, params url.Values, opts ...RequestOption) ([]byte, error)

	// Sequences returns the current seqUpdate watermark per collection for
	// the given date ("2006-01-02"), or for today when date is empty. With
	// huntingRules set the watermarks reflect hunting-rule filtered data.
	Sequences(ctx context.Context, date string, huntingRules bool, opts ...RequestOption) (map[string]int64, error)

	// AvailableCollections returns the collections granted to this account.
	AvailableCollections(ctx context.Context, opts ...RequestOption) ([]string, error)

	// HuntingRulesCollections returns the granted collections that have
	// hunting rules attached.
	HuntingRulesCollections(ctx context.Context, opts ...RequestOption) ([]string, error)
}

// feedService implements FeedService.
type feedService struct {
	transport *api.Transport
	client    *Client
}

func newFeedService(transport *api.Transport, client *Client) *feedService {
	return &feedService{transport: transport, client: client}
}

// pager is the per-mode half of the traversal state machine: it knows the
// endpoint, contributes mode-specific parameters, and advances its state
// from each fetched portion.
type pager interface {
	endpoint() string
	params(v url.Values)
	advance(p *Portion)
}

// updatePager drives ascending traversal with a strict greater-than
// seqUpdate watermark.
type updatePager struct {
	collection   string
	dateFrom     string
	dateTo       string
	query        string
	huntingRules bool
	seqUpdate    int64
}

func (u *updatePager) endpoint() string {
	return u.collection + "/updated"
}

func (u *updatePager) params(v url.Values) {
	v.Set("df", u.dateFrom)
	v.Set("dt", u.dateTo)
	v.Set("q", u.query)
	if u.huntingRules {
		v.Set("apply_hunting_rules", "1")
	}
	if u.seqUpdate > 0 {
		v.Set("seqUpdate", strconv.FormatInt(u.seqUpdate, 10))
	}
}

func (u *updatePager) advance(p *Portion) {
	if seq, ok := p.SeqUpdate(); ok {
		u.seqUpdate = seq
	}
	// The cursor subsumes the date bound after the first page.
	u.dateFrom = ""
}

// searchPager drives descending traversal with the server's opaque result
// token; there is no caller-visible resumable cursor.
type searchPager struct {
	collection   string
	dateFrom     string
	dateTo       string
	query        string
	huntingRules bool
	resultID     string
}

func (s *searchPager) endpoint() string {
	return s.collection
}

func (s *searchPager) params(v url.Values) {
	// Hunting rules apply to every page, including resumed ones.
	if s.huntingRules {
		v.Set("apply_hunting_rules", "1")
	}
	if s.resultID != "" {
		v.Set("resultId", s.resultID)
		return
	}
	v.Set("df", s.dateFrom)
	v.Set("dt", s.dateTo)
	v.Set("q", s.query)
}

func (s *searchPager) advance(p *Portion) {
	s.resultID = p.resultID
}

// Updates returns a lazy ascending-order sequence of portions.
func (s *feedService) Updates(ctx context.Context, collection string, q *FeedQuery, opts ...RequestOption) (iter.Seq2[*Portion, error], error) {
	q, err := validateQuery(collection, q, true)
	if err != nil {
		return nil, err
	}

	pg := &updatePager{
		collection:   collection,
		dateFrom:     q.DateFrom,
		dateTo:       q.DateTo,
		query:        q.Query,
		huntingRules: q.ApplyHuntingRules,
		seqUpdate:    q.SeqUpdate,
	}
	return s.traverse(ctx, collection, q, pg, opts), nil
}

// Search returns a lazy descending-order sequence of portions.
func (s *feedService) Search(ctx context.Context, collection string, q *FeedQuery, opts ...RequestOption) (iter.Seq2[*Portion, error], error) {
	q, err := validateQuery(collection, q, false)
	if err != nil {
		return nil, err
	}

	pg := &searchPager{
		collection:   collection,
		dateFrom:     q.DateFrom,
		dateTo:       q.DateTo,
		query:        q.Query,
		huntingRules: q.ApplyHuntingRules,
	}
	return s.traverse(ctx, collection, q, pg, opts), nil
}

// validateQuery checks the collection name, dates and limit up front so a
// bad session fails at construction, not on first pull.
func validateQuery(collection string, q *FeedQuery, forUpdate bool) (*FeedQuery, error) {
	if err := validateCollection(collection, forUpdate); err != nil {
		return nil, err
	}
	if q == nil {
		q = &FeedQuery{}
	}
	if err := validateDate(collection, q.DateFrom); err != nil {
		return nil, err
	}
	if err := validateDate(collection, q.DateTo); err != nil {
		return nil, err
	}
	if q.Limit < 0 {
		return nil, &InputError{Message: fmt.Sprintf("limit must not be negative, got %d", q.Limit)}
	}
	if q.SeqUpdate < 0 {
		return nil, &InputError{Message: fmt.Sprintf("seqUpdate must not be negative, got %d", q.SeqUpdate)}
	}

	out := *q
	if out.Limit == 0 {
		out.Limit = defaultLimit
	}
	return &out, nil
}

// traverse is the fetch loop shared by both traversal modes: fetch a page,
// wrap it, stop on an empty page, advance the pager, yield, stop when the
// advertised remaining count is consumed. Abandoning the sequence simply
// stops the loop; no state survives it.
func (s *feedService) traverse(ctx context.Context, collection string, q *FeedQuery, pg pager, opts []RequestOption) iter.Seq2[*Portion, error] {
	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	keys, iocsKeys := s.client.boundKeys(collection)

	return func(yield func(*Portion, error) bool) {
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			params := url.Values{}
			params.Set("limit", strconv.Itoa(q.Limit))
			pg.params(params)

			portion, err := s.fetchPortion(ctx, pg.endpoint(), params, reqCfg, keys, iocsKeys)
			if err != nil {
				yield(nil, err)
				return
			}

			if portion.Size() == 0 {
				return
			}

			pg.advance(portion)

			if !yield(portion, nil) {
				return
			}

			if count, ok := portion.Count(); ok && count-int64(portion.Size()) <= 0 {
				return
			}
		}
	}
}

// fetchPortion performs one page request and decodes it.
func (s *feedService) fetchPortion(ctx context.Context, endpoint string, params url.Values, reqCfg *requestConfig, keys, iocsKeys Object) (*Portion, error) {
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
	return NewPortion(resp.Body, keys, iocsKeys)
}

// Get retrieves a single feed by ID.
func (s *feedService) Get(ctx context.Context, collection, feedID string, opts ...RequestOption) (*Portion, error) {
	if err := validateCollection(collection, false); err != nil {
		return nil, err
	}
	if feedID == "" {
		return nil, &InputError{Message: "feed ID cannot be empty"}
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	keys, iocsKeys := s.client.boundKeys(collection)
	endpoint := collection + "/" + url.PathEscape(feedID)
	return s.fetchPortion(ctx, endpoint, url.Values{}, reqCfg, keys, iocsKeys)
}

// File downloads a binary artifact attached to a feed.
func (s *feedService) File(ctx context.Context, collection, feedID, fileID string, opts ...RequestOption) ([]byte, error) {
	if err := validateCollection(collection, false); err != nil {
		return nil, err
	}
	if feedID == "" || fileID == "" {
		return nil, &InputError{Message: "feed ID and file ID cannot be empty"}
	}

	endpoint := collection + "/" + url.PathEscape(feedID) + "/file/" + url.PathEscape(fileID)
	return s.raw(ctx, endpoint, url.Values{}, opts)
}

// Action executes a REST action on a feed and returns the raw response.
func (s *feedService) Action(ctx context.Context, collection, feedID, action string, params url.Values, opts ...RequestOption) ([]byte, error) {
	if err := validateCollection(collection, false); err != nil {
		return nil, err
	}
	if feedID == "" {
		return nil, &InputError{Message: "feed ID cannot be empty"}
	}
	action = strings.TrimPrefix(action, "/")
	if action == "" {
		return nil, &InputError{Message: "action cannot be empty"}
	}

	endpoint := collection + "/" + url.PathEscape(feedID) + "/action/" + action
	return s.raw(ctx, endpoint, params, opts)
}

// raw performs a request and returns the body without decoding.
func (s *feedService) raw(ctx context.Context, endpoint string, params url.Values, opts []RequestOption) ([]byte, error) {
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
	return resp.Body, nil
}

// Sequences returns the current seqUpdate watermark per collection.
func (s *feedService) Sequences(ctx context.Context, date string, huntingRules bool, opts ...RequestOption) (map[string]int64, error) {
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return nil, &InputError{Message: fmt.Sprintf("invalid date %q, use the 2006-01-02 layout", date)}
		}
	}

	params := url.Values{}
	params.Set("date", date)
	if huntingRules {
		params.Set("apply_hunting_rules", "1")
	}
	body, err := s.raw(ctx, "sequence_list", params, opts)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		List map[string]int64 `json:"list"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &ParserError{Message: "decoding sequence list", Err: err}
	}

	sequences := make(map[string]int64)
	for name, seq := range decoded.List {
		if _, known := collectionsInfo[name]; known {
			sequences[name] = seq
		}
	}
	return sequences, nil
}

// AvailableCollections returns the collections granted to this account, in
// registry order.
func (s *feedService) AvailableCollections(ctx context.Context, opts ...RequestOption) ([]string, error) {
	body, err := s.raw(ctx, "user/granted_collections", url.Values{}, opts)
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &ParserError{Message: "decoding granted collections", Err: err}
	}

	path, _ := ParsePath("collection")
	granted := map[string]bool{}
	if v, ok := path.Resolve(decoded); ok {
		names, _ := v.([]any)
		for _, n := range names {
			if name, ok := n.(string); ok {
				granted[name] = true
			}
		}
	}

	available := make([]string, 0, len(granted))
	for _, name := range Collections() {
		if granted[name] {
			available = append(available, name)
		}
	}
	return available, nil
}

// HuntingRulesCollections returns the granted collections that have hunting
// rules attached, in registry order.
func (s *feedService) HuntingRulesCollections(ctx context.Context, opts ...RequestOption) ([]string, error) {
	body, err := s.raw(ctx, "user/granted_collections", url.Values{}, opts)
	if err != nil {
		return nil, err
	}

	var decoded []map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &ParserError{Message: "decoding granted collections", Err: err}
	}

	withRules := map[string]bool{}
	for _, item := range decoded {
		used, _ := item["huntingRulesUsed"].(bool)
		name, _ := item["collection"].(string)
		if used && name != "" {
			withRules[name] = true
		}
	}

	filtered := make([]string, 0, len(withRules))
	for _, name := range Collections() {
		if withRules[name] {
			filtered = append(filtered, name)
		}
	}
	return filtered, nil
}
