package tia

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Portion is an immutable snapshot of one fetched page of feed records: the
// raw body, the decoded record trees and the pagination metadata, together
// with the template sets bound at generator construction. Template overrides
// via SetKeys / SetIOCKeys only change which templates later parse calls
// use; they are not safe to call concurrently with in-flight parses on the
// same Portion.
type Portion struct {
	// RawJSON is the page body exactly as received.
	RawJSON []byte

	records   []any
	seqUpdate *int64
	count     *int64
	resultID  string

	keys     Object
	iocsKeys Object
}

// pageEnvelope is the wire framing of a paged response. Single-feed
// responses carry none of these fields; the body then is the record itself.
type pageEnvelope struct {
	Count     *int64          `json:"count"`
	SeqUpdate *int64          `json:"seqUpdate"`
	ResultID  string          `json:"resultId"`
	Items     json.RawMessage `json:"items"`
}

// NewPortion decodes a raw page body into a Portion bound to the given
// template sets. A body without a "count" field is treated as a single feed
// record and wrapped as a one-record portion. Generators call this for every
// fetched page; it is exported so callers can replay stored raw pages.
func NewPortion(body []byte, keys, iocsKeys Object) (*Portion, error) {
	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Not an object envelope at all (e.g. a bare array); surface the
		// decode problem rather than guessing at the shape.
		return nil, &ParserError{Message: "decoding page", Err: err}
	}

	p := &Portion{
		RawJSON:   body,
		seqUpdate: env.SeqUpdate,
		count:     env.Count,
		resultID:  env.ResultID,
		keys:      keys,
		iocsKeys:  iocsKeys,
	}

	if env.Count == nil {
		var record any
		if err := json.Unmarshal(body, &record); err != nil {
			return nil, &ParserError{Message: "decoding feed record", Err: err}
		}
		p.records = []any{record}
		return p, nil
	}

	if len(env.Items) > 0 {
		if err := json.Unmarshal(env.Items, &p.records); err != nil {
			return nil, &ParserError{Message: "decoding page items", Err: err}
		}
	}
	return p, nil
}

// Records returns the decoded feed records of this portion. Callers must
// treat the returned trees as read-only.
func (p *Portion) Records() []any { return p.records }

// Size returns the number of records in this portion.
func (p *Portion) Size() int { return len(p.records) }

// SeqUpdate returns the highest cursor value of this portion. It reports
// false for search-mode pages, which carry no resumable cursor.
func (p *Portion) SeqUpdate() (int64, bool) {
	if p.seqUpdate == nil {
		return 0, false
	}
	return *p.seqUpdate, true
}

// Count returns the remaining-record count advertised by the server, if the
// page carried one.
func (p *Portion) Count() (int64, bool) {
	if p.count == nil {
		return 0, false
	}
	return *p.count, true
}

// SetKeys replaces the bound template set used by Parse calls without an
// explicit override.
func (p *Portion) SetKeys(keys Object) error {
	if _, err := compileObject(keys, false); err != nil {
		return err
	}
	p.keys = keys
	return nil
}

// SetIOCKeys replaces the bound IOC template set used by IOCs calls without
// an explicit override. IOC templates must be flat path fields.
func (p *Portion) SetIOCKeys(keys Object) error {
	if _, err := compileObject(keys, true); err != nil {
		return err
	}
	p.iocsKeys = keys
	return nil
}

// ParseOption narrows which records of a portion take part in a parse or
// IOC-aggregation call.
type ParseOption func(*parseConfig)

type filterMode int

const (
	filterNone filterMode = iota
	filterAccept
	filterIgnore
	filterExists
)

type parseConfig struct {
	mode   filterMode
	path   KeyPath
	values []string
	err    error
}

func (c *parseConfig) setFilter(mode filterMode, path string, values []string) {
	kp, err := ParsePath(path)
	if err != nil {
		c.err = err
		return
	}
	c.mode, c.path, c.values = mode, kp, values
}

// WithAcceptValues keeps only records whose value at path is one of values.
func WithAcceptValues(path string, values ...string) ParseOption {
	return func(c *parseConfig) { c.setFilter(filterAccept, path, values) }
}

// WithIgnoreValues drops records whose value at path is one of values.
func WithIgnoreValues(path string, values ...string) ParseOption {
	return func(c *parseConfig) { c.setFilter(filterIgnore, path, values) }
}

// WithRequireKey keeps only records that have a non-empty value at path.
func WithRequireKey(path string) ParseOption {
	return func(c *parseConfig) { c.setFilter(filterExists, path, nil) }
}

// keep reports whether a record passes the configured filter.
func (c *parseConfig) keep(record any) (bool, error) {
	if c.mode == filterNone {
		return true, nil
	}

	v, found := c.path.Resolve(record)
	if c.mode == filterExists {
		return found && !isEmptyValue(v), nil
	}

	if _, isList := v.([]any); found && isList {
		return false, &ParserError{
			Message: fmt.Sprintf("filter path %q resolved to a list, expected a single value", c.path),
		}
	}

	// Non-string scalars never match a string filter.
	s, ok := v.(string)
	matched := found && ok && slices.Contains(c.values, s)
	if c.mode == filterIgnore {
		return !matched, nil
	}
	return matched, nil
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// Parse reshapes every record of the portion using the bound template set,
// or keys if non-nil, which overrides the bound set for this call only. The
// result holds one mapping per surviving record, in record order; absent
// paths render as empty lists, never as errors.
func (p *Portion) Parse(keys Object, opts ...ParseOption) ([]map[string]any, error) {
	set := p.keys
	if keys != nil {
		set = keys
	}
	if len(set) == 0 {
		return nil, &ParserError{Message: "no template keys provided for parsing portion"}
	}

	fields, err := compileObject(set, false)
	if err != nil {
		return nil, &ParserError{Message: "invalid template set", Err: err}
	}

	cfg := &parseConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.err != nil {
		return nil, &ParserError{Message: "invalid parse filter", Err: cfg.err}
	}

	parsed := make([]map[string]any, 0, len(p.records))
	for _, record := range p.records {
		ok, err := cfg.keep(record)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out, err := renderObject(record, fields)
		if err != nil {
			return nil, &ParserError{Message: "rendering record", Err: err}
		}
		parsed = append(parsed, out)
	}
	return parsed, nil
}

// BulkParse applies every template set in sets independently to the portion
// and regroups the results per record: element i of the result holds one
// mapping per template set, in the order the sets were supplied. The sets
// are never merged, so two sets producing the same output key stay distinct.
func (p *Portion) BulkParse(sets []Object) ([][]map[string]any, error) {
	perSet := make([][]map[string]any, 0, len(sets))
	for _, set := range sets {
		parsed, err := p.Parse(set)
		if err != nil {
			return nil, err
		}
		perSet = append(perSet, parsed)
	}

	grouped := make([][]map[string]any, len(p.records))
	for i := range grouped {
		row := make([]map[string]any, len(perSet))
		for j := range perSet {
			row[j] = perSet[j][i]
		}
		grouped[i] = row
	}
	return grouped, nil
}

// placeholder indicator values never worth reporting.
var iocPlaceholders = []string{"", "0.0.0.0", "255.255.255.255"}

// IOCs renders the bound IOC template set (or keys, overriding it for this
// call) against every record and concatenates the per-record matches into
// one flat list per output key, preserving page order. Records with no match
// contribute nothing; nothing is deduplicated.
func (p *Portion) IOCs(keys Object, opts ...ParseOption) (map[string][]any, error) {
	set := p.iocsKeys
	if keys != nil {
		set = keys
	}
	if len(set) == 0 {
		return nil, &ParserError{Message: "no template keys provided for getting IOCs"}
	}

	fields, err := compileObject(set, true)
	if err != nil {
		return nil, &ParserError{Message: "invalid IOC template set", Err: err}
	}

	cfg := &parseConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.err != nil {
		return nil, &ParserError{Message: "invalid parse filter", Err: cfg.err}
	}

	iocs := make(map[string][]any, len(fields))
	for _, f := range fields {
		iocs[f.key] = []any{}
	}

	for _, record := range p.records {
		ok, err := cfg.keep(record)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, f := range fields {
			v, found := f.path.Resolve(record)
			if !found {
				continue
			}
			iocs[f.key] = appendIOCs(iocs[f.key], v)
		}
	}
	return iocs, nil
}

// appendIOCs flattens nested match lists into dst, dropping nulls and
// placeholder values.
func appendIOCs(dst []any, v any) []any {
	if list, ok := v.([]any); ok {
		for _, elem := range list {
			dst = appendIOCs(dst, elem)
		}
		return dst
	}
	if v == nil {
		return dst
	}
	if s, ok := v.(string); ok && slices.Contains(iocPlaceholders, s) {
		return dst
	}
	return append(dst, v)
}
