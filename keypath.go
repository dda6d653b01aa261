package tia

import (
	"fmt"
	"strings"
)

// KeyPath is a parsed dot-separated path into a feed record, such as
// "iocs.network.ip". A path may carry an output alias after a colon
// ("iocs.network.ip:ips"); the alias only affects the key under which the
// resolved value is stored when a template set flattens its results.
type KeyPath struct {
	raw      string
	alias    string
	segments []string
}

// ParsePath parses a dot-separated key path with an optional ":alias" suffix.
// It returns an *InputError if the path is empty or contains an empty segment.
func ParsePath(path string) (KeyPath, error) {
	raw, alias, _ := strings.Cut(path, ":")
	if raw == "" {
		return KeyPath{}, &InputError{Message: "key path cannot be empty"}
	}

	segments := strings.Split(raw, ".")
	for _, seg := range segments {
		if seg == "" {
			return KeyPath{}, &InputError{
				Message: fmt.Sprintf("key path %q contains an empty segment", path),
			}
		}
	}

	return KeyPath{raw: raw, alias: alias, segments: segments}, nil
}

// String returns the raw path without the alias suffix.
func (p KeyPath) String() string { return p.raw }

// Alias returns the output alias, or "" if the path has none.
func (p KeyPath) Alias() string { return p.alias }

// OutputKey returns the key under which a flattened result is stored:
// the alias if present, otherwise the raw path.
func (p KeyPath) OutputKey() string {
	if p.alias != "" {
		return p.alias
	}
	return p.raw
}

// Resolve walks record following the path and returns the matched value.
// Records are decoded JSON trees: map[string]any nodes are descended by key,
// []any nodes broadcast the remaining path over every element and collect the
// per-element matches, preserving the nested-list shape. An absent key is not
// an error; it reports found == false, and elements of a sequence whose
// branch has no match contribute nothing to the collected result.
//
// Matches are never deduplicated and never flattened: for
// {"iocs":{"network":[{"ip":[1,2]},{"ip":[3]}]}} the path "iocs.network.ip"
// resolves to [[1,2],[3]].
func (p KeyPath) Resolve(record any) (any, bool) {
	return resolve(record, p.segments)
}

func resolve(node any, segments []string) (any, bool) {
	if len(segments) == 0 {
		return node, true
	}

	switch n := node.(type) {
	case map[string]any:
		child, ok := n[segments[0]]
		if !ok {
			return nil, false
		}
		return resolve(child, segments[1:])
	case []any:
		// Broadcast the remaining path over every element. The element
		// results keep their own shape, so a path that crosses a list
		// boundary yields a list of per-element matches.
		matches := make([]any, 0, len(n))
		for _, elem := range n {
			if v, ok := resolve(elem, segments); ok {
				matches = append(matches, v)
			}
		}
		return matches, true
	default:
		// Scalar or null with path segments left over: nothing to descend.
		return nil, false
	}
}
