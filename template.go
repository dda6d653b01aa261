package tia

import (
	"fmt"
	"strings"
)

// Template describes how to reshape one feed record into caller-facing
// output. Three variants exist:
//
//   - Path: a dot-separated key path resolved against the record.
//   - Object: an ordered set of output key -> sub-template fields that
//     builds a nested result.
//   - Inject: a reference to a sibling output key rendered earlier in the
//     same Object, whose rendered value is reused verbatim.
//
// In Path strings the "*name" prefix form is accepted as shorthand for
// Inject("name"), mirroring the wire syntax of template sets supplied as
// plain string maps.
type Template interface {
	isTemplate()
}

// Path is a dot-separated key path template with an optional ":alias"
// suffix, e.g. "iocs.network.ip:ips". A record that lacks the path renders
// as an empty list, never as an error.
type Path string

// Inject references an output key already rendered in the same Object.
// Rendering fails with a *TemplateError when the referenced key has not been
// rendered yet; only backward references within one Object level resolve.
type Inject string

// Field is one output key of an Object template. Key may be empty only for
// Path values, in which case the path's alias (or the raw path itself) names
// the output.
type Field struct {
	Key   string
	Value Template
}

// Object is an ordered template: fields render left to right, so an Inject
// field may reference any field before it.
type Object []Field

func (Path) isTemplate()   {}
func (Inject) isTemplate() {}
func (Object) isTemplate() {}

// compiled forms; built once per parse call so that string shorthand and
// alias handling stay out of the render loop.
type compiledField struct {
	key    string
	path   KeyPath
	inject string
	object []compiledField
}

// compileObject validates an Object and resolves the "*name" shorthand.
// flat restricts the set to bare path fields (the IOC template contract).
func compileObject(tpl Object, flat bool) ([]compiledField, error) {
	if len(tpl) == 0 {
		return nil, &InputError{Message: "template set cannot be empty"}
	}

	fields := make([]compiledField, 0, len(tpl))
	for _, f := range tpl {
		cf, err := compileField(f, flat)
		if err != nil {
			return nil, err
		}
		fields = append(fields, cf)
	}
	return fields, nil
}

func compileField(f Field, flat bool) (compiledField, error) {
	switch v := f.Value.(type) {
	case Path:
		if ref, ok := strings.CutPrefix(string(v), "*"); ok {
			return compileInject(f.Key, ref, flat)
		}
		kp, err := ParsePath(string(v))
		if err != nil {
			return compiledField{}, err
		}
		key := f.Key
		if key == "" {
			key = kp.OutputKey()
		}
		return compiledField{key: key, path: kp}, nil

	case Inject:
		return compileInject(f.Key, string(v), flat)

	case Object:
		if flat {
			return compiledField{}, &InputError{
				Message: fmt.Sprintf("IOC template %q must be a flat path, not a nested object", f.Key),
			}
		}
		if f.Key == "" {
			return compiledField{}, &InputError{Message: "nested template field requires an output key"}
		}
		sub, err := compileObject(v, false)
		if err != nil {
			return compiledField{}, err
		}
		return compiledField{key: f.Key, object: sub}, nil

	case nil:
		return compiledField{}, &InputError{
			Message: fmt.Sprintf("template field %q has no value", f.Key),
		}

	default:
		return compiledField{}, &InputError{
			Message: fmt.Sprintf("template field %q has unsupported type %T", f.Key, f.Value),
		}
	}
}

func compileInject(key, ref string, flat bool) (compiledField, error) {
	if flat {
		return compiledField{}, &InputError{
			Message: fmt.Sprintf("IOC template %q cannot use value injection", key),
		}
	}
	if key == "" {
		return compiledField{}, &InputError{Message: "injection field requires an output key"}
	}
	if ref == "" {
		return compiledField{}, &InputError{
			Message: fmt.Sprintf("injection field %q references an empty key", key),
		}
	}
	return compiledField{key: key, inject: ref}, nil
}

// renderObject applies a compiled template to one record. Fields render in
// declaration order into a fresh map, so injections see every sibling
// rendered before them and a repeated render of the same template never
// observes state from a previous record.
func renderObject(record any, fields []compiledField) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		v, err := renderField(record, f, out)
		if err != nil {
			return nil, err
		}
		out[f.key] = v
	}
	return out, nil
}

func renderField(record any, f compiledField, siblings map[string]any) (any, error) {
	switch {
	case f.inject != "":
		v, ok := siblings[f.inject]
		if !ok {
			return nil, &TemplateError{
				Message: fmt.Sprintf("injection %q for field %q does not reference an already rendered key", f.inject, f.key),
			}
		}
		return v, nil

	case f.object != nil:
		return renderObject(record, f.object)

	default:
		v, ok := f.path.Resolve(record)
		if !ok {
			return []any{}, nil
		}
		return v, nil
	}
}
