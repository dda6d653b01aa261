package tia

import (
	"errors"
	"iter"
)

// ErrEmptyIterator is returned by First when the sequence yields no items.
var ErrEmptyIterator = errors.New("tia: iterator is empty")

// Collect drains a sequence into a slice. It stops on the first error and
// returns everything collected up to that point along with the error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	result := make([]T, 0)
	for item, err := range seq {
		if err != nil {
			return result, err
		}
		result = append(result, item)
	}
	return result, nil
}

// First returns the first item from a sequence, or an error if the sequence
// is empty or fails.
func First[T any](seq iter.Seq2[T, error]) (T, error) {
	for item, err := range seq {
		return item, err
	}
	var zero T
	return zero, ErrEmptyIterator
}

// Take returns a sequence that yields at most n items from the source.
func Take[T any](seq iter.Seq2[T, error], n int) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		count := 0
		for item, err := range seq {
			if !yield(item, err) || err != nil {
				return
			}
			count++
			if count >= n {
				return
			}
		}
	}
}

// Records flattens a portion sequence into parsed records using each
// portion's bound template set. One malformed portion fails the whole
// sequence; catch per portion with Parse directly if partial results are
// wanted.
func Records(seq iter.Seq2[*Portion, error]) iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		for portion, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			parsed, err := portion.Parse(nil)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, record := range parsed {
				if !yield(record, nil) {
					return
				}
			}
		}
	}
}
