// Package tree searches loosely typed JSON documents decoded into any.
//
// Innertube responses are deeply nested and change shape often, so callers look
// values up by key name anywhere in the document instead of binding to fixed paths.
// Only map[string]any and []any are descended into; every other value is a leaf.
package tree

import (
	"iter"
	"strconv"
)

// Search yields every value stored under key anywhere in root.
//
// The walk is depth-first over an explicit stack, so pathological nesting cannot
// overflow the goroutine stack. A matched value is yielded and not descended into.
// Sibling order inside a map follows Go map iteration and is unspecified;
// list elements are pushed in order and therefore visited last-to-first.
// Stopping the range early stops the walk.
func Search(root any, key string) iter.Seq[any] {
	return func(yield func(any) bool) {
		stack := []any{root}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			switch v := cur.(type) {
			case map[string]any:
				for k, child := range v {
					if k == key {
						if !yield(child) {
							return
						}
						continue
					}
					stack = append(stack, child)
				}
			case []any:
				stack = append(stack, v...)
			}
		}
	}
}

// All collects every value under key, in Search order.
func All(root any, key string) []any {
	var out []any
	for v := range Search(root, key) {
		out = append(out, v)
	}
	return out
}

// First returns the first value Search yields for key.
func First(root any, key string) (any, bool) {
	for v := range Search(root, key) {
		return v, true
	}
	return nil, false
}

// FirstMap returns the first value under key that is an object, or nil.
func FirstMap(root any, key string) map[string]any {
	for v := range Search(root, key) {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// Map asserts v as an object. Returns nil for anything else.
func Map(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// Slice asserts v as a list. Returns nil for anything else.
func Slice(v any) []any {
	s, _ := v.([]any)
	return s
}

// Str renders a scalar leaf as a string. Numbers are formatted without exponent,
// objects, lists and nil become "".
func Str(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

// Path follows a fixed chain of object keys from v. Returns nil as soon as a
// step is missing or not an object.
func Path(v any, keys ...string) any {
	for _, k := range keys {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v, ok = m[k]
		if !ok {
			return nil
		}
	}
	return v
}
