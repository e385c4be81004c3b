package model

import (
	"bytes"
	"encoding/json"
)

// Optional is a patch-payload field that distinguishes three states:
// absent from the payload, explicitly null, and explicitly set to a
// value. Plain pointers cannot tell "absent" from "null", and patch
// semantics require the difference: absent fields keep their current
// value, explicit fields (null included) replace it.
type Optional[T any] struct {
	set   bool
	null  bool
	value T
}

// Some returns an Optional holding an explicit value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{set: true, value: v}
}

// Null returns an Optional that was explicitly set to null.
func Null[T any]() Optional[T] {
	return Optional[T]{set: true, null: true}
}

// IsSet reports whether the field was present in the payload at all.
func (o Optional[T]) IsSet() bool { return o.set }

// IsNull reports whether the field was explicitly null.
func (o Optional[T]) IsNull() bool { return o.set && o.null }

// Value returns the explicit value and whether one was provided.
// It returns false for both absent and explicitly-null fields.
func (o Optional[T]) Value() (T, bool) {
	var zero T
	if !o.set || o.null {
		return zero, false
	}
	return o.value, true
}

// Apply overlays the optional onto the current value: absent keeps
// current, null resets to the zero value, explicit replaces.
func (o Optional[T]) Apply(current T) T {
	if !o.set {
		return current
	}
	if o.null {
		var zero T
		return zero
	}
	return o.value
}

// UnmarshalJSON is only invoked for fields present in the payload, so
// any call marks the optional as set.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.null = true
		return nil
	}
	return json.Unmarshal(data, &o.value)
}

// MarshalJSON renders absent and null optionals as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set || o.null {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
