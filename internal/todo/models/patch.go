package models

import (
	"bytes"
	"encoding/json"
)

// Optional is a nullable field of a partial update. Set reports whether the
// caller sent the field at all; a nil Value with Set clears the stored value.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns a set field holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns a set field that clears the stored value.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// ApplyTo overwrites *dst when the field was sent.
func (o Optional[T]) ApplyTo(dst **T) {
	if o.Set {
		*dst = o.Value
	}
}

// UnmarshalJSON is only called for keys present in the document, so a JSON
// null marks the field as set and empty.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
