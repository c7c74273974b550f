package domain

import (
	"bytes"
	"encoding/json"
)

// Optional is a patch field with three states: not supplied, supplied as
// null and supplied with a value. The zero value is "not supplied".
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Some returns a supplied, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Valid: true, Value: v}
}

// Null returns an Optional that explicitly clears the field.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

func (o Optional[T]) IsNull() bool {
	return o.Set && !o.Valid
}

// Ptr returns nil for null, a pointer to the value otherwise.
func (o Optional[T]) Ptr() *T {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

// applyTo overwrites dst when the field was supplied with a value.
func (o Optional[T]) applyTo(dst *T) {
	if o.Valid {
		*dst = o.Value
	}
}

// applyToPtr overwrites or clears dst when the field was supplied.
func (o Optional[T]) applyToPtr(dst **T) {
	if o.Set {
		*dst = o.Ptr()
	}
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON only runs for keys present in the document, so reaching it
// means the field was supplied.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Valid = false
		var zero T
		o.Value = zero
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}
