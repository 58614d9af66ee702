package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"time"
)

// Delta is a set of field changes keyed by JSON field name.
type Delta map[string]any

// Clone returns a shallow copy of d.
func (d Delta) Clone() Delta {
	return maps.Clone(d)
}

// Stamped returns a copy of d marked as modified at now.
func (d Delta) Stamped(now time.Time) Delta {
	c := d.Clone()
	if c == nil {
		c = Delta{}
	}
	c[ModifiedOnField] = now
	return c
}

// ApplyDelta replaces the top-level fields of v named in d, the way the
// store applies an update: nested values are replaced as a whole and nil
// resets a field to its zero value. v must be a non-nil pointer whose
// state round-trips through JSON.
func ApplyDelta(v any, d Delta) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("failed to apply delta: %T is not a non-nil pointer", v)
	}
	doc, err := ToDocument(v)
	if err != nil {
		return err
	}
	maps.Copy(doc, d)
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode delta: %w", err)
	}

	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return fmt.Errorf("failed to apply delta: %w", err)
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

// ToDocument returns the JSON object form of v.
func ToDocument(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

// Snapshot returns the current values of v for the fields named in d.
// Fields v does not carry are reported as nil.
func Snapshot(v any, d Delta) (map[string]any, error) {
	doc, err := ToDocument(v)
	if err != nil {
		return nil, err
	}
	before := make(map[string]any, len(d))
	for k := range d {
		before[k] = doc[k]
	}
	return before, nil
}
