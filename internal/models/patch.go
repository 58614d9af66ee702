package models

import "time"

// Patch is the field-level record of one local mutation. Patches are kept
// on the entity state until the remote authority acknowledges them and are
// then discarded as a whole.
type Patch struct {
	Id        string         `json:"id"`
	CreatedOn time.Time      `json:"createdOn"`
	Before    map[string]any `json:"before,omitempty"`
	After     map[string]any `json:"after"`
}

// NewPatch builds a patch from the before-values and the applied delta.
func NewPatch(id string, createdOn time.Time, before map[string]any, after Delta) Patch {
	return Patch{Id: id, CreatedOn: createdOn, Before: before, After: map[string]any(after)}
}
