package entitystates

import (
	"sort"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/models"
)

// Delta collects column changes for one entity state row.
type Delta struct {
	values   map[string]any
	appliers map[string]func(*models.EntityState)
}

func (d *Delta) set(column string, value any, apply func(*models.EntityState)) {
	if d.values == nil {
		d.values = map[string]any{}
		d.appliers = map[string]func(*models.EntityState){}
	}
	d.values[column] = value
	d.appliers[column] = apply
}

// Empty reports whether nothing was set.
func (d *Delta) Empty() bool {
	return len(d.values) == 0
}

// Columns returns the changed columns in a stable order.
func (d *Delta) Columns() []string {
	cols := make([]string, 0, len(d.values))
	for c := range d.values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func (d *Delta) apply(s *models.EntityState) {
	for _, c := range d.Columns() {
		d.appliers[c](s)
	}
}

// SetDirty sets the dirty flag. Clearing it also clears the patch log.
func (d *Delta) SetDirty(dirty bool) {
	v := 0
	if dirty {
		v = 1
	}
	d.set("dirty", v, func(s *models.EntityState) { s.Dirty = v })
	if !dirty {
		d.SetPatches(nil)
	}
}

// SetPatches replaces the patch log.
func (d *Delta) SetPatches(patches []models.Patch) {
	d.set("patches", patches, func(s *models.EntityState) { s.Patches = patches })
}

func (d *Delta) SetValidity(v models.Validity) {
	d.set("validity", int(v), func(s *models.EntityState) { s.Validity = v })
}

func (d *Delta) SetLocallyModifiedOn(t time.Time) {
	d.set("locally_modified_on", t, func(s *models.EntityState) { s.LocallyModifiedOn = &t })
}

func (d *Delta) SetRemotelyPatchedOn(t time.Time) {
	d.set("remotely_patched_on", t, func(s *models.EntityState) { s.RemotelyPatchedOn = &t })
}

func (d *Delta) SetRemotelyPutOn(t time.Time) {
	d.set("remotely_put_on", t, func(s *models.EntityState) { s.RemotelyPutOn = &t })
}

func (d *Delta) SetDownloadedOn(t time.Time) {
	d.set("downloaded_on", t, func(s *models.EntityState) { s.DownloadedOn = &t })
}
