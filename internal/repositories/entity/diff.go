package entity

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/google/uuid"
)

// ChangeKind classifies a change of an owned entity.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	default:
		return "deleted"
	}
}

// Callbacks receive the changes found by ProcessDeltaChanges. Nil fields
// are skipped.
type Callbacks struct {
	// EntityChanged is called per added, modified or deleted owned entity
	// with its JSON document.
	EntityChanged func(property string, kind ChangeKind, item map[string]any)
	// ValueChanged is called per scalar property whose value differs.
	ValueChanged func(property string, oldValue, newValue any)
}

// ProcessDeltaChanges compares delta against the current state of obj and
// reports every difference through cb. Scalars compare by value. Owned
// entities and owned collections are matched by Id: an unknown or empty Id
// is an addition, a known Id with different content a modification, and an
// Id present on obj but missing from the delta a deletion.
//
// Added and modified owned entities are stamped with a new Id (when empty),
// ModifiedOn = now and the sync pending marker, and the stamped documents
// are written back into delta. It returns whether anything changed.
func ProcessDeltaChanges(obj any, delta models.Delta, schema *models.Schema, now time.Time, cb Callbacks) (bool, error) {
	current, err := models.ToDocument(obj)
	if err != nil {
		return false, err
	}

	names := make([]string, 0, len(delta))
	for name := range delta {
		names = append(names, name)
	}
	slices.Sort(names)

	normalized := make(map[string]any, len(names))
	for _, name := range names {
		incoming, err := normalize(delta[name])
		if err != nil {
			return false, fmt.Errorf("property %s: %w", name, err)
		}
		if err := checkOwned(schema.Kind(name), incoming); err != nil {
			return false, fmt.Errorf("property %s: %w", name, err)
		}
		normalized[name] = incoming
	}

	changed := false
	for _, name := range names {
		incoming := normalized[name]
		var c bool
		switch schema.Kind(name) {
		case models.PropertyOwnedEntity:
			c, incoming = diffOwnedEntity(name, current[name], incoming, now, cb)
			delta[name] = incoming
		case models.PropertyOwnedCollection:
			c, incoming = diffOwnedCollection(name, current[name], incoming, now, cb)
			delta[name] = incoming
		default:
			if !reflect.DeepEqual(current[name], incoming) {
				c = true
				if cb.ValueChanged != nil {
					cb.ValueChanged(name, current[name], incoming)
				}
			}
		}
		changed = changed || c
	}
	return changed, nil
}

// normalize converts v to its generic JSON form so it compares equal to
// values decoded from a document.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// checkOwned rejects owned values that are neither null nor of the shape
// their kind requires.
func checkOwned(kind models.PropertyKind, v any) error {
	if v == nil {
		return nil
	}
	switch kind {
	case models.PropertyOwnedEntity:
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("owned entity must be an object, got %T: %w", v, common.ErrMalformedDelta)
		}
	case models.PropertyOwnedCollection:
		list, ok := v.([]any)
		if !ok {
			return fmt.Errorf("owned collection must be a list, got %T: %w", v, common.ErrMalformedDelta)
		}
		for i, e := range list {
			if _, ok := e.(map[string]any); !ok {
				return fmt.Errorf("owned collection item %d must be an object, got %T: %w", i, e, common.ErrMalformedDelta)
			}
		}
	}
	return nil
}

func itemID(item map[string]any) string {
	id, _ := item[models.IdField].(string)
	return id
}

func stamp(item map[string]any, now time.Time) {
	if itemID(item) == "" {
		item[models.IdField] = uuid.NewString()
	}
	item[models.ModifiedOnField] = now.Format(time.RFC3339Nano)
	item[models.SyncPendingField] = true
}

// sameContent compares two owned entities ignoring sync metadata.
func sameContent(a, b map[string]any) bool {
	strip := func(m map[string]any) map[string]any {
		out := make(map[string]any, len(m))
		for k, v := range m {
			if k == models.ModifiedOnField || k == models.SyncPendingField {
				continue
			}
			out[k] = v
		}
		return out
	}
	return reflect.DeepEqual(strip(a), strip(b))
}

func notify(cb Callbacks, property string, kind ChangeKind, item map[string]any) {
	if cb.EntityChanged != nil {
		cb.EntityChanged(property, kind, item)
	}
}

func diffOwnedEntity(name string, current, incoming any, now time.Time, cb Callbacks) (bool, any) {
	oldItem, _ := current.(map[string]any)
	newItem, _ := incoming.(map[string]any)

	switch {
	case oldItem == nil && newItem == nil:
		return false, incoming
	case newItem == nil:
		notify(cb, name, Deleted, oldItem)
		return true, incoming
	case oldItem == nil || itemID(newItem) == "" || itemID(oldItem) != itemID(newItem):
		if oldItem != nil {
			notify(cb, name, Deleted, oldItem)
		}
		stamp(newItem, now)
		notify(cb, name, Added, newItem)
		return true, newItem
	case !sameContent(oldItem, newItem):
		stamp(newItem, now)
		notify(cb, name, Modified, newItem)
		return true, newItem
	default:
		return false, newItem
	}
}

func toItems(v any) []map[string]any {
	list, _ := v.([]any)
	items := make([]map[string]any, 0, len(list))
	for _, e := range list {
		if m, ok := e.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

func diffOwnedCollection(name string, current, incoming any, now time.Time, cb Callbacks) (bool, any) {
	oldItems := toItems(current)
	newItems := toItems(incoming)

	byID := make(map[string]map[string]any, len(oldItems))
	for _, item := range oldItems {
		byID[itemID(item)] = item
	}

	changed := false
	seen := make(map[string]bool, len(newItems))
	for _, item := range newItems {
		id := itemID(item)
		old, ok := byID[id]
		switch {
		case id == "" || !ok:
			stamp(item, now)
			notify(cb, name, Added, item)
			changed = true
		case !sameContent(old, item):
			stamp(item, now)
			notify(cb, name, Modified, item)
			changed = true
		}
		seen[itemID(item)] = true
	}

	for _, item := range oldItems {
		if !seen[itemID(item)] {
			notify(cb, name, Deleted, item)
			changed = true
		}
	}

	if incoming == nil {
		return changed, nil
	}
	out := make([]any, len(newItems))
	for i, item := range newItems {
		out[i] = item
	}
	return changed, out
}
