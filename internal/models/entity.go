// Package models defines the records persisted by the local synchronization
// layer: domain entities (through EntityBase), per-entity sync state,
// per-type sync cursors, validation issues and patches.
package models

import "time"

// JSON field names shared by every entity document.
const (
	IdField          = "Id"
	ModifiedOnField  = "ModifiedOn"
	SyncPendingField = "_isSyncPending"
)

// Entity is implemented by every domain record stored in an entity table.
// Implementations are pointers to structs embedding EntityBase.
type Entity interface {
	EntityID() string
	SetEntityID(id string)
	ModifiedAt() *time.Time
	SetModifiedAt(t time.Time)
	SyncPending() bool
	SetSyncPending(pending bool)
}

// EntityBase carries the fields the repositories interpret.
//
// IsSyncPending is set whenever a record was written locally and not yet
// confirmed by the remote authority.
type EntityBase struct {
	Id            string     `json:"Id"`
	ModifiedOn    *time.Time `json:"ModifiedOn,omitempty"`
	IsSyncPending bool       `json:"_isSyncPending,omitempty"`
}

func (b *EntityBase) EntityID() string { return b.Id }

func (b *EntityBase) SetEntityID(id string) { b.Id = id }

func (b *EntityBase) ModifiedAt() *time.Time { return b.ModifiedOn }

func (b *EntityBase) SetModifiedAt(t time.Time) { b.ModifiedOn = &t }

func (b *EntityBase) SyncPending() bool { return b.IsSyncPending }

func (b *EntityBase) SetSyncPending(pending bool) { b.IsSyncPending = pending }

// MaxModifiedOn returns the latest ModifiedOn in the batch, or nil when no
// entity carries one.
func MaxModifiedOn(batch []Entity) *time.Time {
	var max *time.Time
	for _, e := range batch {
		m := e.ModifiedAt()
		if m == nil {
			continue
		}
		if max == nil || m.After(*max) {
			t := *m
			max = &t
		}
	}
	return max
}
