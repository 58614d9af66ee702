package models

import (
	"encoding/json"
	"time"
)

// Validity is the tri-state validation status of an entity.
type Validity int

const (
	ValidityUnknown Validity = iota
	ValidityValid
	ValidityInvalid
)

func (v Validity) String() string {
	switch v {
	case ValidityValid:
		return "valid"
	case ValidityInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// ValidationResult is returned, never raised. Issues is only meaningful for
// invalid entities.
type ValidationResult struct {
	Validity Validity
	Issues   json.RawMessage
}

// EntityState is the sync status of one entity for one user.
//
// Patches is non-empty only while Dirty == 1.
type EntityState struct {
	EntityTypeId      string
	UserId            string
	EntityId          string
	Dirty             int
	Validity          Validity
	Patches           []Patch
	CreatedOn         time.Time
	LocallyModifiedOn *time.Time
	RemotelyPatchedOn *time.Time
	RemotelyPutOn     *time.Time
	DownloadedOn      *time.Time
}

// IsDirty reports whether unpushed local changes exist.
func (s *EntityState) IsDirty() bool { return s.Dirty == 1 }

// EntityTypeState is the sync cursor of one entity type for one
// (company, user) partition. Empty ids mean the type is not scoped to that
// dimension.
type EntityTypeState struct {
	EntityTypeId         string
	CompanyId            string
	UserId               string
	LastDownloadedOn     *time.Time
	LastModifiedOn       *time.Time
	LastRemoteDeletionOn *time.Time
}

// EntityIssue holds the serialized validation issue tree of an entity.
type EntityIssue struct {
	EntityId     string
	EntityTypeId string
	Payload      json.RawMessage
}
