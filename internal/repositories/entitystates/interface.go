package entitystates

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/dmitrijs2005/gophsync/internal/repositories/repository"
	"github.com/dmitrijs2005/gophsync/internal/session"
)

// Repository describes the entity state operations used by entity
// repositories and by the sync orchestration layer.
type Repository interface {
	// Find returns the state of the entity for the current user, or nil.
	Find(ctx context.Context, sess session.Session, meta repository.Meta, entityID string) (*models.EntityState, error)

	// GetOrAddNew returns the state, creating a clean one if needed.
	GetOrAddNew(ctx context.Context, sess session.Session, meta repository.Meta, entityID string) (*models.EntityState, error)

	// Items returns every state row of the type for the current user.
	Items(ctx context.Context, sess session.Session, meta repository.Meta) ([]*models.EntityState, error)

	// GetDirties returns the dirty rows of the type, restricted to the
	// current user when ofUser is true.
	GetDirties(ctx context.Context, sess session.Session, meta repository.Meta, ofUser bool) ([]*models.EntityState, error)

	// MarkAsDirty flags the entity dirty at modifiedOn. It is a no-op when
	// the row is already dirty with a LocallyModifiedOn at least as recent.
	MarkAsDirty(ctx context.Context, sess session.Session, meta repository.Meta, entityID string, modifiedOn time.Time) error

	// AddPatch appends patch to the log and flags the entity dirty.
	AddPatch(ctx context.Context, sess session.Session, meta repository.Meta, entityID string, patch models.Patch) error

	// MarkAsRemotelyPut clears dirty and the patch log after a full replace
	// was acknowledged.
	MarkAsRemotelyPut(ctx context.Context, sess session.Session, meta repository.Meta, entityIDs []string, at time.Time) error

	// MarkAsRemotelyPatched clears dirty and the patch log after the patch
	// set was acknowledged.
	MarkAsRemotelyPatched(ctx context.Context, sess session.Session, meta repository.Meta, entityIDs []string, at time.Time) error

	// MarkAsDownloaded records that an authoritative copy arrived. Dirty is
	// not touched.
	MarkAsDownloaded(ctx context.Context, sess session.Session, meta repository.Meta, entityIDs []string, at time.Time) error

	SetValidationResult(ctx context.Context, sess session.Session, meta repository.Meta, entityID string, result models.ValidationResult) error
	GetValidationResult(ctx context.Context, sess session.Session, meta repository.Meta, entityID string) (models.ValidationResult, error)

	// Modify loads (or creates) the state, lets action fill a delta and
	// writes it only if the delta is non-empty.
	Modify(ctx context.Context, sess session.Session, meta repository.Meta, entityID string, action func(state *models.EntityState, delta *Delta)) error

	// Delete, DeleteRange and DeleteAllOfType remove rows of every user,
	// issues first.
	Delete(ctx context.Context, meta repository.Meta, entityID string) error
	DeleteRange(ctx context.Context, meta repository.Meta, entityIDs []string) error
	DeleteAllOfType(ctx context.Context, meta repository.Meta) error

	Clear(ctx context.Context) error
}
