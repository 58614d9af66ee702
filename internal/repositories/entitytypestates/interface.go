// Package entitytypestates keeps one sync cursor per entity type and
// (company, user) partition: when the type was last downloaded, the latest
// ModifiedOn seen in a download, and the last processed remote deletion.
package entitytypestates

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/dmitrijs2005/gophsync/internal/repositories/repository"
	"github.com/dmitrijs2005/gophsync/internal/session"
)

type Repository interface {
	// GetOrCreate returns the cursor of the partition resolved from sess,
	// creating an empty one if needed.
	GetOrCreate(ctx context.Context, sess session.Session, meta repository.Meta) (*models.EntityTypeState, error)

	// Find returns the cursor or nil.
	Find(ctx context.Context, sess session.Session, meta repository.Meta) (*models.EntityTypeState, error)

	// UpdateOnDownloaded sets LastDownloadedOn to downloadedOn and advances
	// LastModifiedOn to the latest ModifiedOn of batch. LastModifiedOn never
	// moves backwards.
	UpdateOnDownloaded(ctx context.Context, sess session.Session, meta repository.Meta, downloadedOn time.Time, batch []models.Entity) error

	// UpdateOnRemoteDeletions advances LastRemoteDeletionOn.
	UpdateOnRemoteDeletions(ctx context.Context, sess session.Session, meta repository.Meta, deletedOn time.Time) error

	// Modify loads (or creates) the cursor and writes it back when action
	// reports a change.
	Modify(ctx context.Context, sess session.Session, meta repository.Meta, action func(state *models.EntityTypeState) bool) error

	// Delete removes the cursors of the type for every partition.
	Delete(ctx context.Context, meta repository.Meta) error

	Clear(ctx context.Context) error
}
