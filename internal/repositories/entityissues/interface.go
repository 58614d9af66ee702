package entityissues

import (
	"context"

	"github.com/dmitrijs2005/gophsync/internal/models"
)

// Repository describes keyed access to validation issues.
type Repository interface {
	// Find returns the issue or nil when there is none.
	Find(ctx context.Context, entityID, entityTypeID string) (*models.EntityIssue, error)

	// GetOrAddNew returns the issue, creating an empty one if needed.
	GetOrAddNew(ctx context.Context, entityID, entityTypeID string) (*models.EntityIssue, error)

	// Set inserts or replaces the issue.
	Set(ctx context.Context, issue *models.EntityIssue) error

	// Modify loads (or creates) the issue and writes it back if action
	// reports a change.
	Modify(ctx context.Context, entityID, entityTypeID string, action func(issue *models.EntityIssue) bool) error

	Delete(ctx context.Context, entityID, entityTypeID string) error
	DeleteRange(ctx context.Context, entityTypeID string, entityIDs []string) error
	DeleteAllOfType(ctx context.Context, entityTypeID string) error
	Clear(ctx context.Context) error
}
