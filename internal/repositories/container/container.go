// Package container is the registry of every repository of the local
// store, looked up by entity type id or entity name. ClearAll wipes the
// whole store on logout or reset.
package container

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/repositories/entityissues"
	"github.com/dmitrijs2005/gophsync/internal/repositories/entitystates"
	"github.com/dmitrijs2005/gophsync/internal/repositories/entitytypestates"
	"github.com/dmitrijs2005/gophsync/internal/repositories/repository"
	"github.com/dmitrijs2005/gophsync/internal/store"
)

type Container struct {
	db         *store.DB
	States     entitystates.Repository
	TypeStates entitytypestates.Repository
	Issues     entityissues.Repository

	mu     sync.RWMutex
	repos  []repository.Repository
	byID   map[string]repository.Repository
	byName map[string]repository.Repository
}

func New(db *store.DB, states entitystates.Repository, typeStates entitytypestates.Repository, issues entityissues.Repository) *Container {
	return &Container{
		db:         db,
		States:     states,
		TypeStates: typeStates,
		Issues:     issues,
		byID:       map[string]repository.Repository{},
		byName:     map[string]repository.Repository{},
	}
}

// Register adds r. Entity type ids and names must be unique.
func (c *Container) Register(r repository.Repository) error {
	m := r.Metadata()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[m.EntityTypeId]; ok {
		return fmt.Errorf("%s: %w", m.EntityTypeId, common.ErrDuplicateRepository)
	}
	if _, ok := c.byName[m.EntityName]; ok {
		return fmt.Errorf("%s: %w", m.EntityName, common.ErrDuplicateRepository)
	}
	c.repos = append(c.repos, r)
	c.byID[m.EntityTypeId] = r
	c.byName[m.EntityName] = r
	return nil
}

func (c *Container) ByTypeID(id string) (repository.Repository, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("entity type %q: %w", id, common.ErrUnknownRepository)
	}
	return r, nil
}

func (c *Container) ByName(name string) (repository.Repository, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("entity %q: %w", name, common.ErrUnknownRepository)
	}
	return r, nil
}

// All returns the repositories in registration order.
func (c *Container) All() []repository.Repository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]repository.Repository(nil), c.repos...)
}

// ClearAll deletes every row of every registered repository and of the
// sync bookkeeping tables in one transaction, then drops all caches.
func (c *Container) ClearAll(ctx context.Context) error {
	repos := c.All()
	err := c.db.Transaction(ctx, func(ctx context.Context) error {
		for _, r := range repos {
			if err := r.Clear(ctx); err != nil {
				return err
			}
		}
		if err := c.States.Clear(ctx); err != nil {
			return err
		}
		if err := c.TypeStates.Clear(ctx); err != nil {
			return err
		}
		return c.Issues.Clear(ctx)
	})
	for _, r := range repos {
		r.ClearCache()
	}
	return err
}
