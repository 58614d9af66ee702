// Package data implements the generic repository over one document table:
// keyed reads, upserts, deletes with an optional cascade hook and an
// optional in-memory snapshot of the whole table.
package data

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/metrics"
	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/dmitrijs2005/gophsync/internal/repositories/repository"
	"github.com/dmitrijs2005/gophsync/internal/store"
	"golang.org/x/sync/singleflight"
)

type settings struct {
	logger  logging.Logger
	metrics *metrics.Metrics
	clock   repository.Clock
}

// Option configures a Repository.
type Option func(*settings)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithMetrics sets the counters that cascade misses are recorded on.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithClock sets the time source used to stamp records.
func WithClock(c repository.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// AfterDelete runs inside the delete transaction once the primary rows are
// gone. all is true for DeleteAll.
type AfterDelete func(ctx context.Context, ids []string, all bool) error

// Repository is the generic repository of entity type T.
type Repository[T models.Entity] struct {
	repository.Meta

	table    *store.Table[T]
	settings settings
	cascade  func(ctx context.Context, rec T) error

	group singleflight.Group
	mu    sync.RWMutex
	items []T
	// generation is bumped by ClearCache so a load started before the
	// clear does not repopulate the snapshot.
	generation uint64
}

// New binds a repository to table. The table name in meta is taken from
// the table.
func New[T models.Entity](table *store.Table[T], meta repository.Meta, opts ...Option) *Repository[T] {
	meta.TableName = table.Name()
	r := &Repository[T]{Meta: meta, table: table}
	r.settings.logger = logging.NewNopLogger()
	for _, opt := range opts {
		opt(&r.settings)
	}
	r.settings.logger = r.settings.logger.With("repository", meta.EntityName)
	return r
}

func (r *Repository[T]) Table() *store.Table[T]    { return r.table }
func (r *Repository[T]) DB() *store.DB             { return r.table.DB() }
func (r *Repository[T]) Logger() logging.Logger    { return r.settings.logger }
func (r *Repository[T]) Metrics() *metrics.Metrics { return r.settings.metrics }
func (r *Repository[T]) Clock() repository.Clock   { return r.settings.clock }

// OnCascadeDelete installs the hook that removes the dependents of a row
// before the row itself is deleted.
func (r *Repository[T]) OnCascadeDelete(fn func(ctx context.Context, rec T) error) {
	r.cascade = fn
}

// CascadeDelete removes the dependents of rec. Without a hook it does
// nothing.
func (r *Repository[T]) CascadeDelete(ctx context.Context, rec T) error {
	if r.cascade == nil {
		return nil
	}
	return r.cascade(ctx, rec)
}

// Get returns the record with id or an error wrapping common.ErrNotFound.
func (r *Repository[T]) Get(ctx context.Context, id string) (T, error) {
	rec, found, err := r.table.Get(ctx, id)
	if err != nil {
		return rec, err
	}
	if !found {
		return rec, fmt.Errorf("%s[%s]: %w", r.EntityName, id, common.ErrNotFound)
	}
	return rec, nil
}

// Find returns the record with id, or the zero T when id is empty or there
// is no such row.
func (r *Repository[T]) Find(ctx context.Context, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, nil
	}
	rec, found, err := r.table.Get(ctx, id)
	if err != nil || !found {
		return zero, err
	}
	return rec, nil
}

// Items returns every row. Cached repositories return the same snapshot
// until ClearCache; callers must not modify it. Reads inside a transaction
// bypass the snapshot.
func (r *Repository[T]) Items(ctx context.Context) ([]T, error) {
	if !r.IsCached || dbx.InTx(ctx) {
		return r.table.All(ctx)
	}

	r.mu.RLock()
	items, gen := r.items, r.generation
	r.mu.RUnlock()
	if items != nil {
		return items, nil
	}

	v, err, _ := r.group.Do("items", func() (any, error) {
		r.mu.RLock()
		cached := r.items
		r.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		loaded, err := r.table.All(ctx)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			loaded = []T{}
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.generation == gen {
			r.items = loaded
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}

// ItemsByID returns the records of ids in request order, dropping misses.
func (r *Repository[T]) ItemsByID(ctx context.Context, ids []string) ([]T, error) {
	if !r.IsCached {
		return r.table.BulkGet(ctx, ids)
	}

	items, err := r.Items(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]T, len(items))
	for _, rec := range items {
		byID[rec.EntityID()] = rec
	}
	result := make([]T, 0, len(ids))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			result = append(result, rec)
		}
	}
	return result, nil
}

// Put upserts rec without any sync bookkeeping.
func (r *Repository[T]) Put(ctx context.Context, rec T) error {
	return r.table.Put(ctx, rec)
}

// PutRange upserts recs in one transaction without any sync bookkeeping.
func (r *Repository[T]) PutRange(ctx context.Context, recs []T) error {
	return r.table.BulkPut(ctx, recs)
}

// Delete removes the row with id. A missing row is not an error.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.DeleteCore(ctx, []string{id}, false, nil)
}

// DeleteRange removes the rows of ids in one transaction.
func (r *Repository[T]) DeleteRange(ctx context.Context, ids []string) error {
	return r.DeleteCore(ctx, ids, false, nil)
}

// DeleteAll removes every row and drops the snapshot.
func (r *Repository[T]) DeleteAll(ctx context.Context) error {
	return r.DeleteCore(ctx, nil, true, nil)
}

// DeleteCore deletes ids, or every row when all is set, in one
// transaction. With HasDependents each row is resolved and cascaded before
// the primary rows are removed: a full wipe cascades the loaded table, an
// explicit list is point-read and rows that vanished meanwhile are skipped.
func (r *Repository[T]) DeleteCore(ctx context.Context, ids []string, all bool, after AfterDelete) error {
	err := r.DB().Transaction(ctx, func(ctx context.Context) error {
		targets, err := r.resolveTargets(ctx, ids, all)
		if err != nil {
			return err
		}
		if err := r.table.BulkDelete(ctx, targets); err != nil {
			return err
		}
		if after != nil {
			return after(ctx, targets, all)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if all {
		r.ClearCache()
	}
	return nil
}

func (r *Repository[T]) resolveTargets(ctx context.Context, ids []string, all bool) ([]string, error) {
	switch {
	case all && r.HasDependents:
		recs, err := r.table.All(ctx)
		if err != nil {
			return nil, err
		}
		targets := make([]string, 0, len(recs))
		for _, rec := range recs {
			if err := r.CascadeDelete(ctx, rec); err != nil {
				return nil, err
			}
			targets = append(targets, rec.EntityID())
		}
		return targets, nil

	case all:
		return r.table.PrimaryKeys(ctx)

	default:
		targets := make([]string, 0, len(ids))
		for _, id := range ids {
			if id == "" {
				continue
			}
			targets = append(targets, id)
			if !r.HasDependents {
				continue
			}
			rec, found, err := r.table.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if !found {
				r.settings.logger.Warn(ctx, "row vanished before cascade delete", "id", id)
				r.settings.metrics.CascadeMissed()
				continue
			}
			if err := r.CascadeDelete(ctx, rec); err != nil {
				return nil, err
			}
		}
		return targets, nil
	}
}

// Clear deletes every row without cascading and drops the snapshot.
func (r *Repository[T]) Clear(ctx context.Context) error {
	if err := r.table.Clear(ctx); err != nil {
		return err
	}
	r.ClearCache()
	return nil
}

// ClearCache drops the snapshot; the next Items call re-reads the table.
func (r *Repository[T]) ClearCache() {
	r.mu.Lock()
	r.items = nil
	r.generation++
	r.mu.Unlock()
}
