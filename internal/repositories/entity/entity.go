// Package entity layers sync semantics over the data repository: download
// ingestion that never marks rows dirty, local creation that does, deletes
// that also drop the sync bookkeeping of the removed rows, and the local
// mutation path with its patch log (ModifiableRepository).
package entity

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/dmitrijs2005/gophsync/internal/repositories/data"
	"github.com/dmitrijs2005/gophsync/internal/repositories/entitystates"
	"github.com/dmitrijs2005/gophsync/internal/repositories/entitytypestates"
	"github.com/dmitrijs2005/gophsync/internal/repositories/repository"
	"github.com/dmitrijs2005/gophsync/internal/session"
	"github.com/dmitrijs2005/gophsync/internal/store"
	"github.com/dmitrijs2005/gophsync/internal/transport"
	"github.com/google/uuid"
)

// Deps are the collaborators of an entity repository.
type Deps struct {
	States     entitystates.Repository
	TypeStates entitytypestates.Repository
	// Sender receives every locally written entity. Nil disables pushing.
	Sender transport.Sender
	// Schema declares the owned properties for ProcessEntityDeltaChanges.
	Schema *models.Schema
}

type Repository[T models.Entity] struct {
	*data.Repository[T]
	deps Deps
}

func New[T models.Entity](table *store.Table[T], meta repository.Meta, deps Deps, opts ...data.Option) *Repository[T] {
	if deps.Sender == nil {
		deps.Sender = transport.NopSender{}
	}
	return &Repository[T]{Repository: data.New(table, meta, opts...), deps: deps}
}

func (r *Repository[T]) States() entitystates.Repository { return r.deps.States }

// PutOnDownload stores an authoritative copy of rec. The entity state
// records the download; dirty is left untouched.
func (r *Repository[T]) PutOnDownload(ctx context.Context, sess session.Session, rec T) error {
	rec.SetSyncPending(false)
	return r.DB().Transaction(ctx, func(ctx context.Context) error {
		if err := r.Table().Put(ctx, rec); err != nil {
			return err
		}
		if !r.HasEntityState {
			return nil
		}
		return r.deps.States.MarkAsDownloaded(ctx, sess, r.Meta, []string{rec.EntityID()}, r.Clock().Now())
	})
}

// PutRangeOnDownload stores a downloaded batch and advances the type's
// download cursor to downloadedOn, all in one transaction.
func (r *Repository[T]) PutRangeOnDownload(ctx context.Context, sess session.Session, recs []T, downloadedOn time.Time) error {
	ids := make([]string, 0, len(recs))
	batch := make([]models.Entity, 0, len(recs))
	for _, rec := range recs {
		rec.SetSyncPending(false)
		ids = append(ids, rec.EntityID())
		batch = append(batch, rec)
	}

	return r.DB().Transaction(ctx, func(ctx context.Context) error {
		if err := r.Table().BulkPut(ctx, recs); err != nil {
			return err
		}
		if r.HasEntityState {
			if err := r.deps.States.MarkAsDownloaded(ctx, sess, r.Meta, ids, downloadedOn); err != nil {
				return err
			}
		}
		return r.deps.TypeStates.UpdateOnDownloaded(ctx, sess, r.Meta, downloadedOn, batch)
	})
}

// AddNew stores a locally created rec as pending, marks it dirty and pushes
// it. An empty id is replaced by a new UUID and a missing ModifiedOn by the
// current time.
func (r *Repository[T]) AddNew(ctx context.Context, sess session.Session, rec T) error {
	if rec.EntityID() == "" {
		rec.SetEntityID(uuid.NewString())
	}
	if rec.ModifiedAt() == nil {
		rec.SetModifiedAt(r.Clock().Now())
	}
	rec.SetSyncPending(true)

	err := r.DB().Transaction(ctx, func(ctx context.Context) error {
		if err := r.Table().Put(ctx, rec); err != nil {
			return err
		}
		if !r.HasEntityState {
			return nil
		}
		return r.deps.States.MarkAsDirty(ctx, sess, r.Meta, rec.EntityID(), *rec.ModifiedAt())
	})
	if err != nil {
		return err
	}

	r.push(ctx, rec)
	return nil
}

func (r *Repository[T]) push(ctx context.Context, rec T) {
	r.deps.Sender.TrySend(ctx, rec)
}

func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.DeleteCore(ctx, []string{id}, false, r.afterDelete)
}

func (r *Repository[T]) DeleteRange(ctx context.Context, ids []string) error {
	return r.DeleteCore(ctx, ids, false, r.afterDelete)
}

// DeleteAll removes every row together with the entity states of the type
// and its type states.
func (r *Repository[T]) DeleteAll(ctx context.Context) error {
	return r.DeleteCore(ctx, nil, true, r.afterDelete)
}

func (r *Repository[T]) afterDelete(ctx context.Context, ids []string, all bool) error {
	if r.HasEntityState {
		var err error
		if all {
			err = r.deps.States.DeleteAllOfType(ctx, r.Meta)
		} else {
			err = r.deps.States.DeleteRange(ctx, r.Meta, ids)
		}
		if err != nil {
			return err
		}
	}

	n, err := r.Table().Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return r.deps.TypeStates.Delete(ctx, r.Meta)
	}
	return nil
}

// ProcessEntityDeltaChanges reports what applying delta to obj would
// change, according to the repository schema. See ProcessDeltaChanges.
func (r *Repository[T]) ProcessEntityDeltaChanges(obj T, delta models.Delta, cb Callbacks) (bool, error) {
	return ProcessDeltaChanges(obj, delta, r.deps.Schema, r.Clock().Now(), cb)
}
