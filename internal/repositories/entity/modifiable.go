package entity

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/dmitrijs2005/gophsync/internal/repositories/data"
	"github.com/dmitrijs2005/gophsync/internal/repositories/repository"
	"github.com/dmitrijs2005/gophsync/internal/session"
	"github.com/dmitrijs2005/gophsync/internal/store"
	"github.com/google/uuid"
)

// ModifiableRepository adds the local mutation path.
type ModifiableRepository[T models.Entity] struct {
	*Repository[T]
}

func NewModifiable[T models.Entity](table *store.Table[T], meta repository.Meta, deps Deps, opts ...data.Option) *ModifiableRepository[T] {
	return &ModifiableRepository[T]{Repository: New(table, meta, deps, opts...)}
}

// Modify applies delta to rec. The document update and the patch append
// commit together; if the row no longer exists the call fails with
// common.ErrCorruption and nothing is written. On success rec reflects the
// delta and is pushed.
func (r *ModifiableRepository[T]) Modify(ctx context.Context, sess session.Session, rec T, delta models.Delta) error {
	id := rec.EntityID()
	now := r.Clock().Now()
	stamped := delta.Stamped(now)

	before, err := models.Snapshot(rec, stamped)
	if err != nil {
		return err
	}
	patch := models.NewPatch(uuid.NewString(), now, before, stamped)

	pending := stamped.Clone()
	pending[models.SyncPendingField] = true

	err = r.DB().Transaction(ctx, func(ctx context.Context) error {
		n, err := r.Table().Update(ctx, id, pending)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("modify %s[%s]: %w", r.EntityName, id, common.ErrCorruption)
		}
		if !r.HasEntityState {
			return nil
		}
		return r.States().AddPatch(ctx, sess, r.Meta, id, patch)
	})
	if err != nil {
		return err
	}

	if err := models.ApplyDelta(rec, pending); err != nil {
		return err
	}
	r.push(ctx, rec)
	return nil
}
