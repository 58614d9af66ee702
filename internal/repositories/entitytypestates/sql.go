package entitytypestates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/dmitrijs2005/gophsync/internal/repositories/repository"
	"github.com/dmitrijs2005/gophsync/internal/session"
	"github.com/dmitrijs2005/gophsync/internal/store"
)

type SQLRepository struct {
	db *store.DB
}

func NewSQLRepository(db *store.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) find(ctx context.Context, typeID string, scope repository.Scope) (*models.EntityTypeState, error) {
	var downloaded, modified, deleted sql.NullInt64
	err := r.db.QueryRow(ctx, `
		SELECT last_downloaded_on, last_modified_on, last_remote_deletion_on
		FROM entity_type_states
		WHERE entity_type_id = ? AND company_id = ? AND user_id = ?
	`, typeID, scope.CompanyID, scope.UserID).Scan(&downloaded, &modified, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity type state %s: %w", typeID, err)
	}

	return &models.EntityTypeState{
		EntityTypeId:         typeID,
		CompanyId:            scope.CompanyID,
		UserId:               scope.UserID,
		LastDownloadedOn:     fromNull(downloaded),
		LastModifiedOn:       fromNull(modified),
		LastRemoteDeletionOn: fromNull(deleted),
	}, nil
}

func fromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	return repository.FromNano(&v.Int64)
}

func (r *SQLRepository) save(ctx context.Context, s *models.EntityTypeState) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO entity_type_states (entity_type_id, company_id, user_id,
			last_downloaded_on, last_modified_on, last_remote_deletion_on)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_type_id, company_id, user_id) DO UPDATE SET
			last_downloaded_on = excluded.last_downloaded_on,
			last_modified_on = excluded.last_modified_on,
			last_remote_deletion_on = excluded.last_remote_deletion_on
	`, s.EntityTypeId, s.CompanyId, s.UserId,
		repository.NanoTime(s.LastDownloadedOn),
		repository.NanoTime(s.LastModifiedOn),
		repository.NanoTime(s.LastRemoteDeletionOn))
	if err != nil {
		return fmt.Errorf("failed to save entity type state %s: %w", s.EntityTypeId, err)
	}
	return nil
}

func (r *SQLRepository) Find(ctx context.Context, sess session.Session, meta repository.Meta) (*models.EntityTypeState, error) {
	scope, err := repository.ResolveScope(sess, meta)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, meta.EntityTypeId, scope)
}

func (r *SQLRepository) GetOrCreate(ctx context.Context, sess session.Session, meta repository.Meta) (*models.EntityTypeState, error) {
	scope, err := repository.ResolveScope(sess, meta)
	if err != nil {
		return nil, err
	}

	var state *models.EntityTypeState
	err = r.db.Transaction(ctx, func(ctx context.Context) error {
		state, err = r.find(ctx, meta.EntityTypeId, scope)
		if err != nil || state != nil {
			return err
		}
		state = &models.EntityTypeState{
			EntityTypeId: meta.EntityTypeId,
			CompanyId:    scope.CompanyID,
			UserId:       scope.UserID,
		}
		return r.save(ctx, state)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (r *SQLRepository) Modify(ctx context.Context, sess session.Session, meta repository.Meta, action func(state *models.EntityTypeState) bool) error {
	return r.db.Transaction(ctx, func(ctx context.Context) error {
		state, err := r.GetOrCreate(ctx, sess, meta)
		if err != nil {
			return err
		}
		if !action(state) {
			return nil
		}
		return r.save(ctx, state)
	})
}

func (r *SQLRepository) UpdateOnDownloaded(ctx context.Context, sess session.Session, meta repository.Meta, downloadedOn time.Time, batch []models.Entity) error {
	latest := models.MaxModifiedOn(batch)
	return r.Modify(ctx, sess, meta, func(state *models.EntityTypeState) bool {
		state.LastDownloadedOn = &downloadedOn
		if latest != nil && (state.LastModifiedOn == nil || latest.After(*state.LastModifiedOn)) {
			state.LastModifiedOn = latest
		}
		return true
	})
}

func (r *SQLRepository) UpdateOnRemoteDeletions(ctx context.Context, sess session.Session, meta repository.Meta, deletedOn time.Time) error {
	return r.Modify(ctx, sess, meta, func(state *models.EntityTypeState) bool {
		if state.LastRemoteDeletionOn != nil && !deletedOn.After(*state.LastRemoteDeletionOn) {
			return false
		}
		state.LastRemoteDeletionOn = &deletedOn
		return true
	})
}

func (r *SQLRepository) Delete(ctx context.Context, meta repository.Meta) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM entity_type_states WHERE entity_type_id = ?`, meta.EntityTypeId); err != nil {
		return fmt.Errorf("failed to delete entity type states of %s: %w", meta.EntityTypeId, err)
	}
	return nil
}

func (r *SQLRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM entity_type_states`); err != nil {
		return fmt.Errorf("failed to clear entity type states: %w", err)
	}
	return nil
}
