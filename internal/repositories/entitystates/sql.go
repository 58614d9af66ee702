package entitystates

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/metrics"
	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/dmitrijs2005/gophsync/internal/repositories/entityissues"
	"github.com/dmitrijs2005/gophsync/internal/repositories/repository"
	"github.com/dmitrijs2005/gophsync/internal/session"
	"github.com/dmitrijs2005/gophsync/internal/store"
)

const stateColumns = `entity_type_id, user_id, entity_id, dirty, validity, patches,
	created_on, locally_modified_on, remotely_patched_on, remotely_put_on, downloaded_on`

// SQLRepository implements Repository over the entity_states table.
type SQLRepository struct {
	db      *store.DB
	issues  entityissues.Repository
	clock   repository.Clock
	metrics *metrics.Metrics
	logger  logging.Logger
}

type Option func(*SQLRepository)

func WithClock(c repository.Clock) Option {
	return func(r *SQLRepository) { r.clock = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *SQLRepository) { r.metrics = m }
}

func WithLogger(l logging.Logger) Option {
	return func(r *SQLRepository) { r.logger = l }
}

// NewSQLRepository returns a repository bound to db. Validation issues are
// written through issues.
func NewSQLRepository(db *store.DB, issues entityissues.Repository, opts ...Option) *SQLRepository {
	r := &SQLRepository{db: db, issues: issues, logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func currentUser(sess session.Session) (string, error) {
	id, err := sess.RequiredCurrentUserID()
	if err != nil {
		return "", fmt.Errorf("entity state requires a user: %w", err)
	}
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (*models.EntityState, error) {
	var (
		s         models.EntityState
		validity  int
		patches   sql.NullString
		createdOn int64
		times     [4]sql.NullInt64
	)
	err := row.Scan(&s.EntityTypeId, &s.UserId, &s.EntityId, &s.Dirty, &validity, &patches,
		&createdOn, &times[0], &times[1], &times[2], &times[3])
	if err != nil {
		return nil, err
	}
	s.Validity = models.Validity(validity)
	s.CreatedOn = time.Unix(0, createdOn).UTC()
	dst := []**time.Time{&s.LocallyModifiedOn, &s.RemotelyPatchedOn, &s.RemotelyPutOn, &s.DownloadedOn}
	for i, t := range times {
		if t.Valid {
			*dst[i] = repository.FromNano(&t.Int64)
		}
	}
	if patches.Valid && patches.String != "" {
		if err := json.Unmarshal([]byte(patches.String), &s.Patches); err != nil {
			return nil, fmt.Errorf("failed to decode patches of %s[%s]: %w", s.EntityTypeId, s.EntityId, err)
		}
	}
	return &s, nil
}

func (r *SQLRepository) find(ctx context.Context, typeID, userID, entityID string) (*models.EntityState, error) {
	row := r.db.QueryRow(ctx, `SELECT `+stateColumns+` FROM entity_states
		WHERE entity_type_id = ? AND user_id = ? AND entity_id = ?`, typeID, userID, entityID)
	s, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity state %s[%s]: %w", typeID, entityID, err)
	}
	return s, nil
}

func (r *SQLRepository) list(ctx context.Context, where string, args ...any) ([]*models.EntityState, error) {
	rows, err := r.db.Query(ctx, `SELECT `+stateColumns+` FROM entity_states WHERE `+where+` ORDER BY entity_id, user_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity states: %w", err)
	}
	defer rows.Close()

	var result []*models.EntityState
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity state: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *SQLRepository) Find(ctx context.Context, sess session.Session, meta repository.Meta, entityID string) (*models.EntityState, error) {
	userID, err := currentUser(sess)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, meta.EntityTypeId, userID, entityID)
}

func (r *SQLRepository) GetOrAddNew(ctx context.Context, sess session.Session, meta repository.Meta, entityID string) (*models.EntityState, error) {
	userID, err := currentUser(sess)
	if err != nil {
		return nil, err
	}
	var state *models.EntityState
	err = r.db.Transaction(ctx, func(ctx context.Context) error {
		state, err = r.find(ctx, meta.EntityTypeId, userID, entityID)
		if err != nil || state != nil {
			return err
		}
		state = &models.EntityState{
			EntityTypeId: meta.EntityTypeId,
			UserId:       userID,
			EntityId:     entityID,
			CreatedOn:    r.clock.Now(),
		}
		_, err = r.db.Exec(ctx, `INSERT INTO entity_states (entity_type_id, user_id, entity_id, dirty, validity, created_on)
			VALUES (?, ?, ?, 0, ?, ?)`, state.EntityTypeId, userID, entityID, int(models.ValidityUnknown), state.CreatedOn.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to create entity state %s[%s]: %w", meta.EntityTypeId, entityID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (r *SQLRepository) Items(ctx context.Context, sess session.Session, meta repository.Meta) ([]*models.EntityState, error) {
	userID, err := currentUser(sess)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, `entity_type_id = ? AND user_id = ?`, meta.EntityTypeId, userID)
}

func (r *SQLRepository) GetDirties(ctx context.Context, sess session.Session, meta repository.Meta, ofUser bool) ([]*models.EntityState, error) {
	if !ofUser {
		return r.list(ctx, `entity_type_id = ? AND dirty = 1`, meta.EntityTypeId)
	}
	userID, err := currentUser(sess)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, `entity_type_id = ? AND user_id = ? AND dirty = 1`, meta.EntityTypeId, userID)
}

// update writes delta to the row of state and applies it in memory.
func (r *SQLRepository) update(ctx context.Context, state *models.EntityState, delta *Delta) error {
	cols := delta.Columns()
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+3)
	for i, c := range cols {
		sets[i] = c + " = ?"
		v, err := columnValue(delta.values[c])
		if err != nil {
			return fmt.Errorf("failed to encode %s of %s[%s]: %w", c, state.EntityTypeId, state.EntityId, err)
		}
		args = append(args, v)
	}
	args = append(args, state.EntityTypeId, state.UserId, state.EntityId)

	query := `UPDATE entity_states SET ` + strings.Join(sets, ", ") +
		` WHERE entity_type_id = ? AND user_id = ? AND entity_id = ?`
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update entity state %s[%s]: %w", state.EntityTypeId, state.EntityId, err)
	}
	delta.apply(state)
	return nil
}

func columnValue(v any) (any, error) {
	switch v := v.(type) {
	case time.Time:
		return v.UnixNano(), nil
	case []models.Patch:
		if len(v) == 0 {
			return nil, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	default:
		return v, nil
	}
}

func (r *SQLRepository) Modify(ctx context.Context, sess session.Session, meta repository.Meta, entityID string, action func(state *models.EntityState, delta *Delta)) error {
	return r.db.Transaction(ctx, func(ctx context.Context) error {
		state, err := r.GetOrAddNew(ctx, sess, meta, entityID)
		if err != nil {
			return err
		}
		var delta Delta
		action(state, &delta)
		if delta.Empty() {
			return nil
		}
		return r.update(ctx, state, &delta)
	})
}

func (r *SQLRepository) MarkAsDirty(ctx context.Context, sess session.Session, meta repository.Meta, entityID string, modifiedOn time.Time) error {
	marked := false
	err := r.Modify(ctx, sess, meta, entityID, func(state *models.EntityState, delta *Delta) {
		if state.IsDirty() && state.LocallyModifiedOn != nil && !state.LocallyModifiedOn.Before(modifiedOn) {
			return
		}
		if !state.IsDirty() {
			delta.SetDirty(true)
			marked = true
		}
		delta.SetLocallyModifiedOn(modifiedOn)
	})
	if err == nil && marked {
		r.metrics.DirtyMarked()
	}
	return err
}

func (r *SQLRepository) AddPatch(ctx context.Context, sess session.Session, meta repository.Meta, entityID string, patch models.Patch) error {
	marked := false
	err := r.Modify(ctx, sess, meta, entityID, func(state *models.EntityState, delta *Delta) {
		delta.SetPatches(append(slices.Clone(state.Patches), patch))
		if !state.IsDirty() {
			delta.SetDirty(true)
			marked = true
		}
		if state.LocallyModifiedOn == nil || state.LocallyModifiedOn.Before(patch.CreatedOn) {
			delta.SetLocallyModifiedOn(patch.CreatedOn)
		}
	})
	if err != nil {
		return err
	}
	r.metrics.PatchAdded()
	if marked {
		r.metrics.DirtyMarked()
	}
	return nil
}

// modifyExisting runs action on the rows of entityIDs that exist for the
// current user. Missing rows are skipped.
func (r *SQLRepository) modifyExisting(ctx context.Context, sess session.Session, meta repository.Meta, entityIDs []string, action func(delta *Delta)) error {
	userID, err := currentUser(sess)
	if err != nil {
		return err
	}
	return r.db.Transaction(ctx, func(ctx context.Context) error {
		for _, id := range entityIDs {
			state, err := r.find(ctx, meta.EntityTypeId, userID, id)
			if err != nil {
				return err
			}
			if state == nil {
				r.logger.Debug(ctx, "entity state not found", "type", meta.EntityTypeId, "id", id)
				continue
			}
			var delta Delta
			action(&delta)
			if err := r.update(ctx, state, &delta); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLRepository) MarkAsRemotelyPut(ctx context.Context, sess session.Session, meta repository.Meta, entityIDs []string, at time.Time) error {
	return r.modifyExisting(ctx, sess, meta, entityIDs, func(delta *Delta) {
		delta.SetDirty(false)
		delta.SetRemotelyPutOn(at)
	})
}

func (r *SQLRepository) MarkAsRemotelyPatched(ctx context.Context, sess session.Session, meta repository.Meta, entityIDs []string, at time.Time) error {
	return r.modifyExisting(ctx, sess, meta, entityIDs, func(delta *Delta) {
		delta.SetDirty(false)
		delta.SetRemotelyPatchedOn(at)
	})
}

func (r *SQLRepository) MarkAsDownloaded(ctx context.Context, sess session.Session, meta repository.Meta, entityIDs []string, at time.Time) error {
	return r.db.Transaction(ctx, func(ctx context.Context) error {
		for _, id := range entityIDs {
			err := r.Modify(ctx, sess, meta, id, func(_ *models.EntityState, delta *Delta) {
				delta.SetDownloadedOn(at)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLRepository) SetValidationResult(ctx context.Context, sess session.Session, meta repository.Meta, entityID string, result models.ValidationResult) error {
	return r.db.Transaction(ctx, func(ctx context.Context) error {
		state, err := r.GetOrAddNew(ctx, sess, meta, entityID)
		if err != nil {
			return err
		}
		if state.Validity == result.Validity {
			return nil
		}

		if result.Validity == models.ValidityInvalid {
			err = r.issues.Set(ctx, &models.EntityIssue{EntityId: entityID, EntityTypeId: meta.EntityTypeId, Payload: result.Issues})
		} else {
			err = r.issues.Delete(ctx, entityID, meta.EntityTypeId)
		}
		if err != nil {
			return err
		}

		var delta Delta
		delta.SetValidity(result.Validity)
		return r.update(ctx, state, &delta)
	})
}

func (r *SQLRepository) GetValidationResult(ctx context.Context, sess session.Session, meta repository.Meta, entityID string) (models.ValidationResult, error) {
	var result models.ValidationResult
	err := r.db.Transaction(ctx, func(ctx context.Context) error {
		state, err := r.Find(ctx, sess, meta, entityID)
		if err != nil || state == nil {
			return err
		}
		result.Validity = state.Validity
		if state.Validity != models.ValidityInvalid {
			return nil
		}
		issue, err := r.issues.Find(ctx, entityID, meta.EntityTypeId)
		if err != nil {
			return err
		}
		if issue != nil {
			result.Issues = issue.Payload
		}
		return nil
	})
	return result, err
}

func (r *SQLRepository) Delete(ctx context.Context, meta repository.Meta, entityID string) error {
	return r.DeleteRange(ctx, meta, []string{entityID})
}

func (r *SQLRepository) DeleteRange(ctx context.Context, meta repository.Meta, entityIDs []string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	return r.db.Transaction(ctx, func(ctx context.Context) error {
		if err := r.issues.DeleteRange(ctx, meta.EntityTypeId, entityIDs); err != nil {
			return err
		}
		for _, chunk := range store.Chunks(entityIDs, r.db.Dialect().MaxParams()-1) {
			query := fmt.Sprintf(`DELETE FROM entity_states WHERE entity_type_id = ? AND entity_id IN (%s)`,
				store.Placeholders(len(chunk)))
			args := append([]any{meta.EntityTypeId}, store.ToArgs(chunk)...)
			if _, err := r.db.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to delete entity states of %s: %w", meta.EntityTypeId, err)
			}
		}
		return nil
	})
}

func (r *SQLRepository) DeleteAllOfType(ctx context.Context, meta repository.Meta) error {
	return r.db.Transaction(ctx, func(ctx context.Context) error {
		if err := r.issues.DeleteAllOfType(ctx, meta.EntityTypeId); err != nil {
			return err
		}
		if _, err := r.db.Exec(ctx, `DELETE FROM entity_states WHERE entity_type_id = ?`, meta.EntityTypeId); err != nil {
			return fmt.Errorf("failed to delete entity states of %s: %w", meta.EntityTypeId, err)
		}
		return nil
	})
}

func (r *SQLRepository) Clear(ctx context.Context) error {
	return r.db.Transaction(ctx, func(ctx context.Context) error {
		if err := r.issues.Clear(ctx); err != nil {
			return err
		}
		if _, err := r.db.Exec(ctx, `DELETE FROM entity_states`); err != nil {
			return fmt.Errorf("failed to clear entity states: %w", err)
		}
		return nil
	})
}
