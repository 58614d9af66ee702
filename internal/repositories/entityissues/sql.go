package entityissues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/dmitrijs2005/gophsync/internal/store"
	"github.com/golang/snappy"
)

// SQLRepository implements Repository over the entity_issues table.
type SQLRepository struct {
	db *store.DB
}

// NewSQLRepository returns a repository bound to db.
func NewSQLRepository(db *store.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Find(ctx context.Context, entityID, entityTypeID string) (*models.EntityIssue, error) {
	var payload []byte
	err := r.db.QueryRow(ctx, `SELECT payload FROM entity_issues WHERE entity_id = ? AND entity_type_id = ?`,
		entityID, entityTypeID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity issue[%s/%s]: %w", entityTypeID, entityID, err)
	}

	decoded, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode entity issue[%s/%s]: %w", entityTypeID, entityID, err)
	}
	return &models.EntityIssue{EntityId: entityID, EntityTypeId: entityTypeID, Payload: decoded}, nil
}

func (r *SQLRepository) GetOrAddNew(ctx context.Context, entityID, entityTypeID string) (*models.EntityIssue, error) {
	issue, err := r.Find(ctx, entityID, entityTypeID)
	if err != nil || issue != nil {
		return issue, err
	}
	issue = &models.EntityIssue{EntityId: entityID, EntityTypeId: entityTypeID}
	if err := r.Set(ctx, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

func (r *SQLRepository) Set(ctx context.Context, issue *models.EntityIssue) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO entity_issues (entity_id, entity_type_id, payload) VALUES (?, ?, ?)
		ON CONFLICT(entity_id, entity_type_id) DO UPDATE SET payload = excluded.payload
	`, issue.EntityId, issue.EntityTypeId, snappy.Encode(nil, issue.Payload))
	if err != nil {
		return fmt.Errorf("failed to set entity issue[%s/%s]: %w", issue.EntityTypeId, issue.EntityId, err)
	}
	return nil
}

func (r *SQLRepository) Modify(ctx context.Context, entityID, entityTypeID string, action func(issue *models.EntityIssue) bool) error {
	return r.db.Transaction(ctx, func(ctx context.Context) error {
		issue, err := r.GetOrAddNew(ctx, entityID, entityTypeID)
		if err != nil {
			return err
		}
		if !action(issue) {
			return nil
		}
		return r.Set(ctx, issue)
	})
}

func (r *SQLRepository) Delete(ctx context.Context, entityID, entityTypeID string) error {
	return r.DeleteRange(ctx, entityTypeID, []string{entityID})
}

func (r *SQLRepository) DeleteRange(ctx context.Context, entityTypeID string, entityIDs []string) error {
	for _, chunk := range store.Chunks(entityIDs, r.db.Dialect().MaxParams()-1) {
		query := fmt.Sprintf(`DELETE FROM entity_issues WHERE entity_type_id = ? AND entity_id IN (%s)`,
			store.Placeholders(len(chunk)))
		args := append([]any{entityTypeID}, store.ToArgs(chunk)...)
		if _, err := r.db.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete entity issues of %s: %w", entityTypeID, err)
		}
	}
	return nil
}

func (r *SQLRepository) DeleteAllOfType(ctx context.Context, entityTypeID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM entity_issues WHERE entity_type_id = ?`, entityTypeID); err != nil {
		return fmt.Errorf("failed to delete entity issues of %s: %w", entityTypeID, err)
	}
	return nil
}

func (r *SQLRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM entity_issues`); err != nil {
		return fmt.Errorf("failed to clear entity issues: %w", err)
	}
	return nil
}
