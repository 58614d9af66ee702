package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/models"
)

// Table is a typed document table keyed by entity id.
type Table[T models.Entity] struct {
	db        *DB
	name      string
	newRecord func() T
}

// NewTable binds a document table. newRecord must return a fresh pointer
// that documents are decoded into.
func NewTable[T models.Entity](db *DB, name string, newRecord func() T) (*Table[T], error) {
	if err := checkIdent(name, common.ErrInvalidTableName); err != nil {
		return nil, err
	}
	return &Table[T]{db: db, name: name, newRecord: newRecord}, nil
}

// Name returns the table name.
func (t *Table[T]) Name() string { return t.name }

// DB returns the store the table lives in.
func (t *Table[T]) DB() *DB { return t.db }

func (t *Table[T]) q(format string, args ...any) string {
	return t.db.dialect.Rebind(fmt.Sprintf(format, append([]any{t.name}, args...)...))
}

func (t *Table[T]) decode(data []byte) (T, error) {
	rec := t.newRecord()
	if err := json.Unmarshal(data, rec); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to decode %s document: %w", t.name, err)
	}
	return rec, nil
}

// Get returns the record with id. found is false when there is no such row.
func (t *Table[T]) Get(ctx context.Context, id string) (rec T, found bool, err error) {
	var data []byte
	err = t.db.Conn(ctx).QueryRowContext(ctx, t.q(`SELECT data FROM "%s" WHERE id = ?`), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("failed to get %s[%s]: %w", t.name, id, err)
	}
	rec, err = t.decode(data)
	if err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

// BulkGet returns the records found for ids, in request order. Missing ids
// are dropped.
func (t *Table[T]) BulkGet(ctx context.Context, ids []string) ([]T, error) {
	byID := make(map[string]T, len(ids))
	for _, chunk := range Chunks(ids, t.db.dialect.MaxParams()) {
		query := t.q(`SELECT id, data FROM "%s" WHERE id IN (%s)`, Placeholders(len(chunk)))
		rows, err := t.db.Conn(ctx).QueryContext(ctx, query, ToArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("failed to bulk get %s: %w", t.name, err)
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var id string
				var data []byte
				if err := rows.Scan(&id, &data); err != nil {
					return fmt.Errorf("failed to scan %s row: %w", t.name, err)
				}
				rec, err := t.decode(data)
				if err != nil {
					return err
				}
				byID[id] = rec
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, err
		}
	}

	result := make([]T, 0, len(byID))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			result = append(result, rec)
		}
	}
	return result, nil
}

// Put inserts or replaces rec.
func (t *Table[T]) Put(ctx context.Context, rec T) error {
	id := rec.EntityID()
	if id == "" {
		return fmt.Errorf("failed to put %s: empty id", t.name)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s[%s]: %w", t.name, id, err)
	}
	query := t.q(`INSERT INTO "%s" (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data`)
	if _, err := t.db.Conn(ctx).ExecContext(ctx, query, id, string(data)); err != nil {
		return fmt.Errorf("failed to put %s[%s]: %w", t.name, id, err)
	}
	return nil
}

// BulkPut upserts every record inside one transaction.
func (t *Table[T]) BulkPut(ctx context.Context, recs []T) error {
	if len(recs) == 0 {
		return nil
	}
	return t.db.Transaction(ctx, func(ctx context.Context) error {
		for _, rec := range recs {
			if err := t.Put(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// BulkDelete removes the rows with the given ids. Missing ids are ignored.
func (t *Table[T]) BulkDelete(ctx context.Context, ids []string) error {
	for _, chunk := range Chunks(ids, t.db.dialect.MaxParams()) {
		query := t.q(`DELETE FROM "%s" WHERE id IN (%s)`, Placeholders(len(chunk)))
		if _, err := t.db.Conn(ctx).ExecContext(ctx, query, ToArgs(chunk)...); err != nil {
			return fmt.Errorf("failed to bulk delete %s: %w", t.name, err)
		}
	}
	return nil
}

// Update replaces the top-level fields named in changes in the stored
// document of id and returns the number of affected rows (0 when the row
// does not exist). Nested values are replaced as a whole, and a nil value
// stores null.
func (t *Table[T]) Update(ctx context.Context, id string, changes models.Delta) (int64, error) {
	fields := make(map[string]json.RawMessage, len(changes))
	for k, v := range changes {
		if err := checkIdent(k, common.ErrInvalidFieldName); err != nil {
			return 0, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return 0, fmt.Errorf("failed to encode %s[%s].%s: %w", t.name, id, k, err)
		}
		fields[k] = raw
	}

	expr, args := t.db.dialect.SetFields(fields)
	query := t.q(`UPDATE "%s" SET data = %s WHERE id = ?`, expr)
	res, err := t.db.Conn(ctx).ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s[%s]: %w", t.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// PrimaryKeys lists every id without materializing documents.
func (t *Table[T]) PrimaryKeys(ctx context.Context) ([]string, error) {
	rows, err := t.db.Conn(ctx).QueryContext(ctx, t.q(`SELECT id FROM "%s" ORDER BY id`))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s keys: %w", t.name, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s key: %w", t.name, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// All returns every record ordered by id.
func (t *Table[T]) All(ctx context.Context) ([]T, error) {
	return t.selectDocs(ctx, t.q(`SELECT data FROM "%s" ORDER BY id`))
}

// Where returns the records whose top-level field equals value.
func (t *Table[T]) Where(ctx context.Context, field string, value any) ([]T, error) {
	if err := checkIdent(field, common.ErrInvalidFieldName); err != nil {
		return nil, err
	}
	query := t.q(`SELECT data FROM "%s" WHERE %s ORDER BY id`, t.db.dialect.FieldEquals(field))
	return t.selectDocs(ctx, query, t.db.dialect.FieldArg(value))
}

// Count returns the number of rows.
func (t *Table[T]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := t.db.Conn(ctx).QueryRowContext(ctx, t.q(`SELECT COUNT(*) FROM "%s"`)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.name, err)
	}
	return n, nil
}

// Clear deletes every row.
func (t *Table[T]) Clear(ctx context.Context) error {
	if _, err := t.db.Conn(ctx).ExecContext(ctx, t.q(`DELETE FROM "%s"`)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", t.name, err)
	}
	return nil
}

func (t *Table[T]) selectDocs(ctx context.Context, query string, args ...any) ([]T, error) {
	rows, err := t.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", t.name, err)
	}
	defer rows.Close()

	var result []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.name, err)
		}
		rec, err := t.decode(data)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Placeholders returns n comma-separated ? placeholders.
func Placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// ToArgs converts ids into query arguments.
func ToArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// Chunks splits ids into slices of at most size elements.
func Chunks(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
