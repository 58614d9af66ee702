package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	models.EntityBase
	Title string `json:"Title"`
	Body  string `json:"Body,omitempty"`
	Pages int    `json:"Pages,omitempty"`
}

func newNote() *note { return &note{} }

func setupDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func setupTable(t *testing.T) (*DB, *Table[*note]) {
	t.Helper()
	db := setupDB(t)
	require.NoError(t, db.EnsureDocumentTable(context.Background(), "notes"))
	tbl, err := NewTable(db, "notes", newNote)
	require.NoError(t, err)
	return db, tbl
}

func TestOpen_CreatesSystemTables(t *testing.T) {
	db := setupDB(t)

	for _, name := range []string{"entity_states", "entity_type_states", "entity_issues"} {
		var n int
		err := db.Raw().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "table %s must exist", name)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	require.Error(t, err)
}

func TestMigrations_AreIdempotent(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.RunMigrations(context.Background()))
}

func TestEnsureDocumentTable_RejectsBadNames(t *testing.T) {
	db := setupDB(t)

	err := db.EnsureDocumentTable(context.Background(), "notes; DROP TABLE entity_states")
	require.ErrorIs(t, err, common.ErrInvalidTableName)

	_, err = NewTable(db, "1bad", newNote)
	require.ErrorIs(t, err, common.ErrInvalidTableName)
}

func TestTable_PutGet(t *testing.T) {
	_, tbl := setupTable(t)
	ctx := context.Background()

	require.NoError(t, tbl.Put(ctx, &note{EntityBase: models.EntityBase{Id: "a"}, Title: "first"}))

	got, found, err := tbl.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "first", got.Title)

	_, found, err = tbl.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTable_PutRejectsEmptyID(t *testing.T) {
	_, tbl := setupTable(t)
	require.Error(t, tbl.Put(context.Background(), &note{Title: "no id"}))
}

func TestTable_PutUpserts(t *testing.T) {
	_, tbl := setupTable(t)
	ctx := context.Background()

	require.NoError(t, tbl.Put(ctx, &note{EntityBase: models.EntityBase{Id: "a"}, Title: "old"}))
	require.NoError(t, tbl.Put(ctx, &note{EntityBase: models.EntityBase{Id: "a"}, Title: "new"}))

	n, err := tbl.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, _, err := tbl.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
}

func TestTable_BulkGetKeepsOrderAndDropsMisses(t *testing.T) {
	_, tbl := setupTable(t)
	ctx := context.Background()

	require.NoError(t, tbl.BulkPut(ctx, []*note{
		{EntityBase: models.EntityBase{Id: "a"}, Title: "A"},
		{EntityBase: models.EntityBase{Id: "b"}, Title: "B"},
		{EntityBase: models.EntityBase{Id: "c"}, Title: "C"},
	}))

	got, err := tbl.BulkGet(ctx, []string{"c", "zz", "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "C", got[0].Title)
	assert.Equal(t, "A", got[1].Title)
}

func TestTable_UpdateSetsFieldsAndReportsAffected(t *testing.T) {
	_, tbl := setupTable(t)
	ctx := context.Background()

	require.NoError(t, tbl.Put(ctx, &note{EntityBase: models.EntityBase{Id: "a"}, Title: "t", Body: "b"}))

	n, err := tbl.Update(ctx, "a", models.Delta{"Title": "t2", "Pages": 3, models.SyncPendingField: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, _, err := tbl.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "t2", got.Title)
	assert.Equal(t, "b", got.Body)
	assert.Equal(t, 3, got.Pages)
	assert.True(t, got.IsSyncPending)

	n, err = tbl.Update(ctx, "missing", models.Delta{"Title": "x"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

type spot struct {
	City   string `json:"City"`
	Street string `json:"Street,omitempty"`
}

type shelf struct {
	models.EntityBase
	Label string `json:"Label"`
	Spot  *spot  `json:"Spot,omitempty"`
}

func TestTable_UpdateReplacesTopLevelFields(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	require.NoError(t, db.EnsureDocumentTable(ctx, "shelves"))
	tbl, err := NewTable(db, "shelves", func() *shelf { return &shelf{} })
	require.NoError(t, err)

	orig := &shelf{EntityBase: models.EntityBase{Id: "s"}, Label: "old", Spot: &spot{City: "Riga", Street: "Brivibas"}}
	require.NoError(t, tbl.Put(ctx, orig))

	delta := models.Delta{"Label": nil, "Spot": map[string]any{"City": "Tallinn"}}
	n, err := tbl.Update(ctx, "s", delta)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var raw string
	require.NoError(t, db.QueryRow(ctx, `SELECT data FROM "shelves" WHERE id = ?`, "s").Scan(&raw))
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Nil(t, doc["Label"])
	assert.Equal(t, map[string]any{"City": "Tallinn"}, doc["Spot"])

	stored, _, err := tbl.Get(ctx, "s")
	require.NoError(t, err)
	require.NoError(t, models.ApplyDelta(orig, delta))
	assert.Equal(t, orig, stored)
}

func TestTable_UpdateRejectsBadFieldName(t *testing.T) {
	_, tbl := setupTable(t)
	_, err := tbl.Update(context.Background(), "a", models.Delta{"x') --": 1})
	require.ErrorIs(t, err, common.ErrInvalidFieldName)
}

func TestDialects_SetFieldsReplaceSameKeys(t *testing.T) {
	fields := map[string]json.RawMessage{
		"Spot":  json.RawMessage(`{"City":"Tallinn"}`),
		"Label": json.RawMessage(`null`),
	}

	sqlite, err := DialectFor("sqlite")
	require.NoError(t, err)
	expr, args := sqlite.SetFields(fields)
	assert.Equal(t, "json_set(data, '$.Label', json(?), '$.Spot', json(?))", expr)
	assert.Equal(t, []any{`null`, `{"City":"Tallinn"}`}, args)

	pg, err := DialectFor("postgres")
	require.NoError(t, err)
	expr, args = pg.SetFields(fields)
	assert.Equal(t, "data || ?::jsonb", expr)
	require.Len(t, args, 1)
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(args[0].(string)), &obj))
	assert.Equal(t, map[string]any{"Label": nil, "Spot": map[string]any{"City": "Tallinn"}}, obj)

	expr, args = sqlite.SetFields(nil)
	assert.Equal(t, "data", expr)
	assert.Empty(t, args)
}

func TestTable_PrimaryKeysWhereCountClear(t *testing.T) {
	_, tbl := setupTable(t)
	ctx := context.Background()

	require.NoError(t, tbl.BulkPut(ctx, []*note{
		{EntityBase: models.EntityBase{Id: "b"}, Title: "same"},
		{EntityBase: models.EntityBase{Id: "a"}, Title: "same"},
		{EntityBase: models.EntityBase{Id: "c"}, Title: "other"},
	}))

	keys, err := tbl.PrimaryKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	same, err := tbl.Where(ctx, "Title", "same")
	require.NoError(t, err)
	require.Len(t, same, 2)
	assert.Equal(t, "a", same[0].Id)

	_, err = tbl.Where(ctx, "Title') OR 1=1 --", "x")
	require.ErrorIs(t, err, common.ErrInvalidFieldName)

	require.NoError(t, tbl.BulkDelete(ctx, []string{"a", "missing"}))
	n, err := tbl.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.NoError(t, tbl.Clear(ctx))
	all, err := tbl.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTransaction_RollsBackAcrossTables(t *testing.T) {
	db, tbl := setupTable(t)
	ctx := context.Background()

	err := db.Transaction(ctx, func(ctx context.Context) error {
		require.NoError(t, tbl.Put(ctx, &note{EntityBase: models.EntityBase{Id: "a"}, Title: "t"}))
		_, err := db.Exec(ctx, `INSERT INTO entity_issues (entity_id, entity_type_id, payload) VALUES (?, ?, ?)`, "a", "note", []byte{1})
		require.NoError(t, err)
		return errors.New("abort")
	})
	require.Error(t, err)

	n, err := tbl.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	var issues int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM entity_issues`).Scan(&issues))
	assert.Equal(t, 0, issues)
}

func TestChunks(t *testing.T) {
	assert.Nil(t, Chunks(nil, 2))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, Chunks([]string{"a", "b", "c"}, 2))
	assert.Equal(t, "?, ?, ?", Placeholders(3))
}

func TestPostgresDialect(t *testing.T) {
	d, err := DialectFor("postgres")
	require.NoError(t, err)

	expr, args := d.SetFields(map[string]json.RawMessage{"Title": json.RawMessage(`null`)})
	assert.Equal(t, "UPDATE t SET data = data || $1::jsonb WHERE id = $2",
		d.Rebind("UPDATE t SET data = "+expr+" WHERE id = ?"))
	assert.Equal(t, []any{`{"Title":null}`}, args)
	assert.Equal(t, "data->>'Title' = ?", d.FieldEquals("Title"))
	assert.Equal(t, "true", d.FieldArg(true))
	assert.Equal(t, "pgx", d.DriverName())
}
