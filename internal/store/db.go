package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/store/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// DB is an opened local store.
type DB struct {
	conn    *sql.DB
	dialect Dialect
}

// Open opens the database for driver ("sqlite" or "postgres"), applies the
// dialect pragmas and runs pending migrations.
//
// SQLite accepts a single writer, so the pool is limited to one connection.
// Code running inside a transaction must therefore use the context handed
// to the transaction function.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect.Name() == "sqlite" {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	}

	for _, pragma := range dialect.Pragmas() {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	db := &DB{conn: conn, dialect: dialect}
	if err := db.RunMigrations(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return db, nil
}

// RunMigrations applies the embedded migrations of the DB dialect.
func (db *DB) RunMigrations(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(db.dialect.GooseDialect()); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db.conn, db.dialect.Name())
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Dialect returns the SQL dialect of the DB.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Raw returns the underlying *sql.DB.
func (db *DB) Raw() *sql.DB {
	return db.conn
}

// Conn returns the transaction carried by ctx or the pool.
func (db *DB) Conn(ctx context.Context) dbx.DBTX {
	return dbx.Conn(ctx, db.conn)
}

// Transaction runs fn in one transaction spanning every table touched
// through the context it receives. A call made while ctx already carries a
// transaction joins it.
func (db *DB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return dbx.RunInTx(ctx, db.conn, fn)
}

// Exec runs a statement written with ? placeholders.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.Conn(ctx).ExecContext(ctx, db.dialect.Rebind(query), args...)
}

// Query runs a query written with ? placeholders.
func (db *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.Conn(ctx).QueryContext(ctx, db.dialect.Rebind(query), args...)
}

// QueryRow runs a single-row query written with ? placeholders.
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.Conn(ctx).QueryRowContext(ctx, db.dialect.Rebind(query), args...)
}

// EnsureDocumentTable creates the document table name if it does not exist.
func (db *DB) EnsureDocumentTable(ctx context.Context, name string) error {
	if err := checkIdent(name, common.ErrInvalidTableName); err != nil {
		return err
	}
	if _, err := db.Conn(ctx).ExecContext(ctx, db.dialect.CreateDocumentTable(name)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}
	return nil
}
