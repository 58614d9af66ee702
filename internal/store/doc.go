// Package store binds the local synchronization layer to an embedded,
// transactional SQL engine.
//
// # Overview
//
// DB wraps a *sql.DB together with a Dialect (SQLite via modernc.org/sqlite,
// or Postgres via pgx). Opening a DB applies the dialect pragmas and runs the
// embedded goose migrations that create the system tables (entity_states,
// entity_type_states, entity_issues).
//
// Entity types live in document tables created on demand with
// EnsureDocumentTable. Each row holds the record id and its JSON document.
// Table[T] is the typed view over one such table: point and bulk reads,
// upserts, bulk deletes, JSON-merge updates that report affected rows,
// key-only scans and field equality queries.
//
// # Transactions
//
// DB.Transaction runs a function inside one transaction carried by the
// context. Every Table method and every repository built on this package
// reads the transaction from the context, so work issued with that context
// commits or rolls back together. Nested calls join the outer transaction.
package store
