// Package entityissues persists validation issue payloads, one row per
// (entity id, entity type).
//
// The table is deliberately separate from entity_states: issue payloads can
// be large or change shape without touching the dirty-tracking record.
// Payloads are stored snappy-compressed.
package entityissues
