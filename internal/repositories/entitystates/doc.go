// Package entitystates persists the sync status of every entity: one row
// per (entity type, user, entity id) holding the dirty flag, the patch log
// accumulated since the last acknowledgment, the validation status and the
// local/remote timestamps.
//
// # Invariants
//
//   - Patches is non-empty only while the row is dirty; clearing dirty
//     clears the patch log in the same statement (see Delta.SetDirty).
//   - Rows are created lazily on first reference (GetOrAddNew / Modify).
//   - Issue rows (package entityissues) are deleted before their state rows.
//
// The user part of the key is always the current session user. Reads that
// discover pending work (GetDirties) can span all users of a type.
package entitystates
